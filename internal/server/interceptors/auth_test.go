package interceptors

import (
	"context"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"server-actions/backend/internal/action"
	"server-actions/backend/internal/security"
)

const (
	publicMethod    = "/serveractions.post.v1.PostService/Get"
	protectedMethod = "/serveractions.post.v1.PostService/Create"
)

func newAuth(t *testing.T) (*security.Issuer, grpc.UnaryServerInterceptor) {
	t.Helper()
	issuer, verifier, err := security.NewTestKeys()
	if err != nil {
		t.Fatalf("NewTestKeys: %v", err)
	}
	return issuer, AuthUnary(verifier, map[string]bool{publicMethod: true}, nil)
}

func withBearer(ctx context.Context, value string) context.Context {
	return metadata.NewIncomingContext(ctx, metadata.Pairs("authorization", value))
}

// captureCaller is a handler that records the caller seen by the entry point.
func captureCaller(got *action.Caller, ok *bool) grpc.UnaryHandler {
	return func(ctx context.Context, req any) (any, error) {
		*got, *ok = action.CallerFromContext(ctx)
		return "success", nil
	}
}

func TestAuthUnary_PublicMethod_NoToken(t *testing.T) {
	_, interceptor := newAuth(t)
	var caller action.Caller
	var ok bool

	resp, err := interceptor(context.Background(), "request", &grpc.UnaryServerInfo{FullMethod: publicMethod}, captureCaller(&caller, &ok))
	if err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	if resp != "success" {
		t.Errorf("response = %v, want %q", resp, "success")
	}
	if ok {
		t.Errorf("caller = %+v, want anonymous", caller)
	}
}

func TestAuthUnary_ProtectedMethod_NoToken(t *testing.T) {
	_, interceptor := newAuth(t)
	called := false
	handler := func(ctx context.Context, req any) (any, error) {
		called = true
		return nil, nil
	}

	_, err := interceptor(context.Background(), "request", &grpc.UnaryServerInfo{FullMethod: protectedMethod}, handler)
	if status.Code(err) != codes.Unauthenticated {
		t.Errorf("code = %v, want Unauthenticated", status.Code(err))
	}
	if called {
		t.Error("handler must not run without a token")
	}
}

func TestAuthUnary_ProtectedMethod_ValidToken(t *testing.T) {
	issuer, interceptor := newAuth(t)
	token, _, err := issuer.IssueAccess("user-1", "sess-1", "org-1")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	var caller action.Caller
	var ok bool

	ctx := withBearer(context.Background(), "Bearer "+token)
	_, err = interceptor(ctx, "request", &grpc.UnaryServerInfo{FullMethod: protectedMethod}, captureCaller(&caller, &ok))
	if err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	if !ok {
		t.Fatal("caller not set")
	}
	want := action.Caller{UserID: "user-1", SessionID: "sess-1", OrgID: "org-1"}
	if caller != want {
		t.Errorf("caller = %+v, want %+v", caller, want)
	}
}

func TestAuthUnary_PublicMethod_ValidTokenSetsCaller(t *testing.T) {
	issuer, interceptor := newAuth(t)
	token, _, err := issuer.IssueAccess("user-2", "", "")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	var caller action.Caller
	var ok bool

	ctx := withBearer(context.Background(), "bearer "+token)
	if _, err := interceptor(ctx, "request", &grpc.UnaryServerInfo{FullMethod: publicMethod}, captureCaller(&caller, &ok)); err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	if !ok || caller.UserID != "user-2" {
		t.Errorf("caller = %+v, ok = %v, want user-2", caller, ok)
	}
}

func TestAuthUnary_InvalidToken(t *testing.T) {
	_, interceptor := newAuth(t)
	ctx := withBearer(context.Background(), "Bearer not-a-jwt")

	_, err := interceptor(ctx, "request", &grpc.UnaryServerInfo{FullMethod: protectedMethod}, func(ctx context.Context, req any) (any, error) {
		return "success", nil
	})
	if status.Code(err) != codes.Unauthenticated {
		t.Errorf("protected: code = %v, want Unauthenticated", status.Code(err))
	}

	var caller action.Caller
	var ok bool
	if _, err := interceptor(ctx, "request", &grpc.UnaryServerInfo{FullMethod: publicMethod}, captureCaller(&caller, &ok)); err != nil {
		t.Fatalf("public: %v", err)
	}
	if ok {
		t.Error("public method with an invalid token should run anonymously")
	}
}

func TestAuthUnary_NilVerifier(t *testing.T) {
	interceptor := AuthUnary(nil, map[string]bool{publicMethod: true}, nil)
	ctx := withBearer(context.Background(), "Bearer anything")

	_, err := interceptor(ctx, "request", &grpc.UnaryServerInfo{FullMethod: protectedMethod}, func(ctx context.Context, req any) (any, error) {
		return nil, nil
	})
	if status.Code(err) != codes.Unauthenticated {
		t.Errorf("code = %v, want Unauthenticated", status.Code(err))
	}
}

func TestExtractBearer(t *testing.T) {
	tests := []struct {
		name string
		md   metadata.MD
		want string
	}{
		{"no metadata", nil, ""},
		{"no header", metadata.Pairs("x-other", "v"), ""},
		{"bearer", metadata.Pairs("authorization", "Bearer abc"), "abc"},
		{"case insensitive", metadata.Pairs("authorization", "BEARER  abc "), "abc"},
		{"basic scheme", metadata.Pairs("authorization", "Basic abc"), ""},
		{"too short", metadata.Pairs("authorization", "Bear"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			if tt.md != nil {
				ctx = metadata.NewIncomingContext(ctx, tt.md)
			}
			if got := extractBearer(ctx); got != tt.want {
				t.Errorf("extractBearer = %q, want %q", got, tt.want)
			}
		})
	}
}
