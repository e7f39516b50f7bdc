package interceptors

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"server-actions/backend/internal/action"
	"server-actions/backend/internal/security"
)

const bearerPrefix = "bearer "

// AuthUnary returns a unary server interceptor that verifies the Bearer access token from gRPC
// metadata and stores the caller identity with action.WithCaller.
// publicMethods is the set of full method names that run without a token (public entry points and
// the gRPC health service). A missing or invalid token on a public method proceeds anonymously;
// on any other method it is rejected with Unauthenticated before the request is decoded.
func AuthUnary(verifier *security.Verifier, publicMethods map[string]bool, log logrus.FieldLogger) grpc.UnaryServerInterceptor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		public := publicMethods[info.FullMethod]
		token := extractBearer(ctx)
		if token == "" || verifier == nil {
			if public {
				return handler(ctx, req)
			}
			return nil, action.ErrUnauthenticated
		}

		id, err := verifier.Verify(token)
		if err != nil {
			log.WithError(err).WithField("method", info.FullMethod).Debug("auth: token rejected")
			if public {
				return handler(ctx, req)
			}
			return nil, action.ErrUnauthenticated
		}

		ctx = action.WithCaller(ctx, action.Caller{
			UserID:    id.UserID,
			SessionID: id.SessionID,
			OrgID:     id.OrgID,
		})
		return handler(ctx, req)
	}
}

// extractBearer returns the Bearer token from ctx metadata, or "" if missing or malformed.
func extractBearer(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return ""
	}
	v := strings.TrimSpace(vals[0])
	if len(v) < len(bearerPrefix) || !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
