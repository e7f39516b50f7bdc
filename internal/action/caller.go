package action

import "context"

// Caller is the identity resolved for one invocation. It is never persisted by the entry point layer.
type Caller struct {
	UserID    string
	SessionID string
	OrgID     string
}

// Anonymous reports whether no user identity was resolved.
func (c Caller) Anonymous() bool {
	return c.UserID == ""
}

type contextKey struct{ name string }

var callerKey = contextKey{"caller"}

// WithCaller returns a context carrying the caller identity. The auth interceptor sets it for every
// request with a valid bearer token.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey, c)
}

// CallerFromContext returns the caller identity and true if one with a non-empty user id is set.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey).(Caller)
	if !ok || c.UserID == "" {
		return Caller{}, false
	}
	return c, true
}

// UserIDFromContext returns the caller's user id, or "" if no identity is set.
func UserIDFromContext(ctx context.Context) string {
	c, _ := CallerFromContext(ctx)
	return c.UserID
}
