package engine

import "context"

// Post statuses the default policy knows about.
const (
	StatusPublished = "published"
)

// ReadInput is the policy input for deciding whether a caller may read a post.
// CallerID is empty for anonymous callers.
type ReadInput struct {
	CallerID string
	AuthorID string
	Status   string
}

// Evaluator decides read visibility of posts.
type Evaluator interface {
	// AllowRead reports whether the caller may read the post. It never fails: when the policy
	// cannot be evaluated the built-in rule decides.
	AllowRead(ctx context.Context, in ReadInput) bool
	// HealthCheck evaluates the loaded policy against a fixed input.
	HealthCheck(ctx context.Context) error
}

// BuiltinAllowRead is the rule the default policy encodes: published posts are visible to anyone,
// everything else only to its author.
func BuiltinAllowRead(in ReadInput) bool {
	if in.Status == StatusPublished {
		return true
	}
	return in.CallerID != "" && in.CallerID == in.AuthorID
}
