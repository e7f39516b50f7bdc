package engine

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/sirupsen/logrus"
)

const readQuery = "data.serveractions.posts.allow_read"

// DefaultReadPolicy is used when no POLICY_FILE is configured. It matches BuiltinAllowRead.
const DefaultReadPolicy = `package serveractions.posts

default allow_read := false

allow_read if input.post.status == "published"

allow_read if {
	input.caller.user_id != ""
	input.caller.user_id == input.post.author_id
}
`

// OPAEvaluator evaluates post read visibility with an OPA Rego policy compiled once at startup.
type OPAEvaluator struct {
	query rego.PreparedEvalQuery
	log   logrus.FieldLogger
}

var _ Evaluator = (*OPAEvaluator)(nil)

// NewOPAEvaluator compiles src (DefaultReadPolicy when empty) and prepares the allow_read query.
// It fails if the policy does not compile.
func NewOPAEvaluator(ctx context.Context, src string, log logrus.FieldLogger) (*OPAEvaluator, error) {
	if strings.TrimSpace(src) == "" {
		src = DefaultReadPolicy
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	compiler, err := ast.CompileModules(map[string]string{"posts.rego": src})
	if err != nil {
		return nil, fmt.Errorf("compile read policy: %w", err)
	}
	query, err := rego.New(
		rego.Query(readQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare read policy: %w", err)
	}
	return &OPAEvaluator{query: query, log: log.WithField("component", "policy")}, nil
}

// LoadPolicyFile reads a Rego policy from path. An empty path returns DefaultReadPolicy.
func LoadPolicyFile(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return DefaultReadPolicy, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read POLICY_FILE: %w", err)
	}
	return string(b), nil
}

// AllowRead evaluates the policy. Evaluation errors and non-boolean results are logged and the
// built-in rule decides instead.
func (e *OPAEvaluator) AllowRead(ctx context.Context, in ReadInput) bool {
	allowed, err := e.eval(ctx, in)
	if err != nil {
		e.log.WithError(err).Warn("read policy evaluation failed, using built-in rule")
		return BuiltinAllowRead(in)
	}
	return allowed
}

// HealthCheck verifies that the prepared policy evaluates to a boolean for a minimal input.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	_, err := e.eval(ctx, ReadInput{Status: StatusPublished})
	return err
}

func (e *OPAEvaluator) eval(ctx context.Context, in ReadInput) (bool, error) {
	rs, err := e.query.Eval(ctx, rego.EvalInput(map[string]interface{}{
		"caller": map[string]interface{}{"user_id": in.CallerID},
		"post": map[string]interface{}{
			"author_id": in.AuthorID,
			"status":    in.Status,
		},
	}))
	if err != nil {
		return false, fmt.Errorf("eval read policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, fmt.Errorf("read policy returned no result")
	}
	allowed, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("read policy returned %T, want bool", rs[0].Expressions[0].Value)
	}
	return allowed, nil
}
