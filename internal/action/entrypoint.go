// Package action implements validated server entry points: operations named <domain>.<verb> that take
// exactly one structured input object, validate it against a declared schema, resolve the caller identity,
// and delegate to one persistence call.
package action

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/goccy/go-json"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Func is the body of an entry point. It receives only validated input and must make at most one
// persistence call. caller is the zero Caller for anonymous invocations of public entry points.
type Func[In, Out any] func(ctx context.Context, caller Caller, in In) (Out, error)

// EntryPoint is a single callable operation exposed to clients.
type EntryPoint struct {
	domain      string
	verb        string
	public      bool
	description string
	schema      *schema
	call        func(ctx context.Context, caller Caller, in reflect.Value) (any, error)
}

// Option configures an EntryPoint.
type Option func(*EntryPoint)

// Public marks the entry point as callable without a caller identity.
func Public() Option {
	return func(e *EntryPoint) { e.public = true }
}

// Describe sets a human-readable description shown in the catalogue.
func Describe(text string) Option {
	return func(e *EntryPoint) { e.description = text }
}

// New declares an entry point. The schema is the In struct type: mapstructure tags name the fields,
// validate tags declare constraints. New panics if In is not a struct or domain/verb are malformed,
// since entry points are declared at startup.
func New[In, Out any](domain, verb string, fn Func[In, Out], opts ...Option) *EntryPoint {
	if !validSegment(domain) || !validSegment(verb) {
		panic(fmt.Sprintf("action: invalid entry point name %q", domain+"."+verb))
	}
	sc, err := compileSchema(reflect.TypeOf((*In)(nil)).Elem())
	if err != nil {
		panic(err)
	}
	e := &EntryPoint{
		domain: domain,
		verb:   verb,
		schema: sc,
		call: func(ctx context.Context, caller Caller, in reflect.Value) (any, error) {
			return fn(ctx, caller, in.Interface().(In))
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func validSegment(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case (r >= '0' && r <= '9' || r == '_') && i > 0:
		default:
			return false
		}
	}
	return true
}

// Name returns "<domain>.<verb>".
func (e *EntryPoint) Name() string { return e.domain + "." + e.verb }

// Domain returns the domain segment of the name.
func (e *EntryPoint) Domain() string { return e.domain }

// Verb returns the verb segment of the name.
func (e *EntryPoint) Verb() string { return e.verb }

// IsPublic reports whether the entry point runs without a caller identity.
func (e *EntryPoint) IsPublic() bool { return e.public }

// FullMethod returns the gRPC full method name the entry point is served on.
func (e *EntryPoint) FullMethod() string { return MethodFor(e.domain, e.verb) }

// Fields returns the declared input fields.
func (e *EntryPoint) Fields() []FieldSpec { return e.schema.specs() }

// Invoke runs the entry point: validate input, resolve caller, run the body once.
// Validation and authorization failures return before the body (and so before any persistence) runs.
// Errors that carry no gRPC status are treated as internal and hidden from the client.
func (e *EntryPoint) Invoke(ctx context.Context, input *structpb.Struct) (*structpb.Struct, error) {
	in, err := e.schema.decode(input.AsMap())
	if err != nil {
		return nil, err
	}
	caller, ok := CallerFromContext(ctx)
	if !ok && !e.public {
		return nil, ErrUnauthenticated
	}
	out, err := e.call(ctx, caller, in)
	if err != nil {
		if hasStatus(err) {
			return nil, err
		}
		return nil, Internal(err)
	}
	res, err := encodeResult(out)
	if err != nil {
		return nil, Internal(fmt.Errorf("encode %s result: %w", e.Name(), err))
	}
	return res, nil
}

func hasStatus(err error) bool {
	var se interface{ GRPCStatus() *status.Status }
	return errors.As(err, &se)
}

// encodeResult converts a result value to a Struct through its JSON representation.
// A nil result encodes as an empty object.
func encodeResult(out any) (*structpb.Struct, error) {
	b, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("result must encode as a JSON object: %w", err)
	}
	return structpb.NewStruct(m)
}

// MethodFor returns the gRPC full method for an entry point, e.g. post.create ->
// /serveractions.post.v1.PostService/Create.
func MethodFor(domain, verb string) string {
	return "/" + ServiceName(domain) + "/" + exported(verb)
}

// ServiceName returns the gRPC service that groups a domain's entry points.
func ServiceName(domain string) string {
	return servicePackage + "." + domain + ".v1." + exported(domain) + "Service"
}

// SplitName splits "<domain>.<verb>". ok is false if name is malformed.
func SplitName(name string) (domain, verb string, ok bool) {
	domain, verb, ok = strings.Cut(name, ".")
	if !ok || !validSegment(domain) || !validSegment(verb) {
		return "", "", false
	}
	return domain, verb, true
}

// exported converts a snake_case segment to CamelCase (list_mine -> ListMine).
func exported(s string) string {
	var b strings.Builder
	for _, part := range strings.Split(s, "_") {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]) + part[1:])
	}
	return b.String()
}

// Description returns the catalogue description, if any.
func (e *EntryPoint) Description() string { return e.description }
