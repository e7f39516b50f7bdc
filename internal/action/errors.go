package action

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind classifies an invocation outcome for metrics and telemetry labels.
type Kind string

const (
	KindOK            Kind = "ok"
	KindValidation    Kind = "validation"
	KindAuthorization Kind = "authorization"
	KindDomain        Kind = "domain"
	KindThrottled     Kind = "throttled"
	KindCanceled      Kind = "canceled"
	KindInternal      Kind = "internal"
)

// KindOf maps an error returned by Invoke (or by an interceptor) to its Kind.
func KindOf(err error) Kind {
	if err == nil {
		return KindOK
	}
	switch status.Code(err) {
	case codes.OK:
		return KindOK
	case codes.InvalidArgument:
		return KindValidation
	case codes.Unauthenticated:
		return KindAuthorization
	case codes.NotFound, codes.AlreadyExists, codes.FailedPrecondition, codes.PermissionDenied:
		return KindDomain
	case codes.ResourceExhausted:
		return KindThrottled
	case codes.Canceled, codes.DeadlineExceeded:
		return KindCanceled
	default:
		return KindInternal
	}
}

// FieldViolation describes one offending input field.
type FieldViolation struct {
	Field       string `json:"field"`
	Description string `json:"description"`
}

// ValidationError is returned when the input object does not conform to the entry point schema.
// It converts to an InvalidArgument status carrying errdetails.BadRequest.
type ValidationError struct {
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Field+": "+v.Description)
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// GRPCStatus lets status.FromError and the gRPC server render the error as InvalidArgument.
func (e *ValidationError) GRPCStatus() *status.Status {
	st := status.New(codes.InvalidArgument, e.Error())
	br := &errdetails.BadRequest{}
	for _, v := range e.Violations {
		br.FieldViolations = append(br.FieldViolations, &errdetails.BadRequest_FieldViolation{
			Field:       v.Field,
			Description: v.Description,
		})
	}
	if withDetails, err := st.WithDetails(br); err == nil {
		return withDetails
	}
	return st
}

func newValidationError(vs []FieldViolation) *ValidationError {
	sort.SliceStable(vs, func(i, j int) bool { return vs[i].Field < vs[j].Field })
	return &ValidationError{Violations: vs}
}

// Violations extracts field violations from a validation status error. Returns nil for other errors.
func Violations(err error) []FieldViolation {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Violations
	}
	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.InvalidArgument {
		return nil
	}
	var out []FieldViolation
	for _, d := range st.Details() {
		if br, ok := d.(*errdetails.BadRequest); ok {
			for _, fv := range br.GetFieldViolations() {
				out = append(out, FieldViolation{Field: fv.GetField(), Description: fv.GetDescription()})
			}
		}
	}
	return out
}

// internalError hides the cause from clients while keeping it for server-side logging.
type internalError struct {
	cause error
}

func (e *internalError) Error() string { return "internal: " + e.cause.Error() }

func (e *internalError) Unwrap() error { return e.cause }

func (e *internalError) GRPCStatus() *status.Status {
	return status.New(codes.Internal, "internal error")
}

// Internal wraps a failure that is not a domain outcome (e.g. a database error).
func Internal(err error) error {
	if err == nil {
		return nil
	}
	return &internalError{cause: err}
}

// NotFound returns the domain failure for an absent record.
func NotFound(resource string) error {
	return status.Errorf(codes.NotFound, "%s not found", resource)
}

// AlreadyExists returns the domain failure for a record that collides with an existing one.
func AlreadyExists(resource string) error {
	return status.Errorf(codes.AlreadyExists, "%s already exists", resource)
}

// FailedPrecondition returns the domain failure for a violated business rule.
func FailedPrecondition(format string, args ...any) error {
	return status.Error(codes.FailedPrecondition, fmt.Sprintf(format, args...))
}

// ErrUnauthenticated is returned when a non-public entry point runs without a caller identity.
var ErrUnauthenticated = status.Error(codes.Unauthenticated, "missing or invalid authorization")

// Unimplemented is returned by entry points whose persistence is not wired.
func Unimplemented(name string) error {
	return status.Errorf(codes.Unimplemented, "action %s not implemented", name)
}
