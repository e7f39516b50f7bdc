package telemetry

import (
	"time"

	"github.com/google/uuid"
)

// EventTypeInvocation is the event type of an entry point invocation.
const EventTypeInvocation = "action.invocation"

// SourceGRPC marks events produced by the gRPC interceptor chain.
const SourceGRPC = "grpc"

// Event records one entry point invocation. It is written as JSON to the telemetry topic
// and read back by the worker, so the JSON field names are part of the wire format.
type Event struct {
	ID         string    `json:"id"`
	EventType  string    `json:"event_type"`
	Source     string    `json:"source"`
	Action     string    `json:"action,omitempty"`
	FullMethod string    `json:"full_method"`
	Code       string    `json:"code"`
	Kind       string    `json:"kind,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	ClientIP   string    `json:"client_ip,omitempty"`
	UserID     string    `json:"user_id,omitempty"`
	SessionID  string    `json:"session_id,omitempty"`
	OrgID      string    `json:"org_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewInvocationEvent returns an invocation event with a fresh id and CreatedAt set to now in UTC.
func NewInvocationEvent(fullMethod string, now time.Time) *Event {
	return &Event{
		ID:         uuid.NewString(),
		EventType:  EventTypeInvocation,
		Source:     SourceGRPC,
		FullMethod: fullMethod,
		CreatedAt:  now.UTC(),
	}
}
