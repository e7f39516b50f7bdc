package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"server-actions/backend/internal/telemetry"
)

const loggerName = "serveractions.telemetry"

// NewEventEmitter returns an EventEmitter that sends events as OTel log records via provider.
// If provider is nil, it returns nil so telemetry.Multi skips it.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return nil
	}
	return &eventEmitter{logger: provider.Logger(loggerName)}
}

type eventEmitter struct {
	logger otellog.Logger
}

// Emit converts the event to a log record whose body is the action name (or the method when the
// action is unknown) and whose attributes carry the remaining fields.
func (e *eventEmitter) Emit(ctx context.Context, event *telemetry.Event) error {
	if event == nil {
		return nil
	}
	e.logger.Emit(ctx, toRecord(event))
	return nil
}

func toRecord(event *telemetry.Event) otellog.Record {
	var rec otellog.Record
	ts := event.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	rec.SetTimestamp(ts)
	rec.SetObservedTimestamp(time.Now().UTC())

	body := event.Action
	if body == "" {
		body = event.FullMethod
	}
	rec.SetBody(otellog.StringValue(body))

	if event.Code != "" && event.Code != "OK" {
		rec.SetSeverity(otellog.SeverityWarn)
	} else {
		rec.SetSeverity(otellog.SeverityInfo)
	}

	rec.AddAttributes(
		otellog.String("event.id", event.ID),
		otellog.String("event_type", event.EventType),
		otellog.String("source", event.Source),
		otellog.String("rpc.method", event.FullMethod),
		otellog.String("rpc.code", event.Code),
		otellog.Int64("duration_ms", event.DurationMs),
	)
	optional := []struct{ key, val string }{
		{"action", event.Action},
		{"kind", event.Kind},
		{"client_ip", event.ClientIP},
		{"user_id", event.UserID},
		{"session_id", event.SessionID},
		{"org_id", event.OrgID},
	}
	for _, kv := range optional {
		if kv.val != "" {
			rec.AddAttributes(otellog.String(kv.key, kv.val))
		}
	}
	return rec
}
