package interceptors

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"server-actions/backend/internal/action"
	"server-actions/backend/internal/metrics"
	"server-actions/backend/internal/telemetry"
)

// ActionNamer maps a gRPC full method to its entry point name, or "" if the method is not an entry point.
type ActionNamer func(fullMethod string) string

func (n ActionNamer) label(fullMethod string) string {
	if n != nil {
		if name := n(fullMethod); name != "" {
			return name
		}
	}
	return fullMethod
}

// MetricsUnary records in-flight, count and latency for every call, labeled by entry point name.
// It runs outermost so rejections by later interceptors are counted too.
func MetricsUnary(m *metrics.Metrics, names ActionNamer) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if m == nil {
			return handler(ctx, req)
		}
		done := m.Start(names.label(info.FullMethod))
		resp, err := handler(ctx, req)
		done(status.Code(err).String(), string(action.KindOf(err)))
		return resp, err
	}
}

// TelemetryUnary emits an invocation event after each call through async. Best-effort: emit failures
// are logged by async and never fail the call. skipMethods are not emitted (e.g. health checks).
func TelemetryUnary(async *telemetry.Async, names ActionNamer, skipMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if async == nil || skipMethods[info.FullMethod] {
			return resp, err
		}
		event := telemetry.NewInvocationEvent(info.FullMethod, start)
		if names != nil {
			event.Action = names(info.FullMethod)
		}
		event.Code = status.Code(err).String()
		event.Kind = string(action.KindOf(err))
		event.DurationMs = time.Since(start).Milliseconds()
		event.ClientIP = ClientIP(ctx)
		if c, ok := action.CallerFromContext(ctx); ok {
			event.UserID = c.UserID
			event.SessionID = c.SessionID
			event.OrgID = c.OrgID
		}
		async.Emit(event)
		return resp, err
	}
}

// LoggingUnary writes one entry per call. Internal failures are logged at error level with their
// cause, which the client never sees; everything else at info.
func LoggingUnary(log logrus.FieldLogger, names ActionNamer) grpc.UnaryServerInterceptor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		kind := action.KindOf(err)
		entry := log.WithFields(logrus.Fields{
			"method":      info.FullMethod,
			"action":      names.label(info.FullMethod),
			"code":        status.Code(err).String(),
			"kind":        string(kind),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		if uid := action.UserIDFromContext(ctx); uid != "" {
			entry = entry.WithField("user_id", uid)
		}
		if kind == action.KindInternal {
			entry.WithError(err).Error("rpc failed")
		} else {
			entry.Info("rpc")
		}
		return resp, err
	}
}
