// Package producer writes telemetry events to a message queue.
package producer

import (
	"server-actions/backend/internal/telemetry"
)

// Producer emits telemetry events. Callers use it best-effort: log and ignore errors.
type Producer interface {
	telemetry.EventEmitter
	// Close flushes pending writes and releases resources. Safe to call if already closed.
	Close() error
}
