package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// emitTimeout is the max time allowed for a single async emit.
const emitTimeout = 5 * time.Second

// ShutdownDrainDuration bounds how long shutdown waits for in-flight async emits. Must be >= emitTimeout.
const ShutdownDrainDuration = emitTimeout

// Async emits events on background goroutines so request handlers are never blocked.
// Wait blocks until every emit started so far has finished.
type Async struct {
	emitter EventEmitter
	log     logrus.FieldLogger
	wg      sync.WaitGroup
}

// NewAsync wraps emitter. A nil emitter makes Emit a no-op.
func NewAsync(emitter EventEmitter, log logrus.FieldLogger) *Async {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Async{emitter: emitter, log: log}
}

// Emit sends event in a goroutine with emitTimeout. The goroutine uses context.Background so request
// cancellation does not abort the emit. Failures are logged with the event's action and method.
func (a *Async) Emit(event *Event) {
	if a == nil || a.emitter == nil || event == nil {
		return
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		if err := a.emitter.Emit(ctx, event); err != nil {
			a.log.WithError(err).WithFields(logrus.Fields{
				"action": event.Action,
				"method": event.FullMethod,
			}).Warn("telemetry: async emit failed")
		}
	}()
}

// Wait blocks until in-flight emits finish or ctx is done, returning ctx.Err() in the latter case.
func (a *Async) Wait(ctx context.Context) error {
	if a == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
