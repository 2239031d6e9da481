package telemetry

import (
	"context"
	"log"
	"sync"
	"time"

	"clan-portal/backend/internal/telemetry/domain"
)

// emitTimeout bounds a single background emit.
const emitTimeout = 5 * time.Second

// ShutdownDrainDuration is the longest Drain should be allowed to wait; an
// emit started just before shutdown needs up to emitTimeout.
const ShutdownDrainDuration = emitTimeout

var inflight sync.WaitGroup

// EmitAsync emits event in the background and logs a failure. The emit keeps
// ctx's values (trace correlation) but not its cancellation, so a finished
// request does not abort it. A nil emitter or event is a no-op.
func EmitAsync(ctx context.Context, emitter EventEmitter, event *domain.Event) {
	if emitter == nil || event == nil {
		return
	}
	inflight.Add(1)
	go func() {
		defer inflight.Done()
		emitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), emitTimeout)
		defer cancel()
		if err := emitter.Emit(emitCtx, event); err != nil {
			log.Printf("telemetry: emit %s: %v", event.EventType, err)
		}
	}()
}

// Drain waits for background emits started by EmitAsync, or until ctx is done.
func Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
