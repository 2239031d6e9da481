package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"clan-portal/backend/internal/telemetry/domain"
)

// mockEventEmitter implements EventEmitter for tests.
type mockEventEmitter struct {
	mu      sync.Mutex
	events  []*domain.Event
	emitErr error
	delay   time.Duration
	done    chan struct{}
}

func (m *mockEventEmitter) Emit(ctx context.Context, event *domain.Event) error {
	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.delay):
		}
	}
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
	if m.done != nil {
		m.done <- struct{}{}
	}
	return m.emitErr
}

func (m *mockEventEmitter) getEvents() []*domain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events
}

func waitN(t *testing.T, done chan struct{}, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d of %d emits", i, n)
		}
	}
}

func TestEmitAsync_NilEmitterOrEvent(t *testing.T) {
	EmitAsync(context.Background(), nil, &domain.Event{EventType: "x"})

	emitter := &mockEventEmitter{}
	EmitAsync(context.Background(), emitter, nil)
	time.Sleep(10 * time.Millisecond)
	if n := len(emitter.getEvents()); n != 0 {
		t.Errorf("expected 0 events, got %d", n)
	}
}

func TestEmitAsync_UsesBackgroundContext(t *testing.T) {
	emitter := &mockEventEmitter{done: make(chan struct{}, 1)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	EmitAsync(ctx, emitter, &domain.Event{AuthID: "auth-1", EventType: domain.EventRegistered})
	waitN(t, emitter.done, 1)

	events := emitter.getEvents()
	if len(events) != 1 || events[0].AuthID != "auth-1" {
		t.Errorf("events = %+v", events)
	}
}

func TestEmitAsync_ConcurrentAccess(t *testing.T) {
	emitter := &mockEventEmitter{done: make(chan struct{}, 10)}
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			EmitAsync(context.Background(), emitter, &domain.Event{EventType: domain.EventLoginSucceeded})
		}()
	}
	wg.Wait()
	waitN(t, emitter.done, 10)
	if n := len(emitter.getEvents()); n != 10 {
		t.Errorf("expected 10 events, got %d", n)
	}
}

func TestEmitAsync_ErrorIsSwallowed(t *testing.T) {
	emitter := &mockEventEmitter{emitErr: errors.New("broker down"), done: make(chan struct{}, 1)}
	EmitAsync(context.Background(), emitter, &domain.Event{EventType: "x"})
	waitN(t, emitter.done, 1)
}

func TestDrain(t *testing.T) {
	emitter := &mockEventEmitter{delay: 50 * time.Millisecond}
	EmitAsync(context.Background(), emitter, &domain.Event{EventType: "x"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if n := len(emitter.getEvents()); n != 1 {
		t.Errorf("events after drain = %d, want 1", n)
	}
}

func TestDrain_RespectsDeadline(t *testing.T) {
	emitter := &mockEventEmitter{delay: time.Second}
	EmitAsync(context.Background(), emitter, &domain.Event{EventType: "slow"})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := Drain(ctx); err == nil {
		t.Error("Drain should stop at the deadline")
	}
}

func TestFanout(t *testing.T) {
	ok := &mockEventEmitter{}
	failing := &mockEventEmitter{emitErr: errors.New("down")}
	f := Fanout(ok, nil, failing)

	err := f.Emit(context.Background(), &domain.Event{EventType: "x"})
	if err == nil {
		t.Error("expected joined error")
	}
	if len(ok.getEvents()) != 1 || len(failing.getEvents()) != 1 {
		t.Error("every emitter should receive the event")
	}
	if err := Fanout().Emit(context.Background(), &domain.Event{}); err != nil {
		t.Errorf("empty fanout: %v", err)
	}
}
