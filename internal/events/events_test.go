package events

import (
	"context"
	"sync"
	"testing"
	"time"
)

type captureSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *captureSink) Consume(evt Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
}

func (s *captureSink) snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func TestEmitterDelivers(t *testing.T) {
	sink := &captureSink{}
	em := NewEmitter(8, sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go em.Run(ctx)

	em.Emit(Event{Type: TaskStarted, RunID: "r1", TaskID: "t1"})
	em.Emit(Event{Type: TaskCompleted, RunID: "r1", TaskID: "t1"})

	deadline := time.After(2 * time.Second)
	for {
		got := sink.snapshot()
		if len(got) == 2 {
			if got[0].Type != TaskStarted || got[1].Type != TaskCompleted {
				t.Fatalf("unexpected order: %v %v", got[0].Type, got[1].Type)
			}
			if got[0].Timestamp.IsZero() {
				t.Error("expected timestamp to be stamped")
			}
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timeout, got %d events", len(got))
		case <-time.After(5 * time.Millisecond):
		}
	}
}

// A full buffer with no consumer must never block the producer.
func TestEmitterNeverBlocks(t *testing.T) {
	em := NewEmitter(2) // no Run, no sinks

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			em.Emit(Event{Type: TaskStarted, RunID: "r1"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("emitter blocked on a full buffer")
	}
}
