package events

import (
	"context"
	"log/slog"
	"time"
)

// Emitter decouples event producers from sinks through a buffered channel.
// When the buffer fills, events are dropped with a warning rather than
// stalling the producer.
type Emitter struct {
	ch    chan Event
	sinks []Sink
}

func NewEmitter(buffer int, sinks ...Sink) *Emitter {
	if buffer <= 0 {
		buffer = 256
	}
	return &Emitter{
		ch:    make(chan Event, buffer),
		sinks: sinks,
	}
}

// Run drains the buffer into every sink until ctx is done.
func (e *Emitter) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-e.ch:
			for _, s := range e.sinks {
				s.Consume(evt)
			}
		}
	}
}

// Emit queues an event without blocking.
func (e *Emitter) Emit(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	select {
	case e.ch <- evt:
	default:
		slog.Warn("event buffer full, dropping event", "type", evt.Type, "run", evt.RunID)
	}
}
