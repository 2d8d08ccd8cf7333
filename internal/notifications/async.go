package notifications

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"courier/internal/logging"
)

// Async forwards events to an inner sink from one background goroutine. When
// the buffer is full the event is dropped and counted; Notify never blocks.
type Async struct {
	inner   Sink
	name    string
	events  chan Event
	logger  *slog.Logger
	dropped atomic.Uint64
	mu      sync.RWMutex
	closed  bool
	done    chan struct{}
}

// NewAsync starts the forwarding goroutine. Close stops it after draining.
func NewAsync(name string, inner Sink, buffer int, logger *slog.Logger) *Async {
	if buffer <= 0 {
		buffer = 1
	}
	a := &Async{
		inner:  inner,
		name:   name,
		events: make(chan Event, buffer),
		logger: logging.NewComponentLogger(logger, "notify-"+name),
		done:   make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) Notify(_ context.Context, event Event) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return nil
	}
	select {
	case a.events <- event:
	default:
		if n := a.dropped.Add(1); n == 1 || n%100 == 0 {
			logging.WarnWithContext(a.logger, "notification buffer full; dropping event", "notification_dropped",
				logging.String("sink", a.name),
				logging.String("notification_type", string(event.Type)),
				logging.Uint64("dropped_total", n),
				logging.String(logging.FieldErrorHint, "check connectivity of the notification endpoint"),
				logging.String(logging.FieldImpact, "observers miss some upload events"),
			)
		}
	}
	return nil
}

// Dropped reports how many events were discarded because the buffer was full.
func (a *Async) Dropped() uint64 {
	return a.dropped.Load()
}

// Close stops accepting events and waits for the buffer to drain.
func (a *Async) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.events)
	}
	a.mu.Unlock()
	<-a.done
}

func (a *Async) run() {
	defer close(a.done)
	for event := range a.events {
		if err := a.inner.Notify(context.Background(), event); err != nil {
			a.logger.Debug("notification delivery failed",
				logging.String("sink", a.name),
				logging.String("notification_type", string(event.Type)),
				logging.Error(err),
			)
		}
	}
}
