package persistence

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"peakshare/internal/observability"
	"peakshare/internal/store"
)

// DefaultApplyTimeout bounds a single sink write.
const DefaultApplyTimeout = 5 * time.Second

// Dispatcher queues store change events and applies them to every sink, in
// order, on a single background goroutine. Sink failures are logged and
// counted but never reach the store. A full queue drops the event.
type Dispatcher struct {
	sinks   []Sink
	log     *observability.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan store.ChangeEvent
	done   chan struct{}
}

// NewDispatcher starts a dispatcher with a queue of size events.
func NewDispatcher(log *observability.Logger, size int, sinks ...Sink) *Dispatcher {
	if log == nil {
		log = observability.GlobalLogger
	}
	if size <= 0 {
		size = 1
	}
	d := &Dispatcher{
		sinks:   sinks,
		log:     log,
		timeout: DefaultApplyTimeout,
		queue:   make(chan store.ChangeEvent, size),
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

// Attach subscribes the dispatcher to st.
func (d *Dispatcher) Attach(st *store.Store) {
	st.Subscribe(d.Enqueue)
}

// Enqueue queues ev without blocking. It satisfies store.Listener.
func (d *Dispatcher) Enqueue(ctx context.Context, ev store.ChangeEvent) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(ctx, ev, "dispatcher closed")
		return
	}
	select {
	case d.queue <- ev:
	default:
		d.drop(ctx, ev, "queue full")
	}
}

func (d *Dispatcher) drop(ctx context.Context, ev store.ChangeEvent, reason string) {
	observability.PersistenceDrops.Inc()
	d.log.WarnContext(ctx, "persistence event dropped",
		"reason", reason,
		"entity", string(ev.Entity),
		"op", string(ev.Op),
		"id", ev.ID,
	)
}

// Close stops accepting events and waits for the queue to drain or ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("persistence drain: %w", ctx.Err())
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for ev := range d.queue {
		for _, sink := range d.sinks {
			d.apply(sink, ev)
		}
	}
}

func (d *Dispatcher) apply(sink Sink, ev store.ChangeEvent) {
	ctx := observability.WithCorrelationID(context.Background(), ev.CorrelationID)
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			observability.PersistenceErrors.WithLabelValues(sink.Name(), string(ev.Entity)).Inc()
			d.log.ErrorContext(ctx, "persistence sink panic",
				"sink", sink.Name(),
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
		}
	}()

	done := observability.TrackPersistence(sink.Name())
	err := sink.Apply(ctx, ev)
	done()

	if err != nil {
		observability.PersistenceErrors.WithLabelValues(sink.Name(), string(ev.Entity)).Inc()
		d.log.WarnContext(ctx, "persistence apply failed",
			"sink", sink.Name(),
			"entity", string(ev.Entity),
			"op", string(ev.Op),
			"id", ev.ID,
			"error", err,
		)
		return
	}
	observability.PersistenceEvents.WithLabelValues(sink.Name(), string(ev.Entity)).Inc()
}
