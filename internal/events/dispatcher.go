package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const defaultCapacity = 256

// Sink consumes dispatched events. Handle runs on the dispatcher goroutine,
// so it must return promptly.
type Sink interface {
	Handle(ctx context.Context, e Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, e Event) error

// Handle calls f(ctx, e).
func (f SinkFunc) Handle(ctx context.Context, e Event) error {
	return f(ctx, e)
}

// Poster is the write side of the dispatcher. Components take a Poster so
// tests can capture events without running a dispatcher.
type Poster interface {
	Post(e Event) bool
}

// PosterFunc adapts a function to Poster.
type PosterFunc func(e Event) bool

// Post calls f(e).
func (f PosterFunc) Post(e Event) bool {
	return f(e)
}

// Logger is the logging surface the dispatcher needs.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type namedSink struct {
	name string
	sink Sink
}

// Dispatcher fans events out to sinks from a single goroutine.
//
// Thread Safety:
//   - Post and Register are safe for concurrent use.
//   - Sinks are called serially in registration order.
type Dispatcher struct {
	queue   chan Event
	logger  Logger
	now     func() time.Time
	dropped atomic.Uint64

	mu    sync.RWMutex
	sinks []namedSink
}

// NewDispatcher creates a dispatcher with a buffer of capacity events.
func NewDispatcher(capacity int, logger Logger) *Dispatcher {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Dispatcher{
		queue:  make(chan Event, capacity),
		logger: logger,
		now:    time.Now,
	}
}

// Register adds a sink. Sinks registered after Run starts receive only
// events dequeued after registration.
func (d *Dispatcher) Register(name string, s Sink) {
	d.mu.Lock()
	d.sinks = append(d.sinks, namedSink{name: name, sink: s})
	d.mu.Unlock()
}

// Post enqueues e without blocking. It returns false if the buffer was full
// and the event was dropped.
func (d *Dispatcher) Post(e Event) bool {
	e.stamp(d.now())
	select {
	case d.queue <- e:
		return true
	default:
		if n := d.dropped.Add(1); n == 1 || n%100 == 0 {
			d.logger.Warn("event buffer full, dropping", "kind", e.Kind, "dropped_total", n)
		}
		return false
	}
}

// Dropped returns the number of events lost to a full buffer.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Run delivers events until ctx is cancelled, then delivers whatever is
// still buffered and returns. Sinks receive a context that is not cancelled
// with ctx, so an accepted event is never half-written.
func (d *Dispatcher) Run(ctx context.Context) {
	sinkCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			d.drain(sinkCtx)
			return
		case e := <-d.queue:
			d.deliver(sinkCtx, e)
		}
	}
}

func (d *Dispatcher) drain(ctx context.Context) {
	for {
		select {
		case e := <-d.queue:
			d.deliver(ctx, e)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, e Event) {
	d.mu.RLock()
	sinks := d.sinks
	d.mu.RUnlock()

	for _, s := range sinks {
		if err := d.call(ctx, s, e); err != nil {
			d.logger.Warn("event sink failed", "sink", s.name, "kind", e.Kind, "error", err)
		}
	}
}

// call isolates a panicking sink so the remaining sinks still run.
func (d *Dispatcher) call(ctx context.Context, s namedSink, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("event sink panicked", "sink", s.name, "kind", e.Kind, "panic", r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.sink.Handle(ctx, e)
}
