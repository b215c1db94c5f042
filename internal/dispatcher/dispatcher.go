// Package dispatcher routes tracking loop output to the handlers that record
// it. Handlers may run inline or behind a per-command queue.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Event is a message published by the tracking loop. Payload carries the
// command-specific value, e.g. a core.MarkerBatch.
type Event struct {
	Command   string
	Payload   any
	Timestamp time.Time
}

var (
	// ErrClosed is returned by Dispatch after Close.
	ErrClosed = errors.New("dispatcher closed")
	// ErrUnknownCommand is returned for a command with no handler.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrQueueFull is returned when a non-blocking queue has no room.
	ErrQueueFull = errors.New("queue full")
)

// Queued is the result of a Dispatch handed to a buffered handler.
const Queued = "queued"

// HandlerFunc processes an event and returns a result.
type HandlerFunc func(Event) (any, error)

// Logger is satisfied by logging.DispatcherLogger.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*options)

type options struct {
	bufferSize int
	blocking   bool
	logged     bool
}

// Buffered runs the handler on its own goroutine behind a queue of size events.
func Buffered(size int) Option {
	return func(o *options) { o.bufferSize = size }
}

// Blocking makes Dispatch wait for room in a buffered queue instead of
// failing with ErrQueueFull.
func Blocking() Option {
	return func(o *options) { o.blocking = true }
}

// Logged logs every event at debug level and failures at error level.
func Logged() Option {
	return func(o *options) { o.logged = true }
}

// Stats counts what happened to the events of one command.
type Stats struct {
	Queued    int   `json:"queued"`
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`
}

type route struct {
	handler HandlerFunc
	queue   chan Event // nil for inline handlers
	attr    metric.MeasurementOption

	processed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// Dispatcher routes events to registered handlers. Register everything
// before the first Dispatch.
type Dispatcher struct {
	logger Logger

	queueSize metric.Int64ObservableGauge
	processed metric.Int64Counter
	dropped   metric.Int64Counter

	mu      sync.RWMutex
	routes  map[string]*route
	closed  bool
	workers sync.WaitGroup
}

// New creates a Dispatcher reporting to the global OTel meter.
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		logger: logger,
		routes: make(map[string]*route),
	}

	m := meter()
	var err error

	d.queueSize, err = m.Int64ObservableGauge("dispatcher.queue.size",
		metric.WithDescription("Events waiting in a handler queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}
	_, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		d.mu.RLock()
		defer d.mu.RUnlock()
		for _, r := range d.routes {
			if r.queue != nil {
				o.ObserveInt64(d.queueSize, int64(len(r.queue)), r.attr)
			}
		}
		return nil
	}, d.queueSize)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	d.processed, err = m.Int64Counter("dispatcher.events.processed",
		metric.WithDescription("Events handled"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}
	d.dropped, err = m.Int64Counter("dispatcher.events.dropped",
		metric.WithDescription("Events dropped because a queue was full"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	return d, nil
}

// Register adds a handler for command, replacing any earlier one.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	r := &route{attr: metric.WithAttributes(attribute.String("command", command))}
	h = d.counted(r, h)
	if o.logged {
		h = d.withLogging(command, h)
	}
	r.handler = h

	d.mu.Lock()
	defer d.mu.Unlock()
	if o.bufferSize > 0 {
		r.queue = make(chan Event, o.bufferSize)
		d.workers.Add(1)
		go d.drain(r, h)
		if o.blocking {
			r.handler = d.enqueueBlocking(r)
		} else {
			r.handler = d.enqueue(command, r)
		}
	}
	if old, ok := d.routes[command]; ok && old.queue != nil {
		close(old.queue)
	}
	d.routes[command] = r
}

// Dispatch stamps the event with the current time when it has none and
// hands it to the command's handler.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, ErrClosed
	}
	r, ok := d.routes[e.Command]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, e.Command)
	}
	return r.handler(e)
}

// Stats returns per-command counters.
func (d *Dispatcher) Stats() map[string]Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]Stats, len(d.routes))
	for cmd, r := range d.routes {
		out[cmd] = Stats{
			Queued:    len(r.queue),
			Processed: r.processed.Load(),
			Failed:    r.failed.Load(),
			Dropped:   r.dropped.Load(),
		}
	}
	return out
}

// Close stops accepting events, lets buffered handlers drain their queues
// and waits for them. Safe to call more than once.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, r := range d.routes {
		if r.queue != nil {
			close(r.queue)
		}
	}
	d.mu.Unlock()

	d.workers.Wait()
}

// The enqueue closures run under the read lock taken by Dispatch, so Close
// cannot close a queue while a send is in progress.

func (d *Dispatcher) enqueue(command string, r *route) HandlerFunc {
	return func(e Event) (any, error) {
		select {
		case r.queue <- e:
			return Queued, nil
		default:
			r.dropped.Add(1)
			d.dropped.Add(context.Background(), 1, r.attr)
			return nil, fmt.Errorf("%w: %s", ErrQueueFull, command)
		}
	}
}

func (d *Dispatcher) enqueueBlocking(r *route) HandlerFunc {
	return func(e Event) (any, error) {
		r.queue <- e
		return Queued, nil
	}
}

// drain runs queued events through h until Close closes the queue.
func (d *Dispatcher) drain(r *route, h HandlerFunc) {
	defer d.workers.Done()
	for e := range r.queue {
		if _, err := h(e); err != nil {
			d.logger.Error("buffered handler failed", "command", e.Command, "error", err)
		}
	}
}

// counted wraps h with the processed and failed counters of r.
func (d *Dispatcher) counted(r *route, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		result, err := h(e)
		if err != nil {
			r.failed.Add(1)
			return result, err
		}
		r.processed.Add(1)
		d.processed.Add(context.Background(), 1, r.attr)
		return result, nil
	}
}

func (d *Dispatcher) withLogging(command string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		start := time.Now()
		d.logger.Debug("handling event", "command", command, "payload", fmt.Sprintf("%T", e.Payload))

		result, err := h(e)
		if err != nil {
			d.logger.Error("event failed", "command", command, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("event complete", "command", command, "duration", time.Since(start))
		}
		return result, err
	}
}
