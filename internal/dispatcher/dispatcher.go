// Package dispatcher routes named commands from the host to handlers.
// Handlers run synchronously on the caller's goroutine, so commands issued
// in order are applied in order.
package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var ErrUnknownCommand = errors.New("unknown command")

// Event is one command from the host. Args is a JSON object, possibly empty.
type Event struct {
	Command   string
	Args      json.RawMessage
	Timestamp time.Time
}

// Bind decodes Args into v. Empty args leave v untouched.
func (e Event) Bind(v any) error {
	if len(e.Args) == 0 {
		return nil
	}
	if err := json.Unmarshal(e.Args, v); err != nil {
		return fmt.Errorf("%s: bad arguments: %w", e.Command, err)
	}
	return nil
}

type HandlerFunc func(Event) (any, error)

// Logger is the key/value logging surface handlers are wrapped with.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option wraps a handler at registration time.
type Option func(d *Dispatcher, command string, h HandlerFunc) HandlerFunc

// Logged logs each call of the handler at debug level and failures at error
// level. It does nothing when the dispatcher has no logger.
func Logged() Option {
	return func(d *Dispatcher, command string, h HandlerFunc) HandlerFunc {
		if d.logger == nil {
			return h
		}
		return func(e Event) (any, error) {
			start := time.Now()
			d.logger.Debug("handling command", "command", command, "args", len(e.Args))
			result, err := h(e)
			if err != nil {
				d.logger.Error("command failed", "command", command, "duration", time.Since(start), "error", err)
				return result, err
			}
			d.logger.Debug("command complete", "command", command, "duration", time.Since(start))
			return result, nil
		}
	}
}

type Dispatcher struct {
	logger Logger

	mu       sync.RWMutex
	handlers map[string]HandlerFunc

	processed metric.Int64Counter
	failed    metric.Int64Counter
	latency   metric.Float64Histogram
}

// New creates a dispatcher recording metrics on the global meter, which is a
// no-op until a provider is installed. logger may be nil.
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		logger:   logger,
		handlers: make(map[string]HandlerFunc),
	}

	m := meter()
	var err error
	if d.processed, err = m.Int64Counter("dispatcher.commands.processed",
		metric.WithDescription("Commands dispatched")); err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}
	if d.failed, err = m.Int64Counter("dispatcher.commands.failed",
		metric.WithDescription("Commands whose handler returned an error")); err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}
	if d.latency, err = m.Float64Histogram("dispatcher.commands.duration",
		metric.WithDescription("Handler run time"), metric.WithUnit("ms")); err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}
	return d, nil
}

// Register installs h for command, replacing any earlier handler.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	for _, opt := range opts {
		h = opt(d, command, h)
	}
	d.mu.Lock()
	d.handlers[command] = h
	d.mu.Unlock()
}

// Dispatch runs the handler registered for e.Command. A zero Timestamp is set
// to now.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	d.mu.RLock()
	h, ok := d.handlers[e.Command]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, e.Command)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	start := time.Now()
	result, err := h(e)

	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String("command", e.Command))
	d.processed.Add(ctx, 1, attrs)
	d.latency.Record(ctx, float64(time.Since(start).Microseconds())/1000, attrs)
	if err != nil {
		d.failed.Add(ctx, 1, attrs)
	}
	return result, err
}

func (d *Dispatcher) HasHandler(command string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.handlers[command]
	return ok
}

// Commands returns the registered command names, sorted.
func (d *Dispatcher) Commands() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.handlers))
	for cmd := range d.handlers {
		out = append(out, cmd)
	}
	slices.Sort(out)
	return out
}
