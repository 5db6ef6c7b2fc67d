// Package dispatcher routes scan lifecycle events to registered hooks.
// It is the single point the orchestrator emits through, decoupling the
// pipeline from whatever is listening (log lines, Prometheus metrics,
// OTel spans).
//
// A hook failure is logged and swallowed: observability never aborts or
// delays a scan beyond the hook call itself.
package dispatcher

import (
	"context"
	"io"
	"log"
	"sync"

	"github.com/siteprobe/siteprobe/pkg/output/events"
)

// Hook is the interface for event consumers.
type Hook interface {
	// OnEvent is called for each matching event.
	OnEvent(ctx context.Context, event events.Event) error

	// EventTypes returns the event types this hook handles.
	// Return nil or an empty slice to receive all events.
	EventTypes() []events.EventType
}

// Dispatcher fans events out to hooks. Safe for concurrent use;
// the orchestrator dispatches from many pipeline goroutines at once.
type Dispatcher struct {
	mu     sync.RWMutex
	hooks  []Hook
	closed bool
}

// New creates an empty dispatcher.
func New() *Dispatcher {
	return &Dispatcher{}
}

// RegisterHook adds a hook. Hooks receive events matching their
// EventTypes filter, in registration order.
func (d *Dispatcher) RegisterHook(h Hook) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hooks = append(d.hooks, h)
}

// Dispatch sends an event to every matching hook. Hook errors are
// logged, never returned: each hook gets the event regardless of what
// the previous one did.
func (d *Dispatcher) Dispatch(ctx context.Context, event events.Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return
	}
	for _, h := range d.hooks {
		if !hookSupportsEvent(h, event.EventType()) {
			continue
		}
		if err := h.OnEvent(ctx, event); err != nil {
			log.Printf("[hook] ERROR  type=%s scan=%s err=%v", event.EventType(), event.ScanID(), err)
		}
	}
}

// Close closes every hook that holds resources. The dispatcher drops
// all subsequent events.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	var firstErr error
	for _, h := range d.hooks {
		c, ok := h.(io.Closer)
		if !ok {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// hookSupportsEvent checks a hook's EventTypes filter.
// An empty filter means the hook receives everything.
func hookSupportsEvent(h Hook, eventType events.EventType) bool {
	types := h.EventTypes()
	if len(types) == 0 {
		return true
	}
	for _, et := range types {
		if et == eventType {
			return true
		}
	}
	return false
}
