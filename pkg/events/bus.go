package events

import (
	"context"
	"sync"
)

// Hook consumes run events. Hooks handle real-time integrations:
// structured logging, metrics exposition, trace export.
type Hook interface {
	// OnEvent is called for each matching event. Errors are collected
	// by the bus but never interrupt the run.
	OnEvent(ctx context.Context, e Event) error

	// Types returns the event types this hook handles. Nil or empty
	// means all events.
	Types() []Type

	// Close releases hook resources (flushes exporters, stops servers).
	Close(ctx context.Context) error
}

// Bus fans events out to registered hooks. It is safe for concurrent
// use; agent goroutines emit results as they finish.
type Bus struct {
	mu    sync.RWMutex
	hooks []Hook

	errMu    sync.Mutex
	hookErrs []error
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Register adds a hook to the bus.
func (b *Bus) Register(h Hook) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hooks = append(b.hooks, h)
}

// Emit delivers e to every hook whose type filter matches. Hook
// failures are recorded and swallowed: telemetry must never abort a
// run.
func (b *Bus) Emit(ctx context.Context, e Event) {
	b.mu.RLock()
	hooks := make([]Hook, len(b.hooks))
	copy(hooks, b.hooks)
	b.mu.RUnlock()

	for _, h := range hooks {
		if !wants(h, e.EventType()) {
			continue
		}
		if err := h.OnEvent(ctx, e); err != nil {
			b.errMu.Lock()
			b.hookErrs = append(b.hookErrs, err)
			b.errMu.Unlock()
		}
	}
}

// Close closes all hooks, returning the first close error.
func (b *Bus) Close(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var first error
	for _, h := range b.hooks {
		if err := h.Close(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// HookErrors returns errors swallowed during Emit, for diagnostics.
func (b *Bus) HookErrors() []error {
	b.errMu.Lock()
	defer b.errMu.Unlock()
	out := make([]error, len(b.hookErrs))
	copy(out, b.hookErrs)
	return out
}

func wants(h Hook, t Type) bool {
	types := h.Types()
	if len(types) == 0 {
		return true
	}
	for _, want := range types {
		if want == t {
			return true
		}
	}
	return false
}
