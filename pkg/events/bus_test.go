package events

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// recordingHook captures the events it receives.
type recordingHook struct {
	mu     sync.Mutex
	types  []Type
	seen   []Event
	onErr  error
	closed bool
}

func (h *recordingHook) OnEvent(_ context.Context, e Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, e)
	return h.onErr
}

func (h *recordingHook) Types() []Type { return h.types }

func (h *recordingHook) Close(context.Context) error {
	h.closed = true
	return nil
}

func (h *recordingHook) events() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Event, len(h.seen))
	copy(out, h.seen)
	return out
}

func TestBusTypeFiltering(t *testing.T) {
	bus := NewBus()
	all := &recordingHook{}
	onlyComplete := &recordingHook{types: []Type{TypeComplete}}
	bus.Register(all)
	bus.Register(onlyComplete)

	ctx := t.Context()
	bus.Emit(ctx, Start{Base: NewBase(TypeStart), RunID: "r1"})
	bus.Emit(ctx, Warning{Base: NewBase(TypeWarning), Message: "m"})
	bus.Emit(ctx, Complete{Base: NewBase(TypeComplete), RunID: "r1"})

	if got := len(all.events()); got != 3 {
		t.Errorf("unfiltered hook saw %d events, want 3", got)
	}
	got := onlyComplete.events()
	if len(got) != 1 {
		t.Fatalf("filtered hook saw %d events, want 1", len(got))
	}
	if got[0].EventType() != TypeComplete {
		t.Errorf("filtered hook saw %s", got[0].EventType())
	}
}

func TestBusSwallowsHookErrors(t *testing.T) {
	bus := NewBus()
	failing := &recordingHook{onErr: errors.New("exporter down")}
	healthy := &recordingHook{}
	bus.Register(failing)
	bus.Register(healthy)

	bus.Emit(t.Context(), Start{Base: NewBase(TypeStart)})
	bus.Emit(t.Context(), Complete{Base: NewBase(TypeComplete)})

	if got := len(healthy.events()); got != 2 {
		t.Errorf("healthy hook saw %d events after peer failure, want 2", got)
	}
	errs := bus.HookErrors()
	if len(errs) != 2 {
		t.Fatalf("HookErrors = %v, want 2 entries", errs)
	}
	if errs[0].Error() != "exporter down" {
		t.Errorf("unexpected error %v", errs[0])
	}
}

func TestBusConcurrentEmit(t *testing.T) {
	bus := NewBus()
	hook := &recordingHook{}
	bus.Register(hook)

	const emitters = 8
	const perEmitter = 25
	var wg sync.WaitGroup
	for i := 0; i < emitters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perEmitter; j++ {
				bus.Emit(context.Background(), AgentResult{Base: NewBase(TypeAgentResult), RunID: "r1"})
			}
		}()
	}
	wg.Wait()

	if got := len(hook.events()); got != emitters*perEmitter {
		t.Errorf("hook saw %d events, want %d", got, emitters*perEmitter)
	}
}

func TestBusClose(t *testing.T) {
	bus := NewBus()
	a := &recordingHook{}
	b := &recordingHook{}
	bus.Register(a)
	bus.Register(b)

	if err := bus.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !a.closed || !b.closed {
		t.Error("not all hooks closed")
	}
}
