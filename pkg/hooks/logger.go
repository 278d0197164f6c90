// Package hooks provides event consumers for run telemetry: a JSON-line
// logger, a Prometheus metrics endpoint, and an OpenTelemetry trace
// exporter. Hooks are optional; a run with no hooks behaves
// identically.
package hooks

import (
	"context"
	"io"
	"sync"

	"github.com/bountyswarm/bountyswarm/pkg/events"
	"github.com/bountyswarm/bountyswarm/pkg/jsonutil"
)

// Compile-time interface check.
var _ events.Hook = (*LoggerHook)(nil)

// LoggerHook writes every event as one JSON line. It backs the run log
// file in the output directory.
type LoggerHook struct {
	mu sync.Mutex
	w  io.Writer

	// closer is closed on Close when the hook owns the writer.
	closer io.Closer
}

// NewLoggerHook writes events to w.
func NewLoggerHook(w io.Writer) *LoggerHook {
	return &LoggerHook{w: w}
}

// NewLoggerHookOwned is like NewLoggerHook but closes w on Close.
func NewLoggerHookOwned(w io.WriteCloser) *LoggerHook {
	return &LoggerHook{w: w, closer: w}
}

// OnEvent implements events.Hook.
func (h *LoggerHook) OnEvent(_ context.Context, e events.Event) error {
	data, err := jsonutil.Marshal(e)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, err := h.w.Write(data); err != nil {
		return err
	}
	_, err = h.w.Write([]byte{'\n'})
	return err
}

// Types implements events.Hook; the logger receives everything.
func (h *LoggerHook) Types() []events.Type { return nil }

// Close implements events.Hook.
func (h *LoggerHook) Close(context.Context) error {
	if h.closer != nil {
		return h.closer.Close()
	}
	return nil
}
