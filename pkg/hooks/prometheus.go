package hooks

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bountyswarm/bountyswarm/pkg/duration"
	"github.com/bountyswarm/bountyswarm/pkg/events"
	"github.com/bountyswarm/bountyswarm/pkg/finding"
)

// Compile-time interface check.
var _ events.Hook = (*PrometheusHook)(nil)

// PrometheusHook exposes run metrics for scraping: agent outcomes,
// finding counts by severity, budget denials, and run duration.
type PrometheusHook struct {
	server   *http.Server
	registry *prometheus.Registry
	opts     PrometheusOptions

	agentsTotal        *prometheus.CounterVec
	findingsTotal      *prometheus.CounterVec
	budgetDeniedTotal  *prometheus.CounterVec
	runDurationSeconds *prometheus.GaugeVec

	mu     sync.Mutex
	closed bool
}

// PrometheusOptions configures the metrics endpoint.
type PrometheusOptions struct {
	// Port for the metrics server (default: 9090).
	Port int

	// Path for the metrics endpoint (default: "/metrics").
	Path string
}

// NewPrometheusHook starts the metrics server immediately; it runs
// until Close.
func NewPrometheusHook(opts PrometheusOptions) (*PrometheusHook, error) {
	if opts.Port == 0 {
		opts.Port = 9090
	}
	if opts.Path == "" {
		opts.Path = "/metrics"
	}

	// Custom registry: never pollute the default one.
	h := &PrometheusHook{
		registry: prometheus.NewRegistry(),
		opts:     opts,
	}
	if err := h.initMetrics(); err != nil {
		return nil, fmt.Errorf("hooks: init metrics: %w", err)
	}
	h.startServer()
	return h, nil
}

func (h *PrometheusHook) initMetrics() error {
	h.agentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bountyswarm_agents_total",
			Help: "Agent invocations by terminal status",
		},
		[]string{"target", "category", "status"},
	)
	h.findingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bountyswarm_findings_total",
			Help: "Findings reported by vulnerability agents",
		},
		[]string{"target", "category", "severity"},
	)
	h.budgetDeniedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bountyswarm_budget_denied_total",
			Help: "Budget denials observed by the dispatcher",
		},
		[]string{"category", "kind"},
	)
	h.runDurationSeconds = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bountyswarm_run_duration_seconds",
			Help: "Wall-clock duration of the completed run",
		},
		[]string{"run_id"},
	)

	for _, c := range []prometheus.Collector{
		h.agentsTotal, h.findingsTotal, h.budgetDeniedTotal, h.runDurationSeconds,
	} {
		if err := h.registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (h *PrometheusHook) startServer() {
	mux := http.NewServeMux()
	mux.Handle(h.opts.Path, promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	h.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", h.opts.Port),
		Handler:      mux,
		ReadTimeout:  duration.MetricsRead,
		WriteTimeout: duration.MetricsWrite,
	}
	go func() {
		// ErrServerClosed is the normal shutdown path.
		_ = h.server.ListenAndServe()
	}()
}

// OnEvent implements events.Hook.
func (h *PrometheusHook) OnEvent(_ context.Context, e events.Event) error {
	switch ev := e.(type) {
	case events.AgentResult:
		r := ev.Result
		h.agentsTotal.WithLabelValues(ev.Target, r.Category, string(r.Status)).Inc()
		for _, f := range r.Findings {
			h.findingsTotal.WithLabelValues(ev.Target, r.Category, string(finding.Normalize(string(f.Severity)))).Inc()
		}
	case events.BudgetDenied:
		kind := "minute"
		if ev.Terminal {
			kind = "run"
		}
		h.budgetDeniedTotal.WithLabelValues(ev.Category, kind).Inc()
	case events.Complete:
		h.runDurationSeconds.WithLabelValues(ev.RunID).Set(ev.Duration.Seconds())
	}
	return nil
}

// Types implements events.Hook.
func (h *PrometheusHook) Types() []events.Type {
	return []events.Type{events.TypeAgentResult, events.TypeBudgetDenied, events.TypeComplete}
}

// Close shuts the metrics server down.
func (h *PrometheusHook) Close(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	shutdownCtx, cancel := context.WithTimeout(ctx, duration.HookShutdown)
	defer cancel()
	return h.server.Shutdown(shutdownCtx)
}
