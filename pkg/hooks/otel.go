package hooks

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/bountyswarm/bountyswarm/pkg/defaults"
	"github.com/bountyswarm/bountyswarm/pkg/duration"
	"github.com/bountyswarm/bountyswarm/pkg/events"
	"github.com/bountyswarm/bountyswarm/pkg/finding"
)

// Compile-time interface check.
var _ events.Hook = (*OTelHook)(nil)

// OTelHook exports run telemetry to an OpenTelemetry collector: one
// root span per run, with span events for agent results and budget
// denials.
type OTelHook struct {
	opts           OTelOptions
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer

	mu       sync.Mutex
	rootSpan trace.Span
	rootCtx  context.Context
	closed   bool

	runID  string
	target string
}

// OTelOptions configures the OpenTelemetry hook behavior.
type OTelOptions struct {
	// Endpoint is the OTLP endpoint (e.g., "localhost:4317").
	Endpoint string

	// ServiceName is the service name for traces (default: "bountyswarm").
	ServiceName string

	// Insecure uses insecure connection (no TLS).
	Insecure bool

	// Headers contains additional headers for the OTLP exporter.
	Headers map[string]string

	// ShutdownTimeout is the timeout for graceful shutdown (default: 5s).
	ShutdownTimeout time.Duration

	// ConnectionTimeout is the timeout for establishing connection (default: 10s).
	ConnectionTimeout time.Duration
}

// NewOTelHook creates a hook that exports telemetry to the configured
// endpoint. The exporter connects immediately but handles connection
// failures gracefully without blocking the run.
func NewOTelHook(opts OTelOptions) (*OTelHook, error) {
	if opts.ServiceName == "" {
		opts.ServiceName = defaults.ToolName
	}
	if opts.Endpoint == "" {
		opts.Endpoint = "localhost:4317"
	}
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = duration.HookShutdown
	}
	if opts.ConnectionTimeout == 0 {
		opts.ConnectionTimeout = duration.HookConnect
	}

	grpcOpts := []grpc.DialOption{}
	if opts.Insecure {
		grpcOpts = append(grpcOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	exporterOpts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(opts.Endpoint),
		otlptracegrpc.WithDialOption(grpcOpts...),
	}
	if opts.Insecure {
		exporterOpts = append(exporterOpts, otlptracegrpc.WithInsecure())
	}
	if len(opts.Headers) > 0 {
		exporterOpts = append(exporterOpts, otlptracegrpc.WithHeaders(opts.Headers))
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectionTimeout)
	defer cancel()

	exporter, err := otlptracegrpc.New(ctx, exporterOpts...)
	if err != nil {
		return nil, err
	}

	// Avoid merging with resource.Default to prevent schema conflicts.
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(opts.ServiceName),
		semconv.ServiceVersion(defaults.Version),
		attribute.String("service.component", "orchestrator"),
	)

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tracerProvider)

	return &OTelHook{
		opts:           opts,
		tracerProvider: tracerProvider,
		tracer:         tracerProvider.Tracer("bountyswarm/run"),
	}, nil
}

// OnEvent implements events.Hook.
func (h *OTelHook) OnEvent(ctx context.Context, e events.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}

	switch ev := e.(type) {
	case events.Start:
		return h.handleStart(ctx, ev)
	case events.AgentResult:
		return h.handleAgentResult(ev)
	case events.BudgetDenied:
		return h.handleBudgetDenied(ev)
	case events.Warning:
		return h.handleWarning(ev)
	case events.Complete:
		return h.handleComplete(ev)
	default:
		return nil
	}
}

// handleStart creates the root span for the run.
func (h *OTelHook) handleStart(ctx context.Context, start events.Start) error {
	h.runID = start.RunID
	h.target = start.Target

	spanCtx, span := h.tracer.Start(ctx, "bountyswarm.run",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("run_id", start.RunID),
			attribute.String("target", start.Target),
			attribute.String("profile", start.Profile),
			attribute.Bool("dry_run", start.DryRun),
		),
	)
	h.rootSpan = span
	h.rootCtx = spanCtx

	span.AddEvent("run_started", trace.WithAttributes(
		attribute.String("target", start.Target),
		attribute.String("profile", start.Profile),
	))
	return nil
}

// handleAgentResult records one finished agent invocation as a span
// event with per-severity finding counts.
func (h *OTelHook) handleAgentResult(ev events.AgentResult) error {
	if h.rootSpan == nil {
		return nil
	}

	r := ev.Result
	attrs := []attribute.KeyValue{
		attribute.String("run_id", h.runID),
		attribute.String("agent", r.Agent),
		attribute.String("category", r.Category),
		attribute.String("status", string(r.Status)),
		attribute.Float64("duration_sec", r.Duration.Seconds()),
		attribute.Int("findings", len(r.Findings)),
	}
	if r.Error != "" {
		attrs = append(attrs, attribute.String("error", r.Error))
	}
	if r.SkipReason != "" {
		attrs = append(attrs, attribute.String("skip_reason", r.SkipReason))
	}
	for sev, n := range finding.CountBySeverity([]finding.AgentResult{r}) {
		if n > 0 {
			attrs = append(attrs, attribute.Int("findings."+string(sev), n))
		}
	}

	name := "agent_result"
	if r.Failed() {
		name = "agent_failed"
	}
	h.rootSpan.AddEvent(name, trace.WithAttributes(attrs...))
	return nil
}

// handleBudgetDenied records budget pressure on the root span.
func (h *OTelHook) handleBudgetDenied(ev events.BudgetDenied) error {
	if h.rootSpan == nil {
		return nil
	}
	h.rootSpan.AddEvent("budget_denied", trace.WithAttributes(
		attribute.String("run_id", h.runID),
		attribute.String("category", ev.Category),
		attribute.Bool("terminal", ev.Terminal),
	))
	return nil
}

func (h *OTelHook) handleWarning(ev events.Warning) error {
	if h.rootSpan == nil {
		return nil
	}
	h.rootSpan.AddEvent("warning", trace.WithAttributes(
		attribute.String("message", ev.Message),
	))
	return nil
}

// handleComplete finalizes the run span.
func (h *OTelHook) handleComplete(ev events.Complete) error {
	if h.rootSpan == nil {
		return nil
	}

	h.rootSpan.SetAttributes(
		attribute.Int("exit_code", ev.ExitCode),
		attribute.Int("errors", ev.Errors),
		attribute.Int("findings", ev.Findings),
		attribute.Float64("duration_sec", ev.Duration.Seconds()),
	)
	h.rootSpan.AddEvent("run_completed", trace.WithAttributes(
		attribute.Int("exit_code", ev.ExitCode),
		attribute.Int("errors", ev.Errors),
	))

	if ev.Errors > 0 {
		h.rootSpan.SetStatus(codes.Error, "run completed with errors")
	} else {
		h.rootSpan.SetStatus(codes.Ok, "run completed")
	}

	h.rootSpan.End()
	h.rootSpan = nil
	return nil
}

// Types implements events.Hook. The hook handles all event types.
func (h *OTelHook) Types() []events.Type { return nil }

// Close ends any open span and flushes the exporter.
func (h *OTelHook) Close(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	if h.rootSpan != nil {
		h.rootSpan.SetStatus(codes.Error, "run interrupted")
		h.rootSpan.End()
		h.rootSpan = nil
	}
	h.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(ctx, h.opts.ShutdownTimeout)
	defer cancel()
	return h.tracerProvider.Shutdown(shutdownCtx)
}
