// Command swarm orchestrates a bug bounty agent swarm against a single
// authorized target: scope-checked admission, profiled agent dispatch,
// schema-validated payloads, and a packaged evidence bundle.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bountyswarm/bountyswarm/pkg/defaults"
	"github.com/bountyswarm/bountyswarm/pkg/events"
	"github.com/bountyswarm/bountyswarm/pkg/exitcode"
	"github.com/bountyswarm/bountyswarm/pkg/focus"
	"github.com/bountyswarm/bountyswarm/pkg/hooks"
	"github.com/bountyswarm/bountyswarm/pkg/run"
	"github.com/bountyswarm/bountyswarm/pkg/scope"
	"github.com/bountyswarm/bountyswarm/pkg/ui"
)

func main() {
	os.Exit(realMain())
}

func realMain() int {
	fs := flag.NewFlagSet(defaults.ToolName, flag.ExitOnError)
	fs.Usage = func() { usage(fs) }

	var (
		profileName  = fs.String("profile", defaults.ProfileDefault, "Safety profile: passive, cautious, or active")
		runVuln      = fs.Bool("run-vuln", false, "Run vulnerability probing after the survey phase")
		authorized   = fs.Bool("authorized", false, "Confirm explicit authorization for active tests")
		dryRun       = fs.Bool("dry-run", false, "Validate config and emit an empty report without requests")
		scheme       = fs.String("scheme", "", "Force http or https scheme")
		forceHTTP    = fs.Bool("force-http", false, "Equivalent to -scheme http")
		openclaw     = fs.Bool("openclaw", false, "Print the machine-readable summary to stdout")
		schemaRepair = fs.Bool("schema-repair", false, "Auto-repair payloads and summary fields against their schemas")
		summaryJSON  = fs.String("summary-json", "", "Write the summary JSON to this path")
		artifactDir  = fs.String("artifact-dir", "", "Copy reports and evidence bundle here")
		outputDir    = fs.String("output-dir", "output", "Run output directory")
		configDir    = fs.String("config-dir", "configs", "Configuration directory")
		concurrency  = fs.Int("concurrency", defaults.ConcurrencyLow, "Maximum in-flight agents")
		logFile      = fs.String("log-file", "", "Append JSON event log to this file")
		metricsPort  = fs.Int("metrics-port", 0, "Expose Prometheus metrics on this port (0 disables)")
		otelEndpoint = fs.String("otel-endpoint", "", "Export OTLP traces to this gRPC endpoint")
		silent       = fs.Bool("silent", false, "Suppress banner and progress output")
		noColor      = fs.Bool("no-color", false, "Disable colored output")
		printFocus   = fs.Bool("print-focus", false, "Print the active focus target and exit")
		showVersion  = fs.Bool("version", false, "Print version and exit")
	)
	fs.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("%s %s\n", defaults.ToolName, defaults.Version)
		return int(exitcode.Success)
	}
	if *printFocus {
		// For cron wrappers: the active target is the only stdout line.
		cfg := focus.Load(filepath.Join(*configDir, "focus.yaml"))
		fmt.Println(focus.Active(cfg, time.Now()))
		return int(exitcode.Success)
	}

	ui.SetSilent(*silent)
	ui.SetNoColor(*noColor)

	if fs.NArg() != 1 {
		usage(fs)
		return int(exitcode.Configuration)
	}
	target := fs.Arg(0)

	if *forceHTTP {
		*scheme = "http"
	}
	if *scheme != "" && *scheme != "http" && *scheme != "https" {
		ui.PrintError(fmt.Sprintf("invalid scheme %q: want http or https", *scheme))
		return int(exitcode.Configuration)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := events.NewBus()
	if err := registerHooks(bus, *logFile, *metricsPort, *otelEndpoint); err != nil {
		ui.PrintError(err.Error())
		return int(exitcode.Configuration)
	}
	defer func() {
		if err := bus.Close(context.Background()); err != nil {
			ui.PrintWarning(fmt.Sprintf("hook shutdown: %v", err))
		}
	}()

	ui.PrintBanner()

	runner := run.New(run.Options{
		Target:       target,
		Profile:      *profileName,
		RunVuln:      *runVuln,
		Authorized:   *authorized,
		DryRun:       *dryRun,
		Scheme:       *scheme,
		OutputDir:    *outputDir,
		ArtifactDir:  *artifactDir,
		SummaryJSON:  *summaryJSON,
		OpenClaw:     *openclaw,
		SchemaRepair: *schemaRepair,
		ConfigDir:    *configDir,
		Concurrency:  *concurrency,
	})
	runner.Bus = bus

	outcome, err := runner.Execute(ctx)
	if err != nil {
		var violation *scope.ViolationError
		if errors.As(err, &violation) {
			ui.PrintError(violation.Error())
			return int(exitcode.ScopeViolation)
		}
		ui.PrintError(err.Error())
		return int(outcome.Code)
	}

	ui.PrintConfig(target, outcome.Report.TargetURL, outcome.Report.Profile, *dryRun)
	for _, w := range outcome.Report.Warnings {
		ui.PrintWarning(w)
	}
	ui.PrintSummary(outcome.Report, outcome.Paths, outcome.EvidenceZip)

	if *openclaw {
		// The summary is the only stdout output, so pipelines can
		// consume it directly.
		line, err := json.Marshal(outcome.Summary)
		if err == nil {
			fmt.Println(string(line))
		}
	}
	return int(outcome.Code)
}

// registerHooks wires the configured telemetry hooks onto the bus.
func registerHooks(bus *events.Bus, logFile string, metricsPort int, otelEndpoint string) error {
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		bus.Register(hooks.NewLoggerHookOwned(f))
	}
	if metricsPort > 0 {
		h, err := hooks.NewPrometheusHook(hooks.PrometheusOptions{Port: metricsPort})
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		bus.Register(h)
	}
	if otelEndpoint != "" {
		h, err := hooks.NewOTelHook(hooks.OTelOptions{Endpoint: otelEndpoint, Insecure: true})
		if err != nil {
			return fmt.Errorf("otel: %w", err)
		}
		bus.Register(h)
	}
	return nil
}

func usage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] <target>\n\nFlags:\n", defaults.ToolName)
	fs.PrintDefaults()
}
