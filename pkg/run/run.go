// Package run wires the whole engine together: scope admission,
// profile and focus resolution, budget setup, agent dispatch, schema
// validation, report writing, and evidence packaging.
//
// The contract is "always produce a report": once a target passes the
// scope check, every later failure is captured into the report instead
// of aborting the run. Only scope violations and unusable configuration
// stop a run before it starts.
package run

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/bountyswarm/bountyswarm/pkg/agent"
	"github.com/bountyswarm/bountyswarm/pkg/agent/execagent"
	"github.com/bountyswarm/bountyswarm/pkg/agent/httpagent"
	"github.com/bountyswarm/bountyswarm/pkg/budget"
	"github.com/bountyswarm/bountyswarm/pkg/dispatch"
	"github.com/bountyswarm/bountyswarm/pkg/duration"
	"github.com/bountyswarm/bountyswarm/pkg/events"
	"github.com/bountyswarm/bountyswarm/pkg/evidence"
	"github.com/bountyswarm/bountyswarm/pkg/exitcode"
	"github.com/bountyswarm/bountyswarm/pkg/finding"
	"github.com/bountyswarm/bountyswarm/pkg/focus"
	"github.com/bountyswarm/bountyswarm/pkg/jsonutil"
	"github.com/bountyswarm/bountyswarm/pkg/profile"
	"github.com/bountyswarm/bountyswarm/pkg/report"
	"github.com/bountyswarm/bountyswarm/pkg/schema"
	"github.com/bountyswarm/bountyswarm/pkg/scope"
	"github.com/bountyswarm/bountyswarm/pkg/target"
)

// OpenClawSchemaName is the catalog key for the summary schema.
const OpenClawSchemaName = "openclaw/v1"

// Options is the resolved CLI surface for one run.
type Options struct {
	Target  string
	Profile string

	RunVuln    bool
	Authorized bool
	DryRun     bool

	// Scheme forces "http" or "https"; empty means infer from the
	// target (localhost defaults to http, everything else to https).
	Scheme string

	OutputDir   string
	ArtifactDir string
	SummaryJSON string

	OpenClaw     bool
	SchemaRepair bool

	// ConfigDir holds scope.json, profiles.yaml, focus.yaml,
	// budget.yaml, endpoints.yaml, and schemas.json.
	ConfigDir string

	Concurrency int
}

// Outcome is everything Execute produced.
type Outcome struct {
	Code   exitcode.Code
	Reason string

	Report      report.Report
	Paths       report.Paths
	Summary     report.OpenClawSummary
	EvidenceZip string
}

// Runner executes one run.
type Runner struct {
	Opts Options

	// Bus receives run events. Optional.
	Bus *events.Bus

	// Registry overrides endpoint-derived agent wiring when set.
	// Tests inject fakes through it.
	Registry *agent.Registry

	now func() time.Time
}

// New creates a runner with the wall clock.
func New(opts Options) *Runner {
	return &Runner{Opts: opts, now: time.Now}
}

// SetClock overrides the wall clock, for tests.
func (r *Runner) SetClock(now func() time.Time) { r.now = now }

func (r *Runner) configPath(name string) string {
	return filepath.Join(r.Opts.ConfigDir, name)
}

// Execute runs the full workflow. The returned error is non-nil only
// for pre-admission failures (scope, unusable configuration); once
// agents dispatch, failures land in the outcome's report instead.
func (r *Runner) Execute(ctx context.Context) (Outcome, error) {
	o := r.Opts
	codes := exitcode.New()
	start := r.now()

	// Focus overrides the requested target before anything else sees
	// it: resolution, scope admission, and dispatch all run against
	// the focus target on a mismatch.
	focusCfg := focus.Load(r.configPath("focus.yaml"))
	focusTarget, mismatch := focus.Resolve(o.Target, focusCfg, r.now())

	// Target resolution and scope admission come before anything that
	// could touch the network or the filesystem.
	tgt, err := target.Resolve(focusTarget, o.Scheme)
	if err != nil {
		codes.SetConfigError()
		code, reason := codes.ExitCode()
		return Outcome{Code: code, Reason: reason}, fmt.Errorf("resolve target: %w", err)
	}

	scopeCfg := scope.Load(r.configPath("scope.json"))
	if err := scope.Authorize(scopeCfg, focusTarget); err != nil {
		codes.SetScopeViolation()
		code, reason := codes.ExitCode()
		return Outcome{Code: code, Reason: reason}, err
	}

	if err := ensureWritable(o.OutputDir); err != nil {
		codes.SetConfigError()
		code, reason := codes.ExitCode()
		return Outcome{Code: code, Reason: reason}, fmt.Errorf("output dir: %w", err)
	}

	runID := uuid.NewString()

	profiles, warns := profile.Load(r.configPath("profiles.yaml"))
	prof, resolveWarns := profiles.Resolve(o.Profile)
	warns = append(warns, resolveWarns...)

	builder := report.NewBuilder(runID, tgt, prof.Name)
	builder.SetClock(r.now)
	for _, w := range warns {
		r.warn(ctx, builder, runID, w.String())
	}
	if mismatch != nil {
		r.warn(ctx, builder, runID, mismatch.String())
	}

	budgetCfg := budget.LoadConfig(r.configPath("budget.yaml"))
	tracker := budget.FromConfig(budgetCfg)

	r.emit(ctx, events.Start{
		Base:    events.NewBase(events.TypeStart),
		RunID:   runID,
		Target:  focusTarget,
		Profile: prof.Name,
		DryRun:  o.DryRun,
	})

	runCtx, cancel := context.WithTimeout(ctx, duration.RunDeadline)
	defer cancel()

	store, err := evidence.NewStore(o.OutputDir, budgetCfg.EvidenceLevel)
	if err != nil {
		builder.AddError("evidence", err)
	}

	registry := r.Registry
	if registry == nil {
		registry = r.buildRegistry(runCtx, prof.Categories, builder)
	}

	dispatcher := &dispatch.Dispatcher{
		Registry:    registry,
		Bus:         r.Bus,
		Concurrency: o.Concurrency,
		DryRun:      o.DryRun,
		RunID:       runID,
	}
	inv := agent.Invocation{
		Target:        tgt,
		Budget:        tracker,
		EvidenceLevel: budgetCfg.EvidenceLevel,
		ArtifactDir:   o.OutputDir,
		MaxPages:      prof.MaxPages,
	}

	if o.DryRun {
		builder.SetDryRun()
		r.writeDryRunRecord(builder, runID, tgt, prof)
	}

	plans := prof.Plan(o.RunVuln, o.Authorized)
	surveyPlans, probePlans := splitPlans(plans)

	saved := map[string]bool{}

	// Wave 1: recon, crawl, enrichment. Their payloads feed routing.
	surveyResults := dispatcher.Run(runCtx, surveyPlans, inv)
	for _, res := range surveyResults {
		builder.AddResult(res)
		if res.Status == finding.StatusOK {
			if res.Category == profile.CategoryEnrichment {
				builder.AddTech(ExtractTech(res.Payload)...)
			}
			saved[res.Category] = r.saveEvidence(builder, store, res)
		}
	}

	// Wave 2: vulnerability probing, routed by the detected stack.
	vulnRan := false
	if len(probePlans) > 0 {
		probePlans = routePlans(probePlans, builder.Tech())
		probeResults := dispatcher.Run(runCtx, probePlans, inv)
		for _, res := range probeResults {
			builder.AddResult(res)
			if res.Status == finding.StatusOK {
				vulnRan = true
				saved[res.Category] = r.saveEvidence(builder, store, res)
			}
		}
	}

	if runCtx.Err() != nil && ctx.Err() != nil {
		// The outer context went away: user interrupt, not deadline.
		codes.SetInterrupted()
	}

	// Schema validation over every successful payload.
	schemaReport := r.validatePayloads(builder)
	builder.SetSchemaReport(schemaReport)
	builder.SetBudget(tracker.Snapshot())

	rep := builder.Build()
	paths, werr := report.Write(o.OutputDir, rep)
	if werr != nil {
		builder.AddError("report", werr)
		rep = builder.Build()
	}
	r.copySchemaCatalog(builder)

	// Planned categories that produced no evidence become recorded
	// gaps in the artifact index.
	expected := []string{paths.JSON, paths.Markdown, paths.HTML}
	for _, p := range plans {
		if !saved[p.Category] {
			expected = append(expected, filepath.Join(o.OutputDir, "evidence", "payload_"+p.Category+".json"))
		}
	}
	idx, perr := evidence.Package(o.OutputDir, expected)
	if perr != nil {
		builder.AddError("evidence_package", perr)
		rep = builder.Build()
	}

	var vuln *report.VulnScanSummary
	if vulnRan {
		vuln = &report.VulnScanSummary{
			Reports:       paths,
			TotalFindings: rep.Summary.Findings,
		}
	}
	summary := report.BuildOpenClaw(rep, paths, idx.EvidenceZip, focusTarget, vuln)
	summary = r.checkSummary(builder, summary)

	if o.SummaryJSON != "" {
		if err := jsonutil.WriteFile(o.SummaryJSON, summary); err != nil {
			builder.AddError("summary_json", err)
		}
	}
	if o.ArtifactDir != "" {
		zipPath := ""
		if idx.EvidenceZip != "" {
			zipPath = filepath.Join(o.OutputDir, idx.EvidenceZip)
		}
		r.copyArtifacts(builder, paths, zipPath)
	}

	// Rebuild so late errors (packaging, summary, copies) count.
	rep = builder.Build()
	for range rep.Errors {
		codes.RecordError()
	}
	code, reason := codes.ExitCode()

	r.emit(ctx, events.Complete{
		Base:     events.NewBase(events.TypeComplete),
		RunID:    runID,
		ExitCode: int(code),
		Errors:   rep.Summary.ErrorCount,
		Findings: rep.Summary.Findings,
		Duration: r.now().Sub(start),
	})

	return Outcome{
		Code:        code,
		Reason:      reason,
		Report:      rep,
		Paths:       paths,
		Summary:     summary,
		EvidenceZip: idx.EvidenceZip,
	}, nil
}

// buildRegistry wires one agent per category from the endpoints file.
// A configured remote endpoint is health-probed first and falls back
// to the local command when unhealthy. Dry runs skip the probe: a dry
// run makes no requests at all.
func (r *Runner) buildRegistry(ctx context.Context, categories []string, builder *report.Builder) *agent.Registry {
	cfg := LoadEndpoints(r.configPath("endpoints.yaml"))
	registry := agent.NewRegistry()

	for _, cat := range categories {
		ep := cfg.Agents[cat]

		if cfg.Enabled && ep.Endpoint != "" {
			remote := httpagent.New(cat+"-remote", ep.Endpoint)
			remote.Cost = ep.Cost
			if r.Opts.DryRun || remote.Healthy(ctx) {
				registry.Register(cat, remote)
				continue
			}
			builder.AddWarning(fmt.Sprintf("%s endpoint not healthy, falling back to local", cat))
		}
		if len(ep.Command) > 0 {
			local := execagent.New(cat+"-local", ep.Command[0], ep.Command[1:]...)
			local.Cost = ep.Cost
			registry.Register(cat, local)
		}
	}
	return registry
}

// splitPlans separates survey categories from active-tier probing.
func splitPlans(plans []profile.CategoryPlan) (survey, probe []profile.CategoryPlan) {
	for _, p := range plans {
		if profile.CategoryTier(p.Category) == profile.TierActive {
			probe = append(probe, p)
		} else {
			survey = append(survey, p)
		}
	}
	return survey, probe
}

// routePlans disables enabled probe plans that the detected stack does
// not call for.
func routePlans(plans []profile.CategoryPlan, tech []string) []profile.CategoryPlan {
	routed := make(map[string]bool)
	for _, pb := range RoutePlaybooks(tech) {
		routed[pb] = true
	}
	out := make([]profile.CategoryPlan, len(plans))
	for i, p := range plans {
		if p.Enabled && !routed[p.Category] {
			p.Enabled = false
			p.SkipReason = "not routed for detected technologies"
		}
		out[i] = p
	}
	return out
}

// saveEvidence persists a successful payload through the evidence
// store so it lands in the bundle. It reports whether a file was
// written.
func (r *Runner) saveEvidence(builder *report.Builder, store *evidence.Store, res finding.AgentResult) bool {
	if store == nil || len(res.Payload) == 0 {
		return false
	}
	if _, err := store.SavePayload(res.Category, res.Payload); err != nil {
		builder.AddError("evidence", err)
		return false
	}
	return true
}

// validatePayloads checks every successful payload that declares a
// schema against the catalog. Missing catalog or unknown schema names
// degrade to warnings, not failures.
func (r *Runner) validatePayloads(builder *report.Builder) schema.Report {
	var out schema.Report
	catalog, err := schema.LoadCatalog(r.configPath("schemas.json"))
	if err != nil {
		builder.AddWarning(fmt.Sprintf("schema catalog unavailable: %v", err))
		return out
	}

	for _, res := range builder.Build().Results {
		if res.Status != finding.StatusOK || res.Schema == "" {
			continue
		}
		doc, ok := catalog.Lookup(res.Schema)
		if !ok {
			builder.AddWarning(fmt.Sprintf("agent %s declares unknown schema %q", res.Agent, res.Schema))
			continue
		}
		var result schema.Result
		if r.Opts.SchemaRepair {
			result = schema.Repair(res.Payload, doc)
		} else {
			result = schema.Validate(res.Payload, doc)
		}
		out.Add(schema.ReportEntry{
			Agent:      res.Agent,
			Category:   res.Category,
			Schema:     res.Schema,
			Status:     result.Status,
			Violations: result.Violations,
			Repairs:    result.Repairs,
		})
		if result.Status == schema.StatusInvalid {
			builder.AddError("schema", fmt.Errorf("payload from %s failed %s validation", res.Agent, res.Schema))
		}
	}
	return out
}

// checkSummary validates (and optionally repairs) the OpenClaw summary
// against its schema and writes the validation report next to the run
// artifacts.
func (r *Runner) checkSummary(builder *report.Builder, summary report.OpenClawSummary) report.OpenClawSummary {
	catalog, err := schema.LoadCatalog(r.configPath("schemas.json"))
	if err != nil {
		return summary
	}
	doc, ok := catalog.Lookup(OpenClawSchemaName)
	if !ok {
		return summary
	}

	raw, err := jsonutil.Marshal(summary)
	if err != nil {
		builder.AddError("openclaw", err)
		return summary
	}

	var result schema.Result
	if r.Opts.SchemaRepair {
		result = schema.Repair(raw, doc)
	} else {
		result = schema.Validate(raw, doc)
	}

	reportPath := filepath.Join(r.Opts.OutputDir, "openclaw_schema_report.json")
	if err := jsonutil.WriteFile(reportPath, result); err != nil {
		builder.AddError("openclaw", err)
	}

	switch result.Status {
	case schema.StatusRepaired:
		var repaired report.OpenClawSummary
		if err := jsonutil.Unmarshal(result.Payload, &repaired); err == nil {
			summary = repaired
		}
	case schema.StatusInvalid:
		builder.AddError("openclaw", errors.New("summary failed schema validation"))
	}
	return summary
}

// copySchemaCatalog snapshots the catalog into the run directory for
// provenance.
func (r *Runner) copySchemaCatalog(builder *report.Builder) {
	data, err := os.ReadFile(r.configPath("schemas.json"))
	if err != nil {
		return
	}
	dst := filepath.Join(r.Opts.OutputDir, "schemas.json")
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		builder.AddError("schema_snapshot", err)
	}
}

// copyArtifacts copies the report set and evidence bundle into the
// artifact directory. Missing sources are skipped, not errors.
func (r *Runner) copyArtifacts(builder *report.Builder, paths report.Paths, evidenceZip string) {
	if err := os.MkdirAll(r.Opts.ArtifactDir, 0o755); err != nil {
		builder.AddError("artifact_dir", err)
		return
	}
	for _, p := range []string{paths.JSON, paths.Markdown, paths.HTML, evidenceZip} {
		if p == "" {
			continue
		}
		if err := copyFile(p, filepath.Join(r.Opts.ArtifactDir, filepath.Base(p))); err != nil {
			if !os.IsNotExist(err) {
				builder.AddError("artifact_dir", err)
			}
		}
	}
}

// writeDryRunRecord captures the resolved configuration so a dry run
// leaves a verifiable trace without making a single request.
func (r *Runner) writeDryRunRecord(builder *report.Builder, runID string, tgt target.Target, prof profile.Profile) {
	record := map[string]any{
		"run_id":     runID,
		"target":     tgt.Raw,
		"target_url": tgt.URL,
		"scheme":     tgt.Scheme,
		"profile":    prof.Name,
		"categories": prof.Categories,
		"note":       report.NoteDryRun,
	}
	path := filepath.Join(r.Opts.OutputDir, "dry_run_record.json")
	if err := jsonutil.WriteFile(path, record); err != nil {
		builder.AddError("dry_run_record", err)
	}
}

func (r *Runner) warn(ctx context.Context, builder *report.Builder, runID, msg string) {
	builder.AddWarning(msg)
	r.emit(ctx, events.Warning{
		Base:    events.NewBase(events.TypeWarning),
		RunID:   runID,
		Message: msg,
	})
}

func (r *Runner) emit(ctx context.Context, e events.Event) {
	if r.Bus != nil {
		r.Bus.Emit(ctx, e)
	}
}

func ensureWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	probe := filepath.Join(dir, ".write_probe")
	if err := os.WriteFile(probe, nil, 0o644); err != nil {
		return err
	}
	return os.Remove(probe)
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
