// Package report assembles run results into the final report set: a
// machine-readable JSON document, a human-readable Markdown summary,
// and an HTML rendition. A report is always produced, even for runs
// that fail partway.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bountyswarm/bountyswarm/pkg/budget"
	"github.com/bountyswarm/bountyswarm/pkg/finding"
	"github.com/bountyswarm/bountyswarm/pkg/jsonutil"
	"github.com/bountyswarm/bountyswarm/pkg/schema"
	"github.com/bountyswarm/bountyswarm/pkg/target"
)

// NoteDryRun marks reports produced without any network requests.
const NoteDryRun = "dry_run_no_requests"

// RunError records a captured failure. Failures never abort the run;
// they accumulate here and in the per-agent results.
type RunError struct {
	Stage string `json:"stage"`
	Error string `json:"error"`
}

// Summary aggregates the run for quick triage.
type Summary struct {
	AgentsRun      int            `json:"agents_run"`
	AgentsFailed   int            `json:"agents_failed"`
	AgentsSkipped  int            `json:"agents_skipped"`
	Findings       int            `json:"findings"`
	SeverityCounts map[string]int `json:"severity_counts"`
	TechDetected   []string       `json:"tech_detected"`
	ErrorCount     int            `json:"error_count"`
}

// Report is the final JSON document for one run.
type Report struct {
	RunID     string    `json:"run_id"`
	Target    string    `json:"target"`
	TargetURL string    `json:"target_url"`
	Scheme    string    `json:"scheme"`
	Profile   string    `json:"profile"`
	Timestamp time.Time `json:"timestamp"`

	// Note is set for dry runs.
	Note string `json:"note,omitempty"`

	// Results holds one entry per planned agent, in dispatch order.
	Results []finding.AgentResult `json:"results"`

	Summary  Summary          `json:"summary"`
	Errors   []RunError       `json:"errors"`
	Warnings []string         `json:"warnings,omitempty"`
	Budget   *budget.Snapshot `json:"budget,omitempty"`
	Schema   *schema.Report   `json:"schema,omitempty"`
}

// ByCategory groups results by category, preserving result order
// within each group.
func (r *Report) ByCategory() map[string][]finding.AgentResult {
	out := make(map[string][]finding.AgentResult)
	for _, res := range r.Results {
		out[res.Category] = append(out[res.Category], res)
	}
	return out
}

// Builder accumulates results and errors during a run. It is safe for
// concurrent use; agent goroutines add results as they finish.
type Builder struct {
	mu     sync.Mutex
	report Report
	tech   map[string]struct{}
	now    func() time.Time
}

// NewBuilder starts a report for one run.
func NewBuilder(runID string, tgt target.Target, profileName string) *Builder {
	return &Builder{
		report: Report{
			RunID:     runID,
			Target:    tgt.Raw,
			TargetURL: tgt.URL,
			Scheme:    tgt.Scheme,
			Profile:   profileName,
		},
		tech: make(map[string]struct{}),
		now:  time.Now,
	}
}

// SetClock overrides the wall clock, for tests.
func (b *Builder) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

// SetDryRun marks the report as produced without requests.
func (b *Builder) SetDryRun() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.report.Note = NoteDryRun
}

// AddResult records one finished agent invocation.
func (b *Builder) AddResult(res finding.AgentResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.report.Results = append(b.report.Results, res)
	if res.Failed() {
		b.report.Errors = append(b.report.Errors, RunError{
			Stage: res.Agent,
			Error: res.Error,
		})
	}
}

// AddError records a failure outside any single agent (packaging,
// report writing, deadline).
func (b *Builder) AddError(stage string, err error) {
	if err == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.report.Errors = append(b.report.Errors, RunError{Stage: stage, Error: err.Error()})
}

// AddWarning records a non-fatal warning.
func (b *Builder) AddWarning(msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.report.Warnings = append(b.report.Warnings, msg)
}

// AddTech records detected technologies, deduplicated.
func (b *Builder) AddTech(tech ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range tech {
		if t != "" {
			b.tech[t] = struct{}{}
		}
	}
}

// Tech returns the deduplicated technologies detected so far, sorted.
func (b *Builder) Tech() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.techLocked()
}

func (b *Builder) techLocked() []string {
	out := make([]string, 0, len(b.tech))
	for t := range b.tech {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// SetBudget attaches the final budget snapshot.
func (b *Builder) SetBudget(snap budget.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.report.Budget = &snap
}

// SetSchemaReport attaches the validation report.
func (b *Builder) SetSchemaReport(r schema.Report) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.report.Schema = &r
}

// ErrorCount returns the number of captured errors so far.
func (b *Builder) ErrorCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.report.Errors)
}

// Build finalizes the report: stamps it and computes the summary.
// Build may be called more than once; later calls reflect results
// added since.
func (b *Builder) Build() Report {
	b.mu.Lock()
	defer b.mu.Unlock()

	r := b.report
	r.Timestamp = b.now().UTC()

	sum := Summary{
		SeverityCounts: make(map[string]int),
		TechDetected:   b.techLocked(),
	}
	for _, res := range r.Results {
		switch res.Status {
		case finding.StatusError:
			sum.AgentsFailed++
		case finding.StatusSkipped:
			sum.AgentsSkipped++
		default:
			sum.AgentsRun++
		}
		sum.Findings += len(res.Findings)
	}
	for sev, n := range finding.CountBySeverity(r.Results) {
		sum.SeverityCounts[string(sev)] = n
	}
	sum.ErrorCount = len(r.Errors)
	r.Summary = sum

	// Keep JSON arrays non-null even when empty.
	if r.Results == nil {
		r.Results = []finding.AgentResult{}
	}
	if r.Errors == nil {
		r.Errors = []RunError{}
	}
	return r
}

// Paths locates the written report files.
type Paths struct {
	JSON     string `json:"json"`
	Markdown string `json:"markdown"`
	HTML     string `json:"html"`
}

// Write renders the report in all three formats under outputDir and
// returns their paths. File names embed the sanitized target and a
// UTC stamp, so repeated runs never collide.
func Write(outputDir string, r Report) (Paths, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("report: create output dir: %w", err)
	}

	base := fmt.Sprintf("swarm_report_%s_%s",
		target.Slug(r.Target), r.Timestamp.Format("20060102_150405"))

	p := Paths{
		JSON:     filepath.Join(outputDir, base+".json"),
		Markdown: filepath.Join(outputDir, base+".md"),
		HTML:     filepath.Join(outputDir, base+".html"),
	}

	if err := jsonutil.WriteFile(p.JSON, r); err != nil {
		return Paths{}, fmt.Errorf("report: write json: %w", err)
	}

	md, err := RenderMarkdown(r)
	if err != nil {
		return Paths{}, fmt.Errorf("report: render markdown: %w", err)
	}
	if err := os.WriteFile(p.Markdown, []byte(md), 0o644); err != nil {
		return Paths{}, fmt.Errorf("report: write markdown: %w", err)
	}

	html, err := RenderHTML(r)
	if err != nil {
		return Paths{}, fmt.Errorf("report: render html: %w", err)
	}
	if err := os.WriteFile(p.HTML, []byte(html), 0o644); err != nil {
		return Paths{}, fmt.Errorf("report: write html: %w", err)
	}
	return p, nil
}
