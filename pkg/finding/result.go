package finding

import (
	"encoding/json"
	"time"
)

// Finding is a discrete observation reported by a vulnerability-category
// agent. Recon, crawl, and enrichment agents never produce Findings.
type Finding struct {
	// Type identifies the vulnerability class, e.g. "xss" or "sqli".
	Type string `json:"type"`

	// Severity is the agent-assessed severity.
	Severity Severity `json:"severity"`

	// Evidence references the stored evidence artifact backing the
	// finding (a path under the run's evidence directory).
	Evidence string `json:"evidence,omitempty"`

	// Locator pins the finding to a concrete location on the target,
	// e.g. a URL plus parameter name.
	Locator string `json:"locator"`

	// Detail is the agent's human-readable description.
	Detail string `json:"detail,omitempty"`
}

// AgentStatus is the terminal state of one agent invocation.
type AgentStatus string

const (
	// StatusOK means the agent completed and returned a payload.
	StatusOK AgentStatus = "ok"

	// StatusError means the agent failed; Error carries the description.
	// The failure is isolated to this result and never aborts the run.
	StatusError AgentStatus = "error"

	// StatusSkipped means the agent was never invoked (dry run, budget
	// exhaustion, missing authorization, or tech routing).
	StatusSkipped AgentStatus = "skipped"
)

// AgentResult records the outcome of one agent invocation. It is
// immutable once produced by the dispatcher and is persisted verbatim
// into the run manifest.
type AgentResult struct {
	Agent    string      `json:"agent"`
	Category string      `json:"category"`
	Status   AgentStatus `json:"status"`

	// Payload is the agent's raw structured output, schema-tagged via
	// the Schema field. Kept as raw JSON so the validator sees exactly
	// what the agent emitted.
	Payload json.RawMessage `json:"payload,omitempty"`

	// Schema names the payload schema the output declares conformance to.
	Schema string `json:"schema,omitempty"`

	Findings []Finding `json:"findings,omitempty"`

	StartTime time.Time     `json:"start_time,omitzero"`
	Duration  time.Duration `json:"duration,omitempty"`

	// Error describes the failure when Status is StatusError.
	Error string `json:"error,omitempty"`

	// SkipReason explains a StatusSkipped result, e.g. "dry_run" or
	// "run_budget_exhausted".
	SkipReason string `json:"skip_reason,omitempty"`
}

// Failed reports whether the result represents an isolated agent failure.
func (r AgentResult) Failed() bool {
	return r.Status == StatusError
}

// CountBySeverity tallies findings across results keyed by severity.
// Every severity level is present in the map, zero-valued when absent,
// so report consumers get a stable shape.
func CountBySeverity(results []AgentResult) map[Severity]int {
	counts := make(map[Severity]int, len(Levels()))
	for _, s := range Levels() {
		counts[s] = 0
	}
	for _, r := range results {
		for _, f := range r.Findings {
			counts[Normalize(string(f.Severity))]++
		}
	}
	return counts
}
