// Package events defines the run event model. The orchestrator emits
// events through a Bus; hooks (logger, metrics, tracing) subscribe to
// the event types they care about. Events decouple run progress from
// its consumers and are designed for JSON serialization.
package events

import (
	"time"

	"github.com/bountyswarm/bountyswarm/pkg/finding"
)

// Type discriminates run events.
type Type string

const (
	// TypeStart marks the beginning of a run.
	TypeStart Type = "start"
	// TypeAgentResult carries one finished agent invocation.
	TypeAgentResult Type = "agent_result"
	// TypeBudgetDenied marks a budget denial observed by the dispatcher.
	TypeBudgetDenied Type = "budget_denied"
	// TypeWarning carries a non-fatal configuration or focus warning.
	TypeWarning Type = "warning"
	// TypeComplete marks the end of a run, successful or not.
	TypeComplete Type = "complete"
)

// Event is implemented by all run events.
type Event interface {
	EventType() Type
	EventTime() time.Time
}

// Base is embedded by every event type.
type Base struct {
	Type Type      `json:"type"`
	Time time.Time `json:"time"`
}

func (b Base) EventType() Type      { return b.Type }
func (b Base) EventTime() time.Time { return b.Time }

// NewBase stamps a base event with the current time.
func NewBase(t Type) Base {
	return Base{Type: t, Time: time.Now().UTC()}
}

// Start is emitted once, before any agent runs.
type Start struct {
	Base
	RunID   string `json:"run_id"`
	Target  string `json:"target"`
	Profile string `json:"profile"`
	DryRun  bool   `json:"dry_run,omitempty"`
}

// AgentResult is emitted when one agent invocation reaches a terminal
// state.
type AgentResult struct {
	Base
	RunID  string              `json:"run_id"`
	Target string              `json:"target"`
	Result finding.AgentResult `json:"result"`
}

// BudgetDenied is emitted when the dispatcher observes a budget denial.
type BudgetDenied struct {
	Base
	RunID    string `json:"run_id"`
	Category string `json:"category"`

	// Terminal is true for per-run exhaustion, false for the retryable
	// per-minute case.
	Terminal bool `json:"terminal"`
}

// Warning is emitted for non-fatal configuration and focus warnings.
type Warning struct {
	Base
	RunID   string `json:"run_id,omitempty"`
	Message string `json:"message"`
}

// Complete is emitted exactly once per run, after packaging.
type Complete struct {
	Base
	RunID    string        `json:"run_id"`
	ExitCode int           `json:"exit_code"`
	Errors   int           `json:"errors"`
	Findings int           `json:"findings"`
	Duration time.Duration `json:"duration"`
}
