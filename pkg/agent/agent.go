// Package agent defines the uniform contract every swarm agent
// implements and the category registry the dispatcher resolves agents
// from.
//
// Agents are external collaborators: the actual recon, crawl,
// enrichment, and vulnerability-probing logic lives behind this
// interface (in-process adapters, subprocesses, or remote endpoints).
// The orchestration engine only ever sees Invoke.
package agent

import (
	"context"
	"encoding/json"

	"github.com/bountyswarm/bountyswarm/pkg/budget"
	"github.com/bountyswarm/bountyswarm/pkg/finding"
	"github.com/bountyswarm/bountyswarm/pkg/target"
)

// Invocation carries everything an agent may use for one run. The
// budget handle is shared across all concurrent agents; agents must
// consume from it before every outbound request.
type Invocation struct {
	Target target.Target

	// Budget is the shared request budget. Never nil during a real run.
	Budget *budget.Tracker

	// EvidenceLevel is "lite", "standard", or "full".
	EvidenceLevel string

	// ArtifactDir is where the agent may write raw evidence artifacts.
	// Paths derived from targets or URLs must be sanitized with
	// target.Slug before use.
	ArtifactDir string

	// MaxPages bounds crawling for crawl-category agents.
	MaxPages int
}

// Output is an agent's structured result.
type Output struct {
	// Schema names the payload schema this output declares conformance
	// to, e.g. "recon/v1".
	Schema string

	// Payload is the raw structured output. The schema validator sees
	// it exactly as emitted.
	Payload json.RawMessage

	// Findings are produced only by vulnerability-category agents.
	Findings []finding.Finding
}

// Agent is the uniform capability all collaborators implement.
type Agent interface {
	// Name identifies the concrete implementation, e.g. "recon-local".
	Name() string

	// Invoke runs the agent against the target. Implementations must
	// honor ctx cancellation and return rather than crash on failure;
	// the dispatcher converts errors into isolated error results.
	Invoke(ctx context.Context, inv Invocation) (Output, error)
}

// Func adapts a plain function to the Agent interface. Tests use it
// for spies and fakes.
type Func struct {
	AgentName string
	Fn        func(ctx context.Context, inv Invocation) (Output, error)
}

func (f Func) Name() string { return f.AgentName }

func (f Func) Invoke(ctx context.Context, inv Invocation) (Output, error) {
	return f.Fn(ctx, inv)
}

// Registry maps agent categories to implementations, preserving
// registration order so dispatch and manifest ordering stay
// deterministic.
type Registry struct {
	agents map[string]Agent
	order  []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]Agent)}
}

// Register binds category to impl. Re-registering a category replaces
// the implementation but keeps its original position.
func (r *Registry) Register(category string, impl Agent) {
	if _, exists := r.agents[category]; !exists {
		r.order = append(r.order, category)
	}
	r.agents[category] = impl
}

// Get returns the agent for category, or nil when none is registered.
func (r *Registry) Get(category string) Agent {
	return r.agents[category]
}

// Has reports whether category has a registered agent.
func (r *Registry) Has(category string) bool {
	_, ok := r.agents[category]
	return ok
}

// Categories returns registered categories in registration order.
func (r *Registry) Categories() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Count returns the number of registered agents.
func (r *Registry) Count() int {
	return len(r.agents)
}
