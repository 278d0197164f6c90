// Package dispatch runs the planned agent categories through a bounded
// worker pool. Each agent is isolated: failures, timeouts, and panics
// become error results on the shared report rather than aborting the
// run.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bountyswarm/bountyswarm/pkg/agent"
	"github.com/bountyswarm/bountyswarm/pkg/budget"
	"github.com/bountyswarm/bountyswarm/pkg/defaults"
	"github.com/bountyswarm/bountyswarm/pkg/duration"
	"github.com/bountyswarm/bountyswarm/pkg/events"
	"github.com/bountyswarm/bountyswarm/pkg/finding"
	"github.com/bountyswarm/bountyswarm/pkg/profile"
)

// SkipReasonDryRun marks results for runs that made no requests.
const SkipReasonDryRun = "dry_run"

// Dispatcher fans planned categories out to their registered agents.
type Dispatcher struct {
	Registry *agent.Registry

	// Bus receives an AgentResult event per terminal result and
	// BudgetDenied events on budget pressure. Optional.
	Bus *events.Bus

	// Concurrency bounds the number of in-flight agents. Zero means
	// defaults.ConcurrencyLow.
	Concurrency int

	// BudgetRetries is how many minute-window rollovers to wait out
	// before skipping a budget-denied agent. Zero means
	// defaults.BudgetRetries.
	BudgetRetries int

	// AgentTimeout bounds each invocation. Zero means
	// duration.AgentInvoke.
	AgentTimeout time.Duration

	// DryRun produces skipped results without invoking any agent.
	DryRun bool

	// RunID stamps emitted events.
	RunID string

	// sleep is replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// Run executes every plan entry and returns one result per entry, in
// plan order regardless of completion order. It never returns early:
// a failing agent yields an error result and the rest keep running.
func (d *Dispatcher) Run(ctx context.Context, plans []profile.CategoryPlan, inv agent.Invocation) []finding.AgentResult {
	concurrency := d.Concurrency
	if concurrency <= 0 {
		concurrency = defaults.ConcurrencyLow
	}
	if concurrency > len(plans) && len(plans) > 0 {
		concurrency = len(plans)
	}

	results := make([]finding.AgentResult, len(plans))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, plan := range plans {
		if res, done := d.preflight(plan); done {
			results[i] = res
			d.emitResult(ctx, inv, results[i])
			continue
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(i int, plan profile.CategoryPlan) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = d.invoke(ctx, plan, inv)
			d.emitResult(ctx, inv, results[i])
		}(i, plan)
	}

	wg.Wait()
	return results
}

// preflight resolves plan entries that never reach an agent: disabled
// categories, dry runs, and categories with no registered agent.
func (d *Dispatcher) preflight(plan profile.CategoryPlan) (finding.AgentResult, bool) {
	base := finding.AgentResult{
		Category:  plan.Category,
		StartTime: time.Now().UTC(),
	}
	ag := d.Registry.Get(plan.Category)
	if ag != nil {
		base.Agent = ag.Name()
	}

	switch {
	case !plan.Enabled:
		base.Status = finding.StatusSkipped
		base.SkipReason = plan.SkipReason
		return base, true
	case d.DryRun:
		base.Status = finding.StatusSkipped
		base.SkipReason = SkipReasonDryRun
		return base, true
	case ag == nil:
		base.Status = finding.StatusError
		base.Error = fmt.Sprintf("no agent registered for category %q", plan.Category)
		return base, true
	}
	return finding.AgentResult{}, false
}

// invoke runs one agent with isolation: a per-agent timeout, panic
// recovery, and budget backoff.
func (d *Dispatcher) invoke(ctx context.Context, plan profile.CategoryPlan, inv agent.Invocation) finding.AgentResult {
	ag := d.Registry.Get(plan.Category)
	res := finding.AgentResult{
		Agent:     ag.Name(),
		Category:  plan.Category,
		StartTime: time.Now().UTC(),
	}

	timeout := d.AgentTimeout
	if timeout <= 0 {
		timeout = duration.AgentInvoke
	}
	retries := d.BudgetRetries
	if retries <= 0 {
		retries = defaults.BudgetRetries
	}

	var out agent.Output
	var err error
	for attempt := 0; ; attempt++ {
		out, err = d.invokeOnce(ctx, ag, inv, timeout)

		if err == nil || !errors.Is(err, budget.ErrMinuteExhausted) {
			break
		}
		// Retryable denial: wait out the window, then try again.
		d.emit(ctx, events.BudgetDenied{
			Base:     events.NewBase(events.TypeBudgetDenied),
			RunID:    d.RunID,
			Category: plan.Category,
			Terminal: false,
		})
		if attempt >= retries {
			res.Status = finding.StatusSkipped
			res.SkipReason = "request budget exhausted for this window"
			res.Duration = time.Since(res.StartTime)
			return res
		}
		if werr := d.sleepFn()(ctx, duration.BudgetWindow); werr != nil {
			err = werr
			break
		}
	}
	res.Duration = time.Since(res.StartTime)

	switch {
	case err == nil:
		res.Status = finding.StatusOK
		res.Schema = out.Schema
		res.Payload = out.Payload
		res.Findings = out.Findings
	case errors.Is(err, budget.ErrRunExhausted):
		d.emit(ctx, events.BudgetDenied{
			Base:     events.NewBase(events.TypeBudgetDenied),
			RunID:    d.RunID,
			Category: plan.Category,
			Terminal: true,
		})
		res.Status = finding.StatusSkipped
		res.SkipReason = "run request budget exhausted"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, finding.ErrTimeout):
		res.Status = finding.StatusError
		res.Error = "timeout"
	default:
		res.Status = finding.StatusError
		res.Error = err.Error()
	}
	return res
}

// invokeOnce applies the per-agent timeout and converts panics into
// errors. Agents are external collaborators; a crashing one must not
// take the run down.
func (d *Dispatcher) invokeOnce(ctx context.Context, ag agent.Agent, inv agent.Invocation, timeout time.Duration) (out agent.Output, err error) {
	invCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("agent panic: %v", r)
		}
	}()
	return ag.Invoke(invCtx, inv)
}

func (d *Dispatcher) emitResult(ctx context.Context, inv agent.Invocation, res finding.AgentResult) {
	d.emit(ctx, events.AgentResult{
		Base:   events.NewBase(events.TypeAgentResult),
		RunID:  d.RunID,
		Target: inv.Target.Raw,
		Result: res,
	})
}

func (d *Dispatcher) emit(ctx context.Context, e events.Event) {
	if d.Bus != nil {
		d.Bus.Emit(ctx, e)
	}
}

func (d *Dispatcher) sleepFn() func(ctx context.Context, dur time.Duration) error {
	if d.sleep != nil {
		return d.sleep
	}
	return func(ctx context.Context, dur time.Duration) error {
		timer := time.NewTimer(dur)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	}
}
