// Package duration provides canonical time constants for the entire codebase.
// This is the SINGLE SOURCE OF TRUTH for all time-based configuration.
//
// Usage:
//
//	ctx, cancel := context.WithTimeout(ctx, duration.AgentInvoke)
//
// DO NOT use hardcoded time.Duration values like `30 * time.Second` anywhere.
// Instead, reference the appropriate constant from this package.
package duration

import "time"

const (
	// HealthProbe bounds the health check against a remote agent endpoint (5s).
	HealthProbe = 5 * time.Second

	// AgentInvoke bounds a single agent invocation (2min).
	AgentInvoke = 2 * time.Minute

	// RunDeadline bounds an entire swarm run (30min).
	RunDeadline = 30 * time.Minute

	// BudgetWindow is the per-minute budget accounting window (1min).
	BudgetWindow = time.Minute

	// BudgetPoll is the retry interval while waiting on a minute window (250ms).
	BudgetPoll = 250 * time.Millisecond

	// HookShutdown bounds graceful shutdown of telemetry hooks (5s).
	HookShutdown = 5 * time.Second

	// HookConnect bounds establishing a telemetry exporter connection (10s).
	HookConnect = 10 * time.Second

	// MetricsRead is the metrics HTTP server read timeout (5s).
	MetricsRead = 5 * time.Second

	// MetricsWrite is the metrics HTTP server write timeout (10s).
	MetricsWrite = 10 * time.Second
)
