// Package defaults provides canonical default values for the entire codebase.
// This is the SINGLE SOURCE OF TRUTH for runtime configuration defaults.
//
// Usage:
//
//	cfg.Concurrency = defaults.ConcurrencyLow
//	budget.MaxPerMinute = defaults.BudgetPerMinute
//
// DO NOT use hardcoded values like `Concurrency: 5` anywhere.
// Instead, reference the appropriate constant from this package.
package defaults

// ToolName is the canonical tool name used in banners, user agents,
// and telemetry service names.
const ToolName = "bountyswarm"

// Version is the current bountyswarm version.
const Version = "1.3.0"

// ============================================================================
// CONCURRENCY SETTINGS
// ============================================================================
//
// Use these for the agent worker pool. Agents are I/O bound but every
// invocation burns request budget, so the tiers stay conservative.
// ============================================================================

const (
	// ConcurrencyMinimal runs agents one at a time (1).
	ConcurrencyMinimal = 1

	// ConcurrencyLow is the default worker limit for a swarm run (5).
	ConcurrencyLow = 5

	// ConcurrencyMedium is for runs against robust targets (10).
	ConcurrencyMedium = 10

	// ConcurrencyHigh is the ceiling the CLI accepts (20).
	ConcurrencyHigh = 20
)

// ============================================================================
// REQUEST BUDGET
// ============================================================================
//
// Defaults applied when configs/budget.yaml is absent or incomplete.
// ============================================================================

const (
	// BudgetPerMinute is the default per-minute request ceiling (120).
	BudgetPerMinute = 120

	// BudgetPerRun is the default per-run request ceiling (1000).
	BudgetPerRun = 1000
)

// ============================================================================
// RETRY SETTINGS
// ============================================================================

const (
	// RetryNone disables retries (0).
	RetryNone = 0

	// BudgetRetries is how many minute-window rollovers the dispatcher
	// waits out before marking an agent skipped (2).
	BudgetRetries = 2

	// HealthRetries is the probe count for remote agent endpoints (1).
	HealthRetries = 1
)

// ============================================================================
// PROFILES
// ============================================================================

const (
	// ProfileDefault is the documented safe default profile.
	ProfileDefault = "cautious"

	// FocusRotationDays is the default focus rotation window length.
	FocusRotationDays = 56
)

// ============================================================================
// EVIDENCE
// ============================================================================

const (
	// EvidenceLevelDefault is the default capture level.
	EvidenceLevelDefault = "standard"

	// EvidenceBodyStandard caps stored response bodies at standard level.
	EvidenceBodyStandard = 2000

	// EvidenceBodyFull caps stored response bodies at full level.
	EvidenceBodyFull = 10000

	// SlugMaxLen caps filesystem slugs derived from targets and URLs.
	SlugMaxLen = 80
)
