package finding

import "errors"

// Sentinel errors for common agent failure modes.
// Callers should use errors.Is() to check for these.
var (
	// ErrTimeout indicates the agent did not complete within its
	// deadline. The dispatcher records it as an error result of kind
	// "timeout".
	ErrTimeout = errors.New("finding: timeout")

	// ErrTargetUnreachable indicates the target host could not be
	// reached (DNS failure, connection refused, etc.).
	ErrTargetUnreachable = errors.New("finding: target unreachable")

	// ErrAgentUnavailable indicates a remote agent endpoint failed its
	// health probe and no local fallback exists.
	ErrAgentUnavailable = errors.New("finding: agent unavailable")
)
