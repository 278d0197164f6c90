// Package exitcode provides semantic exit codes for CI/CD integration.
// Exit codes communicate run outcomes to automation pipelines.
//
// Exit codes:
//   - 0: Success (run completed, no agent errors)
//   - 1: Completed with errors (report still produced)
//   - 3: Invalid configuration
//   - 4: Scope violation
//   - 5: Run interrupted
package exitcode

import (
	"fmt"
	"sync"
)

// Code represents a semantic exit code for CI/CD pipelines.
type Code int

const (
	// Success indicates the run completed with no agent errors.
	Success Code = 0
	// CompletedWithErrors indicates the run finished and produced a
	// report, but one or more agents failed.
	CompletedWithErrors Code = 1
	// Configuration indicates invalid configuration was provided.
	Configuration Code = 3
	// ScopeViolation indicates the target is not authorized by the
	// scope configuration. Nothing is probed in this case.
	ScopeViolation Code = 4
	// Interrupted indicates the run was interrupted (e.g., SIGINT).
	Interrupted Code = 5
)

// codeStrings maps exit codes to machine-readable reasons.
var codeStrings = map[Code]string{
	Success:             "success",
	CompletedWithErrors: "completed_with_errors",
	Configuration:       "invalid_configuration",
	ScopeViolation:      "scope_violation",
	Interrupted:         "run_interrupted",
}

// codeDescriptions provides detailed descriptions for exit codes.
var codeDescriptions = map[Code]string{
	Success:             "Run completed successfully with no agent errors",
	CompletedWithErrors: "Run completed but one or more agents failed",
	Configuration:       "Invalid configuration provided",
	ScopeViolation:      "Target is not authorized by the scope configuration",
	Interrupted:         "Run was interrupted by user or signal",
}

// Manager tracks run outcomes and determines the appropriate exit
// code. Agent goroutines record errors concurrently.
type Manager struct {
	mu     sync.Mutex
	errors int

	configError    bool
	scopeViolation bool
	interrupted    bool
}

// New creates a new exit code manager.
func New() *Manager {
	return &Manager{}
}

// RecordError increments the agent error counter.
func (m *Manager) RecordError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors++
}

// Errors returns the number of recorded agent errors.
func (m *Manager) Errors() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors
}

// SetConfigError marks that a configuration error occurred.
func (m *Manager) SetConfigError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configError = true
}

// SetScopeViolation marks that the target failed the scope check.
func (m *Manager) SetScopeViolation() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scopeViolation = true
}

// SetInterrupted marks that the run was interrupted.
func (m *Manager) SetInterrupted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interrupted = true
}

// ExitCode returns the appropriate exit code based on recorded
// outcomes, with a human-readable reason.
//
// Priority order (highest to lowest):
//  1. Scope violation
//  2. Configuration error
//  3. Interrupted
//  4. Completed with errors
//  5. Success
func (m *Manager) ExitCode() (Code, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.scopeViolation {
		return ScopeViolation, codeDescriptions[ScopeViolation]
	}
	if m.configError {
		return Configuration, codeDescriptions[Configuration]
	}
	if m.interrupted {
		return Interrupted, codeDescriptions[Interrupted]
	}
	if m.errors > 0 {
		return CompletedWithErrors, fmt.Sprintf("%s (count: %d)",
			codeDescriptions[CompletedWithErrors], m.errors)
	}
	return Success, codeDescriptions[Success]
}

// String returns the string representation of an exit code.
func (c Code) String() string {
	if s, ok := codeStrings[c]; ok {
		return s
	}
	return fmt.Sprintf("unknown_%d", int(c))
}

// Description returns the detailed description of an exit code.
func (c Code) Description() string {
	if d, ok := codeDescriptions[c]; ok {
		return d
	}
	return "Unknown exit code"
}
