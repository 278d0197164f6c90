// Package execagent adapts an external subprocess collaborator to the
// agent contract.
//
// The subprocess receives the invocation as JSON on stdin and must
// print a single JSON document on stdout:
//
//	{"schema": "recon/v1", "payload": {...}, "findings": [...]}
//
// Anything on stderr is collected into the error description when the
// process fails. The adapter charges the shared budget before the
// process starts, with a per-invocation request cost declared at
// registration time.
package execagent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/bountyswarm/bountyswarm/pkg/agent"
	"github.com/bountyswarm/bountyswarm/pkg/finding"
	"github.com/bountyswarm/bountyswarm/pkg/jsonutil"
)

// Exec invokes an external command implementing one agent category.
type Exec struct {
	// AgentName identifies the adapter in results, e.g. "recon-exec".
	AgentName string

	// Command is the program to run.
	Command string

	// Args are fixed arguments prepended before the target URL.
	Args []string

	// Cost is the request-budget charge per invocation (default 1).
	// Operators set it to the agent's worst-case outbound request
	// count.
	Cost int
}

type stdinDoc struct {
	Target        string `json:"target"`
	URL           string `json:"url"`
	Scheme        string `json:"scheme"`
	EvidenceLevel string `json:"evidence_level"`
	ArtifactDir   string `json:"artifact_dir"`
	MaxPages      int    `json:"max_pages,omitempty"`
}

type stdoutDoc struct {
	Schema   string            `json:"schema"`
	Payload  json.RawMessage   `json:"payload"`
	Findings []finding.Finding `json:"findings"`
}

// New returns an exec adapter for the given command line.
func New(name, command string, args ...string) *Exec {
	return &Exec{AgentName: name, Command: command, Args: args, Cost: 1}
}

// Name implements agent.Agent.
func (e *Exec) Name() string { return e.AgentName }

// Invoke implements agent.Agent. The subprocess inherits ctx, so a run
// deadline or cancellation kills it.
func (e *Exec) Invoke(ctx context.Context, inv agent.Invocation) (agent.Output, error) {
	cost := e.Cost
	if cost <= 0 {
		cost = 1
	}
	if inv.Budget != nil {
		if err := inv.Budget.Wait(ctx, cost); err != nil {
			return agent.Output{}, err
		}
	}

	in, err := jsonutil.Marshal(stdinDoc{
		Target:        inv.Target.Raw,
		URL:           inv.Target.URL,
		Scheme:        inv.Target.Scheme,
		EvidenceLevel: inv.EvidenceLevel,
		ArtifactDir:   inv.ArtifactDir,
		MaxPages:      inv.MaxPages,
	})
	if err != nil {
		return agent.Output{}, fmt.Errorf("execagent: encode invocation: %w", err)
	}

	cmd := exec.CommandContext(ctx, e.Command, append(e.Args, inv.Target.URL)...)
	cmd.Stdin = bytes.NewReader(in)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return agent.Output{}, fmt.Errorf("%w: %s", finding.ErrTimeout, e.Command)
		}
		return agent.Output{}, fmt.Errorf("execagent: %s: %w: %s", e.Command, err, firstLine(stderr.String()))
	}

	var doc stdoutDoc
	if err := jsonutil.Unmarshal(stdout.Bytes(), &doc); err != nil {
		return agent.Output{}, fmt.Errorf("execagent: %s: malformed output: %w", e.Command, err)
	}
	return agent.Output{Schema: doc.Schema, Payload: doc.Payload, Findings: doc.Findings}, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}
