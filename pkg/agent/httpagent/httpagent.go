// Package httpagent adapts a remote agent endpoint to the agent
// contract.
//
// Remote collaborators speak a small JSON-over-HTTP protocol: a POST of
// {"action":"health"} probes availability, and {"action":"run", ...}
// invokes the agent. An endpoint that fails its health probe is treated
// as unavailable so the orchestrator can fall back to a local agent
// instead of failing the run.
package httpagent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/bountyswarm/bountyswarm/pkg/agent"
	"github.com/bountyswarm/bountyswarm/pkg/duration"
	"github.com/bountyswarm/bountyswarm/pkg/finding"
	"github.com/bountyswarm/bountyswarm/pkg/jsonutil"
)

// Remote invokes an agent over HTTP.
type Remote struct {
	// AgentName identifies the adapter in results, e.g. "crawl-remote".
	AgentName string

	// Endpoint is the agent URL. Empty means not configured.
	Endpoint string

	// Client is the HTTP client; http.DefaultClient when nil.
	Client *http.Client

	// Cost is the request-budget charge per invocation (default 1).
	Cost int
}

type request struct {
	Action        string `json:"action"`
	Target        string `json:"target,omitempty"`
	URL           string `json:"url,omitempty"`
	EvidenceLevel string `json:"evidence_level,omitempty"`
	MaxPages      int    `json:"max_pages,omitempty"`
}

type response struct {
	Schema   string            `json:"schema"`
	Payload  json.RawMessage   `json:"payload"`
	Findings []finding.Finding `json:"findings"`
}

// New returns a remote adapter for the given endpoint.
func New(name, endpoint string) *Remote {
	return &Remote{AgentName: name, Endpoint: endpoint, Cost: 1}
}

// Name implements agent.Agent.
func (r *Remote) Name() string { return r.AgentName }

// Available reports whether the adapter has an endpoint configured.
func (r *Remote) Available() bool { return r.Endpoint != "" }

// Healthy probes the endpoint. Health probes are bounded by
// duration.HealthProbe and do not consume request budget: they target
// the collaborator, not the scan target.
func (r *Remote) Healthy(ctx context.Context) bool {
	if !r.Available() {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, duration.HealthProbe)
	defer cancel()

	resp, err := r.post(ctx, request{Action: "health"})
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Invoke implements agent.Agent.
func (r *Remote) Invoke(ctx context.Context, inv agent.Invocation) (agent.Output, error) {
	if !r.Available() {
		return agent.Output{}, finding.ErrAgentUnavailable
	}
	cost := r.Cost
	if cost <= 0 {
		cost = 1
	}
	if inv.Budget != nil {
		if err := inv.Budget.Wait(ctx, cost); err != nil {
			return agent.Output{}, err
		}
	}

	resp, err := r.post(ctx, request{
		Action:        "run",
		Target:        inv.Target.Raw,
		URL:           inv.Target.URL,
		EvidenceLevel: inv.EvidenceLevel,
		MaxPages:      inv.MaxPages,
	})
	if err != nil {
		if ctx.Err() != nil {
			return agent.Output{}, fmt.Errorf("%w: %s", finding.ErrTimeout, r.Endpoint)
		}
		return agent.Output{}, fmt.Errorf("httpagent: %s: %w", r.Endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return agent.Output{}, fmt.Errorf("httpagent: %s: status %d", r.Endpoint, resp.StatusCode)
	}

	var doc response
	if err := jsonutil.UnmarshalRead(resp.Body, &doc); err != nil {
		return agent.Output{}, fmt.Errorf("httpagent: %s: malformed response: %w", r.Endpoint, err)
	}
	return agent.Output{Schema: doc.Schema, Payload: doc.Payload, Findings: doc.Findings}, nil
}

func (r *Remote) post(ctx context.Context, body request) (*http.Response, error) {
	data, err := jsonutil.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.Endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	return client.Do(req)
}
