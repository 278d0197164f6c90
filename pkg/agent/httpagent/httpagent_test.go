package httpagent

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bountyswarm/bountyswarm/pkg/agent"
	"github.com/bountyswarm/bountyswarm/pkg/budget"
	"github.com/bountyswarm/bountyswarm/pkg/finding"
	"github.com/bountyswarm/bountyswarm/pkg/target"
)

func agentServer(t *testing.T, runResponse string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Action string `json:"action"`
			Target string `json:"target"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		switch req.Action {
		case "health":
			w.WriteHeader(http.StatusOK)
		case "run":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(runResponse))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
}

func testInvocation() agent.Invocation {
	tgt, _ := target.Resolve("example.com", "")
	return agent.Invocation{Target: tgt}
}

func TestHealthy(t *testing.T) {
	srv := agentServer(t, `{}`)
	defer srv.Close()

	r := New("recon-remote", srv.URL)
	if !r.Healthy(t.Context()) {
		t.Error("healthy endpoint reported unhealthy")
	}

	srv.Close()
	if r.Healthy(t.Context()) {
		t.Error("closed endpoint reported healthy")
	}

	unconfigured := New("recon-remote", "")
	if unconfigured.Healthy(t.Context()) {
		t.Error("unconfigured endpoint reported healthy")
	}
}

func TestInvoke(t *testing.T) {
	srv := agentServer(t, `{
		"schema": "recon/v1",
		"payload": {"target": "example.com", "subdomains": ["api"]},
		"findings": []
	}`)
	defer srv.Close()

	r := New("recon-remote", srv.URL)
	out, err := r.Invoke(t.Context(), testInvocation())
	if err != nil {
		t.Fatal(err)
	}
	if out.Schema != "recon/v1" {
		t.Errorf("schema = %q", out.Schema)
	}
	var payload map[string]any
	if err := json.Unmarshal(out.Payload, &payload); err != nil {
		t.Fatal(err)
	}
	if payload["target"] != "example.com" {
		t.Errorf("payload = %v", payload)
	}
}

func TestInvokeErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := New("recon-remote", srv.URL)
	if _, err := r.Invoke(t.Context(), testInvocation()); err == nil {
		t.Fatal("expected an error for status 500")
	}
}

func TestInvokeMalformedResponse(t *testing.T) {
	srv := agentServer(t, `{"schema": `)
	defer srv.Close()

	r := New("recon-remote", srv.URL)
	if _, err := r.Invoke(t.Context(), testInvocation()); err == nil {
		t.Fatal("expected an error for a truncated body")
	}
}

func TestInvokeUnavailable(t *testing.T) {
	r := New("recon-remote", "")
	_, err := r.Invoke(t.Context(), testInvocation())
	if !errors.Is(err, finding.ErrAgentUnavailable) {
		t.Errorf("err = %v", err)
	}
}

func TestInvokeChargesBudget(t *testing.T) {
	srv := agentServer(t, `{"schema":"recon/v1","payload":{}}`)
	defer srv.Close()

	r := New("recon-remote", srv.URL)
	r.Cost = 3

	inv := testInvocation()
	inv.Budget = budget.NewTracker(100, 5)

	if _, err := r.Invoke(t.Context(), inv); err != nil {
		t.Fatal(err)
	}
	snap := inv.Budget.Snapshot()
	if snap.UsedThisRun != 3 {
		t.Errorf("used = %d, want cost charged up front", snap.UsedThisRun)
	}

	// The remaining allowance cannot cover another invocation.
	if _, err := r.Invoke(t.Context(), inv); !errors.Is(err, budget.ErrRunExhausted) {
		t.Errorf("err = %v, want run exhaustion", err)
	}
}
