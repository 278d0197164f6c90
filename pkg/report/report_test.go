package report

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bountyswarm/bountyswarm/pkg/finding"
	"github.com/bountyswarm/bountyswarm/pkg/target"
)

func testTarget(t *testing.T) target.Target {
	t.Helper()
	tgt, err := target.Resolve("example.com", "")
	require.NoError(t, err)
	return tgt
}

func sampleResults() []finding.AgentResult {
	return []finding.AgentResult{
		{Agent: "recon-local", Category: "recon", Status: finding.StatusOK},
		{Agent: "crawl-local", Category: "crawl", Status: finding.StatusError, Error: "timeout"},
		{Agent: "xss-local", Category: "xss", Status: finding.StatusOK, Findings: []finding.Finding{
			{Type: "xss", Severity: finding.Medium, Locator: "https://example.com/?q="},
			{Type: "xss", Severity: finding.High, Locator: "https://example.com/search"},
		}},
		{Agent: "sqli-local", Category: "sqli", Status: finding.StatusSkipped, SkipReason: "requires --authorized"},
	}
}

func TestBuilderSummary(t *testing.T) {
	b := NewBuilder("run-1", testTarget(t), "cautious")
	b.SetClock(func() time.Time { return time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC) })
	for _, res := range sampleResults() {
		b.AddResult(res)
	}
	b.AddTech("next.js", "react", "next.js")
	b.AddError("packaging", errors.New("zip failed"))
	b.AddWarning("focus override in effect")

	r := b.Build()

	assert.Equal(t, "run-1", r.RunID)
	assert.Equal(t, "example.com", r.Target)
	assert.Equal(t, "cautious", r.Profile)

	assert.Equal(t, 2, r.Summary.AgentsRun)
	assert.Equal(t, 1, r.Summary.AgentsFailed)
	assert.Equal(t, 1, r.Summary.AgentsSkipped)
	assert.Equal(t, 2, r.Summary.Findings)
	assert.Equal(t, 1, r.Summary.SeverityCounts["high"], "severity counts")
	assert.Equal(t, 1, r.Summary.SeverityCounts["medium"])
	assert.Zero(t, r.Summary.SeverityCounts["critical"])
	assert.Equal(t, []string{"next.js", "react"}, r.Summary.TechDetected)

	// Failed agent plus explicit packaging error.
	assert.Equal(t, 2, r.Summary.ErrorCount)
	assert.Len(t, r.Errors, 2)
	assert.Equal(t, []string{"focus override in effect"}, r.Warnings)
}

func TestBuilderRebuildReflectsLaterErrors(t *testing.T) {
	b := NewBuilder("run-1", testTarget(t), "cautious")
	first := b.Build()
	assert.Zero(t, first.Summary.ErrorCount)

	b.AddError("summary_schema", errors.New("invalid"))
	second := b.Build()
	assert.Equal(t, 1, second.Summary.ErrorCount)
}

func TestBuildEmptyArraysStayNonNull(t *testing.T) {
	r := NewBuilder("run-1", testTarget(t), "passive").Build()
	data, err := json.Marshal(r)
	require.NoError(t, err)
	s := string(data)
	assert.Contains(t, s, `"results":[]`)
	assert.Contains(t, s, `"errors":[]`)
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	b := NewBuilder("run-1", testTarget(t), "cautious")
	b.SetClock(func() time.Time { return time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC) })
	for _, res := range sampleResults() {
		b.AddResult(res)
	}
	b.AddTech("react")
	r := b.Build()

	paths, err := Write(dir, r)
	require.NoError(t, err)

	wantBase := "swarm_report_example.com_20260314_092653"
	assert.Equal(t, filepath.Join(dir, wantBase+".json"), paths.JSON)
	assert.Equal(t, filepath.Join(dir, wantBase+".md"), paths.Markdown)
	assert.Equal(t, filepath.Join(dir, wantBase+".html"), paths.HTML)

	data, err := os.ReadFile(paths.JSON)
	require.NoError(t, err)
	var reloaded Report
	require.NoError(t, json.Unmarshal(data, &reloaded))
	assert.Equal(t, r.Summary, reloaded.Summary)
}

func TestRenderMarkdown(t *testing.T) {
	b := NewBuilder("run-1", testTarget(t), "cautious")
	for _, res := range sampleResults() {
		b.AddResult(res)
	}
	b.AddTech("next.js")
	b.AddError("packaging", errors.New("zip failed"))
	r := b.Build()

	md, err := RenderMarkdown(r)
	require.NoError(t, err)

	assert.Contains(t, md, "example.com")
	assert.Contains(t, md, "next.js")
	assert.Contains(t, md, "Xss", "category headings are title-cased")
	assert.Contains(t, md, "zip failed")
	assert.Contains(t, md, "requires --authorized")
}

func TestRenderMarkdownDryRunNote(t *testing.T) {
	b := NewBuilder("run-1", testTarget(t), "passive")
	b.SetDryRun()
	md, err := RenderMarkdown(b.Build())
	require.NoError(t, err)
	assert.Contains(t, md, NoteDryRun)
}

func TestRenderHTML(t *testing.T) {
	b := NewBuilder("run-1", testTarget(t), "cautious")
	for _, res := range sampleResults() {
		b.AddResult(res)
	}
	r := b.Build()

	html, err := RenderHTML(r)
	require.NoError(t, err)
	assert.Contains(t, html, "<html")
	assert.Contains(t, html, "example.com")
	// Agent error strings pass through the HTML escaper.
	b2 := NewBuilder("run-2", testTarget(t), "cautious")
	b2.AddResult(finding.AgentResult{
		Agent: "crawl-local", Category: "crawl",
		Status: finding.StatusError, Error: `<script>alert(1)</script>`,
	})
	html2, err := RenderHTML(b2.Build())
	require.NoError(t, err)
	assert.NotContains(t, html2, "<script>alert(1)</script>")
}

func TestBuildOpenClaw(t *testing.T) {
	b := NewBuilder("run-1", testTarget(t), "cautious")
	for _, res := range sampleResults() {
		b.AddResult(res)
	}
	b.AddTech("react")
	r := b.Build()
	paths := Paths{JSON: "r.json", Markdown: "r.md", HTML: "r.html"}

	t.Run("with vuln scan", func(t *testing.T) {
		sum := BuildOpenClaw(r, paths, "evidence_bundle.zip", "example.com", &VulnScanSummary{
			Reports:       paths,
			TotalFindings: 2,
		})
		assert.Equal(t, OpenClawVersion, sum.SchemaVersion)
		assert.Equal(t, "example.com", sum.Target)
		require.NotNil(t, sum.VulnScan)
		assert.Equal(t, 2, sum.VulnScan.TotalFindings)
	})

	t.Run("fixed key shape", func(t *testing.T) {
		// Every key appears on every run, vuln_scan as explicit null and
		// tech_detected as an array even when nothing was detected.
		bare := NewBuilder("run-2", testTarget(t), "passive").Build()
		sum := BuildOpenClaw(bare, paths, "", "", nil)
		data, err := json.Marshal(sum)
		require.NoError(t, err)

		for _, key := range []string{
			`"schema_version"`, `"target"`, `"profile"`, `"reports"`,
			`"evidence_zip"`, `"tech_detected"`, `"vuln_scan"`, `"focus_target"`,
		} {
			assert.Contains(t, string(data), key)
		}
		assert.True(t, strings.Contains(string(data), `"vuln_scan":null`), "vuln_scan serializes as null: %s", data)
		assert.Contains(t, string(data), `"tech_detected":[]`)
	})
}
