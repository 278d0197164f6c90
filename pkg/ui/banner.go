package ui

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/bountyswarm/bountyswarm/pkg/defaults"
	"github.com/bountyswarm/bountyswarm/pkg/report"
)

// Version information - these can be overridden at build time via ldflags:
// go build -ldflags "-X github.com/bountyswarm/bountyswarm/pkg/ui.Version=1.0.0"
var (
	Version   = defaults.Version
	BuildDate = "dev"
	Commit    = "dev"
)

// Global UI state
var (
	silentMode  bool
	noColorMode bool
	uiMu        sync.RWMutex
)

// SetSilent enables or disables silent mode (suppresses most output)
func SetSilent(silent bool) {
	uiMu.Lock()
	defer uiMu.Unlock()
	silentMode = silent
}

// IsSilent returns whether silent mode is enabled
func IsSilent() bool {
	uiMu.RLock()
	defer uiMu.RUnlock()
	return silentMode
}

// SetNoColor disables colored output
func SetNoColor(noColor bool) {
	uiMu.Lock()
	defer uiMu.Unlock()
	noColorMode = noColor
	if noColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

const bannerArt = `
   __                       __
  / /  ___  __ _____  ___  / /___ _____    _____ ___
 / _ \/ _ \/ // / _ \/ __/ / / _ ` + "`" + `/ __/ |/|/ / _ ` + "`" + `/ _ \
/_.__/\___/\_,_/_//_/\__/ /_/\_, /_/  |__,__/\_,_/_//_/
                            /___/
`

// PrintBanner writes the startup banner to stderr.
func PrintBanner() {
	if IsSilent() {
		return
	}
	fmt.Fprintln(os.Stderr, BannerStyle.Render(strings.TrimRight(bannerArt, "\n")))
	fmt.Fprintf(os.Stderr, "  %s %s\n\n",
		MutedStyle.Render(defaults.ToolName),
		VersionStyle.Render("v"+Version))
}

// PrintConfig writes the resolved run configuration to stderr.
func PrintConfig(target, url, profileName string, dryRun bool) {
	if IsSilent() {
		return
	}
	rows := []struct{ label, value string }{
		{"Target", target},
		{"URL", url},
		{"Profile", profileName},
	}
	for _, row := range rows {
		fmt.Fprintf(os.Stderr, "%s %s\n",
			ConfigLabelStyle.Render(row.label),
			ConfigValueStyle.Render(row.value))
	}
	if dryRun {
		fmt.Fprintf(os.Stderr, "%s %s\n",
			ConfigLabelStyle.Render("Mode"),
			WarningStyle.Render("dry run (no requests)"))
	}
	fmt.Fprintln(os.Stderr)
}

// PrintSummary writes the end-of-run summary to stderr.
func PrintSummary(rep report.Report, paths report.Paths, evidenceZip string) {
	if IsSilent() {
		return
	}
	if rep.Summary.ErrorCount > 0 {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render(
			Icon("⚠️", "[!]")+" "+failureHeadline(rep)))
	} else {
		fmt.Fprintln(os.Stderr, SuccessStyle.Render(
			Icon("✅", "[+]")+" SWARM COMPLETE"))
	}

	fmt.Fprintln(os.Stderr, SectionStyle.Render("Summary"))
	fmt.Fprintf(os.Stderr, "  Agents: %d run, %d failed, %d skipped\n",
		rep.Summary.AgentsRun, rep.Summary.AgentsFailed, rep.Summary.AgentsSkipped)
	fmt.Fprintf(os.Stderr, "  Findings: %d\n", rep.Summary.Findings)
	printSeverities(rep.Summary.SeverityCounts)
	if len(rep.Summary.TechDetected) > 0 {
		fmt.Fprintf(os.Stderr, "  Tech: %s\n", strings.Join(rep.Summary.TechDetected, ", "))
	}

	fmt.Fprintln(os.Stderr, SectionStyle.Render("Artifacts"))
	fmt.Fprintf(os.Stderr, "  %s Report: %s\n", Icon("💾", "[>]"), paths.JSON)
	fmt.Fprintf(os.Stderr, "  %s Markdown: %s\n", Icon("📝", "[>]"), paths.Markdown)
	fmt.Fprintf(os.Stderr, "  %s HTML: %s\n", Icon("🌐", "[>]"), paths.HTML)
	if evidenceZip != "" {
		fmt.Fprintf(os.Stderr, "  %s Evidence bundle: %s\n", Icon("📦", "[>]"), evidenceZip)
	}
}

// failureHeadline names the first failed stage so the operator knows
// where to start without opening the report.
func failureHeadline(rep report.Report) string {
	line := "SWARM COMPLETED WITH ERRORS"
	if len(rep.Errors) > 0 {
		line += fmt.Sprintf(" (first: %s)", rep.Errors[0].Stage)
	}
	return line
}

// printSeverities lists nonzero severity counts, worst first.
func printSeverities(counts map[string]int) {
	order := []string{"critical", "high", "medium", "low", "info"}
	var extra []string
	for sev := range counts {
		known := false
		for _, o := range order {
			if sev == o {
				known = true
				break
			}
		}
		if !known {
			extra = append(extra, sev)
		}
	}
	sort.Strings(extra)
	for _, sev := range append(order, extra...) {
		if n := counts[sev]; n > 0 {
			fmt.Fprintf(os.Stderr, "    %s: %d\n", SeverityStyle(sev).Render(sev), n)
		}
	}
}

// PrintWarning writes a warning line to stderr.
func PrintWarning(msg string) {
	if IsSilent() {
		return
	}
	fmt.Fprintf(os.Stderr, "%s %s\n", WarningStyle.Render(Icon("⚠️", "[!]")), msg)
}

// PrintError writes an error line to stderr. Errors print even in
// silent mode.
func PrintError(msg string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", ErrorStyle.Render(Icon("❌", "[x]")), msg)
}
