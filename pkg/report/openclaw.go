package report

// OpenClawVersion is the schema version emitted in summaries.
const OpenClawVersion = "1.0"

// VulnScanSummary summarizes the vulnerability phase inside an
// OpenClaw summary. It is null when vulnerability probing did not run.
type VulnScanSummary struct {
	Reports       Paths `json:"reports"`
	TotalFindings int   `json:"total_findings"`
}

// OpenClawSummary is the machine-readable run summary consumed by
// downstream automation. Its shape is fixed: every key is present on
// every run, including dry runs and runs with no findings.
type OpenClawSummary struct {
	SchemaVersion string           `json:"schema_version"`
	Target        string           `json:"target"`
	Profile       string           `json:"profile"`
	Reports       Paths            `json:"reports"`
	EvidenceZip   string           `json:"evidence_zip"`
	TechDetected  []string         `json:"tech_detected"`
	VulnScan      *VulnScanSummary `json:"vuln_scan"`
	FocusTarget   string           `json:"focus_target"`
}

// BuildOpenClaw assembles the summary from a finalized report and its
// written artifacts. TechDetected is always a non-nil slice so the
// JSON key serializes as an array.
func BuildOpenClaw(r Report, paths Paths, evidenceZip, focusTarget string, vuln *VulnScanSummary) OpenClawSummary {
	tech := r.Summary.TechDetected
	if tech == nil {
		tech = []string{}
	}
	return OpenClawSummary{
		SchemaVersion: OpenClawVersion,
		Target:        r.Target,
		Profile:       r.Profile,
		Reports:       paths,
		EvidenceZip:   evidenceZip,
		TechDetected:  tech,
		VulnScan:      vuln,
		FocusTarget:   focusTarget,
	}
}
