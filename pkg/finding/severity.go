package finding

// Severity represents the severity level of a security finding.
// All values are lowercase strings; writers that need other casings
// convert at render time.
type Severity string

const (
	// Critical represents immediate system compromise (RCE, auth bypass).
	Critical Severity = "critical"

	// High represents significant impact requiring prompt fix (SQLi, stored XSS).
	High Severity = "high"

	// Medium represents moderate impact (reflected XSS, IDOR on low-value objects).
	Medium Severity = "medium"

	// Low represents limited impact (verbose errors, minor info leak).
	Low Severity = "low"

	// Info represents informational findings with no direct security impact.
	Info Severity = "info"
)

// Levels lists all severities from most to least severe. Report
// aggregation iterates this slice so per-severity counts always appear
// in a stable order.
func Levels() []Severity {
	return []Severity{Critical, High, Medium, Low, Info}
}

// IsValid reports whether s is a recognized severity level.
func (s Severity) IsValid() bool {
	switch s {
	case Critical, High, Medium, Low, Info:
		return true
	}
	return false
}

// Score returns a numeric score for sorting and comparison.
// Critical=5, High=4, Medium=3, Low=2, Info=1, Unknown=0.
func (s Severity) Score() int {
	switch s {
	case Critical:
		return 5
	case High:
		return 4
	case Medium:
		return 3
	case Low:
		return 2
	case Info:
		return 1
	default:
		return 0
	}
}

// String returns the severity as a string.
func (s Severity) String() string {
	return string(s)
}

// Normalize maps arbitrary-cased severity strings (agents have emitted
// "CRITICAL", "High", and "high" in the wild) onto the canonical value.
// Unrecognized input normalizes to Medium, the middle of the scale.
func Normalize(raw string) Severity {
	switch Severity(lower(raw)) {
	case Critical:
		return Critical
	case High:
		return High
	case Medium:
		return Medium
	case Low:
		return Low
	case Info:
		return Info
	}
	return Medium
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + 'a' - 'A'
		}
	}
	return string(b)
}
