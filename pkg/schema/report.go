package schema

// ReportEntry records the validation outcome for one agent payload.
type ReportEntry struct {
	Agent      string      `json:"agent"`
	Category   string      `json:"category"`
	Schema     string      `json:"schema"`
	Status     Status      `json:"status"`
	Violations []Violation `json:"violations,omitempty"`
	Repairs    []string    `json:"repairs,omitempty"`
}

// Summary is the run-level tally of validation outcomes.
type Summary struct {
	Valid    int `json:"valid"`
	Repaired int `json:"repaired"`
	Invalid  int `json:"invalid"`
}

// Report accumulates one entry per validated agent payload plus the
// run-level summary. It is persisted verbatim into the run manifest.
type Report struct {
	Entries []ReportEntry `json:"entries"`
	Summary Summary       `json:"summary"`
}

// Add appends an entry and updates the summary counts.
func (r *Report) Add(entry ReportEntry) {
	r.Entries = append(r.Entries, entry)
	switch entry.Status {
	case StatusValid:
		r.Summary.Valid++
	case StatusRepaired:
		r.Summary.Repaired++
	case StatusInvalid:
		r.Summary.Invalid++
	}
}

// HasInvalid reports whether any payload remained invalid. In strict
// mode this makes the run's exit status nonzero.
func (r *Report) HasInvalid() bool {
	return r.Summary.Invalid > 0
}
