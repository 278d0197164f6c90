package report

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var markdownTemplate = `# Bug Bounty Report - {{ .Target }}

**Generated:** {{ .Timestamp.Format "2006-01-02T15:04:05Z07:00" }}
**Target URL:** {{ .TargetURL }}
**Profile:** {{ .Profile }}
{{- if .Note }}
**Note:** {{ .Note }}
{{- end }}

## Summary

| Metric | Count |
|--------|-------|
| Agents Run | {{ .Summary.AgentsRun }} |
| Agents Failed | {{ .Summary.AgentsFailed }} |
| Agents Skipped | {{ .Summary.AgentsSkipped }} |
| Findings | {{ .Summary.Findings }} |
| Errors | {{ .Summary.ErrorCount }} |

## Technologies Detected

{{ if .Summary.TechDetected }}{{ join ", " .Summary.TechDetected }}{{ else }}None detected{{ end }}
{{ range $category, $results := .ByCategory }}
## {{ titlecase $category }}
{{ range $results }}
### {{ .Agent }} ({{ .Status }})
{{ if .Error }}
_Failed: {{ .Error }}_
{{ end }}
{{- if .SkipReason }}
_Skipped: {{ .SkipReason }}_
{{ end }}
{{- if .Findings }}
| Severity | Type | Locator |
|----------|------|---------|
{{- range .Findings }}
| {{ severityIcon (toString .Severity) }} {{ .Severity }} | {{ .Type }} | {{ .Locator }} |
{{- end }}
{{ end }}
{{- end }}
{{- end }}
{{- if .Errors }}
## Errors
{{ range .Errors }}
- **{{ .Stage }}**: {{ .Error }}
{{- end }}
{{ end }}
{{- if .Budget }}
## Budget

{{ .Budget.UsedThisRun }}/{{ .Budget.MaxPerRun }} requests this run, {{ .Budget.UsedThisMinute }}/{{ .Budget.MaxPerMinute }} in the last window.
{{ end }}`

var severityIcons = map[string]string{
	"critical": "🔴",
	"high":     "🟠",
	"medium":   "🟡",
	"low":      "🔵",
	"info":     "⚪",
}

func tmplSeverityIcon(sev string) string {
	if icon, ok := severityIcons[strings.ToLower(sev)]; ok {
		return icon
	}
	return "⚪"
}

func markdownFuncs() template.FuncMap {
	funcs := sprig.TxtFuncMap()
	caser := cases.Title(language.English)
	funcs["titlecase"] = caser.String
	funcs["severityIcon"] = tmplSeverityIcon
	return funcs
}

// RenderMarkdown produces the human-readable Markdown summary.
func RenderMarkdown(r Report) (string, error) {
	tmpl, err := template.New("markdown").Funcs(markdownFuncs()).Parse(markdownTemplate)
	if err != nil {
		return "", fmt.Errorf("parse markdown template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, &r); err != nil {
		return "", fmt.Errorf("execute markdown template: %w", err)
	}
	return buf.String(), nil
}
