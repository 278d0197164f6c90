package report

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Bug Bounty Report - {{ .Target }}</title>
<style>
body { font-family: -apple-system, "Segoe UI", Roboto, sans-serif; margin: 2rem auto; max-width: 960px; color: #1a1a2e; }
h1 { border-bottom: 2px solid #e94560; padding-bottom: .5rem; }
table { border-collapse: collapse; width: 100%; margin: 1rem 0; }
th, td { border: 1px solid #ddd; padding: .5rem .75rem; text-align: left; }
th { background: #f4f4f8; }
.status-ok { color: #2e7d32; }
.status-error { color: #c62828; }
.status-skipped { color: #757575; }
.sev-critical { color: #b71c1c; font-weight: bold; }
.sev-high { color: #e65100; font-weight: bold; }
.sev-medium { color: #f9a825; }
.sev-low { color: #1565c0; }
.sev-info { color: #757575; }
.meta { color: #555; }
</style>
</head>
<body>
<h1>Bug Bounty Report - {{ .Target }}</h1>
<p class="meta">
Generated: {{ .Timestamp.Format "2006-01-02T15:04:05Z07:00" }}<br>
Target URL: {{ .TargetURL }}<br>
Profile: {{ .Profile }}
{{- if .Note }}<br>Note: {{ .Note }}{{ end }}
</p>

<h2>Summary</h2>
<table>
<tr><th>Metric</th><th>Count</th></tr>
<tr><td>Agents Run</td><td>{{ .Summary.AgentsRun }}</td></tr>
<tr><td>Agents Failed</td><td>{{ .Summary.AgentsFailed }}</td></tr>
<tr><td>Agents Skipped</td><td>{{ .Summary.AgentsSkipped }}</td></tr>
<tr><td>Findings</td><td>{{ .Summary.Findings }}</td></tr>
<tr><td>Errors</td><td>{{ .Summary.ErrorCount }}</td></tr>
</table>

<h2>Technologies Detected</h2>
<p>{{ if .Summary.TechDetected }}{{ joinComma .Summary.TechDetected }}{{ else }}None detected{{ end }}</p>
{{ range $category, $results := .ByCategory }}
<h2>{{ titlecase $category }}</h2>
{{ range $results }}
<h3>{{ .Agent }} <span class="status-{{ .Status }}">({{ .Status }})</span></h3>
{{- if .Error }}<p><em>Failed: {{ .Error }}</em></p>{{ end }}
{{- if .SkipReason }}<p><em>Skipped: {{ .SkipReason }}</em></p>{{ end }}
{{- if .Findings }}
<table>
<tr><th>Severity</th><th>Type</th><th>Locator</th><th>Detail</th></tr>
{{- range .Findings }}
<tr><td class="sev-{{ .Severity }}">{{ .Severity }}</td><td>{{ .Type }}</td><td>{{ .Locator }}</td><td>{{ .Detail }}</td></tr>
{{- end }}
</table>
{{- end }}
{{- end }}
{{- end }}
{{- if .Errors }}
<h2>Errors</h2>
<ul>
{{- range .Errors }}
<li><strong>{{ .Stage }}</strong>: {{ .Error }}</li>
{{- end }}
</ul>
{{- end }}
</body>
</html>
`

// RenderHTML produces the HTML rendition of the report. All dynamic
// values pass through html/template escaping.
func RenderHTML(r Report) (string, error) {
	caser := cases.Title(language.English)
	funcs := template.FuncMap{
		"titlecase": caser.String,
		"joinComma": func(items []string) string { return strings.Join(items, ", ") },
	}
	tmpl, err := template.New("html").Funcs(funcs).Parse(htmlTemplate)
	if err != nil {
		return "", fmt.Errorf("parse html template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, &r); err != nil {
		return "", fmt.Errorf("execute html template: %w", err)
	}
	return buf.String(), nil
}
