package ui

import "github.com/charmbracelet/lipgloss"

// Color palette shared across CLI output.
var (
	// Brand colors
	Primary   = lipgloss.Color("#E94560") // Crimson - brand color
	Secondary = lipgloss.Color("#00D4AA") // Cyan/Teal

	// Severity colors
	Critical = lipgloss.Color("#FF0000")
	High     = lipgloss.Color("#FF6B6B")
	Medium   = lipgloss.Color("#FFD93D")
	Low      = lipgloss.Color("#6BCB77")
	Info     = lipgloss.Color("#4D96FF")

	// Status colors
	Success = lipgloss.Color("#00D26A")
	Warning = lipgloss.Color("#FFB800")
	Error   = lipgloss.Color("#FF3838")
	Muted   = lipgloss.Color("#6B7280")
)

// Pre-configured styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(Primary).
			Padding(0, 1)

	BannerStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true)

	VersionStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Bold(true)

	SectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Bold(true).
			MarginTop(1)

	ConfigLabelStyle = lipgloss.NewStyle().
				Foreground(Muted).
				Width(15)

	ConfigValueStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FAFAFA"))

	SuccessStyle = lipgloss.NewStyle().Foreground(Success).Bold(true)
	WarningStyle = lipgloss.NewStyle().Foreground(Warning)
	ErrorStyle   = lipgloss.NewStyle().Foreground(Error).Bold(true)
	MutedStyle   = lipgloss.NewStyle().Foreground(Muted)
)

// severityStyles maps normalized severity names to their styles.
var severityStyles = map[string]lipgloss.Style{
	"critical": lipgloss.NewStyle().Foreground(Critical).Bold(true),
	"high":     lipgloss.NewStyle().Foreground(High).Bold(true),
	"medium":   lipgloss.NewStyle().Foreground(Medium),
	"low":      lipgloss.NewStyle().Foreground(Low),
	"info":     lipgloss.NewStyle().Foreground(Info),
}

// SeverityStyle returns the style for a severity name, falling back to
// the info style.
func SeverityStyle(severity string) lipgloss.Style {
	if s, ok := severityStyles[severity]; ok {
		return s
	}
	return severityStyles["info"]
}
