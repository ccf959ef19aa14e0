package report

import "github.com/charmbracelet/lipgloss"

var (
	primary = lipgloss.Color("#7D56F4")
	danger  = lipgloss.Color("#FF3838")
	muted   = lipgloss.Color("#6B7280")
	good    = lipgloss.Color("#00D26A")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(primary).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primary).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().Padding(0, 1)

	anomalousStyle = cellStyle.Foreground(danger)

	recommendedStyle = cellStyle.Foreground(good).Bold(true)

	borderStyle = lipgloss.NewStyle().Foreground(muted)
)
