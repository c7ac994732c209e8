package report

import "github.com/charmbracelet/lipgloss"

var (
	salmonPink  = lipgloss.Color("#FFB3BA")
	mintGreen   = lipgloss.Color("#A8E6CF")
	mutedGray   = lipgloss.Color("#6B7280")
	brightWhite = lipgloss.Color("#F9FAFB")
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(salmonPink).
			Bold(true)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(mutedGray)

	headerCellStyle = lipgloss.NewStyle().
			Foreground(salmonPink).
			Bold(true).
			PaddingRight(2)

	cellStyle = lipgloss.NewStyle().
			Foreground(brightWhite).
			PaddingRight(2)

	goodStyle = lipgloss.NewStyle().
			Foreground(mintGreen).
			PaddingRight(2)

	badStyle = lipgloss.NewStyle().
			Foreground(salmonPink).
			PaddingRight(2)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedGray).
			Padding(0, 1)
)
