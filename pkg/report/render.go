package report

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var columns = []string{"Task", "Episodes", "Success", "Reward", "Steps", "Deaths"}

// Render draws the summary as a boxed table for the terminal.
func Render(summary *Summary) string {
	rows := make([][]string, 0, len(summary.Tasks))
	for _, m := range summary.Tasks {
		rows = append(rows, []string{
			m.Task,
			fmt.Sprintf("%d", m.Episodes),
			fmt.Sprintf("%.1f%%", m.SuccessRate*100),
			fmt.Sprintf("%.3f", m.MeanReward),
			fmt.Sprintf("%.1f", m.MeanSteps),
			fmt.Sprintf("%d", m.Deaths),
		})
	}

	widths := make([]int, len(columns))
	for i, c := range columns {
		widths[i] = lipgloss.Width(c)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	lines := []string{renderRow(columns, widths, func(int) lipgloss.Style { return headerCellStyle })}
	for j, row := range rows {
		m := summary.Tasks[j]
		lines = append(lines, renderRow(row, widths, func(col int) lipgloss.Style {
			switch {
			case col == 2 && m.Successes > 0:
				return goodStyle
			case col == 5 && m.Deaths > 0:
				return badStyle
			}
			return cellStyle
		}))
	}

	statusStyle := lipgloss.NewStyle().Foreground(mintGreen)
	if summary.Status != StatusSuccess {
		statusStyle = statusStyle.Foreground(salmonPink)
	}
	header := []string{
		titleStyle.Render("wobenv run " + summary.RunID),
		statusStyle.Render(summary.Status) + subtitleStyle.Render(" in "+summary.Duration.Round(time.Millisecond).String()),
	}
	if summary.Error != "" {
		header = append(header, statusStyle.Render(summary.Error))
	}
	if len(rows) == 0 {
		lines = append(lines, subtitleStyle.Render("no episodes recorded"))
	}

	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		append(append(header, ""), lines...)...,
	))
}

func renderRow(cells []string, widths []int, style func(col int) lipgloss.Style) string {
	rendered := make([]string, len(cells))
	for i, cell := range cells {
		s := style(i)
		// Width includes padding.
		rendered[i] = s.Width(widths[i] + s.GetPaddingRight()).Render(cell)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}
