// Package clitable renders the tabular output the crater CLI prints for
// "experiment list" and "worker list": a header row styled with
// lipgloss, left-aligned columns padded to the widest cell per column.
//
// Grounded on the lipgloss.Style/JoinVertical/Width usage pattern the
// pack's terminal-UI tools (zulandar-gastown's feed view) use for
// fixed-width layout, adapted here from a live TUI to one-shot stdout
// rendering.
package clitable

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	cellStyle   = lipgloss.NewStyle()
)

// Table is a header row plus data rows, all left-aligned per column.
type Table struct {
	Header []string
	Rows   [][]string
}

// Render returns the table as column-padded, styled text ending in a
// trailing newline, ready to print directly.
func (t Table) Render() string {
	widths := make([]int, len(t.Header))
	for i, h := range t.Header {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(widths) && lipgloss.Width(cell) > widths[i] {
				widths[i] = lipgloss.Width(cell)
			}
		}
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(padRow(t.Header, widths)))
	b.WriteString("\n")
	for _, row := range t.Rows {
		b.WriteString(cellStyle.Render(padRow(row, widths)))
		b.WriteString("\n")
	}
	return b.String()
}

func padRow(row []string, widths []int) string {
	cells := make([]string, len(row))
	for i, cell := range row {
		w := 0
		if i < len(widths) {
			w = widths[i]
		}
		cells[i] = cell + strings.Repeat(" ", w-lipgloss.Width(cell))
	}
	return strings.Join(cells, "  ")
}
