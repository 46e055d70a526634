package report

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	numberStyle = cellStyle.Align(lipgloss.Right)
	titleStyle  = lipgloss.NewStyle().Bold(true)
)

// RenderText writes r as a fixed-width table. Numeric columns are right
// aligned. A totals row is appended when the report carries totals.
func RenderText(w io.Writer, r *Report) error {
	headers := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		headers[i] = c.Label
	}
	rows := make([][]string, 0, len(r.Rows)+1)
	for _, row := range r.Rows {
		rows = append(rows, formatRow(r.Columns, row))
	}
	if len(r.Totals) > 0 {
		total := formatRow(r.Columns, r.Totals)
		if len(total) > 0 && total[0] == "" {
			total[0] = "TOTAL"
		}
		rows = append(rows, total)
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col < len(r.Columns) && r.Columns[col].Kind != KindText {
				return numberStyle
			}
			return cellStyle
		})
	title := r.Title
	if r.Source != "" {
		title = fmt.Sprintf("%s  (%s)", r.Title, r.Source)
	}
	if _, err := fmt.Fprintln(w, titleStyle.Render(title)); err != nil {
		return err
	}
	if len(r.Rows) == 0 {
		_, err := fmt.Fprintln(w, "(no rows)")
		return err
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func formatRow(cols []Column, row map[string]any) []string {
	cells := make([]string, len(cols))
	for i, c := range cols {
		cells[i] = FormatCell(c.Kind, row[c.Key])
	}
	return cells
}
