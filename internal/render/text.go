package render

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	labelStyle  = lipgloss.NewStyle().Faint(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// rowsWithLabels prepends each row's label to its cells.
func rowsWithLabels(t *Table) [][]string {
	rows := make([][]string, len(t.Cells))
	for i, cells := range t.Cells {
		rows[i] = append([]string{t.Rows[i]}, cells...)
	}
	return rows
}

// WriteText writes the info line and a bordered table whose first column
// holds the row labels.
func WriteText(w io.Writer, t *Table) error {
	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(append([]string{""}, t.Columns...)...).
		Rows(rowsWithLabels(t)...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 0:
				return labelStyle
			}
			return cellStyle
		})
	_, err := fmt.Fprintf(w, "%s\n%s\n", t.Info, tbl.Render())
	return err
}

// WriteTSV writes a header line and one tab-separated line per row. Tabs
// and newlines inside cells become spaces.
func WriteTSV(w io.Writer, t *Table) error {
	clean := strings.NewReplacer("\t", " ", "\n", " ")
	line := func(fields []string) error {
		for i := range fields {
			fields[i] = clean.Replace(fields[i])
		}
		_, err := io.WriteString(w, strings.Join(fields, "\t")+"\n")
		return err
	}
	if err := line(append([]string{""}, t.Columns...)); err != nil {
		return err
	}
	for _, row := range rowsWithLabels(t) {
		if err := line(row); err != nil {
			return err
		}
	}
	return nil
}

// WriteCSV writes the table as CSV with a header record.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{""}, t.Columns...)); err != nil {
		return err
	}
	if err := cw.WriteAll(rowsWithLabels(t)); err != nil {
		return err
	}
	return cw.Error()
}

// Writer returns the writer for format: "table", "tsv" or "csv".
func Writer(format string) (func(io.Writer, *Table) error, error) {
	switch format {
	case "", "table":
		return WriteText, nil
	case "tsv":
		return WriteTSV, nil
	case "csv":
		return WriteCSV, nil
	}
	return nil, fmt.Errorf("unknown format %q: want table, tsv or csv", format)
}
