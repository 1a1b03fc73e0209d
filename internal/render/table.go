// Package render turns a decoded field value into a table of strings:
// column names, row labels, cells and a one-line description.
package render

import (
	"fmt"
	"strconv"

	"github.com/robert-malhotra/zsimview/internal/dtype"
)

// SumRow labels the row of column sums in an array-of-compound table.
const SumRow = "SUM"

// Table is a rendered field.
type Table struct {
	Columns []string
	Rows    []string   // row labels
	Cells   [][]string // Cells[row][column]
	Info    string
}

// NumRows returns the number of data rows.
func (t *Table) NumRows() int { return len(t.Rows) }

// NumColumns returns the number of columns.
func (t *Table) NumColumns() int { return len(t.Columns) }

// Cell returns the cell at row r and column c, or "" outside the table.
func (t *Table) Cell(r, c int) string {
	if r < 0 || r >= len(t.Cells) || c < 0 || c >= len(t.Cells[r]) {
		return ""
	}
	return t.Cells[r][c]
}

// Build renders the value of field name. Scalars and scalar compounds
// produce a single row. Arrays of compounds get a SUM row followed by one
// row per index of the first axis. Other arrays are listed one element per
// row, flattened when they have more than one dimension.
func Build(name string, v dtype.Value) *Table {
	switch {
	case v.Kind == dtype.Compound:
		return buildCompound(name, v)
	case v.Kind == dtype.Array && v.ElemKind() == dtype.Compound:
		return buildCompoundArray(name, v)
	case v.Kind == dtype.Array:
		return buildArray(name, v)
	}
	return &Table{
		Columns: []string{"value"},
		Rows:    []string{"0"},
		Cells:   [][]string{{Format(v)}},
		Info:    fmt.Sprintf("Field '%s': scalar value", name),
	}
}

func buildCompound(name string, v dtype.Value) *Table {
	t := &Table{
		Columns: v.FieldNames(),
		Rows:    []string{"0"},
		Cells:   [][]string{make([]string, len(v.Fields))},
		Info:    fmt.Sprintf("Field '%s': scalar compound with %d fields", name, len(v.Fields)),
	}
	for j, f := range v.Fields {
		t.Cells[0][j] = Format(f.Value)
	}
	return t
}

func buildCompoundArray(name string, v dtype.Value) *Table {
	flat := v.Flatten()
	columns := flat[0].FieldNames()
	n := v.Len()

	t := &Table{
		Columns: columns,
		Rows:    make([]string, 0, n+1),
		Cells:   make([][]string, n+1),
		Info:    fmt.Sprintf("Field '%s': SUM row + %d entries", name, n),
	}
	t.Rows = append(t.Rows, SumRow)
	for i := 0; i < n; i++ {
		t.Rows = append(t.Rows, strconv.Itoa(i))
	}
	for r := range t.Cells {
		t.Cells[r] = make([]string, len(columns))
	}

	for j, col := range columns {
		rows := make([]dtype.Value, n)
		if v.Rank() == 0 {
			rows[0], _ = flat[0].Field(col)
		} else {
			proj := project(v, col)
			for i := range rows {
				rows[i] = proj.Index(i)
			}
		}
		if sum, ok := sumRows(rows); ok {
			t.Cells[0][j] = Format(sum)
		}
		for i, r := range rows {
			t.Cells[i+1][j] = Format(r)
		}
	}
	return t
}

func buildArray(name string, v dtype.Value) *Table {
	flat := v.Flatten()
	t := &Table{
		Columns: []string{"value"},
		Rows:    make([]string, len(flat)),
		Cells:   make([][]string, len(flat)),
	}
	for i, e := range flat {
		t.Rows[i] = strconv.Itoa(i)
		t.Cells[i] = []string{Format(e)}
	}
	if v.Rank() <= 1 {
		t.Info = fmt.Sprintf("Field '%s': 1D array of length %d", name, len(flat))
	} else {
		t.Info = fmt.Sprintf("Field '%s': %dD array, flattened to length %d", name, v.Rank(), len(flat))
	}
	return t
}

// FieldIndex returns the position of name in fields, or -1.
func FieldIndex(fields []string, name string) int {
	if name == "" {
		return -1
	}
	for i, f := range fields {
		if f == name {
			return i
		}
	}
	return -1
}
