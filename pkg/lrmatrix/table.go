package lrmatrix

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FeatureColumn is the header of the row-label column the simulator expects first.
const FeatureColumn = "Feature"

// Row is one feature and its LR value per bucket column. NaN marks a missing value.
type Row struct {
	Feature string
	Values  []float64
}

// Table is an immutable feature × bucket matrix. Accessors return copies.
type Table struct {
	header []string
	rows   []Row
}

// NewTable builds a table from a header (label column first) and rows whose value count
// matches the number of bucket columns.
func NewTable(header []string, rows []Row) (*Table, error) {
	if len(header) == 0 {
		return nil, fmt.Errorf("table header must contain at least the label column")
	}
	width := len(header) - 1
	for i, r := range rows {
		if len(r.Values) != width {
			return nil, fmt.Errorf("row %d (%q) has %d values, expected %d", i, r.Feature, len(r.Values), width)
		}
	}
	return &Table{header: append([]string(nil), header...), rows: copyRows(rows)}, nil
}

// Header returns every column name, label column included.
func (t *Table) Header() []string {
	return append([]string(nil), t.header...)
}

// Columns returns the bucket column names.
func (t *Table) Columns() []string {
	return append([]string(nil), t.header[1:]...)
}

// Rows returns a copy of the data rows.
func (t *Table) Rows() []Row {
	return copyRows(t.rows)
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Value returns the cell for a feature label and bucket column.
func (t *Table) Value(feature, column string) (float64, bool) {
	col := -1
	for i, name := range t.header[1:] {
		if name == column {
			col = i
			break
		}
	}
	if col < 0 {
		return 0, false
	}
	for _, r := range t.rows {
		if r.Feature == feature {
			return r.Values[col], true
		}
	}
	return 0, false
}

// Clamp returns a new table with every present value raised to at least floor.
func (t *Table) Clamp(floor float64) *Table {
	rows := copyRows(t.rows)
	for _, r := range rows {
		for j, v := range r.Values {
			if !math.IsNaN(v) && v < floor {
				r.Values[j] = floor
			}
		}
	}
	return &Table{header: t.Header(), rows: rows}
}

// Records renders the header and rows as string records, values formatted by FormatValue.
func (t *Table) Records() [][]string {
	records := make([][]string, 0, len(t.rows)+1)
	records = append(records, t.Header())
	for _, r := range t.rows {
		rec := make([]string, 0, len(r.Values)+1)
		rec = append(rec, r.Feature)
		for _, v := range r.Values {
			rec = append(rec, FormatValue(v))
		}
		records = append(records, rec)
	}
	return records
}

// FormatValue renders a cell in its shortest exact form, keeping a decimal point on integral
// values ("1.0", "2.5", "0.01"). Missing values render empty.
func FormatValue(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !math.IsInf(v, 0) && !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func copyRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = Row{Feature: r.Feature, Values: append([]float64(nil), r.Values...)}
	}
	return out
}
