package lrmatrix

import (
	"fmt"
	"math"
)

// Simulator guidance limits for a single LR value
const (
	HighLRWarning = 50.0
	LowLRWarning  = 0.1
)

// ValidationResult reports whether a table meets the simulator's input requirements.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Validate checks the label column name and value positivity, and warns on missing or
// implausible values. It never fails; problems are reported in the result.
func Validate(t *Table) ValidationResult {
	result := ValidationResult{Valid: true, Errors: []string{}, Warnings: []string{}}
	if t == nil {
		result.Errors = append(result.Errors, "No LR matrix to validate")
		result.Valid = false
		return result
	}

	if len(t.header) == 0 || t.header[0] != FeatureColumn {
		result.Errors = append(result.Errors, fmt.Sprintf("First column must be named '%s'", FeatureColumn))
		result.Valid = false
	}
	if len(t.header) == 0 {
		return result
	}

	columns := t.header[1:]
	for j, col := range columns {
		for _, r := range t.rows {
			if r.Values[j] <= 0 {
				result.Errors = append(result.Errors, fmt.Sprintf("Column '%s' contains non-positive values", col))
				result.Valid = false
				break
			}
		}
	}

	if hasMissing(t) {
		result.Warnings = append(result.Warnings, "Matrix contains missing values")
	}

	for j, col := range columns {
		lo, hi, ok := columnRange(t, j)
		if !ok {
			continue
		}
		if hi > HighLRWarning {
			result.Warnings = append(result.Warnings, fmt.Sprintf("Column '%s' has very high LR values (>50)", col))
		}
		if lo < LowLRWarning {
			result.Warnings = append(result.Warnings, fmt.Sprintf("Column '%s' has very low LR values (<0.1)", col))
		}
	}

	return result
}

func hasMissing(t *Table) bool {
	for _, r := range t.rows {
		for _, v := range r.Values {
			if math.IsNaN(v) {
				return true
			}
		}
	}
	return false
}

// columnRange returns the min and max of the present values in column j.
func columnRange(t *Table, j int) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, r := range t.rows {
		v := r.Values[j]
		if math.IsNaN(v) {
			continue
		}
		lo, hi, ok = math.Min(lo, v), math.Max(hi, v), true
	}
	return lo, hi, ok
}
