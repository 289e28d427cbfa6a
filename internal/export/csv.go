// Package export renders a built likelihood ratio matrix and its companion data into the
// file formats the case simulator imports.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/medcase-generator/pkg/lrmatrix"
)

// RenderCSV writes the header row followed by one row per feature.
func RenderCSV(t *lrmatrix.Table) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(t.Records()); err != nil {
		return nil, fmt.Errorf("writing csv: %w", err)
	}
	return buf.Bytes(), nil
}
