package export

import (
	"fmt"
	"math"

	"github.com/xuri/excelize/v2"

	"github.com/medcase-generator/pkg/lrmatrix"
)

// SheetName is the worksheet the simulator reads the matrix from.
const SheetName = "Feature_LR_Matrix"

// RenderSpreadsheet writes the matrix to a single-sheet XLSX workbook with the same layout as
// the CSV. Values are stored as numbers; missing cells are left blank.
func RenderSpreadsheet(t *lrmatrix.Table) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, fmt.Errorf("naming sheet: %w", err)
	}

	header := make([]interface{}, 0, len(t.Header()))
	for _, h := range t.Header() {
		header = append(header, h)
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}

	for i, row := range t.Rows() {
		cells := make([]interface{}, 0, len(row.Values)+1)
		cells = append(cells, row.Feature)
		for _, v := range row.Values {
			if math.IsNaN(v) {
				cells = append(cells, nil)
				continue
			}
			cells = append(cells, v)
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("locating row %d: %w", i, err)
		}
		if err := f.SetSheetRow(SheetName, cell, &cells); err != nil {
			return nil, fmt.Errorf("writing row %q: %w", row.Feature, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("encoding workbook: %w", err)
	}
	return buf.Bytes(), nil
}
