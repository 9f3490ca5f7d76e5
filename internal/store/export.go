package store

import (
	"context"
	"fmt"
	"slices"

	"github.com/xuri/excelize/v2"

	"github.com/roach88/statfetch/internal/catalog"
)

// maxSheetName is Excel's limit on sheet name length.
const maxSheetName = 31

// ExportXLSX writes the stored records of ds to an Excel workbook at path:
// one header row, then one row per record. Columns are the dataset's
// parameters in declaration order followed by every other field in sorted
// order. It returns the number of records written.
func (s *Store) ExportXLSX(ctx context.Context, ds *catalog.Dataset, path string) (int, error) {
	obs, err := s.Observations(ctx, ds.Name)
	if err != nil {
		return 0, err
	}

	columns := exportColumns(ds, obs)

	f := excelize.NewFile()
	defer f.Close()

	sheet := ds.Name
	if len(sheet) > maxSheetName {
		sheet = sheet[:maxSheetName]
	}
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return 0, fmt.Errorf("export xlsx: %w", err)
	}

	for c, h := range columns {
		cell, _ := excelize.CoordinatesToCellName(c+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return 0, fmt.Errorf("export xlsx: %w", err)
		}
	}

	for r, o := range obs {
		for c, col := range columns {
			v, ok := o.Fields[col]
			if !ok {
				v = o.Params[col]
			}
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return 0, fmt.Errorf("export xlsx: %w", err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return 0, fmt.Errorf("export xlsx: %w", err)
	}
	return len(obs), nil
}

func exportColumns(ds *catalog.Dataset, obs []Observation) []string {
	columns := ds.ParamNames()
	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		seen[c] = true
	}

	var extra []string
	for _, o := range obs {
		for k := range o.Fields {
			if !seen[k] {
				seen[k] = true
				extra = append(extra, k)
			}
		}
	}
	slices.Sort(extra)
	return append(columns, extra...)
}
