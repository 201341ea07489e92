package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"karriere-harvester/internal/models"
)

const sheetName = "Jobs"

// WriteXLSX writes records into a single "Jobs" sheet at path.
func WriteXLSX(path string, records []models.JobRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}
	if err := writeRow(f, 1, Columns); err != nil {
		return err
	}
	for i, rec := range records {
		if err := writeRow(f, i+2, Row(rec)); err != nil {
			return err
		}
	}
	return f.SaveAs(path)
}

func writeRow(f *excelize.File, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	vals := make([]any, len(values))
	for i, v := range values {
		vals[i] = v
	}
	return f.SetSheetRow(sheetName, cell, &vals)
}

// ReadXLSX loads records from the first sheet of an XLSX export.
func ReadXLSX(path string) ([]models.JobRecord, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%s has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	index, err := columnIndex(rows[0])
	if err != nil {
		return nil, err
	}
	out := make([]models.JobRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		out = append(out, FromRow(reorder(row, index)))
	}
	return out, nil
}
