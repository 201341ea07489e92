package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"karriere-harvester/internal/models"
)

// WriteCSV writes the header and one row per record.
func WriteCSV(w io.Writer, records []models.JobRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, rec := range records {
		if err := cw.Write(Row(rec)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile creates path and writes records to it.
func WriteCSVFile(path string, records []models.JobRecord) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return WriteCSV(f, records)
}

// ReadCSV reads an export. Columns are matched by header name so files
// carrying an extra leading index column still load.
func ReadCSV(r io.Reader) ([]models.JobRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	index, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var out []models.JobRecord
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, FromRow(reorder(row, index)))
	}
}

// columnIndex maps each of Columns to its position in header.
func columnIndex(header []string) ([]int, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[h] = i
	}
	index := make([]int, len(Columns))
	found := 0
	for i, c := range Columns {
		p, ok := pos[c]
		if !ok {
			index[i] = -1
			continue
		}
		index[i] = p
		found++
	}
	if found == 0 {
		return nil, errors.New("no known columns in header")
	}
	return index, nil
}

func reorder(row []string, index []int) []string {
	out := make([]string, len(index))
	for i, p := range index {
		if p >= 0 && p < len(row) {
			out[i] = row[p]
		}
	}
	return out
}
