// Package export writes harvested records to CSV or XLSX files and reads
// them back for analysis.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"karriere-harvester/internal/models"
)

// Supported formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

const (
	filePrefix      = "karriere_at_parsing"
	timestampLayout = "2006_01_02_15_04"
)

// Columns is the header row of every export.
var Columns = []string{"Name", "ID", "URL", "Company", "Location", "Employment type", "Salary", "Experience"}

// Row flattens a record in column order.
func Row(rec models.JobRecord) []string {
	return []string{rec.Name, rec.ID, rec.URL, rec.Company, rec.Location, rec.EmploymentType, rec.Salary, rec.Experience}
}

// FromRow is the inverse of Row. Short rows leave trailing fields empty.
func FromRow(row []string) models.JobRecord {
	field := func(i int) string {
		if i < len(row) {
			return row[i]
		}
		return ""
	}
	return models.JobRecord{
		Name:           field(0),
		ID:             field(1),
		URL:            field(2),
		Company:        field(3),
		Location:       field(4),
		EmploymentType: field(5),
		Salary:         field(6),
		Experience:     field(7),
	}
}

// FileName names an export after its queries and a minute-resolution
// timestamp, e.g. karriere_at_parsing_go_developer_wien_2024_03_01_09_30.csv.
func FileName(terms, locations []string, at time.Time, ext string) string {
	parts := []string{filePrefix}
	for _, group := range [][]string{terms, locations} {
		for _, v := range group {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			parts = append(parts, strings.Map(safeRune, v))
		}
	}
	parts = append(parts, at.Format(timestampLayout))
	return strings.Join(parts, "_") + "." + ext
}

// safeRune maps separators and characters rejected by common file systems
// to an underscore so a query never escapes the export directory.
func safeRune(r rune) rune {
	if unicode.IsSpace(r) || unicode.IsControl(r) || strings.ContainsRune(`/\:*?"<>|`, r) {
		return '_'
	}
	return r
}

// Exporter writes record sets into Dir using Format.
type Exporter struct {
	Dir    string
	Format string
}

// New validates format and returns an exporter writing into dir.
func New(dir, format string) (*Exporter, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = FormatCSV
	}
	if format != FormatCSV && format != FormatXLSX {
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
	return &Exporter{Dir: dir, Format: format}, nil
}

// Export writes records and returns the file path.
func (e *Exporter) Export(records []models.JobRecord, terms, locations []string, at time.Time) (string, error) {
	dir := e.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(dir, FileName(terms, locations, at, e.Format))

	var err error
	switch e.Format {
	case FormatXLSX:
		err = WriteXLSX(path, records)
	default:
		err = WriteCSVFile(path, records)
	}
	if err != nil {
		return "", fmt.Errorf("export %s: %w", path, err)
	}
	return path, nil
}

// ReadFile loads records from a CSV or XLSX export, chosen by extension.
func ReadFile(path string) ([]models.JobRecord, error) {
	if strings.EqualFold(filepath.Ext(path), "."+FormatXLSX) {
		return ReadXLSX(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f)
}
