package source

import (
	"context"
	"encoding/csv"
	"os"

	"github.com/rendis/deskbot/pkg/schema"
)

// CSVSource reads records from a comma-separated file with a header row.
type CSVSource struct {
	Path    string
	Columns Columns
}

// Load reads, validates and normalises the file.
func (s *CSVSource) Load(ctx context.Context) ([]Record, error) {
	if err := s.Columns.Validate(); err != nil {
		return nil, err
	}
	if err := checkFile(s.Path); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := readCSV(s.Path)
	if err != nil {
		return nil, err
	}

	records, err := normalize(rows[0], rows[1:], s.Columns)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, schema.NewErrorf(schema.ErrCodeLoad, "no valid rows in %s", s.Path)
	}
	return records, nil
}

// readCSV returns every row of the file. The header must be present.
func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeLoad, "open %s: %s", path, err.Error()).WithCause(err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeLoad, "parse %s: %s", path, err.Error()).WithCause(err)
	}
	if len(rows) == 0 {
		return nil, schema.NewErrorf(schema.ErrCodeLoad, "%s is empty", path)
	}
	// Strip a UTF-8 BOM left by spreadsheet exports.
	if len(rows[0]) > 0 {
		rows[0][0] = trimBOM(rows[0][0])
	}
	return rows, nil
}

func trimBOM(s string) string {
	const bom = "\ufeff"
	if len(s) >= len(bom) && s[:len(bom)] == bom {
		return s[len(bom):]
	}
	return s
}
