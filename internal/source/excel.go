package source

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/rendis/deskbot/pkg/schema"
)

// ExcelSource reads records from one sheet of an .xlsx workbook.
// The first row is the header. An empty Sheet selects the first sheet.
type ExcelSource struct {
	Path    string
	Sheet   string
	Columns Columns
}

// Load reads, validates and normalises the sheet.
func (s *ExcelSource) Load(ctx context.Context) ([]Record, error) {
	if err := s.Columns.Validate(); err != nil {
		return nil, err
	}
	if err := checkFile(s.Path); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	header, rows, err := readSheet(s.Path, s.Sheet, 0)
	if err != nil {
		return nil, err
	}

	records, err := normalize(header, rows, s.Columns)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, schema.NewErrorf(schema.ErrCodeLoad, "no valid rows in %s", s.Path)
	}
	return records, nil
}

// Preview returns the header and at most n data rows of a sheet or CSV file.
func Preview(path, sheet string, n int) ([]string, [][]string, error) {
	if err := checkFile(path); err != nil {
		return nil, nil, err
	}
	if !strings.EqualFold(filepath.Ext(path), ".csv") {
		return readSheet(path, sheet, n)
	}

	rows, err := readCSV(path)
	if err != nil {
		return nil, nil, err
	}
	data := rows[1:]
	if n > 0 && len(data) > n {
		data = data[:n]
	}
	return rows[0], data, nil
}

// readSheet returns the header row and up to limit data rows (0 = all).
func readSheet(path, sheet string, limit int) ([]string, [][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, schema.NewErrorf(schema.ErrCodeLoad, "open workbook %s: %s", path, err.Error()).WithCause(err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, nil, schema.NewErrorf(schema.ErrCodeLoad, "workbook %s has no sheets", path)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, schema.NewErrorf(schema.ErrCodeLoad, "read sheet %q: %s", sheet, err.Error()).WithCause(err)
	}
	if len(rows) == 0 {
		return nil, nil, schema.NewErrorf(schema.ErrCodeLoad, "sheet %q is empty", sheet)
	}

	data := rows[1:]
	if limit > 0 && len(data) > limit {
		data = data[:limit]
	}
	return rows[0], data, nil
}

// checkFile mirrors the checks done before any UI interaction: the path is set,
// exists and is a regular file.
func checkFile(path string) error {
	if strings.TrimSpace(path) == "" {
		return schema.NewError(schema.ErrCodeConfiguration, "data file path is not configured")
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return schema.NewErrorf(schema.ErrCodeLoad, "data file does not exist: %s", path).WithCause(err)
	}
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeLoad, "stat %s: %s", path, err.Error()).WithCause(err)
	}
	if info.IsDir() {
		return schema.NewErrorf(schema.ErrCodeLoad, "path is a directory, not a file: %s", path)
	}
	return nil
}
