package source

import (
	"context"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rendis/deskbot/pkg/schema"
)

// Record is one data row driving one repetition of the step list.
// Fields hold string or int values and are never mutated during a run.
type Record struct {
	Index  int // 1-based position after normalisation
	Fields map[string]any
}

// Get returns a field value, or nil when absent.
func (r Record) Get(field string) any {
	return r.Fields[field]
}

// Source produces the ordered records for a run.
type Source interface {
	Load(ctx context.Context) ([]Record, error)
}

// Columns names the two fields every record must carry.
type Columns struct {
	Code     string
	Quantity string
}

// Validate fails with CONFIGURATION_ERROR when either name is empty.
func (c Columns) Validate() error {
	if strings.TrimSpace(c.Code) == "" {
		return schema.NewError(schema.ErrCodeConfiguration, "code column is not configured")
	}
	if strings.TrimSpace(c.Quantity) == "" {
		return schema.NewError(schema.ErrCodeConfiguration, "quantity column is not configured")
	}
	return nil
}

// New picks a Source for the configured file. Relative paths resolve against baseDir.
func New(cfg schema.DataConfig, baseDir string) Source {
	path := ResolvePath(cfg.FilePath, baseDir)
	cols := Columns{Code: cfg.CodeColumn, Quantity: cfg.QuantityColumn}
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return &CSVSource{Path: path, Columns: cols}
	}
	return &ExcelSource{Path: path, Sheet: cfg.SheetName, Columns: cols}
}

// ResolvePath joins a relative path onto baseDir. Blank paths stay blank.
func ResolvePath(path, baseDir string) string {
	path = strings.TrimSpace(path)
	if path == "" || filepath.IsAbs(path) || baseDir == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}

// normalize turns a header row plus data rows into records.
// Rows with an empty code or quantity are dropped, codes are trimmed and
// quantities are coerced to int (non-numeric becomes 0, fractions truncate).
func normalize(header []string, rows [][]string, cols Columns) ([]Record, error) {
	codeIdx, qtyIdx := -1, -1
	names := make([]string, len(header))
	for i, h := range header {
		names[i] = strings.TrimSpace(h)
		switch names[i] {
		case cols.Code:
			if codeIdx < 0 {
				codeIdx = i
			}
		case cols.Quantity:
			if qtyIdx < 0 {
				qtyIdx = i
			}
		}
	}
	if codeIdx < 0 {
		return nil, schema.NewErrorf(schema.ErrCodeConfiguration, "column not found: %s", cols.Code).
			WithDetails(map[string]any{"columns": names})
	}
	if qtyIdx < 0 {
		return nil, schema.NewErrorf(schema.ErrCodeConfiguration, "column not found: %s", cols.Quantity).
			WithDetails(map[string]any{"columns": names})
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		code, qty := cell(row, codeIdx), cell(row, qtyIdx)
		if code == "" || qty == "" {
			continue
		}

		fields := make(map[string]any, len(names))
		for i, name := range names {
			if name == "" {
				continue
			}
			if _, dup := fields[name]; dup {
				continue
			}
			fields[name] = cell(row, i)
		}
		fields[cols.Code] = strings.TrimSpace(code)
		fields[cols.Quantity] = toQuantity(qty)

		records = append(records, Record{Index: len(records) + 1, Fields: fields})
	}
	return records, nil
}

func cell(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return row[idx]
}

func toQuantity(raw string) int {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int(f)
}
