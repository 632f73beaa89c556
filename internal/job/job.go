// Package job loads config.yaml files and runs them.
package job

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rendis/deskbot/internal/actions"
	"github.com/rendis/deskbot/internal/expressions"
	"github.com/rendis/deskbot/internal/source"
	"github.com/rendis/deskbot/pkg/schema"
)

// DefaultFileName is the job file looked up when no path is given.
const DefaultFileName = "config.yaml"

// Job is a loaded job file. Relative paths inside it resolve against Dir.
type Job struct {
	Path       string
	Dir        string
	Raw        []byte
	Definition schema.JobDefinition
}

// Load reads and decodes a job file. A missing file is a LOAD_ERROR and
// malformed YAML a CONFIGURATION_ERROR.
func Load(path string) (*Job, error) {
	if strings.TrimSpace(path) == "" {
		return nil, schema.NewError(schema.ErrCodeConfiguration, "job file path is empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeConfiguration, "resolve %s", path).WithCause(err)
	}

	raw, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, schema.NewErrorf(schema.ErrCodeLoad, "job file not found: %s", abs).WithCause(err)
		}
		return nil, schema.NewErrorf(schema.ErrCodeLoad, "read job file %s", abs).WithCause(err)
	}

	j := &Job{Path: abs, Dir: filepath.Dir(abs), Raw: raw}
	if err := yaml.Unmarshal(raw, &j.Definition); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeConfiguration, "parse job file %s", abs).WithCause(err)
	}
	return j, nil
}

// Columns returns the configured code and quantity column names.
func (j *Job) Columns() source.Columns {
	return source.Columns{Code: j.Definition.Excel.CodeColumn, Quantity: j.Definition.Excel.QuantityColumn}
}

// DataPath returns the data file path resolved against the job directory.
func (j *Job) DataPath() string {
	return source.ResolvePath(j.Definition.Excel.FilePath, j.Dir)
}

// Source returns the record source for the data file.
func (j *Job) Source() source.Source {
	return source.New(j.Definition.Excel, j.Dir)
}

// Steps decodes the step list with reg.
func (j *Job) Steps(reg *actions.Registry) []actions.Action {
	return reg.DecodeAll(j.Definition.Steps)
}

// Filter compiles the record filter. It returns nil when none is configured.
func (j *Job) Filter() (*expressions.Filter, error) {
	s := j.Definition.Settings
	if strings.TrimSpace(s.Filter) == "" {
		return nil, nil
	}
	return expressions.NewFilter(s.FilterEngine, s.Filter)
}

// Readiness is the result of Check.
type Readiness struct {
	DataFile   string   `json:"data_file"`
	DataExists bool     `json:"data_exists"`
	Steps      int      `json:"steps"`
	Problems   []string `json:"problems,omitempty"`
}

// Ready reports whether a run could start.
func (r Readiness) Ready() bool { return len(r.Problems) == 0 }

// Check reports whether the data file exists and steps are configured.
func (j *Job) Check() Readiness {
	r := Readiness{DataFile: j.DataPath(), Steps: len(j.Definition.Steps)}

	switch info, err := os.Stat(r.DataFile); {
	case r.DataFile == "":
		r.Problems = append(r.Problems, "data file is not configured")
	case err != nil:
		r.Problems = append(r.Problems, "data file not found: "+r.DataFile)
	case info.IsDir():
		r.Problems = append(r.Problems, "data file is a directory: "+r.DataFile)
	default:
		r.DataExists = true
	}
	if r.Steps == 0 {
		r.Problems = append(r.Problems, "no steps configured")
	}
	if err := j.Columns().Validate(); err != nil {
		var dbErr *schema.DeskbotError
		if errors.As(err, &dbErr) {
			r.Problems = append(r.Problems, dbErr.Message)
		}
	}
	return r
}
