package job

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/deskbot/internal/actions"
	"github.com/rendis/deskbot/internal/validation"
	"github.com/rendis/deskbot/pkg/schema"
)

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	var dbErr *schema.DeskbotError
	require.True(t, errors.As(err, &dbErr), "got %v", err)
	assert.Equal(t, code, dbErr.Code)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const sampleJob = `
excel:
  file_path: data/stock.csv
  code_column: code
  quantity_column: qty
settings:
  countdown: 0
  filter: quantity > 0
steps:
  - name: enter
    action: type_text
    text: "{code}:{quantity}"
  - action: press_key
    key: enter
`

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", sampleJob)

	j, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, dir, j.Dir)
	assert.Equal(t, filepath.Join(dir, "data", "stock.csv"), j.DataPath())
	assert.Equal(t, "code", j.Columns().Code)
	assert.Len(t, j.Definition.Steps, 2)

	steps := j.Steps(actions.DefaultRegistry())
	require.Len(t, steps, 2)
	assert.Equal(t, actions.KindTypeText, steps[0].Kind())

	f, err := j.Filter()
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, "quantity > 0", f.Expression())
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load("")
	requireCode(t, err, schema.ErrCodeConfiguration)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	requireCode(t, err, schema.ErrCodeLoad)

	bad := writeFile(t, t.TempDir(), "config.yaml", "steps: [")
	_, err = Load(bad)
	requireCode(t, err, schema.ErrCodeConfiguration)
}

func TestFilter_NoneConfigured(t *testing.T) {
	j := &Job{}
	f, err := j.Filter()
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	j, err := Load(writeFile(t, dir, "config.yaml", sampleJob))
	require.NoError(t, err)

	r := j.Check()
	assert.False(t, r.Ready())
	assert.False(t, r.DataExists)
	assert.Equal(t, 2, r.Steps)
	require.Len(t, r.Problems, 1)
	assert.Contains(t, r.Problems[0], "not found")

	writeFile(t, dir, "data/stock.csv", "code,qty\nA,1\n")
	r = j.Check()
	assert.True(t, r.Ready())
	assert.True(t, r.DataExists)
}

func TestCheck_EmptyJob(t *testing.T) {
	r := (&Job{Dir: t.TempDir()}).Check()
	assert.ElementsMatch(t, []string{
		"data file is not configured",
		"no steps configured",
		"code column is not configured",
	}, r.Problems)
}

func TestCheck_DataPathIsDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "data", "stock.csv"), 0o755))
	j, err := Load(writeFile(t, dir, "config.yaml", sampleJob))
	require.NoError(t, err)

	r := j.Check()
	require.Len(t, r.Problems, 1)
	assert.Contains(t, r.Problems[0], "directory")
}

func TestWriteTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs", "config.yaml")
	require.NoError(t, WriteTemplate(path, false))
	requireCode(t, WriteTemplate(path, false), schema.ErrCodeConflict)
	require.NoError(t, WriteTemplate(path, true))

	j, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "编码", j.Definition.Excel.CodeColumn)
	assert.Empty(t, j.Definition.Excel.SheetName)
	assert.Len(t, j.Definition.Steps, 6)
	assert.True(t, j.Definition.Settings.FailSafeEnabled())

	v, err := validation.NewJobValidator(actions.DefaultRegistry())
	require.NoError(t, err)
	result := v.ValidateDocument(j.Raw)
	assert.True(t, result.Valid(), "%+v", result.Errors)
	assert.Empty(t, result.Warnings)
}
