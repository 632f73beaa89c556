package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/deskbot/pkg/schema"
)

func intp(v int) *int { return &v }

func validJob() *schema.JobDefinition {
	return &schema.JobDefinition{
		Excel: schema.DataConfig{
			FilePath:       "orders.xlsx",
			CodeColumn:     "code",
			QuantityColumn: "qty",
		},
		Steps: []schema.StepDefinition{
			{Name: "focus search", Action: "click", X: intp(100), Y: intp(200)},
			{Action: "type_text", Text: "{code}", ClearFirst: true},
			{Action: "press_key", Key: "enter", WaitAfter: schema.SecondsOf(0.5)},
			{Action: "wait", Seconds: schema.SecondsOf(1)},
		},
	}
}

func requireViolation(t *testing.T, err error) *schema.DeskbotError {
	t.Helper()
	var dbErr *schema.DeskbotError
	require.True(t, errors.As(err, &dbErr), "got %v", err)
	assert.Equal(t, schema.ErrCodeValidation, dbErr.Code)
	return dbErr
}

func TestNewJSONSchemaValidator(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)
	assert.NotNil(t, v.jobSchema)
}

func TestValidateDefinition_Nil(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	dbErr := requireViolation(t, v.ValidateDefinition(nil))
	assert.Contains(t, dbErr.Message, "nil")
}

func TestValidateDefinition_Valid(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)
	assert.NoError(t, v.ValidateDefinition(validJob()))
}

func TestValidateDefinition_EmptyAction(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	def := validJob()
	def.Steps[0].Action = ""
	requireViolation(t, v.ValidateDefinition(def))
}

func TestValidateYAML_Valid(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	raw := `
excel:
  file_path: orders.xlsx
  sheet_name: Sheet1
  code_column: code
  quantity_column: qty
settings:
  countdown: 5
  failsafe: true
  pause: 0.2
  filter: quantity > 0
steps:
  - name: search
    action: click
    x: 10
    y: 20
  - action: wait
    seconds: abc
  - action: press_key
    key: ctrl+s
    wait_after: "0.5"
`
	assert.NoError(t, v.ValidateYAML([]byte(raw)))
}

func TestValidateYAML_UnknownKey(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	raw := `
excel:
  file_path: a.xlsx
  code_column: code
  quantity_column: qty
steps:
  - action: click
    x: 1
    y: 2
    button: right
`
	dbErr := requireViolation(t, v.ValidateYAML([]byte(raw)))
	assert.Contains(t, dbErr.Message, "/steps/0")
}

func TestValidateYAML_EditorTargetAccepted(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	raw := `
excel:
  file_path: a.xlsx
  code_column: code
  quantity_column: qty
steps:
  - name: open
    action: click
    target: button.png
    x: 1
    y: 2
  - action: press_key
    key: enter
    target:
`
	assert.NoError(t, v.ValidateYAML([]byte(raw)))
}

func TestValidateYAML_WrongTypes(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	raw := `
excel:
  file_path: a.xlsx
  code_column: code
  quantity_column: qty
settings:
  countdown: soon
  filter_engine: lua
steps:
  - action: click
    x: "ten"
    y: 2
`
	dbErr := requireViolation(t, v.ValidateYAML([]byte(raw)))
	violations, ok := dbErr.Details["violations"].([]string)
	require.True(t, ok)
	assert.GreaterOrEqual(t, len(violations), 3)
}

func TestValidateYAML_MissingSections(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	requireViolation(t, v.ValidateYAML([]byte("settings:\n  countdown: 1\n")))
}

func TestValidateYAML_EmptyAndMalformed(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	dbErr := requireViolation(t, v.ValidateYAML(nil))
	assert.Contains(t, dbErr.Message, "empty")

	dbErr = requireViolation(t, v.ValidateYAML([]byte("steps: [")))
	assert.Equal(t, "invalid YAML", dbErr.Message)
}
