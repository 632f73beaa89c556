package validation

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/deskbot/internal/actions"
	"github.com/rendis/deskbot/pkg/schema"
)

func TestJobValidator_ImplementsValidator(t *testing.T) {
	var _ Validator = (*JobValidator)(nil)
}

func newValidator(t *testing.T) *JobValidator {
	t.Helper()
	jv, err := NewJobValidator(actions.DefaultRegistry())
	require.NoError(t, err)
	return jv
}

func TestJobValidator_Valid(t *testing.T) {
	result := newValidator(t).Validate(validJob())
	assert.True(t, result.Valid())
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
}

func TestJobValidator_Nil(t *testing.T) {
	result := newValidator(t).Validate(nil)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, "nil")
}

func TestJobValidator_StructuralShortCircuits(t *testing.T) {
	def := validJob()
	def.Steps[1].Action = ""
	def.Excel.CodeColumn = ""

	result := newValidator(t).Validate(def)
	require.False(t, result.Valid())
	for _, e := range result.Errors {
		assert.Equal(t, schema.ErrCodeValidation, e.Code, "semantic stage must not run")
	}
}

func TestJobValidator_ValidateDefinition_ConfigurationError(t *testing.T) {
	def := validJob()
	def.Steps = nil

	err := newValidator(t).ValidateDefinition(def)
	var dbErr *schema.DeskbotError
	require.True(t, errors.As(err, &dbErr))
	assert.Equal(t, schema.ErrCodeConfiguration, dbErr.Code)
	assert.Equal(t, "steps: no steps configured", dbErr.Message)
}

func TestJobValidator_NilLookupSkipsKindCheck(t *testing.T) {
	jv, err := NewJobValidator(nil)
	require.NoError(t, err)

	def := validJob()
	def.Steps = append(def.Steps, schema.StepDefinition{Action: "find_image"})
	result := jv.Validate(def)
	assert.True(t, result.Valid())
	assert.Empty(t, result.Warnings)
}

func TestJobValidator_ValidateDocument(t *testing.T) {
	raw := `
excel:
  file_path: orders.xlsx
  code_column: code
  quantity_column: ""
settings:
  schedule: "*/5 * * * *"
steps:
  - action: click
  - action: type_text
    text: "{code} x {quantity}"
`
	result := newValidator(t).ValidateDocument([]byte(raw))
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "excel.quantity_column", result.Errors[0].Path)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, schema.ErrCodeMissingCoordinates, result.Warnings[0].Code)
}

func TestJobValidator_ValidateDocument_Structural(t *testing.T) {
	result := newValidator(t).ValidateDocument([]byte("excel: 3\nsteps: []\n"))
	require.False(t, result.Valid())
	assert.Equal(t, schema.ErrCodeValidation, result.Errors[0].Code)
}

func TestJobValidator_Concurrent(t *testing.T) {
	jv := newValidator(t)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, jv.Validate(validJob()).Valid())
		}()
	}
	wg.Wait()
}
