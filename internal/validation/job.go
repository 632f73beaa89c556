package validation

import (
	"errors"

	"gopkg.in/yaml.v3"

	"github.com/rendis/deskbot/pkg/schema"
)

// JobValidator runs the structural and semantic stages.
type JobValidator struct {
	jsonSchema *JSONSchemaValidator
	actions    ActionLookup
}

// NewJobValidator creates a JobValidator. lookup may be nil to skip action
// kind checks.
func NewJobValidator(lookup ActionLookup) (*JobValidator, error) {
	jsv, err := NewJSONSchemaValidator()
	if err != nil {
		return nil, err
	}
	return &JobValidator{jsonSchema: jsv, actions: lookup}, nil
}

// Validate checks a decoded job. Structural errors short-circuit the
// semantic stage.
func (jv *JobValidator) Validate(def *schema.JobDefinition) *schema.ValidationResult {
	if def == nil {
		r := &schema.ValidationResult{}
		r.AddError("/", schema.ErrCodeValidation, "job definition is nil")
		return r
	}

	result := structuralResult(jv.jsonSchema.ValidateDefinition(def))
	if !result.Valid() {
		return result
	}
	result.Merge(validateSemantic(def, jv.actions))
	return result
}

// ValidateDefinition satisfies Validator.
func (jv *JobValidator) ValidateDefinition(def *schema.JobDefinition) error {
	return jv.Validate(def).ToError()
}

// ValidateDocument checks the raw config.yaml, then decodes and checks it
// semantically.
func (jv *JobValidator) ValidateDocument(raw []byte) *schema.ValidationResult {
	result := structuralResult(jv.jsonSchema.ValidateYAML(raw))
	if !result.Valid() {
		return result
	}

	var def schema.JobDefinition
	if err := yaml.Unmarshal(raw, &def); err != nil {
		result.AddError("/", schema.ErrCodeValidation, err.Error())
		return result
	}
	result.Merge(validateSemantic(&def, jv.actions))
	return result
}

// structuralResult spreads a schema error's violations into a result.
func structuralResult(err error) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	if err == nil {
		return result
	}

	var dbErr *schema.DeskbotError
	if !errors.As(err, &dbErr) {
		result.AddError("/", schema.ErrCodeValidation, err.Error())
		return result
	}
	if violations, ok := dbErr.Details["violations"].([]string); ok {
		for _, v := range violations {
			result.AddError("/", schema.ErrCodeValidation, v)
		}
		return result
	}
	result.AddError("/", schema.ErrCodeValidation, dbErr.Message)
	return result
}
