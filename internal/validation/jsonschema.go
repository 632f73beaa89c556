package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"

	"github.com/rendis/deskbot/pkg/schema"
)

const jobSchemaURL = "https://deskbot.dev/schemas/job.json"

// jobSchemaJSON describes config.yaml. seconds, wait_after and pause are left
// untyped: malformed numbers are read as unset rather than rejected.
// confidence, default_wait and timeout are accepted and ignored.
const jobSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://deskbot.dev/schemas/job.json",
  "type": "object",
  "required": ["excel", "steps"],
  "properties": {
    "excel": {
      "type": "object",
      "required": ["file_path", "code_column", "quantity_column"],
      "properties": {
        "file_path": { "type": "string" },
        "sheet_name": { "type": ["string", "null"] },
        "code_column": { "type": "string" },
        "quantity_column": { "type": "string" }
      },
      "additionalProperties": false
    },
    "settings": {
      "type": ["object", "null"],
      "properties": {
        "failsafe": { "type": "boolean" },
        "countdown": { "type": "integer", "minimum": 0 },
        "pause": {},
        "filter": { "type": "string" },
        "filter_engine": { "type": "string", "enum": ["expr", "cel"] },
        "schedule": { "type": "string" },
        "confidence": { "type": "number" },
        "default_wait": {},
        "timeout": {}
      },
      "additionalProperties": false
    },
    "steps": {
      "type": ["array", "null"],
      "items": { "$ref": "#/$defs/step" }
    }
  },
  "additionalProperties": false,
  "$defs": {
    "step": {
      "type": "object",
      "required": ["action"],
      "properties": {
        "name": { "type": "string" },
        "action": { "type": "string", "minLength": 1 },
        "x": { "type": ["integer", "null"] },
        "y": { "type": ["integer", "null"] },
        "text": { "type": "string" },
        "clear_first": { "type": "boolean" },
        "key": { "type": "string" },
        "seconds": {},
        "wait_after": {},
        "target": { "type": ["string", "null"] }
      },
      "additionalProperties": false
    }
  }
}`

// JSONSchemaValidator checks the structure of a job document.
// It is safe for concurrent use.
type JSONSchemaValidator struct {
	jobSchema *jsonschema.Schema
}

// NewJSONSchemaValidator compiles the job schema.
func NewJSONSchemaValidator() (*JSONSchemaValidator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(jobSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal job schema: %w", err)
	}
	if err := c.AddResource(jobSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("add job schema resource: %w", err)
	}
	compiled, err := c.Compile(jobSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile job schema: %w", err)
	}
	return &JSONSchemaValidator{jobSchema: compiled}, nil
}

// ValidateDefinition validates an already decoded job.
func (v *JSONSchemaValidator) ValidateDefinition(def *schema.JobDefinition) error {
	if def == nil {
		return schema.NewError(schema.ErrCodeValidation, "job definition is nil")
	}
	doc, err := toJSONValue(def)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "failed to serialize job definition").WithCause(err)
	}
	if err := v.jobSchema.Validate(doc); err != nil {
		return toDeskbotError(err)
	}
	return nil
}

// ValidateYAML validates a raw config.yaml document. Unknown keys and
// mistyped fields are reported here; decoding into JobDefinition would
// silently drop the former.
func (v *JSONSchemaValidator) ValidateYAML(raw []byte) error {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return schema.NewError(schema.ErrCodeValidation, "invalid YAML").WithCause(err)
	}
	if doc == nil {
		return schema.NewError(schema.ErrCodeValidation, "job file is empty")
	}
	value, err := toJSONValue(doc)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "job file is not representable as JSON").WithCause(err)
	}
	if err := v.jobSchema.Validate(value); err != nil {
		return toDeskbotError(err)
	}
	return nil
}

// toJSONValue round-trips a value through JSON so numbers become json.Number,
// which the jsonschema library requires.
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
}

func toDeskbotError(err error) *schema.DeskbotError {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return schema.NewError(schema.ErrCodeValidation, err.Error())
	}

	violations := collectViolations(verr)
	switch len(violations) {
	case 0:
		return schema.NewError(schema.ErrCodeValidation, verr.Error())
	case 1:
		return schema.NewError(schema.ErrCodeValidation, violations[0]).
			WithDetails(map[string]any{"violations": violations})
	default:
		return schema.NewErrorf(schema.ErrCodeValidation, "validation failed with %d errors", len(violations)).
			WithDetails(map[string]any{"violations": violations})
	}
}

// collectViolations flattens the error tree into "location: message" lines.
func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}
