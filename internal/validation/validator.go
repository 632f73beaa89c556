package validation

import (
	"github.com/rendis/deskbot/internal/actions"
	"github.com/rendis/deskbot/pkg/schema"
)

// Validator checks job files before a run.
type Validator interface {
	ValidateDefinition(def *schema.JobDefinition) error
	ValidateDocument(raw []byte) *schema.ValidationResult
}

// ActionLookup reports which action kinds can be decoded.
type ActionLookup interface {
	Has(kind actions.Kind) bool
	List() []actions.Info
}
