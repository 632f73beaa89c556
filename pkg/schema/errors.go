package schema

import "fmt"

// Error codes for structured error reporting.
const (
	ErrCodeConfiguration      = "CONFIGURATION_ERROR"
	ErrCodeLoad               = "LOAD_ERROR"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeMissingCoordinates = "MISSING_COORDINATES"
	ErrCodeUnknownAction      = "UNKNOWN_ACTION"
	ErrCodeDriver             = "DRIVER_ERROR"
	ErrCodeUnexpected         = "UNEXPECTED_ERROR"
	ErrCodeAborted            = "ABORTED"
	ErrCodeInvalidTransition  = "INVALID_TRANSITION"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeExpression         = "EXPRESSION_ERROR"
	ErrCodeStore              = "STORE_ERROR"
)

// DeskbotError is the structured error type for all deskbot operations.
type DeskbotError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Step    string         `json:"step,omitempty"`
	Cause   error          `json:"-"`
}

func (e *DeskbotError) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("[%s] step %s: %s", e.Code, e.Step, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *DeskbotError) Unwrap() error {
	return e.Cause
}

// IsStepFailure reports whether the code marks a recoverable, record-scoped failure.
func (e *DeskbotError) IsStepFailure() bool {
	switch e.Code {
	case ErrCodeMissingCoordinates, ErrCodeUnknownAction, ErrCodeDriver:
		return true
	}
	return false
}

// NewError creates a new DeskbotError.
func NewError(code, message string) *DeskbotError {
	return &DeskbotError{Code: code, Message: message}
}

// NewErrorf creates a new DeskbotError with a formatted message.
func NewErrorf(code, format string, args ...any) *DeskbotError {
	return &DeskbotError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithStep attaches the step name to the error.
func (e *DeskbotError) WithStep(step string) *DeskbotError {
	e.Step = step
	return e
}

// WithCause attaches an underlying cause.
func (e *DeskbotError) WithCause(err error) *DeskbotError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *DeskbotError) WithDetails(details map[string]any) *DeskbotError {
	e.Details = details
	return e
}
