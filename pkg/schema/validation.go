package schema

import (
	"fmt"
	"sort"
)

// ValidationSeverity indicates whether an issue is an error or warning.
type ValidationSeverity string

const (
	SeverityError   ValidationSeverity = "error"
	SeverityWarning ValidationSeverity = "warning"
)

// ValidationIssue is one problem found in a job file. Path uses the
// job file's own field names, e.g. "steps[2].x".
type ValidationIssue struct {
	Path     string             `json:"path"`
	Code     string             `json:"code"`
	Message  string             `json:"message"`
	Severity ValidationSeverity `json:"severity"`
}

// String prefixes the message with the path, unless the issue is about the whole document.
func (i ValidationIssue) String() string {
	if i.Path == "" || i.Path == "/" {
		return i.Message
	}
	return i.Path + ": " + i.Message
}

// ValidationResult collects the issues of one job file. Warnings never block a run.
type ValidationResult struct {
	Errors   []ValidationIssue `json:"errors,omitempty"`
	Warnings []ValidationIssue `json:"warnings,omitempty"`
}

// Valid reports whether no errors were found.
func (r *ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

func (r *ValidationResult) AddError(path, code, message string) {
	r.Errors = append(r.Errors, ValidationIssue{Path: path, Code: code, Message: message, Severity: SeverityError})
}

func (r *ValidationResult) AddWarning(path, code, message string) {
	r.Warnings = append(r.Warnings, ValidationIssue{Path: path, Code: code, Message: message, Severity: SeverityWarning})
}

// Merge appends other's issues. A nil other is ignored.
func (r *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
}

// Issues returns errors then warnings, each group ordered by path.
func (r *ValidationResult) Issues() []ValidationIssue {
	byPath := func(in []ValidationIssue) []ValidationIssue {
		out := append([]ValidationIssue(nil), in...)
		sort.SliceStable(out, func(i, j int) bool { return out[i].Path < out[j].Path })
		return out
	}
	return append(byPath(r.Errors), byPath(r.Warnings)...)
}

// ToError returns nil for a valid result, otherwise a CONFIGURATION_ERROR
// naming the first error and carrying every issue in Details.
func (r *ValidationResult) ToError() error {
	if r.Valid() {
		return nil
	}

	msg := r.Errors[0].String()
	if n := len(r.Errors); n > 1 {
		msg = fmt.Sprintf("job file has %d errors, first: %s", n, msg)
	}
	return NewError(ErrCodeConfiguration, msg).WithDetails(map[string]any{
		"errors":   r.Errors,
		"warnings": r.Warnings,
	})
}
