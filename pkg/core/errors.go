package core

import (
	"fmt"
	"strings"
)

// =============================================================================
// Validation errors
// =============================================================================

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned for malformed input, before any I/O happens.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

// NewValidationError creates a ValidationError with a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// Add appends a field error.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// Merge appends the fields of another validation error under a prefix.
func (e *ValidationError) Merge(prefix string, other *ValidationError) {
	if other == nil {
		return
	}
	for _, f := range other.Fields {
		name := f.Field
		if prefix != "" {
			name = prefix + "." + name
		}
		e.Add(name, f.Message)
	}
}

// OrNil returns e when it carries fields, nil otherwise.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = fmt.Sprintf("%s: %s", f.Field, f.Message)
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// =============================================================================
// Access errors
// =============================================================================

// Violation tags the policy rule an access denial tripped.
type Violation string

// Violation types.
const (
	ViolationNone   Violation = ""
	ViolationTable  Violation = "table"
	ViolationColumn Violation = "column"
	ViolationWrite  Violation = "write"
)

// AccessError is returned when the access policy denies a statement.
// It never includes the restricted data itself.
type AccessError struct {
	Reason    string    `json:"reason"`
	Violation Violation `json:"violationType,omitempty"`
}

func (e *AccessError) Error() string {
	if e.Violation == ViolationNone {
		return "access denied: " + e.Reason
	}
	return fmt.Sprintf("access denied (%s): %s", e.Violation, e.Reason)
}

// =============================================================================
// Engine registry errors
// =============================================================================

// UnknownEngineError is returned when no adapter is registered for an engine kind.
type UnknownEngineError struct {
	Kind      string
	Available []string
}

func (e *UnknownEngineError) Error() string {
	return fmt.Sprintf("unknown engine kind %q\nAvailable engines: %v\nHint: Check the connection kind in scurry.yaml", e.Kind, e.Available)
}
