package render

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrMissingVariable means a ${VAR:?...} placeholder had no value.
	ErrMissingVariable = errors.New("required variable has no value")

	// ErrBadTemplate means a placeholder was syntactically invalid.
	ErrBadTemplate = errors.New("invalid template syntax")
)

// TemplateError wraps a substitution failure with the source file it came from.
type TemplateError struct {
	File    string
	Message string
	Err     error
}

func (e *TemplateError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return e.Message
}

func (e *TemplateError) Unwrap() error {
	return e.Err
}

// NewTemplateError creates a new TemplateError.
func NewTemplateError(file, message string, err error) *TemplateError {
	return &TemplateError{
		File:    file,
		Message: message,
		Err:     err,
	}
}
