// Package quadlet parses podman quadlet unit descriptors and rewrites them
// for namespaced per-application deployment. This is part of the Functional
// Core - all functions are pure with no I/O.
package quadlet

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// Syntax errors
	ErrUnterminatedSection     = errors.New("unterminated section header")
	ErrDirectiveOutsideSection = errors.New("directive outside any section")
	ErrMalformedDirective      = errors.New("line is not a Key=Value directive")

	// File identity errors
	ErrUnknownSuffix = errors.New("unknown quadlet file suffix")
)

// PreprocessError wraps errors with context about where parsing or rewriting
// a unit descriptor failed. The failure is fatal for the whole application.
type PreprocessError struct {
	File    string // quadlet file name, e.g. "main.container"
	Line    int    // 1-based line number, 0 when not line-scoped
	Message string
	Err     error
}

func (e *PreprocessError) Error() string {
	if e.File != "" && e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
	}
	if e.File != "" {
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return e.Message
}

func (e *PreprocessError) Unwrap() error {
	return e.Err
}

// NewPreprocessError creates a new PreprocessError.
func NewPreprocessError(file string, line int, message string, err error) *PreprocessError {
	return &PreprocessError{
		File:    file,
		Line:    line,
		Message: message,
		Err:     err,
	}
}
