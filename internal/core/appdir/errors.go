// Package appdir scans and validates application source directories. This is
// part of the Functional Core - the only I/O is reads through the caller's
// fs.FS.
package appdir

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// Application identity errors
	ErrInvalidAppName = errors.New("invalid application name")

	// Structure errors
	ErrMissingQuadletsDir = errors.New("quadlets directory not found")
	ErrMissingMainUnit    = errors.New("main.container unit not found")
	ErrDuplicateMainUnit  = errors.New("more than one main unit")

	// Auxiliary directory errors
	ErrOrphanAuxDir    = errors.New("orphan auxiliary directory")
	ErrAmbiguousAuxDir = errors.New("auxiliary directory matches more than one unit")
	ErrSuffixedAuxDir  = errors.New("auxiliary directory must use the bare unit base name")
)

// LayoutError wraps errors with context about which part of the source
// directory failed validation.
type LayoutError struct {
	Path    string // app-relative path, e.g. "init.d/db"
	Message string
	Err     error
}

func (e *LayoutError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

func (e *LayoutError) Unwrap() error {
	return e.Err
}

// NewLayoutError creates a new LayoutError.
func NewLayoutError(path, message string, err error) *LayoutError {
	return &LayoutError{
		Path:    path,
		Message: message,
		Err:     err,
	}
}
