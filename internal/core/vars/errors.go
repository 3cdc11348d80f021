package vars

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrNotMapping means the document root is not a key/value mapping.
	ErrNotMapping = errors.New("variables must be a mapping")

	// ErrNotScalar means a variable value is a list or nested mapping.
	ErrNotScalar = errors.New("variable value must be a scalar")

	// ErrSealedNoKey means a sealed value was found but no passphrase is
	// configured to unseal it.
	ErrSealedNoKey = errors.New("sealed value requires a sealing passphrase")
)

// VarsError wraps variable loading failures with file and key context.
type VarsError struct {
	File    string
	Key     string
	Message string
	Err     error
}

func (e *VarsError) Error() string {
	switch {
	case e.File != "" && e.Key != "":
		return fmt.Sprintf("%s: %s: %s", e.File, e.Key, e.Message)
	case e.File != "":
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return e.Message
}

func (e *VarsError) Unwrap() error {
	return e.Err
}

// NewVarsError creates a new VarsError.
func NewVarsError(file, key, message string, err error) *VarsError {
	return &VarsError{
		File:    file,
		Key:     key,
		Message: message,
		Err:     err,
	}
}
