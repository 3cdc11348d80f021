// Package systemd drives the service supervisor through systemctl and
// resolves intra-application dependency graphs from its answers.
package systemd

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrCommandFailed is returned when systemctl exits non-zero.
	ErrCommandFailed = errors.New("systemctl command failed")

	// ErrTimeout is returned when a supervisor operation exceeds its bound.
	ErrTimeout = errors.New("supervisor operation timed out")

	// ErrGeneratorRejected is returned when the quadlet generator dry-run
	// refuses the deployed units.
	ErrGeneratorRejected = errors.New("quadlet generator rejected deployed units")
)

// ServiceError wraps a supervisor failure with the operation and unit.
type ServiceError struct {
	Op      string // e.g. "restart"
	Unit    string // unit name if applicable
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Unit != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Unit, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError creates a new ServiceError.
func NewServiceError(op, unit, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Unit:    unit,
		Message: message,
		Err:     err,
	}
}
