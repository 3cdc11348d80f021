// Package ledger persists per-application deployment records and answers
// which artifacts changed since the last successful run.
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrNotFound is returned when an application has no deployment record.
	ErrNotFound = errors.New("deployment record not found")

	// ErrConnectionFailed is returned when the database cannot be opened.
	ErrConnectionFailed = errors.New("database connection failed")

	// ErrMigrationFailed is returned when schema migration fails.
	ErrMigrationFailed = errors.New("database migration failed")

	// ErrTxFailed is returned when a transaction operation fails.
	ErrTxFailed = errors.New("transaction failed")

	// ErrQueryFailed is returned when a read query fails.
	ErrQueryFailed = errors.New("query failed")
)

// StoreError wraps ledger failures with operation and application context.
type StoreError struct {
	Op      string // operation that failed, e.g. "Diff"
	App     string // application name if applicable
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	if e.App != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.App, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError.
func NewStoreError(op, app, message string, err error) *StoreError {
	return &StoreError{
		Op:      op,
		App:     app,
		Message: message,
		Err:     err,
	}
}
