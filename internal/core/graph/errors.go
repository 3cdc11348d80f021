package graph

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// Error Types
// =============================================================================

// ErrDependencyCycle means the service dependency graph is not a DAG.
var ErrDependencyCycle = errors.New("dependency cycle detected")

// DependencyError reports a cycle in the service dependency graph. Cycles are
// fatal: no restart order exists, so nothing gets restarted.
type DependencyError struct {
	Cycle   []string // e.g. [a, b, a]
	Message string
	Err     error
}

func (e *DependencyError) Error() string {
	if len(e.Cycle) > 0 {
		return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.Cycle, " -> "))
	}
	return e.Message
}

func (e *DependencyError) Unwrap() error {
	return e.Err
}

// NewDependencyError creates a DependencyError for the given cycle path.
func NewDependencyError(cycle []string) *DependencyError {
	return &DependencyError{
		Cycle:   cycle,
		Message: "dependency cycle detected",
		Err:     ErrDependencyCycle,
	}
}
