// Package deploy writes deployment artifacts to the host filesystem.
package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/moby/sys/atomicwriter"

	"github.com/artpar/quadapp/internal/core/plan"
)

// =============================================================================
// Error Type
// =============================================================================

// DeployError wraps a filesystem failure during artifact deployment.
type DeployError struct {
	Path    string
	Message string
	Err     error
}

func (e *DeployError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

func (e *DeployError) Unwrap() error {
	return e.Err
}

// NewDeployError creates a new DeployError.
func NewDeployError(path, message string, err error) *DeployError {
	return &DeployError{Path: path, Message: message, Err: err}
}

// =============================================================================
// Deployer
// =============================================================================

// Deployer writes artifacts to their destination paths. Every write is
// atomic: a temp file in the destination directory, then a rename, so a crash
// never leaves a half-written file at a final path.
type Deployer struct {
	logger *slog.Logger
}

// NewDeployer creates a Deployer.
func NewDeployer(logger *slog.Logger) *Deployer {
	return &Deployer{logger: logger}
}

// Apply writes the given artifacts. Callers pass only the artifacts that
// changed; deploying an empty set is a no-op. Parent directories are created
// with DirMode.
func (d *Deployer) Apply(ctx context.Context, artifacts []plan.Artifact) error {
	for _, a := range artifacts {
		if err := ctx.Err(); err != nil {
			return NewDeployError(a.Path, "deployment interrupted", err)
		}
		if err := os.MkdirAll(filepath.Dir(a.Path), plan.DirMode); err != nil {
			return NewDeployError(a.Path, "failed to create destination directory", err)
		}
		if err := atomicwriter.WriteFile(a.Path, a.Content, a.Mode); err != nil {
			return NewDeployError(a.Path, "failed to write file", err)
		}
		d.logger.Debug("deployed file", "path", a.Path, "bytes", len(a.Content), "class", string(a.Class))
	}
	return nil
}
