package ledger

import (
	"context"
	"time"

	"github.com/artpar/quadapp/internal/core/plan"
)

// =============================================================================
// Ledger Interface
// =============================================================================

// Changes is the ledger's verdict on one artifact set.
type Changes struct {
	// Changed maps destination path to whether the file differs from the
	// recorded digest or mode. Every artifact has an entry.
	Changed map[string]bool

	// AnyChanged is true when at least one artifact changed.
	AnyChanged bool

	// FirstDeploy is true when the application has no deployment record yet.
	FirstDeploy bool
}

// ChangedPaths returns the changed destination paths, in artifact order.
func (c *Changes) ChangedPaths(artifacts []plan.Artifact) []string {
	var out []string
	for _, a := range artifacts {
		if c.Changed[a.Path] {
			out = append(out, a.Path)
		}
	}
	return out
}

// Record is one application's persisted deployment state.
type Record struct {
	App        string
	LastRunID  string
	DeployedAt time.Time
}

// Ledger answers which artifacts changed and records successful deployments.
// The record is the only state carried across invocations; it is written only
// after the deployer has succeeded, so a failed run re-detects its changes.
type Ledger interface {
	// Diff compares the artifact set against the recorded digests. With
	// force, every artifact is reported changed; records are not altered.
	Diff(ctx context.Context, app string, artifacts []plan.Artifact, force bool) (*Changes, error)

	// Commit upserts digests for the artifact set, prunes records for paths
	// no longer produced, and stamps the application with the run ID.
	Commit(ctx context.Context, app, runID string, artifacts []plan.Artifact) error

	// Application returns the deployment record, or ErrNotFound.
	Application(ctx context.Context, app string) (*Record, error)

	Close() error
}
