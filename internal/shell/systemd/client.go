package systemd

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// =============================================================================
// Timeouts
// =============================================================================

const (
	// DefaultMutationTimeout bounds reload/start/restart/stop when the
	// caller does not configure one.
	DefaultMutationTimeout = 120 * time.Second

	// queryTimeout bounds state and dependency queries. Queries are cheap;
	// a supervisor that cannot answer in this window is stuck.
	queryTimeout = 10 * time.Second
)

// dependencyProperties are the requirement and ordering directives queried
// when resolving the intra-application graph.
var dependencyProperties = []string{"Requires", "Wants", "Requisite", "BindsTo", "Upholds", "After"}

// =============================================================================
// Client
// =============================================================================

// Client drives systemd through the systemctl binary.
type Client struct {
	runner          CommandRunner
	systemctl       string
	mutationTimeout time.Duration
	logger          *slog.Logger
}

// NewClient creates a Client. A zero mutationTimeout selects the default.
func NewClient(runner CommandRunner, mutationTimeout time.Duration, logger *slog.Logger) *Client {
	if mutationTimeout <= 0 {
		mutationTimeout = DefaultMutationTimeout
	}
	return &Client{
		runner:          runner,
		systemctl:       "systemctl",
		mutationTimeout: mutationTimeout,
		logger:          logger,
	}
}

// =============================================================================
// Mutations
// =============================================================================

// DaemonReload makes the supervisor re-read unit definitions, which is when
// the quadlet generator turns deployed descriptors into services.
func (c *Client) DaemonReload(ctx context.Context) error {
	return c.mutate(ctx, "daemon-reload", "")
}

// Start starts one unit.
func (c *Client) Start(ctx context.Context, unit string) error {
	return c.mutate(ctx, "start", unit)
}

// Restart restarts one unit.
func (c *Client) Restart(ctx context.Context, unit string) error {
	return c.mutate(ctx, "restart", unit)
}

// Stop stops one unit.
func (c *Client) Stop(ctx context.Context, unit string) error {
	return c.mutate(ctx, "stop", unit)
}

func (c *Client) mutate(ctx context.Context, op, unit string) error {
	args := []string{op}
	if unit != "" {
		args = append(args, unit)
	}

	mctx, cancel := context.WithTimeout(ctx, c.mutationTimeout)
	defer cancel()

	start := time.Now()
	_, stderr, err := c.runner.Run(mctx, c.systemctl, args...)
	if err != nil {
		if mctx.Err() != nil {
			return NewServiceError(op, unit, "timed out after "+c.mutationTimeout.String(), ErrTimeout)
		}
		msg := strings.TrimSpace(stderr)
		if msg == "" {
			msg = err.Error()
		}
		return NewServiceError(op, unit, msg, ErrCommandFailed)
	}

	c.logger.Debug("systemctl", "op", op, "unit", unit, "elapsed", time.Since(start))
	return nil
}

// =============================================================================
// Queries
// =============================================================================

// IsActive reports whether the unit is in the active state. Any other state,
// including an unknown unit, reads as inactive.
func (c *Client) IsActive(ctx context.Context, unit string) (bool, error) {
	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	stdout, _, err := c.runner.Run(qctx, c.systemctl, "is-active", unit)
	if err != nil {
		if qctx.Err() != nil {
			return false, NewServiceError("is-active", unit, "query timed out", ErrTimeout)
		}
		// is-active exits non-zero for every state but active.
		return false, nil
	}
	return strings.TrimSpace(stdout) == "active", nil
}

// UnitDependencies returns the units named by the requirement and ordering
// directives of one unit. A unit the supervisor cannot report on yields no
// dependencies and no error.
func (c *Client) UnitDependencies(ctx context.Context, unit string) ([]string, error) {
	args := []string{"show"}
	for _, prop := range dependencyProperties {
		args = append(args, "-p", prop)
	}
	args = append(args, unit)

	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	stdout, _, err := c.runner.Run(qctx, c.systemctl, args...)
	if err != nil {
		if qctx.Err() != nil {
			return nil, NewServiceError("show", unit, "query timed out", ErrTimeout)
		}
		return nil, nil
	}
	return parseDependencyList(stdout), nil
}

// parseDependencyList extracts unit names from `systemctl show -p` output,
// one Property=a.service b.service line per property, deduplicated.
func parseDependencyList(out string) []string {
	var deps []string
	seen := make(map[string]bool)
	for _, line := range strings.Split(out, "\n") {
		_, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		for _, name := range strings.Fields(value) {
			if !seen[name] {
				seen[name] = true
				deps = append(deps, name)
			}
		}
	}
	return deps
}

// =============================================================================
// Generator Verification
// =============================================================================

// VerifyGenerator dry-runs the quadlet generator against the deployed units
// and fails when it rejects them. An empty path disables the check.
func (c *Client) VerifyGenerator(ctx context.Context, generatorPath string) error {
	if generatorPath == "" {
		return nil
	}

	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, stderr, err := c.runner.Run(qctx, generatorPath, "-dryrun", "-v")
	if err != nil {
		if qctx.Err() != nil {
			return NewServiceError("generator", "", "dry-run timed out", ErrTimeout)
		}
		msg := strings.TrimSpace(stderr)
		if msg == "" {
			msg = err.Error()
		}
		return NewServiceError("generator", "", msg, ErrGeneratorRejected)
	}
	return nil
}
