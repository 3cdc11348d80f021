package systemd

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Fake Runner
// =============================================================================

type runnerResult struct {
	stdout string
	stderr string
	err    error
}

// fakeRunner answers commands from a canned table keyed by the full argv.
type fakeRunner struct {
	mu    sync.Mutex
	calls [][]string
	out   map[string]runnerResult
	block bool // park until the context expires
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (string, string, error) {
	argv := append([]string{name}, args...)
	f.mu.Lock()
	f.calls = append(f.calls, argv)
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return "", "", ctx.Err()
	}
	if r, ok := f.out[strings.Join(argv, " ")]; ok {
		return r.stdout, r.stderr, r.err
	}
	return "", "", nil
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeRunner) lastCall() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return nil
	}
	return f.calls[len(f.calls)-1]
}

func testClient(runner CommandRunner) *Client {
	return NewClient(runner, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// =============================================================================
// Mutations
// =============================================================================

func TestDaemonReload_IssuesCommand(t *testing.T) {
	runner := &fakeRunner{}
	require.NoError(t, testClient(runner).DaemonReload(context.Background()))
	assert.Equal(t, []string{"systemctl", "daemon-reload"}, runner.lastCall())
}

func TestStartRestartStop_PassUnit(t *testing.T) {
	runner := &fakeRunner{}
	c := testClient(runner)
	ctx := context.Background()

	require.NoError(t, c.Start(ctx, "shop--main.service"))
	assert.Equal(t, []string{"systemctl", "start", "shop--main.service"}, runner.lastCall())

	require.NoError(t, c.Restart(ctx, "shop--db.service"))
	assert.Equal(t, []string{"systemctl", "restart", "shop--db.service"}, runner.lastCall())

	require.NoError(t, c.Stop(ctx, "shop--main.service"))
	assert.Equal(t, []string{"systemctl", "stop", "shop--main.service"}, runner.lastCall())
}

func TestMutation_FailureCarriesStderr(t *testing.T) {
	runner := &fakeRunner{out: map[string]runnerResult{
		"systemctl start shop--main.service": {
			stderr: "Unit shop--main.service not found.\n",
			err:    errors.New("exit status 5"),
		},
	}}

	err := testClient(runner).Start(context.Background(), "shop--main.service")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCommandFailed)

	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "start", svcErr.Op)
	assert.Equal(t, "shop--main.service", svcErr.Unit)
	assert.Contains(t, svcErr.Message, "not found")
}

func TestMutation_Timeout(t *testing.T) {
	runner := &fakeRunner{block: true}
	c := NewClient(runner, 50*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := c.Restart(context.Background(), "shop--main.service")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
}

// =============================================================================
// Queries
// =============================================================================

func TestIsActive_States(t *testing.T) {
	runner := &fakeRunner{out: map[string]runnerResult{
		"systemctl is-active shop--main.service": {stdout: "active\n"},
		"systemctl is-active shop--db.service":   {stdout: "inactive\n", err: errors.New("exit status 3")},
	}}
	c := testClient(runner)
	ctx := context.Background()

	active, err := c.IsActive(ctx, "shop--main.service")
	require.NoError(t, err)
	assert.True(t, active)

	active, err = c.IsActive(ctx, "shop--db.service")
	require.NoError(t, err)
	assert.False(t, active)

	// Unknown unit: non-zero exit, still not an error.
	active, err = c.IsActive(ctx, "ghost.service")
	require.NoError(t, err)
	assert.False(t, active)
}

func TestUnitDependencies_ParsesProperties(t *testing.T) {
	show := "systemctl show -p Requires -p Wants -p Requisite -p BindsTo -p Upholds -p After shop--main.service"
	runner := &fakeRunner{out: map[string]runnerResult{
		show: {stdout: "Requires=shop--db.service basic.target\nWants=shop--cache.service\nRequisite=\nBindsTo=\nUpholds=\nAfter=shop--db.service network-online.target\n"},
	}}

	deps, err := testClient(runner).UnitDependencies(context.Background(), "shop--main.service")
	require.NoError(t, err)
	assert.Equal(t, []string{"shop--db.service", "basic.target", "shop--cache.service", "network-online.target"}, deps)
}

func TestUnitDependencies_UnknownUnitHasNone(t *testing.T) {
	show := "systemctl show -p Requires -p Wants -p Requisite -p BindsTo -p Upholds -p After ghost.service"
	runner := &fakeRunner{out: map[string]runnerResult{
		show: {stderr: "Unit ghost.service could not be found.\n", err: errors.New("exit status 4")},
	}}

	deps, err := testClient(runner).UnitDependencies(context.Background(), "ghost.service")
	require.NoError(t, err)
	assert.Empty(t, deps)
}

// =============================================================================
// Generator Verification
// =============================================================================

func TestVerifyGenerator_Passes(t *testing.T) {
	runner := &fakeRunner{}
	err := testClient(runner).VerifyGenerator(context.Background(), "/usr/lib/systemd/system-generators/podman-system-generator")
	require.NoError(t, err)
	assert.Equal(t, []string{"/usr/lib/systemd/system-generators/podman-system-generator", "-dryrun", "-v"}, runner.lastCall())
}

func TestVerifyGenerator_Rejection(t *testing.T) {
	runner := &fakeRunner{out: map[string]runnerResult{
		"/gen -dryrun -v": {stderr: "quadlet-generator: main.container:3: unknown key\n", err: errors.New("exit status 1")},
	}}

	err := testClient(runner).VerifyGenerator(context.Background(), "/gen")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGeneratorRejected)
	assert.Contains(t, err.Error(), "unknown key")
}

func TestVerifyGenerator_DisabledByEmptyPath(t *testing.T) {
	runner := &fakeRunner{}
	require.NoError(t, testClient(runner).VerifyGenerator(context.Background(), ""))
	assert.Zero(t, runner.callCount())
}
