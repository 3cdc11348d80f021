package deploy

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/quadapp/internal/core/plan"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestApply_WritesFilesWithMode(t *testing.T) {
	root := t.TempDir()
	d := NewDeployer(testLogger())

	artifacts := []plan.Artifact{
		{
			Class:   plan.ClassUnit,
			Path:    filepath.Join(root, "shop--main.container"),
			Content: []byte("[Container]\nImage=app:1\n"),
			Mode:    plan.FileMode,
		},
		{
			Class:   plan.ClassInit,
			Path:    filepath.Join(root, "shop", "init", "db", "10-schema.sql"),
			Content: []byte("CREATE TABLE t (id int);\n"),
			Mode:    plan.FileMode,
		},
	}

	require.NoError(t, d.Apply(context.Background(), artifacts))

	data, err := os.ReadFile(artifacts[0].Path)
	require.NoError(t, err)
	assert.Equal(t, "[Container]\nImage=app:1\n", string(data))

	info, err := os.Stat(artifacts[1].Path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())

	dirInfo, err := os.Stat(filepath.Join(root, "shop", "init", "db"))
	require.NoError(t, err)
	assert.True(t, dirInfo.IsDir())
}

func TestApply_ReplacesExistingFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "shop--main.container")
	require.NoError(t, os.WriteFile(path, []byte("old\n"), 0o644))

	d := NewDeployer(testLogger())
	err := d.Apply(context.Background(), []plan.Artifact{
		{Path: path, Content: []byte("new\n"), Mode: plan.FileMode},
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new\n", string(data))
}

func TestApply_EmptySetIsNoOp(t *testing.T) {
	d := NewDeployer(testLogger())
	assert.NoError(t, d.Apply(context.Background(), nil))
}

func TestApply_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewDeployer(testLogger())
	err := d.Apply(ctx, []plan.Artifact{
		{Path: filepath.Join(t.TempDir(), "x"), Content: []byte("x"), Mode: plan.FileMode},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	var depErr *DeployError
	assert.ErrorAs(t, err, &depErr)
}

// =============================================================================
// Locking
// =============================================================================

func TestAcquireLock_SameAppSerializes(t *testing.T) {
	stateDir := t.TempDir()

	first, err := AcquireLock(context.Background(), stateDir, "shop")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	_, err = AcquireLock(ctx, stateDir, "shop")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, first.Release())

	again, err := AcquireLock(context.Background(), stateDir, "shop")
	require.NoError(t, err)
	require.NoError(t, again.Release())
}

func TestAcquireLock_DistinctAppsConcurrent(t *testing.T) {
	stateDir := t.TempDir()

	shop, err := AcquireLock(context.Background(), stateDir, "shop")
	require.NoError(t, err)
	defer shop.Release()

	blog, err := AcquireLock(context.Background(), stateDir, "blog")
	require.NoError(t, err)
	defer blog.Release()

	assert.NotEqual(t, shop.Path(), blog.Path())
}

func TestAcquireLock_CreatesStateDir(t *testing.T) {
	stateDir := filepath.Join(t.TempDir(), "nested", "state")

	l, err := AcquireLock(context.Background(), stateDir, "shop")
	require.NoError(t, err)
	defer l.Release()

	info, err := os.Stat(stateDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
