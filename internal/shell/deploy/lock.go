package deploy

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// lockRetryInterval is how often a blocked lock attempt re-tries.
const lockRetryInterval = 100 * time.Millisecond

// AppLock is a per-application advisory file lock. Invocations for the same
// application serialize on it; distinct applications proceed concurrently.
type AppLock struct {
	path string
	file *os.File
}

// AcquireLock takes the advisory lock for app, retrying until ctx expires.
// Lock files live under stateDir, which is created if missing.
func AcquireLock(ctx context.Context, stateDir, app string) (*AppLock, error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, NewDeployError(stateDir, "failed to create state directory", err)
	}

	path := filepath.Join(stateDir, app+".lock")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, NewDeployError(path, "failed to open lock file", err)
	}

	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return &AppLock{path: path, file: f}, nil
		}
		if err != unix.EWOULDBLOCK {
			f.Close()
			return nil, NewDeployError(path, "failed to lock", err)
		}

		select {
		case <-ctx.Done():
			f.Close()
			return nil, NewDeployError(path, "timed out waiting for application lock", ctx.Err())
		case <-time.After(lockRetryInterval):
		}
	}
}

// Path returns the lock file path.
func (l *AppLock) Path() string {
	return l.path
}

// Release unlocks and closes the lock file.
func (l *AppLock) Release() error {
	defer l.file.Close()
	return unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
}
