package shared

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// RunLock guards playlist mutations against a second plsync process.
type RunLock struct {
	lock *flock.Flock
}

// NewRunLock creates a lock file next to the database at dbPath.
func NewRunLock(dbPath string) *RunLock {
	dir := filepath.Dir(dbPath)
	if dbPath == "" || dbPath == memoryDatabase {
		dir = os.TempDir()
	}
	return &RunLock{lock: flock.New(filepath.Join(dir, "plsync.lock"))}
}

// Acquire takes the lock without blocking. Returns [ErrAlreadyRunning] when another process holds it.
func (l *RunLock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.lock.Path()), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	ok, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s is locked", ErrAlreadyRunning, l.lock.Path())
	}
	return nil
}

// Release drops the lock.
func (l *RunLock) Release() error {
	return l.lock.Unlock()
}

// Path returns the lock file location.
func (l *RunLock) Path() string {
	return l.lock.Path()
}
