package workdir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

// LockName is the lock file created in the download directory.
const LockName = ".autosplit.lock"

// ErrLocked reports that another run holds the download directory.
var ErrLocked = errors.New("download directory is in use by another autosplit run")

// Workspace is the scratch directory and download lock held by one run.
type Workspace struct {
	runID    string
	scratch  string
	lockPath string
	lock     *flock.Flock
}

// Acquire locks downloadDir and creates a fresh scratch directory under workDir.
// An empty runID is replaced with a new UUID.
func Acquire(workDir, downloadDir, runID string) (*Workspace, error) {
	if strings.TrimSpace(workDir) == "" {
		return nil, errors.New("work directory is required")
	}
	if strings.TrimSpace(downloadDir) == "" {
		return nil, errors.New("download directory is required")
	}
	if strings.TrimSpace(runID) == "" {
		runID = uuid.NewString()
	}

	if err := os.MkdirAll(downloadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create download directory: %w", err)
	}
	lockPath := filepath.Join(downloadDir, LockName)
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, lockPath)
	}

	scratch := filepath.Join(workDir, "autosplit-"+runID)
	if err := os.RemoveAll(scratch); err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("clear scratch directory: %w", err)
	}
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("create scratch directory: %w", err)
	}

	return &Workspace{runID: runID, scratch: scratch, lockPath: lockPath, lock: lock}, nil
}

// RunID returns the identifier embedded in the scratch directory name.
func (w *Workspace) RunID() string { return w.runID }

// ScratchDir returns the per-run scratch directory.
func (w *Workspace) ScratchDir() string { return w.scratch }

// LockPath returns the lock file guarding the download directory.
func (w *Workspace) LockPath() string { return w.lockPath }

// Release removes the scratch directory and releases the lock. It is safe to
// call more than once.
func (w *Workspace) Release() error {
	if w == nil {
		return nil
	}
	var errs []error
	if w.scratch != "" {
		if err := os.RemoveAll(w.scratch); err != nil {
			errs = append(errs, fmt.Errorf("remove scratch directory: %w", err))
		}
		w.scratch = ""
	}
	if w.lock != nil {
		if err := w.lock.Unlock(); err != nil {
			errs = append(errs, fmt.Errorf("release lock: %w", err))
		}
		w.lock = nil
	}
	return errors.Join(errs...)
}
