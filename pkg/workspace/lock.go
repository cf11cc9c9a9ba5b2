package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/grovetools/wsync/errors"
	"github.com/grovetools/wsync/pkg/process"
)

const lockPollInterval = 50 * time.Millisecond

// fileLock is the cross-process half of the workspace scope. The lock file
// holds the PID of its owner; a file left behind by a dead process is stale.
type fileLock struct {
	root string
	path string
}

func newFileLock(root string) *fileLock {
	return &fileLock{root: root, path: filepath.Join(root, ".wsync", "lock")}
}

// acquire creates the lock file, waiting up to timeout for a live holder.
func (l *fileLock) acquire(ctx context.Context, timeout time.Duration) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for {
		holder, err := l.tryAcquire()
		if err != nil {
			return err
		}
		if holder == 0 {
			return nil
		}
		if !time.Now().Before(deadline) {
			return errors.WorkspaceLocked(l.root, holder, timeout)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}

// tryAcquire returns 0 once the lock is held, or the PID of the live holder.
func (l *fileLock) tryAcquire() (int, error) {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err == nil {
		_, werr := f.WriteString(strconv.Itoa(os.Getpid()))
		cerr := f.Close()
		if werr != nil || cerr != nil {
			_ = os.Remove(l.path)
			return 0, fmt.Errorf("failed to write lock file: %v", firstErr(werr, cerr))
		}
		return 0, nil
	}
	if !os.IsExist(err) {
		return 0, fmt.Errorf("failed to create lock file: %w", err)
	}

	content, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			// Released between our create and read.
			return l.tryAcquire()
		}
		return 0, fmt.Errorf("failed to read lock file: %w", err)
	}
	pid, err := process.ParsePID(content)
	if err == nil && process.IsProcessAlive(pid) {
		return pid, nil
	}

	// Stale lock, or one being written right now. Only the unparsable case
	// can be the latter, so give it one poll interval before breaking it.
	if err != nil {
		if info, statErr := os.Stat(l.path); statErr == nil && time.Since(info.ModTime()) < lockPollInterval {
			return -1, nil
		}
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return 0, fmt.Errorf("failed to remove stale lock file: %w", err)
	}
	return l.tryAcquire()
}

func (l *fileLock) release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
