package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/grovetools/wsync/config"
	"github.com/grovetools/wsync/errors"
	"github.com/moby/patternmatcher"
	"github.com/sirupsen/logrus"
)

// Store applies import units to a workspace root directory.
type Store struct {
	root        string
	mode        string
	exclude     *patternmatcher.PatternMatcher
	lockTimeout time.Duration
	logger      *logrus.Entry

	// sem is the in-process half of the exclusive scope. A channel rather than
	// a sync.Mutex so waiting can honour the context and timeout.
	sem  chan struct{}
	lock *fileLock
}

// NewStore creates a store for the configured workspace.
func NewStore(cfg config.WorkspaceConfig, logger *logrus.Entry) (*Store, error) {
	if cfg.Root == "" {
		return nil, errors.ConfigInvalid("workspace.root is required")
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace root: %w", err)
	}
	mode := cfg.Mode
	if mode == "" {
		mode = config.ModeLink
	}
	pm, err := patternmatcher.New(cfg.Exclude)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "invalid workspace.exclude pattern")
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	return &Store{
		root:        root,
		mode:        mode,
		exclude:     pm,
		lockTimeout: cfg.LockTimeoutDuration(),
		logger:      logger.WithField("workspace", root),
		sem:         make(chan struct{}, 1),
		lock:        newFileLock(root),
	}, nil
}

// Root returns the absolute workspace root.
func (s *Store) Root() string {
	return s.root
}

// Run executes fn with exclusive access to the workspace. The scope is
// released when fn returns, fails or panics.
func (s *Store) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	deadline := time.Now().Add(s.lockTimeout)
	waitCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	// A free slot wins over an expired deadline, so a zero timeout still
	// enters an uncontended scope.
	select {
	case s.sem <- struct{}{}:
	default:
		select {
		case s.sem <- struct{}{}:
		case <-waitCtx.Done():
			if err := ctx.Err(); err != nil {
				return err
			}
			return errors.WorkspaceLocked(s.root, os.Getpid(), s.lockTimeout)
		}
	}
	defer func() { <-s.sem }()

	if err := s.lock.acquire(ctx, time.Until(deadline)); err != nil {
		return err
	}
	defer func() {
		if err := s.lock.release(); err != nil {
			s.logger.WithError(err).Warn("Failed to release workspace lock")
		}
	}()

	s.logger.Debug("Entered exclusive workspace scope")
	return fn(ctx)
}

// Import brings one unit into the workspace. Failures are reported in the
// result, never as a panic or error.
func (s *Store) Import(ctx context.Context, unit Unit) ImportResult {
	target := filepath.Join(s.root, filepath.Clean(unit.Name))
	if err := unit.Validate(); err != nil {
		return Failed(target, errors.ImportFailed(unit.Key(), err))
	}
	if err := ctx.Err(); err != nil {
		return Failed(target, errors.ImportFailed(unit.Key(), err))
	}

	var res ImportResult
	switch unit.Kind {
	case KindProject:
		if s.mode == config.ModeCopy {
			res = s.copyProject(unit, target)
		} else {
			res = s.linkProject(unit, target)
		}
	case KindResource:
		res = s.writeResource(unit, target)
	}

	entry := s.logger.WithFields(logrus.Fields{"unit": unit.Key(), "status": res.Status})
	if res.Err != nil {
		entry.WithError(res.Err).Warn("Import failed")
	} else {
		entry.Debug("Imported unit")
	}
	return res
}
