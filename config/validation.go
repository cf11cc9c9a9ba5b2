package config

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/grovetools/wsync/errors"
)

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Workspace.Root == "" {
		return errors.New(errors.ErrCodeConfigValidation, "workspace.root cannot be empty")
	}
	if err := validatePath("workspace.root", c.Workspace.Root); err != nil {
		return err
	}

	switch c.Workspace.Mode {
	case ModeLink, ModeCopy:
	default:
		return errors.New(errors.ErrCodeConfigValidation,
			fmt.Sprintf("invalid workspace.mode '%s' (must be %s or %s)", c.Workspace.Mode, ModeLink, ModeCopy)).
			WithDetail("mode", c.Workspace.Mode)
	}

	if c.Workspace.LockTimeout != "" {
		d, err := time.ParseDuration(c.Workspace.LockTimeout)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeConfigValidation, "invalid workspace.lock_timeout").
				WithDetail("lock_timeout", c.Workspace.LockTimeout)
		}
		if d < 0 {
			return errors.New(errors.ErrCodeConfigValidation, "workspace.lock_timeout cannot be negative")
		}
	}

	if err := validatePath("target.active", c.Target.Active); err != nil {
		return err
	}

	for _, marker := range c.Target.ProjectMarkers {
		if marker == "" || strings.ContainsRune(marker, filepath.Separator) {
			return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("invalid project marker '%s'", marker)).
				WithDetail("marker", marker)
		}
	}

	if c.Daemon.MaxConcurrentPasses < 0 {
		return errors.New(errors.ErrCodeConfigValidation, "daemon.max_concurrent_passes cannot be negative")
	}

	if c.Events.NATS.URL != "" && strings.ContainsAny(c.Events.NATS.Subject, " *>") {
		return errors.New(errors.ErrCodeConfigValidation, "events.nats.subject must be a literal subject").
			WithDetail("subject", c.Events.NATS.Subject)
	}

	return nil
}

// validatePath validates that a path is appropriate for the current OS
func validatePath(fieldName, path string) error {
	if path == "" {
		return nil
	}

	// Check for Windows absolute paths on Unix systems
	if runtime.GOOS != "windows" && filepath.IsAbs(path) && strings.Contains(path, "\\") {
		return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("%s contains Windows-style path on Unix system", fieldName)).
			WithDetail("path", path)
	}

	// Check for Unix absolute paths on Windows systems
	if runtime.GOOS == "windows" && strings.HasPrefix(path, "/") && !strings.HasPrefix(path, "//") {
		return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("%s contains Unix-style path on Windows system", fieldName)).
			WithDetail("path", path)
	}

	return nil
}
