// Package paths provides XDG-compliant path resolution for wsync.
//
// Resolution order:
// 1. WSYNC_HOME (portable root) → $WSYNC_HOME/{config,state,cache,run}
// 2. XDG env vars → $XDG_*_HOME/wsync
// 3. Platform defaults → ~/.config/wsync, ~/.local/state/wsync, etc.
package paths

import (
	"os"
	"path/filepath"
)

const appName = "wsync"

// xdgHome resolves a base directory for one XDG category.
func xdgHome(homeSubdir, xdgEnv string, fallback ...string) string {
	if wsyncHome := os.Getenv("WSYNC_HOME"); wsyncHome != "" {
		return filepath.Join(wsyncHome, homeSubdir)
	}
	if dir := os.Getenv(xdgEnv); dir != "" {
		return dir
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(append([]string{homeDir}, fallback...)...)
	}
	return ""
}

func join(base string) string {
	if base == "" {
		return ""
	}
	return filepath.Join(base, appName)
}

// ConfigDir returns the wsync configuration directory.
// Used for the global wsync.yml.
func ConfigDir() string {
	return join(xdgHome("config", "XDG_CONFIG_HOME", ".config"))
}

// StateDir returns the wsync state directory.
// Used for the daemon pid file and logs.
func StateDir() string {
	return join(xdgHome("state", "XDG_STATE_HOME", ".local", "state"))
}

// CacheDir returns the wsync cache directory.
// Git locations are checked out below it.
func CacheDir() string {
	return join(xdgHome("cache", "XDG_CACHE_HOME", ".cache"))
}

// LocationCacheDir returns the checkout directory for a git-backed location.
func LocationCacheDir(location string) string {
	return filepath.Join(CacheDir(), "locations", location)
}

// RuntimeDir returns the wsync runtime directory for sockets.
// Uses XDG_RUNTIME_DIR when available (Linux), falls back to StateDir (macOS).
func RuntimeDir() string {
	if wsyncHome := os.Getenv("WSYNC_HOME"); wsyncHome != "" {
		return filepath.Join(wsyncHome, "run")
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, appName)
	}
	return StateDir()
}

// SocketPath returns the path to the wsync daemon unix socket.
func SocketPath() string {
	return filepath.Join(RuntimeDir(), "wsyncd.sock")
}

// PidFilePath returns the path to the wsync daemon PID file.
func PidFilePath() string {
	return filepath.Join(StateDir(), "wsyncd.pid")
}

// EnsureDirs creates all wsync directories if they don't exist.
func EnsureDirs() error {
	for _, dir := range []string{ConfigDir(), StateDir(), CacheDir(), RuntimeDir()} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
