package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Workspace import modes.
const (
	ModeLink = "link"
	ModeCopy = "copy"
)

const (
	defaultLockTimeout    = 30 * time.Second
	defaultDebounceMs     = 200
	defaultGitConcurrency = 4
	defaultNATSSubject    = "wsync.events"
)

// DefaultProjectMarkers are the files whose presence marks a directory as a project.
var DefaultProjectMarkers = []string{".project", "go.mod", "grove.yml", "package.json", ".git"}

// WorkspaceConfig describes the workspace that imports are applied to.
type WorkspaceConfig struct {
	// Root is the directory projects are linked or copied into.
	Root string `yaml:"root" toml:"root"`
	// Mode is "link" (symlink projects, default) or "copy".
	Mode string `yaml:"mode,omitempty" toml:"mode,omitempty"`
	// Exclude lists patterns skipped when copying projects.
	Exclude []string `yaml:"exclude,omitempty" toml:"exclude,omitempty"`
	// LockTimeout bounds the wait for the workspace lock (e.g. "30s").
	LockTimeout string `yaml:"lock_timeout,omitempty" toml:"lock_timeout,omitempty"`
}

// LockTimeoutDuration parses LockTimeout, falling back to the default.
func (w WorkspaceConfig) LockTimeoutDuration() time.Duration {
	if w.LockTimeout == "" {
		return defaultLockTimeout
	}
	d, err := time.ParseDuration(w.LockTimeout)
	if err != nil {
		return defaultLockTimeout
	}
	return d
}

// TargetConfig selects the active target definition.
type TargetConfig struct {
	// Active is the path of the active target definition file.
	Active string `yaml:"active" toml:"active"`
	// ProjectMarkers overrides DefaultProjectMarkers.
	ProjectMarkers []string `yaml:"project_markers,omitempty" toml:"project_markers,omitempty"`
	// GitConcurrency bounds concurrent clone/fetch operations.
	GitConcurrency int `yaml:"git_concurrency,omitempty" toml:"git_concurrency,omitempty"`
}

// DaemonConfig holds settings for wsyncd.
type DaemonConfig struct {
	DebounceMs int `yaml:"debounce_ms,omitempty" toml:"debounce_ms,omitempty"`
	// MaxConcurrentPasses limits concurrently running passes. 0 means unlimited.
	MaxConcurrentPasses int    `yaml:"max_concurrent_passes,omitempty" toml:"max_concurrent_passes,omitempty"`
	SyncOnStart         bool   `yaml:"sync_on_start,omitempty" toml:"sync_on_start,omitempty"`
	Socket              string `yaml:"socket,omitempty" toml:"socket,omitempty"`
}

// NATSConfig configures publishing of synchronization events to NATS.
type NATSConfig struct {
	URL     string `yaml:"url,omitempty" toml:"url,omitempty"`
	Subject string `yaml:"subject,omitempty" toml:"subject,omitempty"`
}

// EventsConfig configures event sinks besides the daemon stream.
type EventsConfig struct {
	NATS NATSConfig `yaml:"nats,omitempty" toml:"nats,omitempty"`
}

// Config is the wsync.yml configuration.
type Config struct {
	Version   string          `yaml:"version" toml:"version"`
	Workspace WorkspaceConfig `yaml:"workspace" toml:"workspace"`
	Target    TargetConfig    `yaml:"target" toml:"target"`
	Daemon    DaemonConfig    `yaml:"daemon,omitempty" toml:"daemon,omitempty"`
	Events    EventsConfig    `yaml:"events,omitempty" toml:"events,omitempty"`

	// Extensions captures all other top-level keys (e.g. "logging").
	Extensions map[string]interface{} `yaml:",inline" toml:"-"`

	// Path is the file the configuration was loaded from, if any.
	Path string `yaml:"-" toml:"-"`
}

// SetDefaults sets default values for configuration
func (c *Config) SetDefaults() {
	if c.Version == "" {
		c.Version = "1.0"
	}
	if c.Workspace.Mode == "" {
		c.Workspace.Mode = ModeLink
	}
	if len(c.Target.ProjectMarkers) == 0 {
		c.Target.ProjectMarkers = append([]string(nil), DefaultProjectMarkers...)
	}
	if c.Target.GitConcurrency <= 0 {
		c.Target.GitConcurrency = defaultGitConcurrency
	}
	if c.Daemon.DebounceMs <= 0 {
		c.Daemon.DebounceMs = defaultDebounceMs
	}
	if c.Events.NATS.URL != "" && c.Events.NATS.Subject == "" {
		c.Events.NATS.Subject = defaultNATSSubject
	}
}

// UnmarshalExtension decodes a specific extension's configuration from the
// loaded wsync.yml into the provided target struct. The target must be a pointer.
//
// Example:
//
//	var logCfg logging.Config
//	err := cfg.UnmarshalExtension("logging", &logCfg)
func (c *Config) UnmarshalExtension(key string, target interface{}) error {
	extensionConfig, ok := c.Extensions[key]
	if !ok {
		// A missing key leaves the target zero-valued.
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(extensionConfig); err != nil {
		return fmt.Errorf("failed to decode extension config for '%s': %w", key, err)
	}

	return nil
}
