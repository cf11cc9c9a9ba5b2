package daemon

import (
	"context"

	"github.com/grovetools/wsync/config"
	"github.com/grovetools/wsync/errors"
	"github.com/grovetools/wsync/pkg/events"
	"github.com/grovetools/wsync/pkg/scheduler"
	"github.com/grovetools/wsync/pkg/synchronizer"
	"github.com/grovetools/wsync/pkg/target"
	"github.com/grovetools/wsync/pkg/workspace"
	"github.com/sirupsen/logrus"
)

// LocalClient implements Client by calling library functions directly.
// This is used when the daemon is not running, providing the same API
// but executing all operations in-process.
type LocalClient struct {
	service  *target.Service
	registry *events.Registry
	sync     *synchronizer.Synchronizer
	logger   *logrus.Entry
}

// NewLocalClient builds the synchronizer stack from cfg and activates the
// configured target definition.
func NewLocalClient(cfg *config.Config, logger *logrus.Entry) (*LocalClient, error) {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if cfg.Target.Active == "" {
		return nil, errors.New(errors.ErrCodeConfigValidation, "no active target definition configured (target.active)")
	}

	service := target.NewDefaultService(cfg, logger)
	if _, err := service.LoadAndActivate(cfg.Target.Active); err != nil {
		return nil, err
	}
	ws, err := workspace.NewStore(cfg.Workspace, logger)
	if err != nil {
		return nil, err
	}

	registry := events.NewRegistry(logger)
	registry.Add(&events.LogListener{Logger: logger})

	sync, err := synchronizer.New(synchronizer.Options{
		Platform:  service,
		Workspace: ws,
		Notifier:  registry,
		Scheduler: &scheduler.Inline{Reporter: &scheduler.LogReporter{Logger: logger}},
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	return &LocalClient{service: service, registry: registry, sync: sync, logger: logger}, nil
}

// Registry exposes the event registry so callers can observe local passes.
func (c *LocalClient) Registry() *events.Registry {
	return c.registry
}

// Sync runs a pass on the calling goroutine; wait is implied.
func (c *LocalClient) Sync(ctx context.Context, wait bool) (*SyncResponse, error) {
	results, err := c.sync.Synchronize(ctx)
	if err != nil {
		return nil, err
	}
	return &SyncResponse{Results: results}, nil
}

// Locations resolves the active definition in-process.
func (c *LocalClient) Locations(ctx context.Context) ([]LocationInfo, error) {
	return Describe(ctx, c.service)
}

// State returns an error for LocalClient since state is only kept by the daemon.
func (c *LocalClient) State(ctx context.Context) (*State, error) {
	return nil, errors.New(errors.ErrCodeDaemonNotRunning, "state not available in local mode; start the daemon to keep results")
}

// StreamState returns an error for LocalClient since streaming is only available via daemon.
func (c *LocalClient) StreamState(ctx context.Context) (<-chan StateUpdate, error) {
	return nil, errors.New(errors.ErrCodeDaemonNotRunning, "streaming not available in local mode; start the daemon for real-time updates")
}

// IsRunning returns false since this is the local fallback client.
func (c *LocalClient) IsRunning() bool {
	return false
}

// Close is a no-op for LocalClient.
func (c *LocalClient) Close() error {
	return nil
}

// Ensure LocalClient implements Client interface.
var _ Client = (*LocalClient)(nil)
