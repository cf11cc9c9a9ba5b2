// Package engine wires the synchronizer, its collaborators and the daemon
// state store together and runs them for the lifetime of the daemon.
package engine

import (
	"context"
	"time"

	"github.com/grovetools/wsync/config"
	"github.com/grovetools/wsync/internal/daemon/store"
	"github.com/grovetools/wsync/pkg/events"
	"github.com/grovetools/wsync/pkg/metrics"
	"github.com/grovetools/wsync/pkg/scheduler"
	"github.com/grovetools/wsync/pkg/synchronizer"
	"github.com/grovetools/wsync/pkg/target"
	"github.com/grovetools/wsync/pkg/workspace"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 30 * time.Second

// Engine owns every long-lived component of the daemon.
type Engine struct {
	cfg       *config.Config
	store     *store.Store
	service   *target.Service
	workspace *workspace.Store
	registry  *events.Registry
	scheduler *scheduler.Background
	metrics   *metrics.Metrics
	sync      *synchronizer.Synchronizer
	nats      *events.NATSPublisher
	logger    *logrus.Entry
}

// New builds an engine from cfg. It connects to NATS when an event URL is
// configured.
func New(cfg *config.Config, st *store.Store, logger *logrus.Entry) (*Engine, error) {
	ws, err := workspace.NewStore(cfg.Workspace, logger.WithField("component", "workspace"))
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:       cfg,
		store:     st,
		service:   target.NewDefaultService(cfg, logger.WithField("component", "target")),
		workspace: ws,
		registry:  events.NewRegistry(logger),
		metrics:   metrics.New(),
		logger:    logger,
	}

	e.registry.Add(&events.LogListener{Logger: logger})
	e.registry.Add(st)
	if cfg.Events.NATS.URL != "" {
		pub, err := events.ConnectNATS(cfg.Events.NATS.URL, cfg.Events.NATS.Subject, logger)
		if err != nil {
			return nil, err
		}
		e.nats = pub
		e.registry.Add(pub)
	}

	e.scheduler = scheduler.NewBackground(cfg.Daemon.MaxConcurrentPasses, scheduler.Reporters{
		&scheduler.LogReporter{Logger: logger},
		e.metrics,
	})

	e.sync, err = synchronizer.New(synchronizer.Options{
		Platform:  e.service,
		Workspace: ws,
		Notifier:  e.registry,
		Scheduler: e.scheduler,
		Metrics:   e.metrics,
		Observer:  st.RecordPass,
		Logger:    logger.WithField("component", "synchronizer"),
	})
	if err != nil {
		e.closeNATS()
		return nil, err
	}
	return e, nil
}

// Start loads the active definition, subscribes the synchronizer and runs
// the file watcher. It blocks until ctx is cancelled, then waits for
// running passes.
func (e *Engine) Start(ctx context.Context) error {
	defer e.closeNATS()

	e.service.Subscribe(func(prev, next *target.Definition) {
		if next == nil {
			e.store.SetDefinition("", nil)
			return
		}
		names := make([]string, 0, len(next.Locations))
		for _, loc := range next.Locations {
			names = append(names, loc.Name)
		}
		e.store.SetDefinition(next.Name, names)
	})

	if e.cfg.Target.Active != "" {
		if _, err := e.service.LoadAndActivate(e.cfg.Target.Active); err != nil {
			e.logger.WithError(err).Error("Failed to load the active target definition")
		}
	}

	watcher, err := target.NewWatcher(e.cfg.Daemon.DebounceMs, e.logger.WithField("component", "watcher"))
	if err != nil {
		return err
	}
	defer watcher.Close()
	e.watchDefinition(watcher, e.cfg.Target.Active)
	if e.cfg.Path != "" {
		if err := watcher.Watch(e.cfg.Path, func(path string) { e.reloadConfig(watcher, path) }); err != nil {
			e.logger.WithError(err).Warn("Failed to watch the configuration file")
		}
	}

	e.sync.Start()
	defer e.sync.Stop()
	if e.cfg.Daemon.SyncOnStart {
		e.sync.Trigger(synchronizer.ReasonStartup)
	}

	e.logger.Info("Engine started")
	watcher.Start(ctx)

	e.sync.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.scheduler.Shutdown(shutdownCtx); err != nil {
		e.logger.WithError(err).Warn("Synchronization passes did not finish before shutdown")
	}
	e.logger.Info("Engine stopped")
	return nil
}

func (e *Engine) watchDefinition(watcher *target.Watcher, path string) {
	if path == "" {
		return
	}
	err := watcher.Watch(path, func(path string) {
		if _, err := e.service.LoadAndActivate(path); err != nil {
			e.logger.WithError(err).Error("Failed to reload the target definition; keeping the previous one")
		}
	})
	if err != nil {
		e.logger.WithError(err).Warn("Failed to watch the target definition")
	}
}

// reloadConfig follows a change of target.active. Other settings apply on
// the next daemon start.
func (e *Engine) reloadConfig(watcher *target.Watcher, path string) {
	e.store.BroadcastConfigReload(path)

	cfg, err := config.Load(path)
	if err != nil {
		e.logger.WithError(err).Error("Failed to reload configuration")
		return
	}
	if cfg.Target.Active == e.cfg.Target.Active {
		return
	}

	e.logger.WithField("definition", cfg.Target.Active).Info("Active target definition changed")
	if e.cfg.Target.Active != "" {
		watcher.Unwatch(e.cfg.Target.Active)
	}
	e.cfg.Target.Active = cfg.Target.Active
	e.watchDefinition(watcher, cfg.Target.Active)

	if cfg.Target.Active == "" {
		e.service.Activate(nil)
		return
	}
	if _, err := e.service.LoadAndActivate(cfg.Target.Active); err != nil {
		e.logger.WithError(err).Error("Failed to load the active target definition")
	}
}

func (e *Engine) closeNATS() {
	if e.nats == nil {
		return
	}
	if err := e.nats.Close(); err != nil {
		e.logger.WithError(err).Warn("Failed to drain NATS connection")
	}
	e.nats = nil
}

// Store returns the engine's state store.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Synchronizer returns the engine's synchronizer.
func (e *Engine) Synchronizer() *synchronizer.Synchronizer {
	return e.sync
}

// Service returns the target platform service.
func (e *Engine) Service() *target.Service {
	return e.service
}

// Metrics returns the engine's metrics.
func (e *Engine) Metrics() *metrics.Metrics {
	return e.metrics
}
