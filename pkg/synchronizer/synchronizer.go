// Package synchronizer keeps a workspace in sync with the active target
// definition. A pass unions the units of every healthy location, imports them
// under one exclusive workspace scope and then reports per-location results.
package synchronizer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/grovetools/wsync/errors"
	"github.com/grovetools/wsync/pkg/events"
	"github.com/grovetools/wsync/pkg/metrics"
	"github.com/grovetools/wsync/pkg/scheduler"
	"github.com/grovetools/wsync/pkg/target"
	"github.com/grovetools/wsync/pkg/workspace"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Pass trigger reasons.
const (
	ReasonExplicit   = "explicit"
	ReasonActivation = "activation"
	ReasonStartup    = "startup"
)

// TaskName is the scheduler task name of a background pass.
const TaskName = "synchronize"

// Platform supplies the active target definition and location descriptors.
type Platform interface {
	ActiveDefinition(ctx context.Context) (*target.Definition, error)
	Descriptor(ctx context.Context, loc target.Location) (*target.Descriptor, error)
	Subscribe(l target.ActivationListener) target.Subscription
}

// Workspace provides the exclusive scope and the per-unit import.
type Workspace interface {
	Run(ctx context.Context, fn func(ctx context.Context) error) error
	Import(ctx context.Context, unit workspace.Unit) workspace.ImportResult
}

// Notifier delivers events to listeners synchronously.
type Notifier interface {
	Notify(ctx context.Context, ev events.Event)
}

// Options are the collaborators of a Synchronizer.
type Options struct {
	Platform  Platform
	Workspace Workspace
	Notifier  Notifier
	// Scheduler runs background passes. Defaults to an unlimited
	// scheduler.Background that logs failures.
	Scheduler scheduler.Scheduler
	// Metrics is optional.
	Metrics *metrics.Metrics
	// Observer, when set, receives a summary of every finished pass.
	Observer func(Pass)
	Logger   *logrus.Entry
}

// Synchronizer runs synchronization passes.
type Synchronizer struct {
	platform  Platform
	workspace Workspace
	notifier  Notifier
	scheduler scheduler.Scheduler
	metrics   *metrics.Metrics
	observer  func(Pass)
	logger    *logrus.Entry

	mu  sync.Mutex
	sub target.Subscription
}

// New creates a synchronizer.
func New(opts Options) (*Synchronizer, error) {
	if opts.Platform == nil || opts.Workspace == nil || opts.Notifier == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "synchronizer requires a platform, a workspace and a notifier")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	sched := opts.Scheduler
	if sched == nil {
		sched = scheduler.NewBackground(0, &scheduler.LogReporter{Logger: logger})
	}
	return &Synchronizer{
		platform:  opts.Platform,
		workspace: opts.Workspace,
		notifier:  opts.Notifier,
		scheduler: sched,
		metrics:   opts.Metrics,
		observer:  opts.Observer,
		logger:    logger,
	}, nil
}

// Synchronize runs one pass on the calling goroutine and returns the result
// of every unit processed. A failure to read the target definition or a
// location descriptor fails the pass before any event is emitted.
func (s *Synchronizer) Synchronize(ctx context.Context) (workspace.Results, error) {
	return s.synchronize(ctx, ReasonExplicit)
}

func (s *Synchronizer) synchronize(ctx context.Context, reason string) (workspace.Results, error) {
	p := Pass{ID: uuid.New(), Reason: reason, StartedAt: time.Now()}
	log := s.logger.WithFields(logrus.Fields{"pass": p.ID.String(), "reason": reason})
	log.Debug("Starting synchronization pass")

	results, err := s.pass(ctx, &p, log)
	p.FinishedAt = time.Now()

	outcome := metrics.OutcomeSucceeded
	switch {
	case err != nil:
		outcome = metrics.OutcomeFailed
		p.Error = err.Error()
		log.WithError(err).Error("Synchronization pass failed")
	case len(results) == 0:
		outcome = metrics.OutcomeEmpty
		log.Debug("Synchronization pass had nothing to import")
	default:
		p.Counts = results.Counts()
		log.WithFields(logrus.Fields{
			"units":     len(results),
			"failed":    p.Counts[workspace.StatusFailed],
			"locations": len(p.Locations),
			"duration":  p.Duration().Round(time.Millisecond),
		}).Info("Synchronization pass finished")
	}
	s.metrics.ObservePass(outcome, p.Duration(), results)
	if s.observer != nil {
		s.observer(p)
	}
	return results, err
}

func (s *Synchronizer) pass(ctx context.Context, p *Pass, log *logrus.Entry) (workspace.Results, error) {
	def, err := s.platform.ActiveDefinition(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSyncFailed, "failed to read the active target definition")
	}
	if def == nil {
		log.Debug("No active target definition")
		return workspace.Results{}, nil
	}
	p.Definition = def.Name

	descs, err := s.descriptors(ctx, def)
	if err != nil {
		return nil, err
	}

	var surviving []*target.Descriptor
	units := workspace.NewUnitSet()
	for i, desc := range descs {
		loc := def.Locations[i]
		switch {
		case desc == nil:
			log.WithField("location", loc.Name).Debug("Location has no descriptor")
		case desc.UpdateProblem != nil:
			log.WithField("location", loc.Name).WithError(desc.UpdateProblem).Warn("Skipping location with update problem")
			s.metrics.ObserveLocationProblem(loc.Name)
			if p.Problems == nil {
				p.Problems = make(map[string]string)
			}
			p.Problems[loc.Name] = desc.UpdateProblem.Error()
		default:
			surviving = append(surviving, desc)
			units.Add(desc.Units...)
			p.Locations = append(p.Locations, loc.Name)
		}
	}

	results := workspace.Results{}
	if len(units) > 0 {
		results, err = s.Apply(ctx, units.Slice())
		if err != nil {
			return nil, err
		}
	}

	// Events go out only after the shared apply has completed.
	for _, desc := range surviving {
		s.notifier.Notify(ctx, events.NewWorkspaceUpdateFinished(p.ID, desc, results.Restrict(desc.Units)))
	}
	return results, nil
}

// descriptors fetches every location's descriptor concurrently, in
// definition order.
func (s *Synchronizer) descriptors(ctx context.Context, def *target.Definition) ([]*target.Descriptor, error) {
	descs := make([]*target.Descriptor, len(def.Locations))
	g, gctx := errgroup.WithContext(ctx)
	for i, loc := range def.Locations {
		g.Go(func() error {
			desc, err := s.platform.Descriptor(gctx, loc)
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeSyncFailed,
					fmt.Sprintf("failed to resolve location '%s'", loc.Name)).WithDetail("location", loc.Name)
			}
			descs[i] = desc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return descs, nil
}

// Apply imports units inside one exclusive workspace scope. Every unit gets
// a result; a failing unit never stops its siblings. The only error is a
// failure to enter the scope.
func (s *Synchronizer) Apply(ctx context.Context, units []workspace.Unit) (workspace.Results, error) {
	results := make(workspace.Results, len(units))
	if len(units) == 0 {
		return results, nil
	}
	err := s.workspace.Run(ctx, func(ctx context.Context) error {
		for _, u := range units {
			results[u] = s.importUnit(ctx, u)
		}
		return nil
	})
	if err != nil {
		if _, ok := errors.As(err); ok {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.ErrCodeSyncFailed, "failed to enter the workspace scope")
	}
	return results, nil
}

func (s *Synchronizer) importUnit(ctx context.Context, u workspace.Unit) (res workspace.ImportResult) {
	defer func() {
		if rec := recover(); rec != nil {
			res = workspace.Failed("", errors.ImportFailed(u.Key(), fmt.Errorf("panic: %v", rec)))
		}
	}()
	res = s.workspace.Import(ctx, u)
	if res.Status == workspace.StatusFailed && res.Err == nil {
		res.Err = errors.ImportFailed(u.Key(), fmt.Errorf("import reported failure without an error"))
	}
	return res
}

// Start subscribes to target definition activations. Each activation of a
// non-nil definition submits one background pass. Start is idempotent.
func (s *Synchronizer) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub != nil {
		return
	}
	s.sub = s.platform.Subscribe(s.onActivation)
	s.logger.Debug("Subscribed to target activations")
}

// Stop cancels the activation subscription. Passes already submitted run to
// completion. Stop is idempotent.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub == nil {
		return
	}
	s.sub.Cancel()
	s.sub = nil
	s.logger.Debug("Unsubscribed from target activations")
}

// Running reports whether the activation subscription is active.
func (s *Synchronizer) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sub != nil
}

func (s *Synchronizer) onActivation(prev, next *target.Definition) {
	if next == nil {
		return
	}
	s.Trigger(ReasonActivation)
}

// Trigger submits one pass to the scheduler and returns its handle.
func (s *Synchronizer) Trigger(reason string) *scheduler.Handle {
	return s.scheduler.Submit(TaskName, func(ctx context.Context) error {
		_, err := s.synchronize(ctx, reason)
		return err
	})
}
