package target

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/grovetools/wsync/config"
	"github.com/grovetools/wsync/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ActivationListener is notified when the active definition changes. next is
// nil when the active definition is cleared.
type ActivationListener func(prev, next *Definition)

// Subscription is a cancellable listener registration.
type Subscription interface {
	Cancel()
}

// Service holds the active target definition and resolves its locations.
type Service struct {
	mu        sync.RWMutex
	active    *Definition
	resolvers map[Kind]Resolver
	listeners map[uint64]ActivationListener
	nextID    uint64
	logger    *logrus.Entry
}

// NewService creates a service using the given resolvers.
func NewService(resolvers map[Kind]Resolver, logger *logrus.Entry) *Service {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Service{
		resolvers: resolvers,
		listeners: make(map[uint64]ActivationListener),
		logger:    logger,
	}
}

// NewDefaultService creates a service with the directory, git and resources
// resolvers configured from cfg.
func NewDefaultService(cfg *config.Config, logger *logrus.Entry) *Service {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	scanner := NewScanner(cfg.Target.ProjectMarkers, logger)
	return NewService(map[Kind]Resolver{
		KindDirectory: &DirectoryResolver{Scanner: scanner},
		KindGit:       NewGitResolver(scanner, cfg.Target.GitConcurrency, logger),
		KindResources: &ResourcesResolver{Client: &http.Client{Timeout: 30 * time.Second}},
	}, logger)
}

// ActiveDefinition returns the active definition, or nil if none is active.
func (s *Service) ActiveDefinition(ctx context.Context) (*Definition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active, nil
}

// Descriptor resolves one location. Resolution failures are recorded as the
// descriptor's update problem; only cancellation and unknown location kinds
// are returned as errors.
func (s *Service) Descriptor(ctx context.Context, loc Location) (*Descriptor, error) {
	s.mu.RLock()
	resolver, ok := s.resolvers[loc.Kind]
	s.mu.RUnlock()
	if !ok {
		return nil, errors.UnknownLocationKind(loc.Name, string(loc.Kind))
	}

	start := time.Now()
	res, err := resolver.Resolve(ctx, loc)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	desc := &Descriptor{Location: loc, ResolvedAt: time.Now()}
	log := s.logger.WithFields(logrus.Fields{"location": loc.Name, "kind": loc.Kind})
	if err != nil {
		desc.UpdateProblem = errors.LocationUnresolved(loc.Name, err)
		log.WithError(err).Warn("Location has an update problem")
		return desc, nil
	}
	desc.Units = res.Units
	desc.Revision = res.Revision
	log.WithFields(logrus.Fields{
		"units":    len(res.Units),
		"duration": time.Since(start).Round(time.Millisecond),
	}).Debug("Resolved location")
	return desc, nil
}

// Describe resolves every location of the active definition concurrently.
// The result is in definition order.
func (s *Service) Describe(ctx context.Context) ([]*Descriptor, error) {
	def, err := s.ActiveDefinition(ctx)
	if err != nil || def == nil {
		return nil, err
	}

	descs := make([]*Descriptor, len(def.Locations))
	g, gctx := errgroup.WithContext(ctx)
	for i, loc := range def.Locations {
		g.Go(func() error {
			d, err := s.Descriptor(gctx, loc)
			if err != nil {
				return err
			}
			descs[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return descs, nil
}

// Subscribe registers l for activation changes until the returned
// subscription is cancelled.
func (s *Service) Subscribe(l ActivationListener) Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	return &subscription{cancel: func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}}
}

// Activate makes def the active definition and notifies listeners with the
// previous and new definitions. Listeners run on the caller's goroutine.
func (s *Service) Activate(def *Definition) {
	s.mu.Lock()
	prev := s.active
	s.active = def
	listeners := make([]ActivationListener, 0, len(s.listeners))
	for id := uint64(0); id < s.nextID; id++ {
		if l, ok := s.listeners[id]; ok {
			listeners = append(listeners, l)
		}
	}
	s.mu.Unlock()

	name := "<none>"
	if def != nil {
		name = def.Name
	}
	s.logger.WithField("definition", name).Info("Activated target definition")

	for _, l := range listeners {
		l(prev, def)
	}
}

// LoadAndActivate loads the definition at path and activates it.
func (s *Service) LoadAndActivate(path string) (*Definition, error) {
	def, err := LoadDefinition(path)
	if err != nil {
		return nil, err
	}
	s.Activate(def)
	return def, nil
}

type subscription struct {
	once   sync.Once
	cancel func()
}

func (s *subscription) Cancel() {
	s.once.Do(s.cancel)
}
