package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Registry fans events out to registered listeners.
type Registry struct {
	mu        sync.RWMutex
	listeners []*registration
	logger    *logrus.Entry
}

type registration struct {
	listener Listener
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *logrus.Entry) *Registry {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Registry{logger: logger}
}

// Add registers l and returns a function that removes it again.
func (r *Registry) Add(l Listener) (remove func()) {
	reg := &registration{listener: l}
	r.mu.Lock()
	r.listeners = append(r.listeners, reg)
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			for i, existing := range r.listeners {
				if existing == reg {
					r.listeners = append(r.listeners[:i:i], r.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Len returns the number of registered listeners.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.listeners)
}

// Notify delivers ev to every listener in registration order and returns
// once all have run. A panicking listener is logged and skipped.
func (r *Registry) Notify(ctx context.Context, ev Event) {
	r.mu.RLock()
	listeners := make([]*registration, len(r.listeners))
	copy(listeners, r.listeners)
	r.mu.RUnlock()

	for _, reg := range listeners {
		r.deliver(ctx, reg.listener, ev)
	}
}

func (r *Registry) deliver(ctx context.Context, l Listener, ev Event) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.WithFields(logrus.Fields{
				"location": ev.Location,
				"listener": fmt.Sprintf("%T", l),
				"panic":    rec,
			}).Error("Event listener panicked")
		}
	}()
	l.HandleEvent(ctx, ev)
}
