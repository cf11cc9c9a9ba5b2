package store

import (
	"context"
	"sync"

	"github.com/grovetools/wsync/pkg/events"
	"github.com/grovetools/wsync/pkg/synchronizer"
)

const subscriberBuffer = 100

// Store is the in-memory state store for the daemon.
// It is thread-safe and supports pub/sub for real-time updates.
type Store struct {
	mu          sync.RWMutex
	state       State
	subscribers map[chan Update]struct{}
}

// New creates a new Store instance.
func New() *Store {
	return &Store{
		state:       State{Locations: make(map[string]*events.Event)},
		subscribers: make(map[chan Update]struct{}),
	}
}

// Get returns a copy of the current state.
func (s *Store) Get() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.state
	out.Locations = make(map[string]*events.Event, len(s.state.Locations))
	for k, v := range s.state.Locations {
		out.Locations[k] = v
	}
	return out
}

// HandleEvent records the latest event of a location. It makes the store
// usable as an events.Listener.
func (s *Store) HandleEvent(ctx context.Context, ev events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := ev
	s.state.Locations[ev.Location] = &stored
	s.broadcast(Update{Type: UpdateLocation, Source: ev.Location, Payload: &stored})
}

// RecordPass stores the summary of the most recent pass.
func (s *Store) RecordPass(p synchronizer.Pass) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.LastPass = &p
	s.broadcast(Update{Type: UpdatePass, Source: p.Reason, Payload: &p})
}

// SetDefinition records the active definition name. Locations that belong
// to an earlier definition are dropped.
func (s *Store) SetDefinition(name string, locations []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Definition = name
	keep := make(map[string]bool, len(locations))
	for _, l := range locations {
		keep[l] = true
	}
	for l := range s.state.Locations {
		if !keep[l] {
			delete(s.state.Locations, l)
		}
	}
	s.broadcast(Update{Type: UpdateDefinition, Source: "target", Payload: name})
}

// BroadcastConfigReload notifies subscribers that a watched file changed.
func (s *Store) BroadcastConfigReload(file string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.broadcast(Update{Type: UpdateConfigReload, Source: "config", Payload: file})
}

// broadcast must be called with s.mu held.
func (s *Store) broadcast(u Update) {
	for ch := range s.subscribers {
		select {
		case ch <- u:
		default:
			// Non-blocking send to prevent slow clients from stalling the daemon
		}
	}
}

// Subscribe creates a new subscription channel for state updates.
func (s *Store) Subscribe() chan Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Update, subscriberBuffer)
	s.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (s *Store) Unsubscribe(ch chan Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subscribers[ch]; !ok {
		return
	}
	delete(s.subscribers, ch)
	close(ch)
}
