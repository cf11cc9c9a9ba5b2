// Package daemon provides a client for wsyncd.
// It implements a transparent fallback pattern: if the daemon is running, use
// its HTTP API; if not, run the same operations in-process.
package daemon

import (
	"context"
	"time"

	"github.com/grovetools/wsync/pkg/events"
	"github.com/grovetools/wsync/pkg/synchronizer"
	"github.com/grovetools/wsync/pkg/target"
	"github.com/grovetools/wsync/pkg/workspace"
)

// Client defines the interface for interacting with wsyncd.
// Both RemoteClient (HTTP) and LocalClient (direct calls) implement it.
type Client interface {
	// Sync runs a synchronization pass. With wait false the daemon only
	// schedules the pass and the response carries the task id.
	Sync(ctx context.Context, wait bool) (*SyncResponse, error)

	// Locations resolves every location of the active definition.
	Locations(ctx context.Context) ([]LocationInfo, error)

	// State returns the daemon's last known results.
	State(ctx context.Context) (*State, error)

	// StreamState subscribes to real-time updates from the daemon.
	// The channel is closed when ctx ends or the connection drops.
	StreamState(ctx context.Context) (<-chan StateUpdate, error)

	// IsRunning returns true if the daemon is available and responding.
	IsRunning() bool

	// Close cleans up any resources used by the client.
	Close() error
}

// SyncResponse is the reply to a sync request.
type SyncResponse struct {
	TaskID  string            `json:"task_id,omitempty"`
	Results workspace.Results `json:"results,omitempty"`
}

// LocationInfo describes one resolved location.
type LocationInfo struct {
	Name       string           `json:"name"`
	Kind       target.Kind      `json:"kind"`
	Revision   string           `json:"revision,omitempty"`
	Units      []workspace.Unit `json:"units"`
	Problem    string           `json:"problem,omitempty"`
	ResolvedAt time.Time        `json:"resolved_at"`
}

// NewLocationInfo converts a resolved descriptor.
func NewLocationInfo(desc *target.Descriptor) LocationInfo {
	info := LocationInfo{
		Name:       desc.Location.Name,
		Kind:       desc.Location.Kind,
		Revision:   desc.Revision,
		Units:      desc.Units,
		ResolvedAt: desc.ResolvedAt,
	}
	if info.Units == nil {
		info.Units = []workspace.Unit{}
	}
	if desc.UpdateProblem != nil {
		info.Problem = desc.UpdateProblem.Error()
	}
	return info
}

// Describe resolves the active definition of svc into location infos.
func Describe(ctx context.Context, svc *target.Service) ([]LocationInfo, error) {
	descs, err := svc.Describe(ctx)
	if err != nil {
		return nil, err
	}
	infos := make([]LocationInfo, 0, len(descs))
	for _, d := range descs {
		infos = append(infos, NewLocationInfo(d))
	}
	return infos, nil
}

// State is the daemon's snapshot as served by /api/state.
type State struct {
	Definition string                   `json:"definition,omitempty"`
	LastPass   *synchronizer.Pass       `json:"last_pass,omitempty"`
	Locations  map[string]*events.Event `json:"locations"`
}

// StateUpdate represents an update pushed from the daemon to subscribers.
type StateUpdate struct {
	UpdateType string             `json:"update_type"` // "initial", "location", "pass", "definition", "config_reload"
	Source     string             `json:"source,omitempty"`
	Event      *events.Event      `json:"event,omitempty"`
	Pass       *synchronizer.Pass `json:"pass,omitempty"`
	State      *State             `json:"state,omitempty"`
	Definition string             `json:"definition,omitempty"`
	ConfigFile string             `json:"config_file,omitempty"`
}
