// Package events distributes workspace synchronization events to listeners.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/grovetools/wsync/pkg/target"
	"github.com/grovetools/wsync/pkg/workspace"
)

// TypeWorkspaceUpdateFinished is the type of the event emitted per location
// after a synchronization pass.
const TypeWorkspaceUpdateFinished = "workspace.update_finished"

// Event reports the results of one pass for one location. Results holds
// exactly the units the location requested.
type Event struct {
	Type       string             `json:"type"`
	PassID     uuid.UUID          `json:"pass_id"`
	Location   string             `json:"location"`
	Descriptor *target.Descriptor `json:"descriptor"`
	Results    workspace.Results  `json:"results"`
	FinishedAt time.Time          `json:"finished_at"`
}

// NewWorkspaceUpdateFinished builds the event for one location of a pass.
func NewWorkspaceUpdateFinished(passID uuid.UUID, desc *target.Descriptor, results workspace.Results) Event {
	return Event{
		Type:       TypeWorkspaceUpdateFinished,
		PassID:     passID,
		Location:   desc.Location.Name,
		Descriptor: desc,
		Results:    results,
		FinishedAt: time.Now(),
	}
}

// Listener receives events. Implementations must not block for long; they
// run on the goroutine that completed the pass.
type Listener interface {
	HandleEvent(ctx context.Context, ev Event)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(ctx context.Context, ev Event)

// HandleEvent calls f.
func (f ListenerFunc) HandleEvent(ctx context.Context, ev Event) {
	f(ctx, ev)
}
