package synchronizer

import (
	"time"

	"github.com/google/uuid"
	"github.com/grovetools/wsync/pkg/workspace"
)

// Pass summarises one synchronization pass.
type Pass struct {
	ID         uuid.UUID                `json:"id"`
	Reason     string                   `json:"reason"`
	Definition string                   `json:"definition,omitempty"`
	StartedAt  time.Time                `json:"started_at"`
	FinishedAt time.Time                `json:"finished_at"`
	Locations  []string                 `json:"locations,omitempty"`
	Problems   map[string]string        `json:"problems,omitempty"`
	Counts     map[workspace.Status]int `json:"counts,omitempty"`
	Error      string                   `json:"error,omitempty"`
}

// Duration is the wall time of the pass.
func (p Pass) Duration() time.Duration {
	return p.FinishedAt.Sub(p.StartedAt)
}

// Failed reports whether the pass as a whole failed.
func (p Pass) Failed() bool {
	return p.Error != ""
}
