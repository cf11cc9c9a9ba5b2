// Package store provides the in-memory state store for wsyncd.
package store

import (
	"github.com/grovetools/wsync/pkg/events"
	"github.com/grovetools/wsync/pkg/synchronizer"
)

// State is the daemon's view of the workspace.
type State struct {
	Definition string                   `json:"definition,omitempty"`
	LastPass   *synchronizer.Pass       `json:"last_pass,omitempty"`
	Locations  map[string]*events.Event `json:"locations"` // Keyed by location name
}

// UpdateType defines what kind of data changed.
type UpdateType string

const (
	UpdateLocation     UpdateType = "location"
	UpdatePass         UpdateType = "pass"
	UpdateDefinition   UpdateType = "definition"
	UpdateConfigReload UpdateType = "config_reload"
)

// Update represents a change to the state.
type Update struct {
	Type    UpdateType  `json:"type"`
	Source  string      `json:"source,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
}
