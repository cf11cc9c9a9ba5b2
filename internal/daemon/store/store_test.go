package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/grovetools/wsync/pkg/events"
	"github.com/grovetools/wsync/pkg/synchronizer"
	"github.com/grovetools/wsync/pkg/target"
	"github.com/grovetools/wsync/pkg/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func event(location string) events.Event {
	desc := &target.Descriptor{Location: target.Location{Name: location, Kind: target.KindDirectory}}
	return events.NewWorkspaceUpdateFinished(uuid.New(), desc, workspace.Results{})
}

func TestStoreKeepsLatestEventPerLocation(t *testing.T) {
	s := New()
	first := event("apps")
	second := event("apps")

	s.HandleEvent(context.Background(), first)
	s.HandleEvent(context.Background(), second)
	s.HandleEvent(context.Background(), event("libs"))

	state := s.Get()
	require.Len(t, state.Locations, 2)
	assert.Equal(t, second.PassID, state.Locations["apps"].PassID)
}

func TestStoreGetReturnsCopy(t *testing.T) {
	s := New()
	s.HandleEvent(context.Background(), event("apps"))

	state := s.Get()
	delete(state.Locations, "apps")
	assert.Len(t, s.Get().Locations, 1)
}

func TestStoreSetDefinitionDropsStaleLocations(t *testing.T) {
	s := New()
	s.HandleEvent(context.Background(), event("apps"))
	s.HandleEvent(context.Background(), event("old"))

	s.SetDefinition("dev", []string{"apps"})

	state := s.Get()
	assert.Equal(t, "dev", state.Definition)
	assert.Contains(t, state.Locations, "apps")
	assert.NotContains(t, state.Locations, "old")
}

func TestStoreSubscribe(t *testing.T) {
	s := New()
	ch := s.Subscribe()

	s.RecordPass(synchronizer.Pass{ID: uuid.New(), Reason: synchronizer.ReasonExplicit})
	s.HandleEvent(context.Background(), event("apps"))
	s.BroadcastConfigReload("/etc/wsync.yml")

	u := <-ch
	assert.Equal(t, UpdatePass, u.Type)
	require.NotNil(t, s.Get().LastPass)
	u = <-ch
	assert.Equal(t, UpdateLocation, u.Type)
	assert.Equal(t, "apps", u.Source)
	u = <-ch
	assert.Equal(t, UpdateConfigReload, u.Type)
	assert.Equal(t, "/etc/wsync.yml", u.Payload)

	s.Unsubscribe(ch)
	s.Unsubscribe(ch)
	_, open := <-ch
	assert.False(t, open)
}

func TestStoreDropsUpdatesForSlowSubscribers(t *testing.T) {
	s := New()
	ch := s.Subscribe()
	defer s.Unsubscribe(ch)

	for i := 0; i < subscriberBuffer+10; i++ {
		s.HandleEvent(context.Background(), event("apps"))
	}
	assert.Len(t, ch, subscriberBuffer)
}
