package synchronizer

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/grovetools/wsync/config"
	"github.com/grovetools/wsync/pkg/events"
	"github.com/grovetools/wsync/pkg/scheduler"
	"github.com/grovetools/wsync/pkg/target"
	"github.com/grovetools/wsync/pkg/workspace"
	"github.com/grovetools/wsync/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynchronizeAgainstRealCollaborators(t *testing.T) {
	src := t.TempDir()
	testutil.MakeProjects(t, filepath.Join(src, "apps"), "api", "web")
	testutil.MakeProjects(t, filepath.Join(src, "libs"), "web", "shared")
	root := t.TempDir()

	logger := testLogger()
	service := target.NewDefaultService(&config.Config{
		Target: config.TargetConfig{ProjectMarkers: []string{"go.mod"}, GitConcurrency: 1},
	}, logger)
	store, err := workspace.NewStore(config.WorkspaceConfig{Root: root, Mode: config.ModeLink}, logger)
	require.NoError(t, err)

	registry := events.NewRegistry(logger)
	var mu sync.Mutex
	received := map[string]events.Event{}
	registry.Add(events.ListenerFunc(func(ctx context.Context, ev events.Event) {
		mu.Lock()
		defer mu.Unlock()
		received[ev.Location] = ev
	}))

	s, err := New(Options{
		Platform:  service,
		Workspace: store,
		Notifier:  registry,
		Scheduler: &scheduler.Inline{},
		Logger:    logger,
	})
	require.NoError(t, err)
	s.Start()
	defer s.Stop()

	service.Activate(&target.Definition{
		Name: "dev",
		Locations: []target.Location{
			{Name: "apps", Kind: target.KindDirectory, Path: filepath.Join(src, "apps")},
			{Name: "libs", Kind: target.KindDirectory, Path: filepath.Join(src, "libs")},
			{Name: "broken", Kind: target.KindDirectory, Path: filepath.Join(src, "missing")},
			{Name: "notes", Kind: target.KindResources, Resources: []target.ResourceSpec{
				{Target: "NOTES.md", Content: "hello\n"},
			}},
		},
	})

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 3)
	assert.NotContains(t, received, "broken")

	// Both locations request a "web" project with different sources.
	assert.Len(t, received["apps"].Results, 2)
	assert.Len(t, received["libs"].Results, 2)
	for _, ev := range received {
		assert.Empty(t, ev.Results.Failed(), "location %s", ev.Location)
	}

	link, err := os.Readlink(filepath.Join(root, "api"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(src, "apps", "api"), link)

	data, err := os.ReadFile(filepath.Join(root, "NOTES.md"))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))
}
