package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/grovetools/wsync/errors"
	"github.com/grovetools/wsync/pkg/daemon"
	"github.com/grovetools/wsync/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixture writes a config with one directory location and returns its path
// and the workspace root.
func fixture(t *testing.T) (string, string) {
	t.Helper()
	testutil.SetHome(t)
	t.Setenv("WSYNC_LOG_LEVEL", "error")
	dir := t.TempDir()
	testutil.MakeProjects(t, filepath.Join(dir, "src"), "api", "web")
	testutil.WriteFiles(t, dir, map[string]string{
		"dev.target.yml": "name: dev\nlocations:\n  - name: src\n    kind: directory\n    path: ./src\n",
		"wsync.yml":      "workspace:\n  root: ./ws\ntarget:\n  active: ./dev.target.yml\n",
		"seed.txt":       "seeded\n",
	})
	return filepath.Join(dir, "wsync.yml"), filepath.Join(dir, "ws")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestSyncCommand(t *testing.T) {
	cfgPath, wsRoot := fixture(t)

	out, err := run(t, "sync", "--local", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "project:api")
	assert.Contains(t, out, "2 units: 2 imported")

	link, err := os.Readlink(filepath.Join(wsRoot, "web"))
	require.NoError(t, err)
	assert.Equal(t, "web", filepath.Base(link))

	out, err = run(t, "sync", "--json", "--config", cfgPath)
	require.NoError(t, err)
	var resp daemon.SyncResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Results, 2)
	for _, r := range resp.Results {
		assert.Equal(t, "existing", string(r.Status))
	}
}

func TestLocationsCommand(t *testing.T) {
	cfgPath, _ := fixture(t)

	out, err := run(t, "locations", "--json", "--config", cfgPath)
	require.NoError(t, err)
	var infos []daemon.LocationInfo
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	require.Len(t, infos, 1)
	assert.Equal(t, "src", infos[0].Name)
	assert.Len(t, infos[0].Units, 2)
}

func TestResourceCreateCommand(t *testing.T) {
	cfgPath, wsRoot := fixture(t)
	seed := filepath.Join(filepath.Dir(cfgPath), "seed.txt")

	_, err := run(t, "resource", "create", "notes/seed.txt", "--from", seed, "--config", cfgPath)
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(wsRoot, "notes", "seed.txt"))
	require.NoError(t, err)
	assert.Equal(t, "seeded\n", string(data))

	out, err := run(t, "resource", "create", "notes/seed.txt", "--content", "other", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "existing")

	_, err = run(t, "resource", "create", "notes/seed.txt", "--content", "other", "--force", "--config", cfgPath)
	require.NoError(t, err)
	data, err = os.ReadFile(filepath.Join(wsRoot, "notes", "seed.txt"))
	require.NoError(t, err)
	assert.Equal(t, "other", string(data))

	_, err = run(t, "resource", "create", "x", "--content", "a", "--from", seed, "--config", cfgPath)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}

func TestSchemaCommand(t *testing.T) {
	out, err := run(t, "schema")
	require.NoError(t, err)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "wsync Target Definition", doc["title"])
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"version": "dev"`)
}

func TestDaemonStatusWhenStopped(t *testing.T) {
	cfgPath, _ := fixture(t)
	out, err := run(t, "daemon", "status", "--config", cfgPath)
	assert.True(t, errors.Is(err, errors.ErrCodeDaemonNotRunning))
	assert.Contains(t, out, "Stopped")
}

func TestExecuteReturnsExitCode(t *testing.T) {
	testutil.SetHome(t)
	assert.Equal(t, 2, Execute([]string{"sync", "--config", filepath.Join(t.TempDir(), "missing.yml")}))
	assert.Equal(t, 0, Execute([]string{"version"}))
}
