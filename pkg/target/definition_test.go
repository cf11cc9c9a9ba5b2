package target

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grovetools/wsync/config"
	"github.com/grovetools/wsync/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDefinition = `
name: dev
locations:
  - name: core
    kind: directory
    path: ./src
    exclude: ["vendor"]
    options:
      max_depth: 2
      prefix: core-
  - name: upstream
    kind: git
    url: https://example.com/upstream.git
    ref: ${UPSTREAM_REF:-main}
    depth: 1
  - name: seeds
    kind: resources
    resources:
      - target: conf/app.ini
        content: "a=1"
      - target: notes.txt
        from: ./notes.txt
        encoding: iso-8859-1
        force: true
`

func TestLoadDefinition(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dev.target.yml")
	require.NoError(t, os.WriteFile(path, []byte(sampleDefinition), 0644))
	t.Setenv("UPSTREAM_REF", "release-1")

	def, err := LoadDefinition(path)
	require.NoError(t, err)

	assert.Equal(t, "dev", def.Name)
	assert.Equal(t, path, def.Path)
	require.Len(t, def.Locations, 3)

	core := def.Locations[0]
	assert.Equal(t, KindDirectory, core.Kind)
	assert.Equal(t, filepath.Join(dir, "src"), core.Path)
	var opts ScanOptions
	require.NoError(t, core.DecodeOptions(&opts))
	assert.Equal(t, ScanOptions{MaxDepth: 2, Prefix: "core-"}, opts)

	upstream, ok := def.Location("upstream")
	require.True(t, ok)
	assert.Equal(t, "release-1", upstream.Ref)
	assert.Equal(t, 1, upstream.Depth)

	seeds := def.Locations[2]
	require.Len(t, seeds.Resources, 2)
	assert.Equal(t, filepath.Join(dir, "notes.txt"), seeds.Resources[1].From)
	assert.True(t, seeds.Resources[1].Force)
}

func TestParseDefinitionTOML(t *testing.T) {
	data := `
name = "toml"

[[locations]]
name = "core"
kind = "directory"
path = "/src"
include = ["api*"]
`
	def, err := ParseDefinition([]byte(data), config.FormatTOML)
	require.NoError(t, err)
	require.Len(t, def.Locations, 1)
	assert.Equal(t, []string{"api*"}, def.Locations[0].Include)
}

func TestParseDefinitionErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{
			name:    "missing name",
			data:    "locations: []",
			wantErr: "name",
		},
		{
			name:    "unknown kind",
			data:    "name: x\nlocations:\n  - name: a\n    kind: p2\n",
			wantErr: "/locations/0/kind",
		},
		{
			name:    "unknown field",
			data:    "name: x\nlocations:\n  - name: a\n    kind: directory\n    path: /x\n    colour: red\n",
			wantErr: "colour",
		},
		{
			name:    "directory without path",
			data:    "name: x\nlocations:\n  - name: a\n    kind: directory\n",
			wantErr: "requires a path",
		},
		{
			name:    "git without url",
			data:    "name: x\nlocations:\n  - name: a\n    kind: git\n",
			wantErr: "requires a url",
		},
		{
			name:    "duplicate names",
			data:    "name: x\nlocations:\n  - {name: a, kind: directory, path: /a}\n  - {name: a, kind: directory, path: /b}\n",
			wantErr: "duplicate location",
		},
		{
			name:    "dot name",
			data:    "name: x\nlocations:\n  - {name: '..', kind: git, url: /a}\n",
			wantErr: "more than dots",
		},
		{
			name:    "single dot name",
			data:    "name: x\nlocations:\n  - {name: '.', kind: directory, path: /a}\n",
			wantErr: "more than dots",
		},
		{
			name:    "content and from",
			data:    "name: x\nlocations:\n  - name: a\n    kind: resources\n    resources:\n      - {target: f, content: x, from: /y}\n",
			wantErr: "both content and from",
		},
		{
			name:    "bad location name",
			data:    "name: x\nlocations:\n  - {name: 'a b', kind: directory, path: /a}\n",
			wantErr: "/locations/0/name",
		},
		{
			name:    "invalid yaml",
			data:    "name: [unclosed",
			wantErr: "failed to parse YAML",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDefinition([]byte(tt.data), config.FormatYAML)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadDefinitionErrorCodes(t *testing.T) {
	_, err := LoadDefinition(filepath.Join(t.TempDir(), "missing.yml"))
	assert.True(t, errors.Is(err, errors.ErrCodeTargetNotFound))

	path := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(path, []byte("locations: 3"), 0644))
	_, err = LoadDefinition(path)
	assert.True(t, errors.Is(err, errors.ErrCodeTargetInvalid))
}

func TestDecodeOptionsRejectsUnknownKeys(t *testing.T) {
	loc := Location{Name: "core", Options: map[string]interface{}{"max_dpeth": 2}}
	var opts ScanOptions
	err := loc.DecodeOptions(&opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "core")
}

func TestDefinitionSchema(t *testing.T) {
	data, err := DefinitionSchema()
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"locations"`))
}
