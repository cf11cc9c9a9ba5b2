package cli

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/grovetools/wsync/errors"
	"github.com/grovetools/wsync/pkg/daemon"
	"github.com/grovetools/wsync/pkg/workspace"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
)

func TestWrapText(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		width int
		want  string
	}{
		{"short", "keep as is", 20, "keep as is"},
		{"wraps words", "one two three four", 9, "one two\nthree\nfour"},
		{"keeps breaks", "a\nb", 10, "a\nb"},
		{"default width", strings.Repeat("x ", 50), 0, strings.TrimSpace(strings.Repeat("x ", 40)) + "\n" + strings.TrimSpace(strings.Repeat("x ", 10))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, wrapText(tt.text, tt.width))
		})
	}
}

func TestParseDescription(t *testing.T) {
	desc, ex := parseDescription("Runs a pass.\n\nExamples:\n  wsync sync\n")
	assert.Equal(t, "Runs a pass.", desc)
	assert.Equal(t, "wsync sync", ex)

	desc, ex = parseDescription("No examples here.")
	assert.Equal(t, "No examples here.", desc)
	assert.Empty(t, ex)
}

func TestStyledHelpListsCommandsAndFlags(t *testing.T) {
	root := NewStandardCommand("wsync", "Keep a workspace in sync")
	sub := &cobra.Command{Use: "sync", Short: "Run a pass", Run: func(*cobra.Command, []string) {}}
	sub.Flags().Bool("wait", false, "Wait for the pass")
	root.AddCommand(sub)

	var out bytes.Buffer
	renderHelp(&out, root, DefaultTheme, 80)
	assert.Contains(t, out.String(), "WSYNC")
	assert.Contains(t, out.String(), "COMMANDS")
	assert.Contains(t, out.String(), "sync")

	out.Reset()
	renderHelp(&out, sub, DefaultTheme, 80)
	assert.Contains(t, out.String(), "--wait")
	assert.Contains(t, out.String(), "Wait for the pass")
}

func TestErrorHandlerMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"config not found", errors.ConfigNotFound("/tmp"), "no wsync.yml found"},
		{"locked", errors.WorkspaceLocked("/ws", 42, time.Second), "in use by process 42"},
		{"daemon down", errors.New(errors.ErrCodeDaemonNotRunning, "not running"), "wsync daemon start"},
		{"plain", fmt.Errorf("boom"), "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := NewErrorHandler(&out, false).Handle(tt.err)
			assert.Equal(t, tt.err, err)
			assert.Contains(t, out.String(), tt.want)
		})
	}
}

func TestErrorHandlerVerboseShowsDetails(t *testing.T) {
	var out bytes.Buffer
	_ = NewErrorHandler(&out, true).Handle(errors.ImportFailed("project:api", fmt.Errorf("disk full")))
	assert.Contains(t, out.String(), `"unit": "project:api"`)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(fmt.Errorf("x")))
	assert.Equal(t, 2, ExitCode(errors.ConfigNotFound("/")))
	assert.Equal(t, 3, ExitCode(errors.WorkspaceLocked("/ws", 1, time.Second)))
	assert.Equal(t, 1, ExitCode(errors.New(errors.ErrCodeSyncFailed, "x")))
}

func TestRenderResults(t *testing.T) {
	api := workspace.ProjectUnit("api", "/src/api")
	notes := workspace.ResourceUnit("NOTES.md", "hi", "", false)
	results := workspace.Results{
		api:   {Status: workspace.StatusImported, Path: "/ws/api"},
		notes: workspace.Failed("/ws/NOTES.md", fmt.Errorf("read-only file system")),
	}

	var out bytes.Buffer
	RenderResults(&out, results, 80)
	text := out.String()
	assert.Contains(t, text, "project:api")
	assert.Contains(t, text, "/ws/api")
	assert.Contains(t, text, "read-only file system")
	assert.Contains(t, text, "2 units: 1 imported, 0 existing, 0 replaced, 1 failed")

	out.Reset()
	RenderResults(&out, workspace.Results{}, 80)
	assert.Contains(t, out.String(), "Nothing to import")
}

func TestRenderLocations(t *testing.T) {
	var out bytes.Buffer
	RenderLocations(&out, []daemon.LocationInfo{
		{Name: "src", Kind: "directory", Units: []workspace.Unit{workspace.ProjectUnit("api", "/src/api")}},
		{Name: "upstream", Kind: "git", Problem: "repository not found"},
		{Name: "empty", Kind: "directory"},
	}, 80)
	text := out.String()
	assert.Contains(t, text, "project:api")
	assert.Contains(t, text, "repository not found")
	assert.Contains(t, text, "no units")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab…", truncate("abcdef", 3))
}
