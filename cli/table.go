package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/grovetools/wsync/pkg/daemon"
	"github.com/grovetools/wsync/pkg/workspace"
)

func statusStyle(t *Theme, s workspace.Status) lipgloss.Style {
	switch s {
	case workspace.StatusImported, workspace.StatusReplaced:
		return t.Success
	case workspace.StatusFailed:
		return t.Error
	default:
		return t.Muted
	}
}

// truncate shortens s to width runes with a trailing ellipsis.
func truncate(s string, width int) string {
	r := []rune(s)
	if width <= 1 || len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}

// RenderResults writes one line per unit, sorted, followed by a summary.
func RenderResults(w io.Writer, results workspace.Results, width int) {
	t := DefaultTheme
	if len(results) == 0 {
		fmt.Fprintln(w, t.Muted.Render("Nothing to import."))
		return
	}

	entries := results.Sorted()
	nameWidth := 0
	for _, e := range entries {
		if n := lipgloss.Width(e.Unit.Key()); n > nameWidth {
			nameWidth = n
		}
	}
	if limit := width / 2; nameWidth > limit {
		nameWidth = limit
	}

	for _, e := range entries {
		status := fmt.Sprintf("%-8s", e.Result.Status)
		name := truncate(e.Unit.Key(), nameWidth)
		line := fmt.Sprintf("%s  %s%s", statusStyle(t, e.Result.Status).Render(status),
			name, strings.Repeat(" ", nameWidth-lipgloss.Width(name)))
		if e.Result.Err != nil {
			line += "  " + t.Error.Render(truncate(e.Result.Err.Error(), width-nameWidth-12))
		} else if e.Result.Path != "" {
			line += "  " + t.Muted.Render(e.Result.Path)
		}
		fmt.Fprintln(w, line)
	}

	counts := results.Counts()
	summary := fmt.Sprintf("%d units: %d imported, %d existing, %d replaced, %d failed",
		len(results), counts[workspace.StatusImported], counts[workspace.StatusExisting],
		counts[workspace.StatusReplaced], counts[workspace.StatusFailed])
	style := t.Success
	if counts[workspace.StatusFailed] > 0 {
		style = t.Warning
	}
	fmt.Fprintln(w, "\n"+style.Render(summary))
}

// RenderLocations writes one block per location with its units.
func RenderLocations(w io.Writer, infos []daemon.LocationInfo, width int) {
	t := DefaultTheme
	if len(infos) == 0 {
		fmt.Fprintln(w, t.Muted.Render("No active target definition."))
		return
	}
	for i, info := range infos {
		if i > 0 {
			fmt.Fprintln(w)
		}
		header := t.Command.Render(info.Name) + " " + t.Muted.Render("("+string(info.Kind)+")")
		if info.Revision != "" {
			header += " " + t.Muted.Render(truncate(info.Revision, 12))
		}
		fmt.Fprintln(w, header)
		if info.Problem != "" {
			fmt.Fprintln(w, "  "+t.Warning.Render(truncate(info.Problem, width-2)))
			continue
		}
		if len(info.Units) == 0 {
			fmt.Fprintln(w, "  "+t.Muted.Render("no units"))
			continue
		}
		for _, u := range info.Units {
			line := "  " + u.Key()
			if u.Source != "" {
				line += "  " + t.Muted.Render(u.Source)
			}
			fmt.Fprintln(w, line)
		}
	}
}
