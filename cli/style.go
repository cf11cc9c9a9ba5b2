package cli

import "github.com/charmbracelet/lipgloss"

// Theme is the palette used by help and result output.
type Theme struct {
	Title   lipgloss.Style
	Section lipgloss.Style
	Command lipgloss.Style
	Flag    lipgloss.Style
	Muted   lipgloss.Style
	Italic  lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
}

var (
	orange = lipgloss.AdaptiveColor{Light: "#B35900", Dark: "#FFA657"}
	blue   = lipgloss.AdaptiveColor{Light: "#0550AE", Dark: "#79C0FF"}
	cyan   = lipgloss.AdaptiveColor{Light: "#1B7C83", Dark: "#56D4DD"}
	violet = lipgloss.AdaptiveColor{Light: "#8250DF", Dark: "#D2A8FF"}
	green  = lipgloss.AdaptiveColor{Light: "#116329", Dark: "#7EE787"}
	yellow = lipgloss.AdaptiveColor{Light: "#7D4E00", Dark: "#E3B341"}
	red    = lipgloss.AdaptiveColor{Light: "#CF222E", Dark: "#FF7B72"}
	gray   = lipgloss.AdaptiveColor{Light: "#6E7781", Dark: "#8B949E"}
)

// DefaultTheme is used by every command.
var DefaultTheme = &Theme{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(orange),
	Section: lipgloss.NewStyle().Italic(true).Foreground(orange),
	Command: lipgloss.NewStyle().Bold(true).Foreground(blue),
	Flag:    lipgloss.NewStyle().Foreground(violet),
	Muted:   lipgloss.NewStyle().Foreground(gray),
	Italic:  lipgloss.NewStyle().Italic(true),
	Success: lipgloss.NewStyle().Foreground(green),
	Warning: lipgloss.NewStyle().Foreground(yellow),
	Error:   lipgloss.NewStyle().Bold(true).Foreground(red),
}
