package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/duckpond-io/pondctl/api"
)

// Pond palette. Greens carry the healthy states, teal is the accent.
const (
	colorBasin = "#0F1411" // background
	colorMist  = "#D5E0D6" // body text
	colorReed  = "#6F8070" // muted
	colorBank  = "#3E4F44" // panel borders
	colorLily  = "#8FE0BE" // titles
	colorMoss  = "#B9CCBD" // subtitles
	colorFrog  = "#7CC98B" // healthy
	colorAmber = "#D9B35E" // transitional
	colorRust  = "#DB6E6A" // failed
	colorTeal  = "#63BDB3" // accent
	colorDrift = "#8FA396" // key hints
)

type tuiTheme struct {
	canvas    lipgloss.Style
	panel     lipgloss.Style
	title     lipgloss.Style
	subtitle  lipgloss.Style
	text      lipgloss.Style
	muted     lipgloss.Style
	ok        lipgloss.Style
	warn      lipgloss.Style
	danger    lipgloss.Style
	info      lipgloss.Style
	highlight lipgloss.Style
	help      lipgloss.Style

	stepDone    lipgloss.Style
	stepCurrent lipgloss.Style
	stepPending lipgloss.Style
}

func newTUITheme() tuiTheme {
	return tuiTheme{
		canvas: lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorMist)).
			Background(lipgloss.Color(colorBasin)),
		panel: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color(colorBank)).
			Padding(0, 1),
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(colorLily)),
		subtitle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(colorMoss)),
		text: lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorMist)),
		muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorReed)),
		ok: lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorFrog)),
		warn: lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorAmber)),
		danger: lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorRust)),
		info: lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorTeal)),
		highlight: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(colorBasin)).
			Background(lipgloss.Color(colorTeal)),
		help: lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorDrift)),
		stepDone: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(colorFrog)),
		stepCurrent: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(colorTeal)),
		stepPending: lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorReed)),
	}
}

// statusStyle picks the style for a compute session status. Transitional
// states render as warnings, crashed and unhealthy as failures, anything
// unrecognized falls back to muted.
func (t tuiTheme) statusStyle(status string) lipgloss.Style {
	switch status {
	case api.StatusRunning:
		return t.ok
	case api.StatusStarting, api.StatusStopping:
		return t.warn
	case api.StatusCrashed, api.StatusUnhealthy:
		return t.danger
	default:
		return t.muted
	}
}
