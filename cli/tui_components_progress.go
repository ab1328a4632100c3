package cli

import (
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/duckpond-io/pondctl/transition"
)

// renderTransitionRail shows a start/stop step machine as a checklist
// rail, with the failing step flagged after it.
func renderTransitionRail(theme tuiTheme, snap transition.Snapshot) string {
	names := make([]string, len(snap.Steps))
	for i, step := range snap.Steps {
		names[i] = step.Name
	}

	current := snap.Cursor
	if snap.Done && !snap.Failed() {
		current = len(names)
	}
	rail := renderStepRail(theme, names, current)

	if snap.Failed() {
		step := snap.Steps[snap.Cursor]
		return rail + " " + theme.danger.Render(fmt.Sprintf("[%s failed]", step.Name))
	}
	return rail
}

// transitionBar is a fractional progress bar for one in-flight
// transition, used by the detail view where the rail would not fit.
type transitionBar struct {
	bar   progress.Model
	theme tuiTheme
}

func newTransitionBar(theme tuiTheme) transitionBar {
	return transitionBar{
		bar:   progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		theme: theme,
	}
}

func (b *transitionBar) setWidth(w int) {
	if w < 10 {
		w = 10
	}
	b.bar.Width = w
}

func (b transitionBar) View(snap transition.Snapshot) string {
	total := len(snap.Steps)
	if total == 0 {
		return ""
	}
	done := snap.Cursor
	if snap.Done && !snap.Failed() {
		done = total
	}
	pct := float64(done) / float64(total)

	label := fmt.Sprintf("%s %d/%d", snap.Kind, done, total)
	status := b.theme.muted.Render(" " + label)
	if snap.Failed() {
		status = b.theme.danger.Render(" " + label + " failed")
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, b.bar.ViewAs(pct), status)
}
