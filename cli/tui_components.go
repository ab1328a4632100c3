package cli

import (
	"fmt"
	"strings"
)

// renderStepRail draws a transition's steps as a one-line checklist:
// done steps get a filled box, the active step an arrow, pending steps
// an empty box.
func renderStepRail(theme tuiTheme, steps []string, current int) string {
	if len(steps) == 0 {
		return ""
	}
	parts := make([]string, 0, len(steps))
	for i, name := range steps {
		switch {
		case i < current:
			parts = append(parts, theme.stepDone.Render("[x] "+name))
		case i == current:
			parts = append(parts, theme.stepCurrent.Render("[>] "+name))
		default:
			parts = append(parts, theme.stepPending.Render("[ ] "+name))
		}
	}
	return strings.Join(parts, "  ")
}

// renderEmptyState fills a panel that has nothing to list with a short
// explanation and the key that gets the user unstuck.
func renderEmptyState(theme tuiTheme, title, detail, hint string, width int) string {
	if width < 20 {
		width = 20
	}
	var b strings.Builder
	b.WriteString(theme.subtitle.Render(title))
	b.WriteString("\n")
	b.WriteString(theme.muted.Render(detail))
	b.WriteString("\n\n")
	b.WriteString(theme.help.Render(hint))
	return theme.panel.Width(width).Render(b.String())
}

// listRow is one selectable line. The note, when set, trails the label
// in muted text; views use it for timestamps and session ids.
type listRow struct {
	label string
	note  string
}

// renderRowList windows rows around the selection and renders them as a
// titled panel of at most height lines.
func renderRowList(theme tuiTheme, title string, rows []listRow, selected, width, height int) string {
	if width < 20 {
		width = 20
	}
	if height < 6 {
		height = 6
	}
	maxRows := height - 2
	if maxRows < 1 {
		maxRows = 1
	}

	start := 0
	if selected >= maxRows {
		start = selected - maxRows + 1
	}
	end := start + maxRows
	if end > len(rows) {
		end = len(rows)
	}

	lines := make([]string, 0, maxRows+1)
	lines = append(lines, theme.subtitle.Render(title))
	for i := start; i < end; i++ {
		prefix := "  "
		label := truncateRunes(rows[i].label, width-4)
		line := theme.text.Render(label)
		if i == selected {
			prefix = "> "
			line = theme.highlight.Render(label)
		}
		if rows[i].note != "" {
			line += "  " + theme.muted.Render(rows[i].note)
		}
		lines = append(lines, prefix+line)
	}
	return theme.panel.Width(width).Render(strings.Join(lines, "\n"))
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	if limit <= 3 {
		return string(r[:limit])
	}
	return fmt.Sprintf("%s...", string(r[:limit-3]))
}

// splitHeights divides a view's height between a summary panel on top
// and the main list below it. The list keeps the larger share.
func splitHeights(total int) (int, int) {
	top := total / 3
	if top < 4 {
		top = 4
	}
	bottom := total - top
	if bottom < 6 {
		bottom = 6
		top = total - bottom
	}
	if top < 0 {
		top = 0
		bottom = total
	}
	return top, bottom
}
