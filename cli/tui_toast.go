package cli

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
)

const toastTTL = 4 * time.Second

type toast struct {
	id    string
	level string
	text  string
	at    time.Time
}

type toastExpireMsg struct {
	id string
}

type toastModel struct {
	theme  tuiTheme
	toasts []toast
}

func newToastModel(theme tuiTheme) toastModel {
	return toastModel{theme: theme}
}

// push adds a toast and returns the command that expires it.
func (m *toastModel) push(level, text string) tea.Cmd {
	t := toast{
		id:    uuid.NewString(),
		level: level,
		text:  text,
		at:    time.Now(),
	}
	m.toasts = append(m.toasts, t)
	id := t.id
	return tea.Tick(toastTTL, func(time.Time) tea.Msg {
		return toastExpireMsg{id: id}
	})
}

func (m *toastModel) expire(id string) {
	kept := m.toasts[:0]
	for _, t := range m.toasts {
		if t.id != id {
			kept = append(kept, t)
		}
	}
	m.toasts = kept
}

func (m toastModel) View(width int) string {
	if len(m.toasts) == 0 {
		return ""
	}
	lines := make([]string, 0, len(m.toasts))
	for _, t := range m.toasts {
		style := m.theme.info
		switch t.level {
		case "ok":
			style = m.theme.ok
		case "warn":
			style = m.theme.warn
		case "error":
			style = m.theme.danger
		}
		lines = append(lines, style.Render(truncateRunes(t.text, width-4)))
	}
	return m.theme.panel.Width(width).Render(strings.Join(lines, "\n"))
}
