package cli

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type modalKind int

const (
	modalNone modalKind = iota
	modalPrompt
	modalConfirm
)

// modalModel is the single overlay dialog. Prompt modals carry a text
// input with inline validation; confirm modals are yes/no.
type modalModel struct {
	theme tuiTheme

	kind  modalKind
	title string
	body  string

	input    textinput.Model
	validate func(string) error
	errText  string

	submit  func(value string) tea.Cmd
	confirm func() tea.Cmd
}

func newModalModel(theme tuiTheme) modalModel {
	return modalModel{theme: theme}
}

func (m *modalModel) openPrompt(title, placeholder string, validate func(string) error, submit func(string) tea.Cmd) tea.Cmd {
	in := textinput.New()
	in.Placeholder = placeholder
	in.CharLimit = 128
	in.Width = 40

	m.kind = modalPrompt
	m.title = title
	m.body = ""
	m.input = in
	m.validate = validate
	m.errText = ""
	m.submit = submit
	return m.input.Focus()
}

func (m *modalModel) openConfirm(title, body string, confirm func() tea.Cmd) {
	m.kind = modalConfirm
	m.title = title
	m.body = body
	m.errText = ""
	m.confirm = confirm
}

func (m *modalModel) close() {
	m.kind = modalNone
	m.validate = nil
	m.submit = nil
	m.confirm = nil
}

func (m modalModel) active() bool { return m.kind != modalNone }

// Update consumes key events while a modal is open. The second return
// reports whether the event was handled here.
func (m modalModel) Update(msg tea.Msg) (modalModel, tea.Cmd, bool) {
	if m.kind == modalNone {
		return m, nil, false
	}
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		if m.kind == modalPrompt {
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd, false
		}
		return m, nil, false
	}

	switch key.String() {
	case "esc":
		m.close()
		return m, nil, true

	case "enter":
		switch m.kind {
		case modalPrompt:
			value := strings.TrimSpace(m.input.Value())
			if m.validate != nil {
				if err := m.validate(value); err != nil {
					m.errText = err.Error()
					return m, nil, true
				}
			}
			submit := m.submit
			m.close()
			if submit != nil {
				return m, submit(value), true
			}
			return m, nil, true

		case modalConfirm:
			confirm := m.confirm
			m.close()
			if confirm != nil {
				return m, confirm(), true
			}
			return m, nil, true
		}

	case "y":
		if m.kind == modalConfirm {
			confirm := m.confirm
			m.close()
			if confirm != nil {
				return m, confirm(), true
			}
			return m, nil, true
		}

	case "n":
		if m.kind == modalConfirm {
			m.close()
			return m, nil, true
		}
	}

	if m.kind == modalPrompt {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		m.errText = ""
		return m, cmd, true
	}
	return m, nil, true
}

func (m modalModel) View(width int) string {
	if m.kind == modalNone {
		return ""
	}
	w := width - 4
	if w < 30 {
		w = 30
	}

	lines := []string{m.theme.subtitle.Render(m.title)}
	switch m.kind {
	case modalPrompt:
		lines = append(lines, m.input.View())
		if m.errText != "" {
			lines = append(lines, m.theme.danger.Render(m.errText))
		}
		lines = append(lines, m.theme.help.Render("enter confirm  esc cancel"))
	case modalConfirm:
		if m.body != "" {
			lines = append(lines, m.theme.text.Render(m.body))
		}
		lines = append(lines, m.theme.help.Render("y/enter confirm  n/esc cancel"))
	}
	return m.theme.panel.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
