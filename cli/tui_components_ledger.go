package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// ledgerEntry is one line of the shell's event ledger. source is the
// notebook a transition entry belongs to, empty for shell events.
// repeat counts consecutive duplicates folded into this entry.
type ledgerEntry struct {
	source string
	at     time.Time
	level  string
	text   string
	repeat int
}

type ledgerModel struct {
	viewport     viewport.Model
	entries      []ledgerEntry
	width        int
	height       int
	theme        tuiTheme
	paused       bool
	autoScroll   bool
	sourceFilter string
}

func newLedgerModel(theme tuiTheme) ledgerModel {
	vp := viewport.New(0, 0)
	vp.YPosition = 0

	return ledgerModel{
		viewport:   vp,
		entries:    make([]ledgerEntry, 0, adminLedgerLimit),
		theme:      theme,
		autoScroll: true,
	}
}

func (m ledgerModel) Update(msg tea.Msg) (ledgerModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			m.autoScroll = false
		case "down", "j":
			if m.viewport.AtBottom() {
				m.autoScroll = true
			}
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)

	// Scrolling back to the bottom re-enables follow mode.
	if m.viewport.AtBottom() {
		m.autoScroll = true
	}

	return m, cmd
}

func (m *ledgerModel) setSize(w, h int) {
	m.width = w
	m.height = h
	m.viewport.Width = w
	m.viewport.Height = h
	m.updateContent()
}

const adminLedgerLimit = 300

// addEntry appends e, folding it into the previous entry when it is an
// exact repeat. Failed reconcile ticks would otherwise flood the
// ledger, one identical line per backoff retry.
func (m *ledgerModel) addEntry(e ledgerEntry) {
	if n := len(m.entries); n > 0 {
		last := &m.entries[n-1]
		if last.source == e.source && last.level == e.level && last.text == e.text {
			last.repeat++
			last.at = e.at
			m.updateContent()
			return
		}
	}
	m.entries = append(m.entries, e)
	if len(m.entries) > adminLedgerLimit {
		m.entries = m.entries[len(m.entries)-adminLedgerLimit:]
	}
	m.updateContent()
}

// setSourceFilter limits the ledger to entries for one notebook.
// An empty source shows everything.
func (m *ledgerModel) setSourceFilter(source string) {
	if m.sourceFilter == source {
		return
	}
	m.sourceFilter = source
	m.updateContent()
}

func (m *ledgerModel) updateContent() {
	content := m.renderContent()
	m.viewport.SetContent(content)
	if m.autoScroll && !m.paused {
		m.viewport.GotoBottom()
	}
}

func (m *ledgerModel) togglePause() {
	m.paused = !m.paused
}

func (m ledgerModel) renderContent() string {
	var b strings.Builder
	for _, ev := range m.entries {
		if m.sourceFilter != "" && ev.source != "" && ev.source != m.sourceFilter {
			continue
		}

		levelStyle := m.theme.info
		switch ev.level {
		case "warn":
			levelStyle = m.theme.warn
		case "error":
			levelStyle = m.theme.danger
		case "ok":
			levelStyle = m.theme.ok
		}

		parts := []string{
			m.theme.muted.Render(ev.at.Format("15:04:05")),
			levelStyle.Render(strings.ToUpper(ev.level)),
		}
		if ev.source != "" {
			label := ev.source
			if len(label) > 20 {
				label = "..." + label[len(label)-17:]
			}
			parts = append(parts, m.theme.info.Render("["+label+"]"))
		}
		parts = append(parts, ev.text)
		if ev.repeat > 0 {
			parts = append(parts, m.theme.muted.Render(fmt.Sprintf("x%d", ev.repeat+1)))
		}

		b.WriteString(strings.Join(parts, " ") + "\n")
	}
	return b.String()
}

func (m ledgerModel) View() string {
	return m.viewport.View()
}
