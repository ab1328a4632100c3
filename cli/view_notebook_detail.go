package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/duckpond-io/pondctl/api"
	"github.com/duckpond-io/pondctl/reconcile"
	"github.com/duckpond-io/pondctl/transition"
)

type notebookDetailMsg struct {
	epoch   int
	content string
	session *api.Session
	err     error
}

func (m notebookDetailMsg) viewEpoch() int { return m.epoch }

// notebookDetailView shows one notebook's source alongside its session,
// if any.
type notebookDetailView struct {
	theme  tuiTheme
	client *api.Client
	name   string
	epoch  int

	content  viewport.Model
	session  *api.Session
	loaded   bool
	loadErr  error
	missing  bool
	snapshot *transition.Snapshot
	bar      transitionBar
}

func newNotebookDetailView(theme tuiTheme, client *api.Client, name string, epoch int) *notebookDetailView {
	return &notebookDetailView{
		theme:   theme,
		client:  client,
		name:    name,
		epoch:   epoch,
		content: viewport.New(0, 0),
		bar:     newTransitionBar(theme),
	}
}

func (v *notebookDetailView) Init() tea.Cmd {
	return v.fetchCmd()
}

func (v *notebookDetailView) Teardown() {}

func (v *notebookDetailView) fetchCmd() tea.Cmd {
	client := v.client
	name := v.name
	epoch := v.epoch
	return func() tea.Msg {
		ctx := context.Background()
		content, err := client.ReadNotebook(ctx, name)
		if err != nil {
			return notebookDetailMsg{epoch: epoch, err: err}
		}

		// Best effort: the notebook renders even when the session list
		// is briefly unavailable.
		var session *api.Session
		if sessions, sessErr := client.ListSessions(ctx); sessErr == nil {
			merged := reconcile.Merge([]api.NotebookFile{{Filename: name, Path: name}}, sessions)
			if len(merged) == 1 && merged[0].SessionID != "" {
				for i := range sessions {
					if sessions[i].SessionID == merged[0].SessionID {
						session = &sessions[i]
						break
					}
				}
			}
		}
		return notebookDetailMsg{epoch: epoch, content: content, session: session}
	}
}

func (v *notebookDetailView) Update(msg tea.Msg) (adminView, tea.Cmd) {
	switch msg := msg.(type) {
	case notebookDetailMsg:
		v.loaded = true
		v.loadErr = msg.err
		v.missing = errors.Is(msg.err, api.ErrNotFound)
		v.session = msg.session
		if msg.err == nil {
			v.content.SetContent(msg.content)
		}
		return v, nil

	case transitionUpdateMsg:
		if msg.snap.NotebookID == v.name {
			snap := msg.snap
			v.snapshot = &snap
			if snap.Done && !snap.Failed() {
				return v, v.fetchCmd()
			}
		}
		return v, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "R":
			return v, v.fetchCmd()
		}
	}

	var cmd tea.Cmd
	v.content, cmd = v.content.Update(msg)
	return v, cmd
}

func (v *notebookDetailView) Render(width, height int) string {
	header := v.renderSessionPanel(width)
	body := height - lipgloss.Height(header) - 2
	if body < 4 {
		body = 4
	}
	v.content.Width = width - 4
	v.content.Height = body - 2
	v.bar.setWidth(width / 2)

	var content string
	switch {
	case !v.loaded:
		content = v.theme.muted.Render("Loading " + v.name + "...")
	case v.missing:
		content = v.theme.danger.Render("Notebook not found: " + v.name)
	case v.loadErr != nil:
		content = v.theme.danger.Render("Load failed: " + v.loadErr.Error())
	default:
		content = v.content.View()
	}
	bodyPanel := v.theme.panel.Width(width).Height(body).Render(content)
	return lipgloss.JoinVertical(lipgloss.Left, header, bodyPanel)
}

func (v *notebookDetailView) renderSessionPanel(width int) string {
	lines := []string{v.theme.subtitle.Render(v.name)}

	if v.snapshot != nil {
		lines = append(lines, v.bar.View(*v.snapshot))
	}

	if v.session == nil {
		lines = append(lines, v.theme.muted.Render("No compute session"))
	} else {
		s := v.session
		lines = append(lines,
			fmt.Sprintf("%s %s  port=%d  alive=%v",
				v.theme.statusStyle(s.Status).Render(strings.ToUpper(s.Status)),
				v.theme.muted.Render("sess="+truncateRunes(s.SessionID, 16)),
				s.Port, s.IsAlive),
			v.theme.info.Render("UI: "+v.client.BaseURL()+api.SessionUIURL(s.SessionID)),
		)
		if created := formatSessionTime(s.CreatedAt); created != "" {
			lines = append(lines, v.theme.muted.Render("created "+created))
		}
	}
	lines = append(lines, v.theme.help.Render("R reload  esc back"))
	return v.theme.panel.Width(width).Render(strings.Join(lines, "\n"))
}

func formatSessionTime(raw string) string {
	if raw == "" {
		return ""
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.Local().Format("2006-01-02 15:04:05")
	}
	return raw
}
