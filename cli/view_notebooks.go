package cli

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/duckpond-io/pondctl/api"
	"github.com/duckpond-io/pondctl/reconcile"
	"github.com/duckpond-io/pondctl/transition"
)

const transitionClearDelay = 2 * time.Second

type notebooksDataMsg struct {
	epoch int
	items []reconcile.MergedNotebook
	err   error
}

func (m notebooksDataMsg) viewEpoch() int { return m.epoch }

type notebooksTickMsg struct {
	epoch int
}

func (m notebooksTickMsg) viewEpoch() int { return m.epoch }

type notebookMutatedMsg struct {
	epoch  int
	action string
	name   string
	err    error
}

func (m notebookMutatedMsg) viewEpoch() int { return m.epoch }

type transitionClearMsg struct {
	epoch      int
	notebookID string
}

func (m transitionClearMsg) viewEpoch() int { return m.epoch }

var notebookFilenameRe = regexp.MustCompile(`^[A-Za-z0-9._-]+\.py$`)

func validateNotebookFilename(name string) error {
	return validation.Validate(name,
		validation.Required,
		validation.Length(4, 128),
		validation.Match(notebookFilenameRe).Error("must be a .py filename without path separators"),
	)
}

// notebooksView is the merged dashboard: notebook files joined with
// their compute sessions, kept fresh by the reconciliation loop.
type notebooksView struct {
	theme  tuiTheme
	client *api.Client
	loop   *reconcile.Loop
	exec   *transition.Executor
	epoch  int

	search        textinput.Model
	searchFocused bool
	filter        reconcile.StatusFilter
	order         reconcile.SortOrder

	items    []reconcile.MergedNotebook
	visible  []reconcile.MergedNotebook
	selected int
	lastSync time.Time
	syncErr  error

	transitions map[string]transition.Snapshot
	modal       modalModel

	torn bool
}

func newNotebooksView(theme tuiTheme, client *api.Client, loop *reconcile.Loop, exec *transition.Executor, epoch int) *notebooksView {
	search := textinput.New()
	search.Placeholder = "filter notebooks"
	search.CharLimit = 64
	search.Width = 28

	return &notebooksView{
		theme:       theme,
		client:      client,
		loop:        loop,
		exec:        exec,
		epoch:       epoch,
		search:      search,
		transitions: make(map[string]transition.Snapshot),
		modal:       newModalModel(theme),
	}
}

func (v *notebooksView) Init() tea.Cmd {
	return v.fetchCmd()
}

func (v *notebooksView) Teardown() {
	v.torn = true
}

func (v *notebooksView) capturesInput() bool {
	return v.searchFocused || v.modal.active()
}

func (v *notebooksView) fetchCmd() tea.Cmd {
	loop := v.loop
	epoch := v.epoch
	return func() tea.Msg {
		items, err := loop.Tick(context.Background())
		return notebooksDataMsg{epoch: epoch, items: items, err: err}
	}
}

// scheduleTick arms the next reconciliation poll. The delay stretches
// under the loop's failure backoff.
func (v *notebooksView) scheduleTick() tea.Cmd {
	epoch := v.epoch
	return tea.Tick(v.loop.NextDelay(), func(time.Time) tea.Msg {
		return notebooksTickMsg{epoch: epoch}
	})
}

func (v *notebooksView) Update(msg tea.Msg) (adminView, tea.Cmd) {
	var cmds []tea.Cmd

	if v.modal.active() {
		var cmd tea.Cmd
		var handled bool
		v.modal, cmd, handled = v.modal.Update(msg)
		if handled {
			return v, cmd
		}
		cmds = append(cmds, cmd)
	}

	switch msg := msg.(type) {
	case notebooksDataMsg:
		if v.torn {
			return v, nil
		}
		if msg.err != nil {
			v.syncErr = msg.err
			cmds = append(cmds, v.scheduleTick())
			if api.IsNetwork(msg.err) {
				cmds = append(cmds, toastCmd("error", "Sync failed: "+msg.err.Error()+" (r retries)"))
			}
			return v, tea.Batch(cmds...)
		}
		v.syncErr = nil
		v.items = msg.items
		v.lastSync = time.Now()
		v.applyView()
		cmds = append(cmds, v.scheduleTick())
		return v, tea.Batch(cmds...)

	case notebooksTickMsg:
		if v.torn {
			return v, nil
		}
		return v, v.fetchCmd()

	case notebookMutatedMsg:
		if msg.err != nil {
			if errors.Is(msg.err, api.ErrValidation) {
				return v, toastCmd("warn", msg.action+" rejected: "+msg.err.Error())
			}
			return v, toastCmd("error", msg.action+" failed: "+msg.err.Error())
		}
		cmds = append(cmds, toastCmd("ok", msg.action+": "+msg.name))
		cmds = append(cmds, v.fetchCmd())
		return v, tea.Batch(cmds...)

	case transitionUpdateMsg:
		v.transitions[msg.snap.NotebookID] = msg.snap
		if msg.snap.Done {
			epoch := v.epoch
			id := msg.snap.NotebookID
			cmds = append(cmds, tea.Tick(transitionClearDelay, func(time.Time) tea.Msg {
				return transitionClearMsg{epoch: epoch, notebookID: id}
			}))
			if msg.snap.Failed() {
				cmds = append(cmds, toastCmd("error", describeTransition(msg.snap)))
			}
		}
		return v, tea.Batch(cmds...)

	case transitionClearMsg:
		if snap, ok := v.transitions[msg.notebookID]; ok && snap.Done {
			delete(v.transitions, msg.notebookID)
		}
		return v, nil

	case tea.KeyMsg:
		return v.handleKey(msg)
	}

	return v, tea.Batch(cmds...)
}

func (v *notebooksView) handleKey(msg tea.KeyMsg) (adminView, tea.Cmd) {
	if v.searchFocused {
		switch msg.String() {
		case "enter", "esc":
			v.searchFocused = false
			v.search.Blur()
			return v, nil
		}
		var cmd tea.Cmd
		v.search, cmd = v.search.Update(msg)
		v.applyView()
		return v, cmd
	}

	switch msg.String() {
	case "/":
		v.searchFocused = true
		return v, v.search.Focus()

	case "f":
		v.filter = v.filter.Next()
		v.applyView()
		return v, nil

	case "s":
		v.order = v.order.Toggle()
		v.applyView()
		return v, nil

	case "up", "k":
		if v.selected > 0 {
			v.selected--
		}
		return v, nil

	case "down", "j":
		if v.selected < len(v.visible)-1 {
			v.selected++
		}
		return v, nil

	case "enter":
		if nb, ok := v.selection(); ok {
			return v, navigateTo(routeNotebooks+"/"+nb.Filename, false)
		}
		return v, nil

	case "r":
		if nb, ok := v.selection(); ok && !nb.Running() {
			return v, v.startCmd(nb)
		}
		return v, v.fetchCmd()

	case "x":
		if nb, ok := v.selection(); ok && nb.SessionID != "" {
			return v, v.stopCmd(nb)
		}
		return v, toastCmd("warn", "No session to stop")

	case "o":
		if nb, ok := v.selection(); ok && nb.UIURL != "" {
			return v, toastCmd("info", "Session UI at "+v.client.BaseURL()+nb.UIURL)
		}
		return v, nil

	case "c":
		return v, v.openCreateModal()

	case "d":
		if nb, ok := v.selection(); ok {
			v.openDeleteModal(nb)
		}
		return v, nil
	}
	return v, nil
}

func (v *notebooksView) selection() (reconcile.MergedNotebook, bool) {
	if v.selected < 0 || v.selected >= len(v.visible) {
		return reconcile.MergedNotebook{}, false
	}
	return v.visible[v.selected], true
}

func (v *notebooksView) applyView() {
	v.visible = reconcile.Apply(v.items, v.search.Value(), v.filter, v.order)
	if v.selected >= len(v.visible) {
		v.selected = len(v.visible) - 1
	}
	if v.selected < 0 {
		v.selected = 0
	}
}

func (v *notebooksView) startCmd(nb reconcile.MergedNotebook) tea.Cmd {
	exec := v.exec
	name := nb.Filename
	return func() tea.Msg {
		err := exec.Start(context.Background(), name)
		if errors.Is(err, transition.ErrActive) {
			return shellToastMsg{level: "warn", text: "Transition already in flight for " + name}
		}
		// Other outcomes surface through the transition snapshots.
		return nil
	}
}

func (v *notebooksView) stopCmd(nb reconcile.MergedNotebook) tea.Cmd {
	exec := v.exec
	name := nb.Filename
	session := nb.SessionID
	return func() tea.Msg {
		err := exec.Stop(context.Background(), name, session)
		switch {
		case errors.Is(err, transition.ErrActive):
			return shellToastMsg{level: "warn", text: "Transition already in flight for " + name}
		case errors.Is(err, transition.ErrMissingSession):
			return shellToastMsg{level: "warn", text: "No session to stop"}
		}
		return nil
	}
}

func (v *notebooksView) openCreateModal() tea.Cmd {
	client := v.client
	epoch := v.epoch
	return v.modal.openPrompt("New notebook", "analysis.py", validateNotebookFilename, func(name string) tea.Cmd {
		return func() tea.Msg {
			_, err := client.CreateNotebook(context.Background(), name, defaultNotebookSource(name))
			return notebookMutatedMsg{epoch: epoch, action: "Created", name: name, err: err}
		}
	})
}

func (v *notebooksView) openDeleteModal(nb reconcile.MergedNotebook) {
	client := v.client
	epoch := v.epoch
	name := nb.Filename
	body := "Delete " + name + "?"
	if nb.Running() {
		body = name + " has a running session. Delete anyway?"
	}
	v.modal.openConfirm("Delete notebook", body, func() tea.Cmd {
		return func() tea.Msg {
			err := client.DeleteNotebook(context.Background(), name)
			return notebookMutatedMsg{epoch: epoch, action: "Deleted", name: name, err: err}
		}
	})
}

func defaultNotebookSource(name string) string {
	title := strings.TrimSuffix(name, ".py")
	return fmt.Sprintf("# %s\n\nimport duckdb\n\ncon = duckdb.connect()\n", title)
}

func toastCmd(level, text string) tea.Cmd {
	return func() tea.Msg {
		return shellToastMsg{level: level, text: text}
	}
}

func (v *notebooksView) Render(width, height int) string {
	controls := v.renderControls(width)
	rows := v.renderRows(width, height-lipgloss.Height(controls)-2)

	sections := []string{controls, rows}
	if v.modal.active() {
		sections = append(sections, v.modal.View(width))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (v *notebooksView) renderControls(width int) string {
	search := v.search.View()
	if v.searchFocused {
		search = v.theme.highlight.Render("/") + " " + search
	} else {
		search = v.theme.muted.Render("/") + " " + search
	}

	sync := "never"
	if !v.lastSync.IsZero() {
		sync = v.lastSync.Format("15:04:05")
	}
	meta := fmt.Sprintf("filter=%s  sort=%s  synced=%s", v.filter, v.order, sync)
	line := v.theme.muted.Render(meta)
	if v.syncErr != nil {
		line = v.theme.danger.Render(meta + "  sync error: " + truncateRunes(v.syncErr.Error(), width/2))
	}
	return v.theme.panel.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, search, line))
}

func (v *notebooksView) renderRows(width, height int) string {
	if height < 4 {
		height = 4
	}
	if len(v.visible) == 0 {
		if v.search.Value() != "" || v.filter != reconcile.FilterAll {
			return renderEmptyState(v.theme, "No matches",
				"No notebooks match the current filter.",
				"f cycles filters, / edits the search", width)
		}
		return renderEmptyState(v.theme, "No notebooks",
			"This account has no notebook files yet.",
			"c creates one", width)
	}

	maxRows := height - 2
	if maxRows < 1 {
		maxRows = 1
	}
	start := 0
	if v.selected >= maxRows {
		start = v.selected - maxRows + 1
	}
	end := start + maxRows
	if end > len(v.visible) {
		end = len(v.visible)
	}

	lines := make([]string, 0, maxRows)
	for i := start; i < end; i++ {
		nb := v.visible[i]
		lines = append(lines, v.renderRow(nb, i == v.selected, width))
		if snap, ok := v.transitions[nb.Filename]; ok {
			lines = append(lines, "  "+renderTransitionRail(v.theme, snap))
		}
	}
	help := v.theme.help.Render("/ search  f filter  s sort  enter open  r start  x stop  o url  c create  d delete")
	lines = append(lines, help)
	return v.theme.panel.Width(width).Render(strings.Join(lines, "\n"))
}

func (v *notebooksView) renderRow(nb reconcile.MergedNotebook, selected bool, width int) string {
	status := v.theme.statusStyle(nb.Status).Render(fmt.Sprintf("%-9s", nb.Status))

	session := ""
	if nb.SessionID != "" {
		session = "sess=" + truncateRunes(nb.SessionID, 12)
	}
	line := fmt.Sprintf("%s %-40s %8s  %s",
		status,
		truncateRunes(nb.Filename, 40),
		formatBytes(nb.SizeBytes),
		v.theme.muted.Render(session),
	)
	if selected {
		return v.theme.highlight.Render("> ") + line
	}
	return "  " + line
}
