package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/duckpond-io/pondctl/api"
	"github.com/duckpond-io/pondctl/config"
	"github.com/duckpond-io/pondctl/nav"
	"github.com/duckpond-io/pondctl/reconcile"
	"github.com/duckpond-io/pondctl/transition"
)

// Client routes. Registered most specific first so "/notebooks/:name"
// wins over "/notebooks" prefixed lookups.
const (
	routeLogin          = "/login"
	routeNotebookDetail = "/notebooks/:name"
	routeNotebooks      = "/notebooks"
	routeAccount        = "/account"
	routeDatasets       = "/datasets"
)

// Shell messages.
type navigateMsg struct {
	path    string
	replace bool
}

type navigateBackMsg struct{}

type unauthorizedMsg struct{}

type shellToastMsg struct {
	level string
	text  string
}

type shellLedgerMsg struct {
	level string
	text  string
}

type transitionUpdateMsg struct {
	snap transition.Snapshot
}

type transitionDoneMsg struct {
	notebookID string
}

// adminModel is the shell: it owns the chrome (header, toasts, ledger,
// footer) and the single content region the routed views render into.
type adminModel struct {
	theme tuiTheme

	width  int
	height int

	cfg    *config.Config
	client *api.Client
	store  *api.SessionStore
	router *nav.Router
	loop   *reconcile.Loop
	exec   *transition.Executor
	logger *slog.Logger

	host    *viewHost
	current adminView

	toasts     toastModel
	ledger     ledgerModel
	showLedger bool
	showHelp   bool

	started time.Time
	done    bool
}

func newAdminModel(cfg *config.Config, logger *slog.Logger) *adminModel {
	theme := newTUITheme()
	host := &viewHost{}

	m := &adminModel{
		theme:   theme,
		cfg:     cfg,
		store:   api.NewSessionStore(),
		host:    host,
		logger:  logger,
		toasts:  newToastModel(theme),
		ledger:  newLedgerModel(theme),
		started: time.Now(),
	}

	m.client = api.New(cfg.Server.BaseURL,
		api.WithAPIKey(cfg.Server.APIKey),
		api.WithLogger(logger),
		api.WithUnauthorizedHook(func() {
			host.post(unauthorizedMsg{})
		}),
	)
	m.loop = reconcile.NewLoop(m.client, cfg.UI.RefreshInterval, logger)
	m.exec = transition.NewExecutor(m.client, logger,
		transition.WithUpdateFunc(func(snap transition.Snapshot) {
			host.post(transitionUpdateMsg{snap: snap})
		}),
		transition.WithDoneFunc(func(id string) {
			host.post(transitionDoneMsg{notebookID: id})
		}),
	)

	m.router = nav.NewRouter(cfg.UI.DefaultRoute, logger)
	m.registerGuards()
	m.registerRoutes()
	return m
}

func (m *adminModel) registerGuards() {
	m.router.Before(func(ctx context.Context, target string, prev nav.State) error {
		def, _, ok := m.router.Lookup(target)
		if !ok {
			// Unresolvable targets fall through to the default redirect.
			return nil
		}
		if def.Options.RequiresAuth && !m.store.Authenticated() {
			m.store.SetReturnPath(target)
			return fmt.Errorf("%w: authentication required for %s", nav.ErrVetoed, target)
		}
		return nil
	})
	m.router.Before(func(ctx context.Context, target string, prev nav.State) error {
		m.host.setLoading(true)
		return nil
	})
	m.router.After(func(ctx context.Context, resolved string) {
		m.host.setLoading(false)
		m.host.setTitle(m.router.State().Options.Title)
	})
}

func (m *adminModel) registerRoutes() {
	mustRegister := func(template string, handler nav.HandlerFunc, opts nav.Options) {
		if err := m.router.Register(template, handler, opts); err != nil {
			panic(fmt.Sprintf("route %s: %v", template, err))
		}
	}

	mustRegister(routeLogin, func(ctx context.Context, params map[string]string) error {
		m.host.mount(newLoginView(m.theme, m.client, m.store, m.host.nextEpoch()))
		return nil
	}, nav.Options{Title: "Sign in"})

	mustRegister(routeNotebookDetail, func(ctx context.Context, params map[string]string) error {
		m.host.mount(newNotebookDetailView(m.theme, m.client, params["name"], m.host.nextEpoch()))
		return nil
	}, nav.Options{RequiresAuth: true, Title: "Notebook"})

	mustRegister(routeNotebooks, func(ctx context.Context, params map[string]string) error {
		m.host.mount(newNotebooksView(m.theme, m.client, m.loop, m.exec, m.host.nextEpoch()))
		return nil
	}, nav.Options{RequiresAuth: true, Title: "Notebooks"})

	mustRegister(routeAccount, func(ctx context.Context, params map[string]string) error {
		m.host.mount(newAccountView(m.theme, m.client, m.store, m.host.nextEpoch()))
		return nil
	}, nav.Options{RequiresAuth: true, Title: "Account"})

	mustRegister(routeDatasets, func(ctx context.Context, params map[string]string) error {
		m.host.mount(newDatasetsView(m.theme, m.client, m.host.nextEpoch()))
		return nil
	}, nav.Options{RequiresAuth: true, Title: "Datasets"})
}

func (m *adminModel) Init() tea.Cmd {
	return func() tea.Msg {
		return navigateMsg{path: m.cfg.UI.DefaultRoute, replace: true}
	}
}

func (m *adminModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	// Results from a view that has since been torn down are dropped.
	if em, ok := msg.(epochMsg); ok && em.viewEpoch() != m.host.epoch() {
		return m, nil
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ledger.setSize(m.width-4, m.ledgerHeight())

	case tea.KeyMsg:
		if handled, keyCmd := m.handleKey(msg); handled {
			return m, keyCmd
		}

	case navigateMsg:
		return m, m.navigate(msg.path, msg.replace)

	case navigateBackMsg:
		return m, m.navigateBack()

	case unauthorizedMsg:
		m.store.Clear()
		if path := m.router.State().Path; path != "" && path != routeLogin {
			m.store.SetReturnPath(path)
		}
		cmds = append(cmds, m.toasts.push("warn", "Session expired, sign in again"))
		cmds = append(cmds, navigateTo(routeLogin, true))
		return m, tea.Batch(cmds...)

	case shellToastMsg:
		return m, m.toasts.push(msg.level, msg.text)

	case shellLedgerMsg:
		m.ledger.addEntry(ledgerEntry{at: time.Now(), level: msg.level, text: msg.text})

	case toastExpireMsg:
		m.toasts.expire(msg.id)

	case transitionUpdateMsg:
		level := "info"
		if msg.snap.Failed() {
			level = "error"
		} else if msg.snap.Done {
			level = "ok"
		}
		m.ledger.addEntry(ledgerEntry{
			at:     time.Now(),
			level:  level,
			source: msg.snap.NotebookID,
			text:   describeTransition(msg.snap),
		})

	case transitionDoneMsg:
		// Server-confirmed terminal state: silently refresh the merged
		// view regardless of which view is mounted.
		cmds = append(cmds, m.silentRefresh())
	}

	if m.current != nil {
		m.current, cmd = m.current.Update(msg)
		cmds = append(cmds, cmd)
	}

	m.ledger, cmd = m.ledger.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *adminModel) handleKey(msg tea.KeyMsg) (bool, tea.Cmd) {
	// Views with an open input (search, login, modal) consume keys first.
	if m.current != nil && viewCapturesInput(m.current) {
		switch msg.String() {
		case "ctrl+c":
			return true, m.quit()
		}
		return false, nil
	}

	switch msg.String() {
	case "ctrl+c", "q":
		return true, m.quit()
	case "esc":
		return true, func() tea.Msg { return navigateBackMsg{} }
	case "?":
		m.showHelp = !m.showHelp
		return true, nil
	case "L":
		m.showLedger = !m.showLedger
		m.ledger.setSize(m.width-4, m.ledgerHeight())
		return true, nil
	case "P":
		if m.showLedger {
			m.ledger.togglePause()
			return true, nil
		}
		return false, nil
	case "1":
		return true, navigateTo(routeNotebooks, false)
	case "2":
		return true, navigateTo(routeAccount, false)
	case "3":
		return true, navigateTo(routeDatasets, false)
	}
	return false, nil
}

// inputCapturer is implemented by views that own a focused text input.
type inputCapturer interface {
	capturesInput() bool
}

func viewCapturesInput(v adminView) bool {
	if c, ok := v.(inputCapturer); ok {
		return c.capturesInput()
	}
	return false
}

func (m *adminModel) quit() tea.Cmd {
	if m.current != nil {
		m.current.Teardown()
		m.current = nil
	}
	m.done = true
	return tea.Quit
}

// navigateTo is the command views use to request navigation.
func navigateTo(path string, replace bool) tea.Cmd {
	return func() tea.Msg {
		return navigateMsg{path: path, replace: replace}
	}
}

func (m *adminModel) navigate(path string, replace bool) tea.Cmd {
	ctx := context.Background()
	var err error
	if replace {
		err = m.router.NavigateReplace(ctx, path)
	} else {
		err = m.router.Navigate(ctx, path)
	}

	var cmds []tea.Cmd
	if err != nil {
		m.host.setLoading(false)
		switch {
		case errors.Is(err, nav.ErrVetoed) && path != routeLogin:
			cmds = append(cmds, m.toasts.push("warn", "Sign in required"))
			cmds = append(cmds, navigateTo(routeLogin, true))
		case errors.Is(err, nav.ErrNoRoute):
			cmds = append(cmds, m.toasts.push("error", "Navigation failed: "+err.Error()))
		default:
			m.logger.Warn("navigation rejected", "path", path, "error", err)
		}
	}

	cmds = append(cmds, m.mountPending()...)
	return tea.Batch(cmds...)
}

func (m *adminModel) navigateBack() tea.Cmd {
	if err := m.router.Back(context.Background()); err != nil {
		m.host.setLoading(false)
		m.logger.Warn("back navigation rejected", "error", err)
	}
	return tea.Batch(m.mountPending()...)
}

// mountPending swaps in the view the last dispatched handler produced.
// The old view is torn down first; Teardown is idempotent.
func (m *adminModel) mountPending() []tea.Cmd {
	v, ok := m.host.takePending()
	if !ok {
		return nil
	}
	if m.current != nil {
		m.current.Teardown()
	}
	m.current = v
	// On a detail route the ledger follows that notebook only.
	m.ledger.setSourceFilter(m.router.State().Params["name"])
	m.ledger.addEntry(ledgerEntry{
		at:    time.Now(),
		level: "info",
		text:  "Navigated to " + m.router.State().Path,
	})
	if cmd := v.Init(); cmd != nil {
		return []tea.Cmd{cmd}
	}
	return nil
}

func (m *adminModel) silentRefresh() tea.Cmd {
	loop := m.loop
	epoch := m.host.epoch()
	return func() tea.Msg {
		items := loop.Refresh(context.Background())
		if items == nil {
			return nil
		}
		return notebooksDataMsg{epoch: epoch, items: items}
	}
}

func describeTransition(snap transition.Snapshot) string {
	if snap.Err != nil {
		return fmt.Sprintf("%s %s failed: %v", snap.Kind, snap.NotebookID, snap.Err)
	}
	if snap.Done {
		return fmt.Sprintf("%s %s complete", snap.Kind, snap.NotebookID)
	}
	return fmt.Sprintf("%s %s: %s", snap.Kind, snap.NotebookID, snap.Steps[snap.Cursor].Name)
}

func (m *adminModel) ledgerHeight() int {
	h := m.height / 4
	if h < 4 {
		h = 4
	}
	return h
}

func (m *adminModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading admin UI..."
	}

	header := m.renderHeader()
	chrome := lipgloss.Height(header) + 3
	if m.showLedger {
		chrome += m.ledgerHeight() + 2
	}

	contentHeight := m.height - chrome
	if contentHeight < 4 {
		contentHeight = 4
	}

	content := ""
	if m.current != nil {
		content = m.current.Render(m.width-2, contentHeight)
	}

	sections := []string{header, content}
	if m.showLedger {
		label := m.theme.subtitle.Render("Event Ledger")
		sections = append(sections, m.theme.panel.Width(m.width-2).Render(
			lipgloss.JoinVertical(lipgloss.Left, label, m.ledger.View())))
	}
	if toasts := m.toasts.View(m.width - 2); toasts != "" {
		sections = append(sections, toasts)
	}
	sections = append(sections, m.renderFooter())

	return m.theme.canvas.Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func (m *adminModel) renderHeader() string {
	title := m.theme.title.Render("pondctl admin")
	crumb := m.router.State().Path
	if crumb == "" {
		crumb = "starting"
	}
	meta := m.theme.muted.Render(fmt.Sprintf("server=%s  route=%s  uptime=%s",
		m.client.BaseURL(), crumb, time.Since(m.started).Round(time.Second)))

	line := m.theme.subtitle.Render(m.host.currentTitle())
	if m.host.isLoading() {
		line = m.theme.warn.Render("Loading...")
	}
	if sess := m.store.Get(); sess != nil {
		line += m.theme.muted.Render("  ·  " + sess.Name)
	}
	return m.theme.panel.Width(m.width - 2).Render(lipgloss.JoinVertical(lipgloss.Left, title, meta, line))
}

func (m *adminModel) renderFooter() string {
	parts := []string{
		m.theme.help.Render("1 notebooks"),
		m.theme.help.Render("2 account"),
		m.theme.help.Render("3 datasets"),
		m.theme.help.Render("esc back"),
		m.theme.help.Render("L ledger"),
		m.theme.help.Render("q quit"),
	}
	if m.showHelp {
		parts = append(parts, m.theme.muted.Render("views add their own keys, ? hides this"))
	}
	return m.theme.panel.Width(m.width - 2).Render(joinHelp(parts))
}

func joinHelp(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "  |  "
		}
		out += p
	}
	return out
}
