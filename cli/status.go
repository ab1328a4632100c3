package cli

import (
	"context"
	"fmt"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/duckpond-io/pondctl/api"
	"github.com/duckpond-io/pondctl/reconcile"
)

var (
	statusNoUI  bool
	statusWatch bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display service status and browse notebooks",
	Long: `Display the notebook service capacity summary and interactively
browse the merged notebook list.

With --watch the summary is printed once and a compact line follows for
every reconciliation tick, until interrupted.

Navigation:
  Enter    - Browse notebooks / View details
  Esc      - Go back
  Up/Down  - Navigate
  q        - Quit`,
	RunE: runStatus,
}

type statusViewState int

const (
	statusViewSummary statusViewState = iota
	statusViewNotebooks
	statusViewDetail
)

type statusModel struct {
	svc      *api.ServiceStatus
	items    []reconcile.MergedNotebook
	state    statusViewState
	selected int
	width    int
	height   int
	server   string
	err      error
}

func init() {
	statusCmd.Flags().BoolVar(&statusNoUI, "no-ui", false, "Print plain text summary instead of interactive UI")
	statusCmd.Flags().BoolVar(&statusWatch, "watch", false, "Keep polling and print one line per refresh")
}

// Styles
var (
	statusTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("205"))

	statusSelectedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("229")).
				Background(lipgloss.Color("57"))

	statusNormalStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252"))

	statusDimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	statusHelpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	statusBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2)
)

func (m statusModel) Init() tea.Cmd {
	return nil
}

func (m statusModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit

		case "esc":
			switch m.state {
			case statusViewNotebooks:
				m.state = statusViewSummary
			case statusViewDetail:
				m.state = statusViewNotebooks
			}

		case "enter":
			switch m.state {
			case statusViewSummary:
				m.state = statusViewNotebooks
			case statusViewNotebooks:
				if len(m.items) > 0 {
					m.state = statusViewDetail
				}
			}

		case "up", "k":
			if m.state == statusViewNotebooks && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == statusViewNotebooks && m.selected < len(m.items)-1 {
				m.selected++
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	}

	return m, nil
}

func (m statusModel) View() string {
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err)
	}

	switch m.state {
	case statusViewSummary:
		return m.viewSummary()
	case statusViewNotebooks:
		return m.viewNotebooks()
	case statusViewDetail:
		return m.viewDetail()
	}

	return ""
}

func (m statusModel) viewSummary() string {
	var sb strings.Builder

	sb.WriteString(statusTitleStyle.Render("pondctl service status"))
	sb.WriteString("\n\n")

	sb.WriteString(statusNormalStyle.Render("Server:            "))
	sb.WriteString(fmt.Sprintf("%s\n", m.server))

	sb.WriteString(statusNormalStyle.Render("Notebook service:  "))
	if m.svc.Enabled {
		sb.WriteString("enabled\n")
	} else {
		sb.WriteString("disabled\n")
	}

	sb.WriteString(statusNormalStyle.Render("Sessions:          "))
	sb.WriteString(fmt.Sprintf("%d / %d active\n", m.svc.ActiveSessions, m.svc.MaxSessions))

	sb.WriteString(statusNormalStyle.Render("Available ports:   "))
	sb.WriteString(fmt.Sprintf("%d\n", m.svc.AvailablePorts))

	sb.WriteString(statusNormalStyle.Render("Notebooks:         "))
	sb.WriteString(fmt.Sprintf("%d (%d running)\n", len(m.items), countRunning(m.items)))

	for _, line := range sessionsByStatusLines(m.svc.SessionsByStatus) {
		sb.WriteString(statusDimStyle.Render("  " + line))
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(statusHelpStyle.Render("[Enter] Browse notebooks  [q] Quit"))

	return statusBoxStyle.Render(sb.String())
}

func (m statusModel) viewNotebooks() string {
	var sb strings.Builder

	sb.WriteString(statusTitleStyle.Render(fmt.Sprintf("Notebooks (%d)", len(m.items))))
	sb.WriteString("\n\n")

	maxVisible := 15
	if m.height > 0 {
		maxVisible = m.height - 10
	}
	if maxVisible < 5 {
		maxVisible = 5
	}

	start := 0
	if m.selected >= maxVisible {
		start = m.selected - maxVisible + 1
	}
	end := start + maxVisible
	if end > len(m.items) {
		end = len(m.items)
	}

	for i := start; i < end; i++ {
		nb := m.items[i]
		line := fmt.Sprintf("%-40s %-10s %8s", truncatePath(nb.Filename, 40), nb.Status, formatBytes(nb.SizeBytes))

		if i == m.selected {
			sb.WriteString(statusSelectedStyle.Render("> " + line))
		} else {
			sb.WriteString(statusNormalStyle.Render("  " + line))
		}
		sb.WriteString("\n")
	}

	if len(m.items) > maxVisible {
		sb.WriteString(statusDimStyle.Render(fmt.Sprintf("\n... showing %d-%d of %d notebooks", start+1, end, len(m.items))))
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(statusHelpStyle.Render("[Up/Down] Navigate  [Enter] Details  [Esc] Back  [q] Quit"))

	return statusBoxStyle.Render(sb.String())
}

func (m statusModel) viewDetail() string {
	var sb strings.Builder

	nb := m.items[m.selected]
	sb.WriteString(statusTitleStyle.Render(nb.Filename))
	sb.WriteString("\n\n")

	sb.WriteString(statusNormalStyle.Render("Status:     "))
	sb.WriteString(nb.Status + "\n")
	sb.WriteString(statusNormalStyle.Render("Size:       "))
	sb.WriteString(formatBytes(nb.SizeBytes) + "\n")
	sb.WriteString(statusNormalStyle.Render("Modified:   "))
	sb.WriteString(formatUnixSeconds(nb.ModifiedAt) + "\n")
	if nb.SessionID != "" {
		sb.WriteString(statusNormalStyle.Render("Session:    "))
		sb.WriteString(nb.SessionID + "\n")
		sb.WriteString(statusNormalStyle.Render("UI URL:     "))
		sb.WriteString(nb.UIURL + "\n")
	} else {
		sb.WriteString(statusDimStyle.Render("No compute session\n"))
	}

	sb.WriteString("\n")
	sb.WriteString(statusHelpStyle.Render("[Esc] Back  [q] Quit"))

	return statusBoxStyle.Render(sb.String())
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	client := newAPIClient(cfg, logger)

	if err := client.Health(ctx); err != nil {
		return fmt.Errorf("server unreachable at %s: %w", client.BaseURL(), err)
	}

	svc, err := client.NotebookServiceStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to get service status: %w", err)
	}

	loop := reconcile.NewLoop(client, cfg.UI.RefreshInterval, logger)
	items, err := loop.Tick(ctx)
	if err != nil {
		return fmt.Errorf("failed to list notebooks: %w", err)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Filename < items[j].Filename
	})

	if statusWatch {
		watchCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		fmt.Print(renderStatusSummary(client.BaseURL(), svc, items))
		loop.Run(watchCtx, func(items []reconcile.MergedNotebook) {
			fmt.Println(renderWatchLine(time.Now(), items))
		})
		return nil
	}

	useUI := shouldUseStatusUI(isInteractiveTerminal(), statusNoUI)
	if !useUI {
		fmt.Print(renderStatusSummary(client.BaseURL(), svc, items))
		return nil
	}

	m := statusModel{
		svc:    svc,
		items:  items,
		state:  statusViewSummary,
		server: client.BaseURL(),
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	return err
}

func formatBytes(b int64) string {
	if b == 0 {
		return "N/A"
	}
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}

func truncatePath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	return "..." + path[len(path)-maxLen+3:]
}

func formatUnixSeconds(ts float64) string {
	if ts == 0 {
		return "unknown"
	}
	return time.Unix(int64(ts), 0).Format("2006-01-02 15:04:05")
}

// renderWatchLine is one refresh in watch mode: a timestamp, the notebook
// count, and how many sessions are in each non-stopped state.
func renderWatchLine(at time.Time, items []reconcile.MergedNotebook) string {
	byStatus := make(map[string]int)
	for _, nb := range items {
		if nb.Status != api.StatusStopped {
			byStatus[nb.Status]++
		}
	}
	line := fmt.Sprintf("%s  %d notebooks", at.Format("15:04:05"), len(items))
	for _, part := range sessionsByStatusLines(byStatus) {
		line += "  " + strings.Join(strings.Fields(part), "=")
	}
	return line
}

func countRunning(items []reconcile.MergedNotebook) int {
	n := 0
	for _, nb := range items {
		if nb.Running() {
			n++
		}
	}
	return n
}

func sessionsByStatusLines(byStatus map[string]int) []string {
	if len(byStatus) == 0 {
		return nil
	}
	keys := make([]string, 0, len(byStatus))
	for k := range byStatus {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%-10s %d", k, byStatus[k]))
	}
	return lines
}

func renderStatusSummary(server string, svc *api.ServiceStatus, items []reconcile.MergedNotebook) string {
	var sb strings.Builder
	sb.WriteString("pondctl service status\n")
	sb.WriteString(fmt.Sprintf("Server: %s\n", server))
	if svc.Enabled {
		sb.WriteString("Notebook service: enabled\n")
	} else {
		sb.WriteString("Notebook service: disabled\n")
	}
	sb.WriteString(fmt.Sprintf("Sessions: %d / %d active\n", svc.ActiveSessions, svc.MaxSessions))
	sb.WriteString(fmt.Sprintf("Available ports: %d\n", svc.AvailablePorts))
	sb.WriteString(fmt.Sprintf("Notebooks: %d (%d running)\n", len(items), countRunning(items)))
	for _, line := range sessionsByStatusLines(svc.SessionsByStatus) {
		sb.WriteString("  " + line + "\n")
	}
	for _, nb := range items {
		sb.WriteString(fmt.Sprintf("%-40s %-10s %s\n", nb.Filename, nb.Status, formatBytes(nb.SizeBytes)))
	}
	return sb.String()
}
