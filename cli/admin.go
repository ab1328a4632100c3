package cli

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Interactive notebook dashboard",
	Long: `Opens the full-screen admin UI: the notebook dashboard with live
session state, account and API key management, and dataset queries.
Requires an interactive terminal.`,
	RunE: runAdminUI,
}

func runAdminUI(cmd *cobra.Command, args []string) error {
	if !isInteractiveTerminal() {
		return fmt.Errorf("admin requires an interactive terminal, use 'pondctl status --no-ui' for scripting")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Application logs flow into the on-screen ledger instead of stderr,
	// which the alternate screen would clobber anyway.
	forwarder := &adminLogForwarder{}
	logger := slog.New(slog.NewTextHandler(forwarder, &slog.HandlerOptions{Level: cfg.Log.Level}))

	model := newAdminModel(cfg, logger)
	forwarder.post = model.host.post

	p := tea.NewProgram(model, tea.WithAltScreen())
	model.host.setSend(p.Send)

	_, runErr := p.Run()
	return runErr
}

// adminLogForwarder turns slog text output into ledger entries. Lines
// are buffered until a newline arrives since handlers may write in
// fragments.
type adminLogForwarder struct {
	mu      sync.Mutex
	pending string
	post    func(tea.Msg)
}

func (w *adminLogForwarder) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending += string(p)
	for {
		newline := strings.IndexByte(w.pending, '\n')
		if newline < 0 {
			break
		}
		line := strings.TrimSpace(w.pending[:newline])
		w.pending = w.pending[newline+1:]
		w.emitLine(line)
	}
	return len(p), nil
}

func (w *adminLogForwarder) emitLine(line string) {
	if line == "" || w.post == nil {
		return
	}
	w.post(shellLedgerMsg{level: adminLogLevel(line), text: line})
}

func adminLogLevel(line string) string {
	switch {
	case strings.Contains(line, "level=ERROR"):
		return "error"
	case strings.Contains(line, "level=WARN"):
		return "warn"
	default:
		return "info"
	}
}
