package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/duckpond-io/pondctl/api"
)

type datasetUploadMsg struct {
	epoch  int
	result *api.UploadResult
	err    error
}

func (m datasetUploadMsg) viewEpoch() int { return m.epoch }

type datasetQueryMsg struct {
	epoch  int
	sql    string
	result *api.QueryResult
	err    error
}

func (m datasetQueryMsg) viewEpoch() int { return m.epoch }

func validateUploadPath(path string) error {
	if err := validation.Validate(path, validation.Required); err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot read %s", path)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}

func validateQuerySQL(sql string) error {
	return validation.Validate(sql, validation.Required, validation.Length(5, 0))
}

// datasetsView uploads local files into datasets and runs ad-hoc SQL
// against them. Query results render as a fixed-width table capped to
// what fits on screen.
type datasetsView struct {
	theme  tuiTheme
	client *api.Client
	epoch  int

	uploads []api.UploadResult
	lastSQL string
	result  *api.QueryResult
	busy    bool

	modal modalModel
}

func newDatasetsView(theme tuiTheme, client *api.Client, epoch int) *datasetsView {
	return &datasetsView{
		theme:  theme,
		client: client,
		epoch:  epoch,
		modal:  newModalModel(theme),
	}
}

func (v *datasetsView) Init() tea.Cmd { return nil }

func (v *datasetsView) Teardown() {}

func (v *datasetsView) capturesInput() bool { return v.modal.active() }

func (v *datasetsView) Update(msg tea.Msg) (adminView, tea.Cmd) {
	if v.modal.active() {
		var cmd tea.Cmd
		var handled bool
		v.modal, cmd, handled = v.modal.Update(msg)
		if handled {
			return v, cmd
		}
	}

	switch msg := msg.(type) {
	case datasetUploadMsg:
		v.busy = false
		if msg.err != nil {
			return v, toastCmd("error", "Upload failed: "+msg.err.Error())
		}
		v.uploads = append(v.uploads, *msg.result)
		return v, toastCmd("ok", fmt.Sprintf("Uploaded %s into %s (%d rows)", msg.result.File, msg.result.Dataset, msg.result.RowCount))

	case datasetQueryMsg:
		v.busy = false
		v.lastSQL = msg.sql
		if msg.err != nil {
			v.result = nil
			return v, toastCmd("error", "Query failed: "+msg.err.Error())
		}
		v.result = msg.result
		return v, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "u":
			return v, v.openUploadModal()
		case "s":
			return v, v.openQueryModal()
		}
	}
	return v, nil
}

func (v *datasetsView) openUploadModal() tea.Cmd {
	client := v.client
	epoch := v.epoch
	return v.modal.openPrompt("Upload file (local path)", "/data/events.parquet", validateUploadPath, func(path string) tea.Cmd {
		v.busy = true
		return func() tea.Msg {
			f, err := os.Open(path)
			if err != nil {
				return datasetUploadMsg{epoch: epoch, err: err}
			}
			defer f.Close()

			base := filepath.Base(path)
			dataset := strings.TrimSuffix(base, filepath.Ext(base))
			result, err := client.Upload(context.Background(), dataset, base, f)
			return datasetUploadMsg{epoch: epoch, result: result, err: err}
		}
	})
}

func (v *datasetsView) openQueryModal() tea.Cmd {
	client := v.client
	epoch := v.epoch
	return v.modal.openPrompt("Run SQL", "SELECT * FROM events LIMIT 20", validateQuerySQL, func(sql string) tea.Cmd {
		v.busy = true
		return func() tea.Msg {
			result, err := client.Query(context.Background(), sql, 100)
			return datasetQueryMsg{epoch: epoch, sql: sql, result: result, err: err}
		}
	})
}

func (v *datasetsView) Render(width, height int) string {
	sections := []string{v.renderUploadsPanel(width), v.renderQueryPanel(width, height)}
	if v.modal.active() {
		sections = append(sections, v.modal.View(width))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (v *datasetsView) renderUploadsPanel(width int) string {
	lines := []string{v.theme.subtitle.Render("Datasets")}
	if len(v.uploads) == 0 {
		lines = append(lines, v.theme.muted.Render("No uploads this session. Press u to upload a file."))
	}
	for _, up := range v.uploads {
		lines = append(lines, v.theme.text.Render(fmt.Sprintf("%-24s %-20s %8s %8d rows",
			truncateRunes(up.Dataset, 24), truncateRunes(up.File, 20), formatBytes(up.SizeBytes), up.RowCount)))
	}
	lines = append(lines, v.theme.help.Render("u upload  s run SQL"))
	return v.theme.panel.Width(width).Render(strings.Join(lines, "\n"))
}

func (v *datasetsView) renderQueryPanel(width, height int) string {
	lines := []string{v.theme.subtitle.Render("Query")}
	switch {
	case v.busy:
		lines = append(lines, v.theme.muted.Render("Running..."))
	case v.result == nil:
		lines = append(lines, v.theme.muted.Render("No query yet."))
	default:
		lines = append(lines, v.theme.muted.Render(truncateRunes(v.lastSQL, width-6)))
		lines = append(lines, renderQueryTable(v.theme, v.result, width-4, height-12)...)
		lines = append(lines, v.theme.muted.Render(fmt.Sprintf("%d rows in %.1fms", v.result.RowCount, v.result.ExecutionTimeMS)))
	}
	return v.theme.panel.Width(width).Render(strings.Join(lines, "\n"))
}

// renderQueryTable lays out columns at equal width. Cell values longer
// than the column are truncated rather than wrapped.
func renderQueryTable(theme tuiTheme, result *api.QueryResult, width, maxRows int) []string {
	if len(result.Columns) == 0 {
		return []string{theme.muted.Render("(no columns)")}
	}
	if maxRows < 3 {
		maxRows = 3
	}
	colWidth := width/len(result.Columns) - 1
	if colWidth < 6 {
		colWidth = 6
	}

	cell := func(s string) string {
		return fmt.Sprintf("%-*s", colWidth, truncateRunes(s, colWidth))
	}

	header := make([]string, len(result.Columns))
	for i, col := range result.Columns {
		header[i] = cell(col)
	}
	lines := []string{theme.subtitle.Render(strings.Join(header, " "))}

	for i, row := range result.Rows {
		if i >= maxRows {
			lines = append(lines, theme.muted.Render(fmt.Sprintf("... %d more rows", len(result.Rows)-maxRows)))
			break
		}
		cells := make([]string, len(result.Columns))
		for j, col := range result.Columns {
			cells[j] = cell(formatQueryValue(row[col]))
		}
		lines = append(lines, theme.text.Render(strings.Join(cells, " ")))
	}
	return lines
}

func formatQueryValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	case bool:
		return fmt.Sprintf("%t", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
