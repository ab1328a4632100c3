package cli

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/duckpond-io/pondctl/api"
)

type accountDataMsg struct {
	epoch   int
	account *api.AccountInfo
	err     error
}

func (m accountDataMsg) viewEpoch() int { return m.epoch }

type apiKeyMutatedMsg struct {
	epoch   int
	created *api.CreateAPIKeyResponse
	deleted string
	err     error
}

func (m apiKeyMutatedMsg) viewEpoch() int { return m.epoch }

func validateKeyDescription(desc string) error {
	return validation.Validate(desc, validation.Required, validation.Length(3, 64))
}

// accountView shows account quotas and manages API keys. A freshly
// created key is displayed once; it cannot be recovered later.
type accountView struct {
	theme  tuiTheme
	client *api.Client
	store  *api.SessionStore
	epoch  int

	account  *api.AccountInfo
	loadErr  error
	loaded   bool
	keys     []api.APIKeyInfo
	selected int
	newKey   *api.CreateAPIKeyResponse

	modal modalModel
}

func newAccountView(theme tuiTheme, client *api.Client, store *api.SessionStore, epoch int) *accountView {
	return &accountView{
		theme:  theme,
		client: client,
		store:  store,
		epoch:  epoch,
		modal:  newModalModel(theme),
	}
}

func (v *accountView) Init() tea.Cmd {
	return v.fetchCmd()
}

func (v *accountView) Teardown() {}

func (v *accountView) capturesInput() bool { return v.modal.active() }

func (v *accountView) fetchCmd() tea.Cmd {
	client := v.client
	epoch := v.epoch
	return func() tea.Msg {
		account, err := client.Account(context.Background())
		return accountDataMsg{epoch: epoch, account: account, err: err}
	}
}

func (v *accountView) Update(msg tea.Msg) (adminView, tea.Cmd) {
	if v.modal.active() {
		var cmd tea.Cmd
		var handled bool
		v.modal, cmd, handled = v.modal.Update(msg)
		if handled {
			return v, cmd
		}
	}

	switch msg := msg.(type) {
	case accountDataMsg:
		v.loaded = true
		v.loadErr = msg.err
		v.account = msg.account
		if msg.err == nil && msg.account != nil {
			// Keep the session snapshot in step with the server.
			if sess := v.store.Get(); sess != nil {
				sess.Name = msg.account.Name
				v.store.Set(sess)
			}
		}
		return v, v.fetchKeysCmd()

	case apiKeysMsg:
		if msg.err == nil {
			v.keys = msg.keys
			if v.selected >= len(v.keys) {
				v.selected = len(v.keys) - 1
			}
			if v.selected < 0 {
				v.selected = 0
			}
		}
		return v, nil

	case apiKeyMutatedMsg:
		if msg.err != nil {
			return v, toastCmd("error", "API key change failed: "+msg.err.Error())
		}
		var cmds []tea.Cmd
		if msg.created != nil {
			v.newKey = msg.created
			cmds = append(cmds, toastCmd("ok", "Key created, shown once below"))
		}
		if msg.deleted != "" {
			cmds = append(cmds, toastCmd("ok", "Key deleted"))
		}
		cmds = append(cmds, v.fetchKeysCmd())
		return v, tea.Batch(cmds...)

	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if v.selected > 0 {
				v.selected--
			}
		case "down", "j":
			if v.selected < len(v.keys)-1 {
				v.selected++
			}
		case "n":
			return v, v.openCreateKeyModal()
		case "d":
			if v.selected < len(v.keys) {
				v.openDeleteKeyModal(v.keys[v.selected])
			}
		case "s":
			return v, v.signOutCmd()
		case "R":
			return v, v.fetchCmd()
		}
	}
	return v, nil
}

type apiKeysMsg struct {
	epoch int
	keys  []api.APIKeyInfo
	err   error
}

func (m apiKeysMsg) viewEpoch() int { return m.epoch }

func (v *accountView) fetchKeysCmd() tea.Cmd {
	client := v.client
	epoch := v.epoch
	store := v.store
	return func() tea.Msg {
		me, err := client.AuthMe(context.Background())
		if err != nil {
			return apiKeysMsg{epoch: epoch, err: err}
		}
		// Keep the session snapshot in step with the server.
		if sess := store.Get(); sess != nil {
			sess.Quotas = me.Quotas
			sess.APIKeys = me.APIKeys
			store.Set(sess)
		}
		return apiKeysMsg{epoch: epoch, keys: parseAPIKeys(me.APIKeys)}
	}
}

// parseAPIKeys lifts the loosely typed key listing from the auth
// endpoint into the masked key type. Unknown fields are ignored.
func parseAPIKeys(raw []map[string]any) []api.APIKeyInfo {
	keys := make([]api.APIKeyInfo, 0, len(raw))
	for _, entry := range raw {
		key := api.APIKeyInfo{}
		if s, ok := entry["key_id"].(string); ok {
			key.KeyID = s
		}
		if s, ok := entry["key_preview"].(string); ok {
			key.KeyPreview = s
		}
		if s, ok := entry["description"].(string); ok {
			key.Description = &s
		}
		if s, ok := entry["created_at"].(string); ok {
			key.CreatedAt = s
		}
		keys = append(keys, key)
	}
	return keys
}

// signOutCmd ends the server-side session and returns to the login
// route. The server call is best effort; the local session clears
// regardless.
func (v *accountView) signOutCmd() tea.Cmd {
	client := v.client
	v.store.Clear()
	return tea.Batch(
		func() tea.Msg {
			_ = client.Logout(context.Background())
			return nil
		},
		toastCmd("ok", "Signed out"),
		navigateTo(routeLogin, true),
	)
}

func (v *accountView) openCreateKeyModal() tea.Cmd {
	client := v.client
	epoch := v.epoch
	return v.modal.openPrompt("New API key description", "ci deploy key", validateKeyDescription, func(desc string) tea.Cmd {
		return func() tea.Msg {
			created, err := client.CreateAPIKey(context.Background(), desc)
			return apiKeyMutatedMsg{epoch: epoch, created: created, err: err}
		}
	})
}

func (v *accountView) openDeleteKeyModal(key api.APIKeyInfo) {
	client := v.client
	epoch := v.epoch
	id := key.KeyID
	v.modal.openConfirm("Delete API key", "Delete key "+key.KeyPreview+"? Clients using it will lose access.", func() tea.Cmd {
		return func() tea.Msg {
			err := client.DeleteAPIKey(context.Background(), id)
			return apiKeyMutatedMsg{epoch: epoch, deleted: id, err: err}
		}
	})
}

func (v *accountView) Render(width, height int) string {
	_, listHeight := splitHeights(height)
	sections := []string{v.renderAccountPanel(width), v.renderKeysPanel(width, listHeight)}
	if v.newKey != nil {
		sections = append(sections, v.renderNewKeyPanel(width))
	}
	if v.modal.active() {
		sections = append(sections, v.modal.View(width))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (v *accountView) renderAccountPanel(width int) string {
	lines := []string{v.theme.subtitle.Render("Account")}
	switch {
	case !v.loaded:
		lines = append(lines, v.theme.muted.Render("Loading..."))
	case v.loadErr != nil:
		lines = append(lines, v.theme.danger.Render("Load failed: "+v.loadErr.Error()))
	case v.account != nil:
		a := v.account
		lines = append(lines,
			v.theme.text.Render(fmt.Sprintf("%s (%s)  status=%s", a.Name, a.AccountID, a.Status)),
			v.theme.muted.Render(fmt.Sprintf("storage=%s  quota=%dGB  query-mem=%dGB  concurrency=%d",
				a.StorageBackend, a.MaxStorageGB, a.MaxQueryMemoryGB, a.MaxConcurrentQueries)),
		)
	}
	return v.theme.panel.Width(width).Render(strings.Join(lines, "\n"))
}

func (v *accountView) renderKeysPanel(width, height int) string {
	if len(v.keys) == 0 {
		return renderEmptyState(v.theme, "API keys",
			"This account has no API keys.",
			"n creates one", width)
	}
	rows := make([]listRow, len(v.keys))
	for i, key := range v.keys {
		desc := ""
		if key.Description != nil {
			desc = *key.Description
		}
		rows[i] = listRow{
			label: fmt.Sprintf("%-14s %s", key.KeyPreview, truncateRunes(desc, 28)),
			note:  key.CreatedAt,
		}
	}
	list := renderRowList(v.theme, fmt.Sprintf("API keys (%d)", len(v.keys)), rows, v.selected, width, height)
	help := v.theme.help.Render("n new key  d delete  s sign out  R reload")
	return lipgloss.JoinVertical(lipgloss.Left, list, help)
}

func (v *accountView) renderNewKeyPanel(width int) string {
	lines := []string{
		v.theme.subtitle.Render("New key (save it now)"),
		v.theme.highlight.Render(v.newKey.APIKey),
	}
	if v.newKey.Warning != "" {
		lines = append(lines, v.theme.warn.Render(v.newKey.Warning))
	}
	return v.theme.panel.Width(width).Render(strings.Join(lines, "\n"))
}
