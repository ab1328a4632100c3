package cli

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/duckpond-io/pondctl/api"
)

type loginResultMsg struct {
	epoch int
	resp  *api.LoginResponse
	me    *api.MeResponse
	err   error
}

func (m loginResultMsg) viewEpoch() int { return m.epoch }

// loginView collects an API key and exchanges it for an account session.
// Validation failures render inline; only a successful login navigates
// away, to the stored return path when one is pending.
type loginView struct {
	theme  tuiTheme
	client *api.Client
	store  *api.SessionStore
	epoch  int

	input   textinput.Model
	busy    bool
	errText string
}

func newLoginView(theme tuiTheme, client *api.Client, store *api.SessionStore, epoch int) *loginView {
	in := textinput.New()
	in.Placeholder = "dp_..."
	in.EchoMode = textinput.EchoPassword
	in.EchoCharacter = '*'
	in.CharLimit = 128
	in.Width = 48

	return &loginView{
		theme:  theme,
		client: client,
		store:  store,
		epoch:  epoch,
		input:  in,
	}
}

func (v *loginView) Init() tea.Cmd {
	return v.input.Focus()
}

func (v *loginView) Teardown() {}

func (v *loginView) capturesInput() bool { return true }

func (v *loginView) Update(msg tea.Msg) (adminView, tea.Cmd) {
	switch msg := msg.(type) {
	case loginResultMsg:
		v.busy = false
		if msg.err != nil {
			switch {
			case errors.Is(msg.err, api.ErrUnauthorized):
				v.errText = "Invalid API key"
			case errors.Is(msg.err, api.ErrValidation):
				v.errText = msg.err.Error()
			default:
				v.errText = "Login failed: " + msg.err.Error()
			}
			return v, nil
		}

		sess := &api.AccountSession{
			AccountID: msg.resp.User.AccountID,
			Name:      msg.resp.User.Name,
			Tenant:    msg.resp.Tenant.Name,
		}
		if msg.me != nil {
			sess.Quotas = msg.me.Quotas
			sess.APIKeys = msg.me.APIKeys
		}
		v.store.Set(sess)
		target := v.store.TakeReturnPath()
		if target == "" {
			target = routeNotebooks
		}
		return v, tea.Batch(
			toastCmd("ok", "Signed in as "+msg.resp.User.Name),
			navigateTo(target, true),
		)

	case tea.KeyMsg:
		if v.busy {
			return v, nil
		}
		switch msg.String() {
		case "enter":
			key := strings.TrimSpace(v.input.Value())
			if key == "" {
				v.errText = "API key is required"
				return v, nil
			}
			v.busy = true
			v.errText = ""
			return v, v.loginCmd(key)
		}
		var cmd tea.Cmd
		v.input, cmd = v.input.Update(msg)
		v.errText = ""
		return v, cmd
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *loginView) loginCmd(key string) tea.Cmd {
	client := v.client
	epoch := v.epoch
	return func() tea.Msg {
		resp, err := client.Login(context.Background(), key)
		if err != nil {
			return loginResultMsg{epoch: epoch, err: err}
		}
		client.SetAPIKey(key)
		// Quotas and key listing ride along in the session snapshot.
		// Best effort; the account view refetches them anyway.
		me, _ := client.AuthMe(context.Background())
		return loginResultMsg{epoch: epoch, resp: resp, me: me}
	}
}

func (v *loginView) Render(width, height int) string {
	lines := []string{
		v.theme.subtitle.Render("Sign in to duckpond"),
		v.theme.muted.Render("Server: " + v.client.BaseURL()),
		"",
		v.theme.text.Render("API key"),
		v.input.View(),
	}
	if v.busy {
		lines = append(lines, v.theme.warn.Render("Checking key..."))
	}
	if v.errText != "" {
		lines = append(lines, v.theme.danger.Render(v.errText))
	}
	lines = append(lines, "", v.theme.help.Render("enter sign in  ctrl+c quit"))

	card := v.theme.panel.Width(min(width, 60)).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, card)
}
