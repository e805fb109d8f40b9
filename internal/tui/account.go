package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"todovault/internal/client"
)

type accountModel struct {
	session *client.Session
	width   int
	height  int

	cursor int

	formActive bool
	form       *huh.Form
	formMode   string // "login" / "register"

	formFullName *string
	formUsername *string
	formPassword *string
}

func newAccountModel(session *client.Session) accountModel {
	fullName, username, password := "", "", ""
	return accountModel{
		session:      session,
		formFullName: &fullName,
		formUsername: &username,
		formPassword: &password,
	}
}

func (m *accountModel) setSize(w, h int) {
	m.width = w
	m.height = h
}

// menuItems は現在のセッション状態に応じた選択肢です。
func (m accountModel) menuItems() []string {
	if m.session.State() == client.StateAuthenticated {
		return []string{"Sign out"}
	}
	return []string{"Sign in", "Create account"}
}

func (m accountModel) update(msg tea.Msg) (accountModel, tea.Cmd) {
	if m.formActive && m.form != nil {
		return m.updateForm(msg)
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	items := m.menuItems()
	switch {
	case key.Matches(keyMsg, keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(keyMsg, keys.Down):
		if m.cursor < len(items)-1 {
			m.cursor++
		}
	case key.Matches(keyMsg, keys.Enter):
		switch items[m.cursor] {
		case "Sign in":
			return m.showForm("login")
		case "Create account":
			return m.showForm("register")
		case "Sign out":
			m.cursor = 0
			return m, m.logoutCmd()
		}
	}
	return m, nil
}

func (m accountModel) showForm(mode string) (accountModel, tea.Cmd) {
	*m.formFullName = ""
	*m.formUsername = ""
	*m.formPassword = ""
	m.formMode = mode

	fields := []huh.Field{}
	if mode == "register" {
		fields = append(fields, huh.NewInput().Title("Full name").Value(m.formFullName))
	}
	fields = append(fields,
		huh.NewInput().Title("Username").Value(m.formUsername),
		huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(m.formPassword),
	)

	m.form = huh.NewForm(huh.NewGroup(fields...)).WithShowHelp(true).WithShowErrors(true)
	m.formActive = true
	return m, m.form.Init()
}

func (m accountModel) updateForm(msg tea.Msg) (accountModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			m.formActive = false
			m.form = nil
			return m, nil
		}
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		m.formActive = false
		if m.formMode == "register" {
			return m, m.registerCmd()
		}
		return m, m.loginCmd()
	}
	return m, cmd
}

func (m accountModel) loginCmd() tea.Cmd {
	session := m.session
	username, password := *m.formUsername, *m.formPassword
	return func() tea.Msg {
		if _, err := session.Login(context.Background(), username, password); err != nil {
			return statusMsg{text: "Sign in failed: " + err.Error(), isError: true}
		}
		return sessionChangedMsg{}
	}
}

func (m accountModel) registerCmd() tea.Cmd {
	session := m.session
	fullName, username, password := *m.formFullName, *m.formUsername, *m.formPassword
	return func() tea.Msg {
		if _, err := session.Register(context.Background(), fullName, username, password); err != nil {
			return statusMsg{text: "Registration failed: " + err.Error(), isError: true}
		}
		return sessionChangedMsg{}
	}
}

func (m accountModel) logoutCmd() tea.Cmd {
	session := m.session
	return func() tea.Msg {
		// サーバー側の失敗でもローカルのセッションは破棄済みなので画面は切り替える
		_ = session.Logout(context.Background())
		return sessionChangedMsg{}
	}
}

func (m accountModel) view() string {
	w := m.width - 4

	if m.formActive && m.form != nil {
		title := titleStyle.Render("Sign In")
		if m.formMode == "register" {
			title = titleStyle.Render("Create Account")
		}
		content := lipgloss.JoinVertical(lipgloss.Left, title, "", m.form.View())
		return panelStyle.Width(w).Render(content)
	}

	var rows []string
	rows = append(rows, titleStyle.Render("Account"))
	rows = append(rows, "")

	if user := m.session.User(); user != nil {
		rows = append(rows, "  "+highlightStyle.Render(user.FullName)+mutedStyle.Render("  @"+user.Username))
	} else {
		rows = append(rows, mutedStyle.Render("  Guest mode. Todos are stored on this machine only."))
	}
	rows = append(rows, "")

	for i, item := range m.menuItems() {
		cursor := "  "
		style := normalItemStyle
		if i == m.cursor {
			cursor = "> "
			style = selectedItemStyle
		}
		rows = append(rows, style.Render(cursor+item))
	}

	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  enter: select  ↑/↓: move"))

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
