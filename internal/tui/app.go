// Package tuiはターミナルUIを提供します。
// データ操作はTodoStoreインターフェース越しに行い、
// 認証モードかゲストモードかをこのパッケージは意識しません。
package tui

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"todovault/internal/client"
)

type viewState int

const (
	viewTodos viewState = iota
	viewStats
	viewAccount
)

var viewNames = []string{"Todos", "Stats", "Account"}

// StoreFactory はセッション状態に応じたTodoStoreを作ります。
// ログイン・ログアウトのタイミングで一度だけ呼ばれます。
type StoreFactory func(authenticated bool) (client.TodoStore, error)

type statusMsg struct {
	text    string
	isError bool
}

// sessionChangedMsg はログイン・ログアウト後にアカウント画面から届きます。
type sessionChangedMsg struct{}

// App はBubble Teaのルートモデルです。
type App struct {
	session  *client.Session
	newStore StoreFactory
	width    int
	height   int

	activeView viewState
	showHelp   bool

	todos   todosModel
	stats   statsModel
	account accountModel

	help   help.Model
	status string
}

// NewApp はAppを作ります。storeは初期セッション状態に対応するものを渡します。
func NewApp(session *client.Session, store client.TodoStore, factory StoreFactory) App {
	h := help.New()
	h.ShowAll = false

	return App{
		session:    session,
		newStore:   factory,
		activeView: viewTodos,
		todos:      newTodosModel(store),
		stats:      newStatsModel(store),
		account:    newAccountModel(session),
		help:       h,
	}
}

func (a App) Init() tea.Cmd {
	return a.todos.refresh()
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		contentHeight := a.height - 4
		a.todos.setSize(a.width, contentHeight)
		a.stats.setSize(a.width, contentHeight)
		a.account.setSize(a.width, contentHeight)
		return a, nil

	case tea.KeyMsg:
		// フォームや検索欄が入力を奪っている間はグローバルキーを無効にする
		if a.isInputActive() {
			return a.updateActiveView(msg)
		}

		switch {
		case key.Matches(msg, keys.Quit):
			return a, tea.Quit
		case key.Matches(msg, keys.Help):
			a.showHelp = !a.showHelp
			a.help.ShowAll = a.showHelp
			return a, nil
		case key.Matches(msg, keys.Tab1):
			a.activeView = viewTodos
			return a, a.todos.refresh()
		case key.Matches(msg, keys.Tab2):
			a.activeView = viewStats
			return a, a.stats.refresh()
		case key.Matches(msg, keys.Tab3):
			a.activeView = viewAccount
			return a, nil
		case key.Matches(msg, keys.Tab):
			a.activeView = (a.activeView + 1) % 3
			return a, a.refreshCurrentView()
		}

	case statusMsg:
		a.status = msg.text
		return a, nil

	case sessionChangedMsg:
		return a.switchStore()
	}

	return a.updateActiveView(msg)
}

// switchStore はセッション状態の変化に合わせてTodoStoreを差し替えます。
func (a App) switchStore() (tea.Model, tea.Cmd) {
	authenticated := a.session.State() == client.StateAuthenticated
	store, err := a.newStore(authenticated)
	if err != nil {
		a.status = "Store error: " + err.Error()
		return a, nil
	}
	a.todos.setStore(store)
	a.stats.setStore(store)
	a.activeView = viewTodos
	if authenticated {
		a.status = "Signed in as " + a.session.User().Username
	} else {
		a.status = "Guest mode"
	}
	return a, a.todos.refresh()
}

func (a App) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch a.activeView {
	case viewTodos:
		a.todos, cmd = a.todos.update(msg)
	case viewStats:
		a.stats, cmd = a.stats.update(msg)
	case viewAccount:
		a.account, cmd = a.account.update(msg)
	}
	return a, cmd
}

func (a App) isInputActive() bool {
	switch a.activeView {
	case viewTodos:
		return a.todos.inputActive()
	case viewAccount:
		return a.account.formActive
	}
	return false
}

func (a App) refreshCurrentView() tea.Cmd {
	switch a.activeView {
	case viewTodos:
		return a.todos.refresh()
	case viewStats:
		return a.stats.refresh()
	}
	return nil
}

func (a App) View() string {
	if a.width == 0 {
		return "Loading..."
	}

	header := a.renderHeader()
	footer := a.renderFooter()

	var content string
	switch a.activeView {
	case viewTodos:
		content = a.todos.view()
	case viewStats:
		content = a.stats.view()
	case viewAccount:
		content = a.account.view()
	}

	headerHeight := lipgloss.Height(header)
	footerHeight := lipgloss.Height(footer)
	contentHeight := a.height - headerHeight - footerHeight
	if contentHeight < 1 {
		contentHeight = 1
	}

	content = lipgloss.NewStyle().
		Width(a.width).
		Height(contentHeight).
		Render(content)

	return lipgloss.JoinVertical(lipgloss.Left, header, content, footer)
}

func (a App) renderHeader() string {
	var tabs []string
	for i, name := range viewNames {
		if viewState(i) == a.activeView {
			tabs = append(tabs, activeTabStyle.Render(name))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(name))
		}
	}
	tabRow := lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...)

	title := lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Render("todovault")
	gap := a.width - lipgloss.Width(title) - lipgloss.Width(tabRow) - 4
	if gap < 1 {
		gap = 1
	}
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return headerStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Bottom, title, spacer, tabRow),
	)
}

func (a App) renderFooter() string {
	helpView := a.help.View(keys)

	mode := successStyle.Render(" ● guest")
	if a.session.State() == client.StateAuthenticated {
		mode = highlightStyle.Render(" ● " + a.session.User().Username)
	}

	status := ""
	if a.status != "" {
		status = mutedStyle.Render(" " + a.status)
	}

	left := footerStyle.Render(helpView)
	right := mode + status

	gap := a.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return lipgloss.JoinHorizontal(lipgloss.Bottom, left, spacer, right)
}
