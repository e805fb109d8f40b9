package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"todovault/internal/client"
	"todovault/internal/filter"
	"todovault/internal/models"
)

// statusCycle はsキーで巡回するステータスフィルタの順序です。
var statusCycle = []string{
	models.StatusAll,
	models.StatusPending,
	models.StatusCompleted,
	models.StatusArchived,
}

const dueDateLayout = "2006-01-02"

type todosModel struct {
	store  client.TodoStore
	width  int
	height int

	todos   []models.Todo // ストアから取得した現在のステータスの全件
	visible []models.Todo // 検索・ラベルで絞り込んだ表示対象
	labels  []string
	cursor  int

	statusIdx int
	labelIdx  int // -1は全ラベル

	searching   bool
	searchInput textinput.Model

	formActive bool
	form       *huh.Form
	formMode   string // "add" / "edit" / "rename"

	// フォームのフィールド（値コピーを越えて生存させるためポインタ）
	formContent *string
	formLabel   *string
	formDue     *string

	editingID     string
	renamingLabel string
}

func newTodosModel(store client.TodoStore) todosModel {
	si := textinput.New()
	si.Placeholder = "search..."
	si.CharLimit = 100

	content, label, due := "", "", ""
	return todosModel{
		store:       store,
		labelIdx:    -1,
		searchInput: si,
		formContent: &content,
		formLabel:   &label,
		formDue:     &due,
	}
}

func (m *todosModel) setSize(w, h int) {
	m.width = w
	m.height = h
}

func (m *todosModel) setStore(store client.TodoStore) {
	m.store = store
	m.todos = nil
	m.visible = nil
	m.labels = nil
	m.cursor = 0
	m.labelIdx = -1
	m.searchInput.SetValue("")
}

func (m todosModel) inputActive() bool {
	return m.searching || m.formActive
}

type todosDataMsg struct {
	todos  []models.Todo
	labels []string
}

// refresh はストアから現在のステータスの一覧とラベルを取り直します。
func (m todosModel) refresh() tea.Cmd {
	store := m.store
	status := statusCycle[m.statusIdx]
	return func() tea.Msg {
		ctx := context.Background()
		page, err := store.List(ctx, client.ListQuery{
			Status:    status,
			SortBy:    "createdAt",
			SortOrder: "desc",
		})
		if err != nil {
			return statusMsg{text: "Load error: " + err.Error(), isError: true}
		}
		labels, err := store.Labels(ctx)
		if err != nil {
			labels = nil
		}
		return todosDataMsg{todos: page.Todos, labels: labels}
	}
}

// applyFilter は検索語とラベルをメモリ上で適用します。
func (m *todosModel) applyFilter() {
	label := ""
	if m.labelIdx >= 0 && m.labelIdx < len(m.labels) {
		label = m.labels[m.labelIdx]
	}
	m.visible = filter.Apply(m.todos, filter.Query{
		Label:  label,
		Search: m.searchInput.Value(),
	})
	if m.cursor >= len(m.visible) {
		m.cursor = max(0, len(m.visible)-1)
	}
}

func (m todosModel) update(msg tea.Msg) (todosModel, tea.Cmd) {
	if m.formActive && m.form != nil {
		return m.updateForm(msg)
	}

	switch msg := msg.(type) {
	case todosDataMsg:
		m.todos = msg.todos
		if msg.labels != nil {
			m.labels = msg.labels
		}
		if m.labelIdx >= len(m.labels) {
			m.labelIdx = -1
		}
		m.applyFilter()
		return m, nil

	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

func (m todosModel) updateSearch(msg tea.KeyMsg) (todosModel, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.searching = false
		m.searchInput.SetValue("")
		m.searchInput.Blur()
		m.applyFilter()
		return m, nil
	case "enter":
		m.searching = false
		m.searchInput.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	m.applyFilter()
	return m, cmd
}

func (m todosModel) updateList(msg tea.KeyMsg) (todosModel, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, keys.Down):
		if m.cursor < len(m.visible)-1 {
			m.cursor++
		}
	case key.Matches(msg, keys.Search):
		m.searching = true
		return m, m.searchInput.Focus()
	case key.Matches(msg, keys.Status):
		m.statusIdx = (m.statusIdx + 1) % len(statusCycle)
		m.cursor = 0
		return m, m.refresh()
	case key.Matches(msg, keys.Label):
		// -1（全ラベル）→ 0 → ... → len-1 → -1 の巡回
		m.labelIdx++
		if m.labelIdx >= len(m.labels) {
			m.labelIdx = -1
		}
		m.cursor = 0
		m.applyFilter()
		return m, nil
	case key.Matches(msg, keys.Add):
		return m.showAddForm()
	case key.Matches(msg, keys.Edit):
		if len(m.visible) > 0 {
			return m.showEditForm(m.visible[m.cursor])
		}
	case key.Matches(msg, keys.RenameLabel):
		if len(m.visible) > 0 {
			return m.showRenameForm(m.visible[m.cursor].Label)
		}
	case key.Matches(msg, keys.Toggle):
		if len(m.visible) > 0 {
			return m, m.toggleCmd(m.visible[m.cursor].ID, false)
		}
	case key.Matches(msg, keys.Archive):
		if len(m.visible) > 0 {
			return m, m.toggleCmd(m.visible[m.cursor].ID, true)
		}
	case key.Matches(msg, keys.Delete):
		if len(m.visible) > 0 {
			return m, m.deleteCmd(m.visible[m.cursor].ID)
		}
	}
	return m, nil
}

func (m todosModel) toggleCmd(id string, archive bool) tea.Cmd {
	store := m.store
	refresh := m.refresh()
	return func() tea.Msg {
		ctx := context.Background()
		var err error
		if archive {
			_, err = store.ToggleArchived(ctx, id)
		} else {
			_, err = store.ToggleCompleted(ctx, id)
		}
		if err != nil {
			return statusMsg{text: "Update error: " + err.Error(), isError: true}
		}
		return refresh()
	}
}

func (m todosModel) deleteCmd(id string) tea.Cmd {
	store := m.store
	refresh := m.refresh()
	return func() tea.Msg {
		if err := store.Remove(context.Background(), id); err != nil {
			return statusMsg{text: "Delete error: " + err.Error(), isError: true}
		}
		return refresh()
	}
}

func (m todosModel) showAddForm() (todosModel, tea.Cmd) {
	*m.formContent = ""
	*m.formLabel = ""
	*m.formDue = ""
	m.formMode = "add"
	m.form = m.buildTodoForm()
	m.formActive = true
	return m, m.form.Init()
}

func (m todosModel) showEditForm(t models.Todo) (todosModel, tea.Cmd) {
	*m.formContent = t.Content
	*m.formLabel = t.Label
	*m.formDue = ""
	if t.DueDate != nil {
		*m.formDue = t.DueDate.Format(dueDateLayout)
	}
	m.formMode = "edit"
	m.editingID = t.ID
	m.form = m.buildTodoForm()
	m.formActive = true
	return m, m.form.Init()
}

func (m todosModel) showRenameForm(label string) (todosModel, tea.Cmd) {
	*m.formLabel = label
	m.formMode = "rename"
	m.renamingLabel = label
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("New label name").Value(m.formLabel),
		),
	).WithShowHelp(true).WithShowErrors(true)
	m.formActive = true
	return m, m.form.Init()
}

func (m todosModel) buildTodoForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Content").Value(m.formContent),
			huh.NewInput().Title("Label (empty = General)").Value(m.formLabel),
			huh.NewInput().Title("Due date (YYYY-MM-DD, empty = none)").Value(m.formDue),
		),
	).WithShowHelp(true).WithShowErrors(true)
}

func (m todosModel) updateForm(msg tea.Msg) (todosModel, tea.Cmd) {
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
		switch m.formMode {
		case "add":
			return m, m.submitAdd()
		case "edit":
			return m, m.submitEdit()
		case "rename":
			return m, m.submitRename()
		}
	}
	return m, cmd
}

// parseDue は期限欄の入力を時刻に変換します。空なら(nil, true)です。
func parseDue(value string) (*time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, true
	}
	t, err := time.Parse(dueDateLayout, value)
	if err != nil {
		return nil, false
	}
	return &t, true
}

func (m todosModel) submitAdd() tea.Cmd {
	store := m.store
	content, label := *m.formContent, *m.formLabel
	due, ok := parseDue(*m.formDue)
	refresh := m.refresh()
	return func() tea.Msg {
		if !ok {
			return statusMsg{text: "Invalid due date (use YYYY-MM-DD)", isError: true}
		}
		if strings.TrimSpace(content) == "" {
			return statusMsg{text: "Content is required", isError: true}
		}
		_, err := store.Add(context.Background(), models.TodoCreateRequest{
			Content: content,
			Label:   label,
			DueDate: due,
		})
		if err != nil {
			return statusMsg{text: "Add error: " + err.Error(), isError: true}
		}
		return refresh()
	}
}

func (m todosModel) submitEdit() tea.Cmd {
	store := m.store
	id := m.editingID
	content, label := *m.formContent, *m.formLabel
	due, ok := parseDue(*m.formDue)
	refresh := m.refresh()
	return func() tea.Msg {
		if !ok {
			return statusMsg{text: "Invalid due date (use YYYY-MM-DD)", isError: true}
		}
		req := models.TodoUpdateRequest{}
		if strings.TrimSpace(content) != "" {
			req.Content = &content
		}
		if strings.TrimSpace(label) != "" {
			req.Label = &label
		}
		if due != nil {
			req.DueDate = due
		} else {
			req.ClearDue = true
		}
		if _, err := store.Update(context.Background(), id, req); err != nil {
			return statusMsg{text: "Update error: " + err.Error(), isError: true}
		}
		return refresh()
	}
}

func (m todosModel) submitRename() tea.Cmd {
	store := m.store
	oldLabel, newLabel := m.renamingLabel, *m.formLabel
	refresh := m.refresh()
	return func() tea.Msg {
		if strings.TrimSpace(newLabel) == "" || newLabel == oldLabel {
			return nil
		}
		if _, err := store.RenameLabel(context.Background(), oldLabel, newLabel); err != nil {
			return statusMsg{text: "Rename error: " + err.Error(), isError: true}
		}
		return refresh()
	}
}

func (m todosModel) view() string {
	if m.formActive && m.form != nil {
		title := titleStyle.Render("New Todo")
		switch m.formMode {
		case "edit":
			title = titleStyle.Render("Edit Todo")
		case "rename":
			title = titleStyle.Render("Rename Label")
		}
		content := lipgloss.JoinVertical(lipgloss.Left, title, "", m.form.View())
		return panelStyle.Width(m.width - 4).Render(content)
	}

	w := m.width - 4
	var rows []string

	labelName := "all labels"
	if m.labelIdx >= 0 && m.labelIdx < len(m.labels) {
		labelName = m.labels[m.labelIdx]
	}
	title := titleStyle.Render("Todos") + mutedStyle.Render(
		fmt.Sprintf("  [%s / %s]", statusCycle[m.statusIdx], labelName))
	rows = append(rows, title)

	if m.searching || m.searchInput.Value() != "" {
		rows = append(rows, m.searchInput.View())
	}
	rows = append(rows, "")

	if len(m.visible) == 0 {
		rows = append(rows, mutedStyle.Render("No todos. Press n to add one."))
	}

	for i, t := range m.visible {
		cursor := "  "
		style := normalItemStyle
		if i == m.cursor {
			cursor = "> "
			style = selectedItemStyle
		}

		check := "[ ]"
		if t.IsCompleted {
			check = "[x]"
			if i != m.cursor {
				style = doneItemStyle
			}
		}

		line := style.Render(fmt.Sprintf("%s%s %s", cursor, check, t.Content))
		line += mutedStyle.Render("  #" + t.Label)
		if t.IsArchived {
			line += warningStyle.Render("  (archived)")
		}
		if t.DueDate != nil {
			due := t.DueDate.Format(dueDateLayout)
			if t.DueDate.Before(time.Now()) && !t.IsCompleted && !t.IsArchived {
				line += errorStyle.Render("  due " + due)
			} else {
				line += mutedStyle.Render("  due " + due)
			}
		}
		rows = append(rows, line)
	}

	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  n: new  e: edit  d: delete  space: done  a: archive  /: search  s: status  f: label"))

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
