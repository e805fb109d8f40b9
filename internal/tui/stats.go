package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"todovault/internal/client"
	"todovault/internal/models"
)

type statsModel struct {
	store  client.TodoStore
	width  int
	height int

	stats  *models.TodoStats
	loaded bool
}

func newStatsModel(store client.TodoStore) statsModel {
	return statsModel{store: store}
}

func (m *statsModel) setSize(w, h int) {
	m.width = w
	m.height = h
}

func (m *statsModel) setStore(store client.TodoStore) {
	m.store = store
	m.stats = nil
	m.loaded = false
}

type statsDataMsg struct {
	stats *models.TodoStats
}

func (m statsModel) refresh() tea.Cmd {
	store := m.store
	return func() tea.Msg {
		stats, err := store.Stats(context.Background())
		if err != nil {
			return statusMsg{text: "Stats error: " + err.Error(), isError: true}
		}
		return statsDataMsg{stats: stats}
	}
}

func (m statsModel) update(msg tea.Msg) (statsModel, tea.Cmd) {
	if msg, ok := msg.(statsDataMsg); ok {
		m.stats = msg.stats
		m.loaded = true
	}
	return m, nil
}

// bar は件数を割合つきの横棒で描きます。
func bar(count, total, width int) string {
	if total == 0 {
		return strings.Repeat("░", width)
	}
	filled := count * width / total
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func (m statsModel) view() string {
	w := m.width - 4
	title := titleStyle.Render("Stats")

	if !m.loaded || m.stats == nil {
		return panelStyle.Width(w).Render(title + "\n\n" + mutedStyle.Render("Loading..."))
	}

	s := m.stats
	barWidth := 24

	rows := []string{
		title,
		"",
		fmt.Sprintf("  %-12s %4d", "Total", s.Total),
		fmt.Sprintf("  %-12s %4d  %s", "Pending", s.Pending, highlightStyle.Render(bar(s.Pending, s.Total, barWidth))),
		fmt.Sprintf("  %-12s %4d  %s", "Completed", s.Completed, successStyle.Render(bar(s.Completed, s.Total, barWidth))),
		fmt.Sprintf("  %-12s %4d  %s", "Archived", s.Archived, mutedStyle.Render(bar(s.Archived, s.Total, barWidth))),
		fmt.Sprintf("  %-12s %4d  %s", "Overdue", s.Overdue, errorStyle.Render(bar(s.Overdue, s.Total, barWidth))),
		"",
		"  " + titleStyle.Render(fmt.Sprintf("Completion rate: %d%%", s.CompletionRate)),
	}

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
