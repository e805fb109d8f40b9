// Package filterはメモリ上のTodoコレクションに対する純粋な絞り込み・整列・集計を行います。
// I/Oは行わず、同じ入力には必ず同じ出力を返します。
package filter

import (
	"math"
	"sort"
	"strings"
	"time"

	"todovault/internal/models"
)

// Query は絞り込み条件です。ゼロ値は「絞り込みなし」を意味します。
type Query struct {
	Status string // all / pending / completed / archived（空はallと同じ）
	Label  string // 大文字小文字を無視した完全一致
	Search string // contentとlabelへの大文字小文字を無視した部分一致
}

// matchesStatus はステータス判定です。archivedバケットが優先されます。
func matchesStatus(t models.Todo, status string) bool {
	switch status {
	case models.StatusPending:
		return !t.IsCompleted && !t.IsArchived
	case models.StatusCompleted:
		return t.IsCompleted && !t.IsArchived
	case models.StatusArchived:
		return t.IsArchived
	default:
		return true
	}
}

func matchesLabel(t models.Todo, label string) bool {
	if label == "" {
		return true
	}
	return strings.EqualFold(t.Label, label)
}

func matchesSearch(t models.Todo, term string) bool {
	if term == "" {
		return true
	}
	term = strings.ToLower(term)
	return strings.Contains(strings.ToLower(t.Content), term) ||
		strings.Contains(strings.ToLower(t.Label), term)
}

// Apply は3つの述語の論理積で絞り込んだ新しいスライスを返します。
// どれか1つでも満たさないTodoは他の条件に関わらず除外されます。
func Apply(todos []models.Todo, q Query) []models.Todo {
	result := []models.Todo{}
	for _, t := range todos {
		if matchesSearch(t, q.Search) && matchesLabel(t, q.Label) && matchesStatus(t, q.Status) {
			result = append(result, t)
		}
	}
	return result
}

// Sort はソート済みの新しいスライスを返します。元のスライスは変更しません。
// sortByはcreatedAt / updatedAt / dueDate / content、orderはasc / descです。
func Sort(todos []models.Todo, sortBy, order string) []models.Todo {
	sorted := make([]models.Todo, len(todos))
	copy(sorted, todos)

	less := func(a, b models.Todo) bool {
		switch sortBy {
		case "updatedAt":
			return a.UpdatedAt.Before(b.UpdatedAt)
		case "dueDate":
			// 期限なしは末尾に寄せる
			switch {
			case a.DueDate == nil && b.DueDate == nil:
				return false
			case a.DueDate == nil:
				return false
			case b.DueDate == nil:
				return true
			default:
				return a.DueDate.Before(*b.DueDate)
			}
		case "content":
			return strings.ToLower(a.Content) < strings.ToLower(b.Content)
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		if strings.EqualFold(order, "asc") {
			return less(sorted[i], sorted[j])
		}
		return less(sorted[j], sorted[i])
	})
	return sorted
}

// ComputeStats はコレクションを1回走査して集計します。
// overdueは期限切れかつ未完了・未アーカイブのみ数えます。
func ComputeStats(todos []models.Todo, now time.Time) models.TodoStats {
	var stats models.TodoStats
	stats.Total = len(todos)
	for _, t := range todos {
		switch {
		case t.IsArchived:
			stats.Archived++
		case t.IsCompleted:
			stats.Completed++
		default:
			stats.Pending++
		}
		if t.DueDate != nil && t.DueDate.Before(now) && !t.IsCompleted && !t.IsArchived {
			stats.Overdue++
		}
	}
	if stats.Total > 0 {
		stats.CompletionRate = int(math.Round(float64(stats.Completed) / float64(stats.Total) * 100))
	}
	return stats
}
