// Package repositoriesはデータベース操作を行います。
package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"todovault/internal/models"
)

// ErrTodoNotFound はTodoが見つからない（または所有者が違う）場合のエラーです。
var ErrTodoNotFound = errors.New("todo not found")

// TodoListQuery は一覧取得の条件です。
type TodoListQuery struct {
	Status    string // all / pending / completed / archived
	SortBy    string // createdAt / updatedAt / dueDate / content
	SortOrder string // asc / desc
	Page      int
	Limit     int
}

// ソート列のホワイトリスト。SQLに直接埋め込むため必ずここを通します。
var sortColumns = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"dueDate":   "due_date",
	"content":   "content",
}

// TodoRepository はtodosテーブルへの操作を行うための構造体です。
type TodoRepository struct {
	DB *sql.DB
}

// NewTodoRepository は新しいTodoRepositoryインスタンスを作成します。
func NewTodoRepository(db *sql.DB) *TodoRepository {
	return &TodoRepository{DB: db}
}

const todoColumns = "id, owner_id, content, label, is_completed, is_archived, due_date, created_at, updated_at"

// scanTodo は1行をmodels.Todoに読み込みます。
func scanTodo(row interface{ Scan(...any) error }) (*models.Todo, error) {
	var t models.Todo
	var due sql.NullTime
	err := row.Scan(&t.ID, &t.OwnerID, &t.Content, &t.Label, &t.IsCompleted, &t.IsArchived, &due, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if due.Valid {
		d := due.Time
		t.DueDate = &d
	}
	return &t, nil
}

// Create は新しいTodoをデータベースに挿入します。IDはUUIDを採番します。
func (r *TodoRepository) Create(t *models.Todo) (*models.Todo, error) {
	t.ID = uuid.NewString()
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now

	query := `INSERT INTO todos (id, owner_id, content, label, is_completed, is_archived, due_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	var due any
	if t.DueDate != nil {
		due = *t.DueDate
	}
	_, err := r.DB.Exec(query, t.ID, t.OwnerID, t.Content, t.Label, t.IsCompleted, t.IsArchived, due, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		log.Printf("Failed to insert todo: %v", err)
		return nil, fmt.Errorf("could not insert todo: %w", err)
	}
	return t, nil
}

// FindByID は所有者スコープで1件取得します。
func (r *TodoRepository) FindByID(id, ownerID string) (*models.Todo, error) {
	query := "SELECT " + todoColumns + " FROM todos WHERE id = ? AND owner_id = ?"
	t, err := scanTodo(r.DB.QueryRow(query, id, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTodoNotFound
		}
		log.Printf("Failed to query todo by ID: %v", err)
		return nil, fmt.Errorf("could not query todo: %w", err)
	}
	return t, nil
}

// statusCondition はステータスフィルタをWHERE句に変換します。
func statusCondition(status string) string {
	switch status {
	case models.StatusCompleted:
		return " AND is_completed = TRUE AND is_archived = FALSE"
	case models.StatusPending:
		return " AND is_completed = FALSE AND is_archived = FALSE"
	case models.StatusArchived:
		return " AND is_archived = TRUE"
	default:
		return ""
	}
}

// FindByOwner は所有者のTodoを条件付きで取得し、総件数も返します。
func (r *TodoRepository) FindByOwner(ownerID string, q TodoListQuery) ([]models.Todo, int, error) {
	where := "WHERE owner_id = ?" + statusCondition(q.Status)

	col, ok := sortColumns[q.SortBy]
	if !ok {
		col = "created_at"
	}
	order := "DESC"
	if strings.EqualFold(q.SortOrder, "asc") {
		order = "ASC"
	}

	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 10
	}
	offset := (q.Page - 1) * q.Limit

	query := fmt.Sprintf("SELECT %s FROM todos %s ORDER BY %s %s LIMIT ? OFFSET ?", todoColumns, where, col, order)
	rows, err := r.DB.Query(query, ownerID, q.Limit, offset)
	if err != nil {
		log.Printf("Failed to query todos: %v", err)
		return nil, 0, fmt.Errorf("could not query todos: %w", err)
	}
	defer rows.Close()

	todos := []models.Todo{}
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("could not scan todo: %w", err)
		}
		todos = append(todos, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating todos: %w", err)
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM todos " + where
	if err := r.DB.QueryRow(countQuery, ownerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("could not count todos: %w", err)
	}

	return todos, total, nil
}

// FindByLabel は所有者スコープでラベル一致のTodoを取得します。
func (r *TodoRepository) FindByLabel(ownerID, label string) ([]models.Todo, error) {
	query := "SELECT " + todoColumns + " FROM todos WHERE owner_id = ? AND label = ? ORDER BY created_at DESC"
	rows, err := r.DB.Query(query, ownerID, label)
	if err != nil {
		log.Printf("Failed to query todos by label: %v", err)
		return nil, fmt.Errorf("could not query todos by label: %w", err)
	}
	defer rows.Close()

	todos := []models.Todo{}
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan todo: %w", err)
		}
		todos = append(todos, *t)
	}
	return todos, rows.Err()
}

// DistinctLabels は所有者のラベルの一意な集合を返します。
// ラベルは独立したテーブルではなく、todosからの導出値です。
func (r *TodoRepository) DistinctLabels(ownerID string) ([]string, error) {
	rows, err := r.DB.Query("SELECT DISTINCT label FROM todos WHERE owner_id = ? ORDER BY label", ownerID)
	if err != nil {
		return nil, fmt.Errorf("could not query labels: %w", err)
	}
	defer rows.Close()

	labels := []string{}
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			return nil, fmt.Errorf("could not scan label: %w", err)
		}
		labels = append(labels, l)
	}
	return labels, rows.Err()
}

// Update はTodoの可変フィールドをすべて書き戻します。
// 呼び出し側（サービス層）が部分更新を適用してから渡します。
func (r *TodoRepository) Update(t *models.Todo) (*models.Todo, error) {
	t.UpdatedAt = time.Now()
	query := `UPDATE todos SET content = ?, label = ?, is_completed = ?, is_archived = ?, due_date = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?`
	var due any
	if t.DueDate != nil {
		due = *t.DueDate
	}
	result, err := r.DB.Exec(query, t.Content, t.Label, t.IsCompleted, t.IsArchived, due, t.UpdatedAt, t.ID, t.OwnerID)
	if err != nil {
		log.Printf("Failed to update todo: %v", err)
		return nil, fmt.Errorf("could not update todo: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("could not get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, ErrTodoNotFound
	}
	return t, nil
}

// Delete は所有者スコープで1件削除します。
func (r *TodoRepository) Delete(id, ownerID string) error {
	result, err := r.DB.Exec("DELETE FROM todos WHERE id = ? AND owner_id = ?", id, ownerID)
	if err != nil {
		log.Printf("Failed to delete todo: %v", err)
		return fmt.Errorf("could not delete todo: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrTodoNotFound
	}
	return nil
}

// DeleteAllByOwner は所有者のTodoをすべて削除します。
func (r *TodoRepository) DeleteAllByOwner(ownerID string) (int, error) {
	result, err := r.DB.Exec("DELETE FROM todos WHERE owner_id = ?", ownerID)
	if err != nil {
		return 0, fmt.Errorf("could not delete todos: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("could not get rows affected: %w", err)
	}
	return int(n), nil
}

// RenameLabel は所有者スコープでラベルを一括変更し、影響件数を返します。
func (r *TodoRepository) RenameLabel(ownerID, oldLabel, newLabel string) (int, error) {
	result, err := r.DB.Exec(
		"UPDATE todos SET label = ?, updated_at = ? WHERE owner_id = ? AND label = ?",
		newLabel, time.Now(), ownerID, oldLabel,
	)
	if err != nil {
		log.Printf("Failed to rename label: %v", err)
		return 0, fmt.Errorf("could not rename label: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("could not get rows affected: %w", err)
	}
	return int(n), nil
}

// DeleteLabel は所有者スコープでラベル一致のTodoをすべて削除し、件数を返します。
func (r *TodoRepository) DeleteLabel(ownerID, label string) (int, error) {
	result, err := r.DB.Exec("DELETE FROM todos WHERE owner_id = ? AND label = ?", ownerID, label)
	if err != nil {
		log.Printf("Failed to delete label: %v", err)
		return 0, fmt.Errorf("could not delete label: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("could not get rows affected: %w", err)
	}
	return int(n), nil
}

// BulkUpdate は所有者スコープでIDリストに一括操作を適用します。
// スコープ外のIDは条件に一致しないだけで、エラーにはしません。
func (r *TodoRepository) BulkUpdate(ownerID string, ids []string, operation string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(ids)+2)

	var query string
	switch operation {
	case models.BulkMarkCompleted:
		query = "UPDATE todos SET is_completed = TRUE, updated_at = ? WHERE owner_id = ? AND id IN (" + placeholders + ")"
	case models.BulkMarkPending:
		query = "UPDATE todos SET is_completed = FALSE, updated_at = ? WHERE owner_id = ? AND id IN (" + placeholders + ")"
	case models.BulkArchive:
		query = "UPDATE todos SET is_archived = TRUE, updated_at = ? WHERE owner_id = ? AND id IN (" + placeholders + ")"
	case models.BulkUnarchive:
		query = "UPDATE todos SET is_archived = FALSE, updated_at = ? WHERE owner_id = ? AND id IN (" + placeholders + ")"
	case models.BulkDelete:
		query = "DELETE FROM todos WHERE owner_id = ? AND id IN (" + placeholders + ")"
	default:
		return 0, fmt.Errorf("invalid bulk operation: %s", operation)
	}

	if operation != models.BulkDelete {
		args = append(args, time.Now())
	}
	args = append(args, ownerID)
	for _, id := range ids {
		args = append(args, id)
	}

	result, err := r.DB.Exec(query, args...)
	if err != nil {
		log.Printf("Failed to bulk update todos: %v", err)
		return 0, fmt.Errorf("could not bulk update todos: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("could not get rows affected: %w", err)
	}
	return int(n), nil
}

// Stats は各バケットの件数を並行に集計します。
func (r *TodoRepository) Stats(ownerID string, now time.Time) (*models.TodoStats, error) {
	var stats models.TodoStats

	count := func(dst *int, query string, args ...any) func() error {
		return func() error {
			return r.DB.QueryRow(query, args...).Scan(dst)
		}
	}

	var g errgroup.Group
	g.Go(count(&stats.Total, "SELECT COUNT(*) FROM todos WHERE owner_id = ?", ownerID))
	g.Go(count(&stats.Completed, "SELECT COUNT(*) FROM todos WHERE owner_id = ? AND is_completed = TRUE AND is_archived = FALSE", ownerID))
	g.Go(count(&stats.Pending, "SELECT COUNT(*) FROM todos WHERE owner_id = ? AND is_completed = FALSE AND is_archived = FALSE", ownerID))
	g.Go(count(&stats.Archived, "SELECT COUNT(*) FROM todos WHERE owner_id = ? AND is_archived = TRUE", ownerID))
	g.Go(count(&stats.Overdue, "SELECT COUNT(*) FROM todos WHERE owner_id = ? AND due_date IS NOT NULL AND due_date < ? AND is_completed = FALSE AND is_archived = FALSE", ownerID, now))
	if err := g.Wait(); err != nil {
		log.Printf("Failed to count todo stats: %v", err)
		return nil, fmt.Errorf("could not count todo stats: %w", err)
	}

	if stats.Total > 0 {
		stats.CompletionRate = int(math.Round(float64(stats.Completed) / float64(stats.Total) * 100))
	}
	return &stats, nil
}
