package services

import (
	"errors"
	"strings"
	"time"

	"todovault/internal/models"
	"todovault/internal/repositories"
)

// バリデーションエラーです。ハンドラーで400に変換します。
var (
	ErrEmptyContent     = errors.New("todo content is required")
	ErrEmptyLabel       = errors.New("todo label is required")
	ErrInvalidOperation = errors.New("invalid bulk operation")
	ErrNoTodoIDs        = errors.New("todo ids are required")
)

// TodoService はTodo関連のビジネスロジックを扱います。
type TodoService struct {
	todoRepo *repositories.TodoRepository
}

// NewTodoService は新しいTodoServiceを作成します。
func NewTodoService(todoRepo *repositories.TodoRepository) *TodoService {
	return &TodoService{todoRepo: todoRepo}
}

// CreateTodo は新しいTodoを作成します。contentとlabelはトリムし、
// labelが空なら既定値を割り当てます。
func (s *TodoService) CreateTodo(ownerID string, req models.TodoCreateRequest) (*models.Todo, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	label := strings.TrimSpace(req.Label)
	if label == "" {
		label = models.DefaultLabel
	}

	todo := &models.Todo{
		OwnerID: ownerID,
		Content: content,
		Label:   label,
		DueDate: req.DueDate,
	}
	return s.todoRepo.Create(todo)
}

// GetTodos はページ情報付きで所有者のTodoを取得します。
func (s *TodoService) GetTodos(ownerID string, q repositories.TodoListQuery) (*models.TodoPage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 10
	}

	todos, total, err := s.todoRepo.FindByOwner(ownerID, q)
	if err != nil {
		return nil, err
	}

	totalPages := (total + q.Limit - 1) / q.Limit
	return &models.TodoPage{
		Todos: todos,
		Pagination: models.Pagination{
			CurrentPage: q.Page,
			TotalPages:  totalPages,
			TotalTodos:  total,
			HasNextPage: q.Page < totalPages,
			HasPrevPage: q.Page > 1,
		},
	}, nil
}

// GetTodoByID は所有者スコープで1件取得します。
func (s *TodoService) GetTodoByID(ownerID, id string) (*models.Todo, error) {
	return s.todoRepo.FindByID(id, ownerID)
}

// UpdateTodo は指定フィールドだけを変更します。
// content/labelはトリム後に空ならエラーです。
func (s *TodoService) UpdateTodo(ownerID, id string, req models.TodoUpdateRequest) (*models.Todo, error) {
	todo, err := s.todoRepo.FindByID(id, ownerID)
	if err != nil {
		return nil, err
	}

	if req.Content != nil {
		content := strings.TrimSpace(*req.Content)
		if content == "" {
			return nil, ErrEmptyContent
		}
		todo.Content = content
	}
	if req.Label != nil {
		label := strings.TrimSpace(*req.Label)
		if label == "" {
			return nil, ErrEmptyLabel
		}
		todo.Label = label
	}
	if req.IsCompleted != nil {
		todo.IsCompleted = *req.IsCompleted
	}
	if req.IsArchived != nil {
		todo.IsArchived = *req.IsArchived
	}
	if req.DueDate != nil {
		todo.DueDate = req.DueDate
	} else if req.ClearDue {
		todo.DueDate = nil
	}

	return s.todoRepo.Update(todo)
}

// DeleteTodo は所有者スコープで1件削除します。
func (s *TodoService) DeleteTodo(ownerID, id string) error {
	return s.todoRepo.Delete(id, ownerID)
}

// DeleteAllTodos は所有者のTodoをすべて削除します。
func (s *TodoService) DeleteAllTodos(ownerID string) (int, error) {
	return s.todoRepo.DeleteAllByOwner(ownerID)
}

// ToggleCompleted は完了フラグを反転します。アーカイブフラグには触れません。
func (s *TodoService) ToggleCompleted(ownerID, id string) (*models.Todo, error) {
	todo, err := s.todoRepo.FindByID(id, ownerID)
	if err != nil {
		return nil, err
	}
	todo.IsCompleted = !todo.IsCompleted
	return s.todoRepo.Update(todo)
}

// ToggleArchived はアーカイブフラグを反転します。完了フラグには触れません。
func (s *TodoService) ToggleArchived(ownerID, id string) (*models.Todo, error) {
	todo, err := s.todoRepo.FindByID(id, ownerID)
	if err != nil {
		return nil, err
	}
	todo.IsArchived = !todo.IsArchived
	return s.todoRepo.Update(todo)
}

// GetTodosByLabel はラベル一致のTodoを取得します。
func (s *TodoService) GetTodosByLabel(ownerID, label string) ([]models.Todo, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, ErrEmptyLabel
	}
	return s.todoRepo.FindByLabel(ownerID, label)
}

// GetLabels は所有者のラベル一覧（導出値）を返します。
func (s *TodoService) GetLabels(ownerID string) ([]string, error) {
	return s.todoRepo.DistinctLabels(ownerID)
}

// RenameLabel はラベルを一括変更します。
func (s *TodoService) RenameLabel(ownerID, oldLabel, newLabel string) (*models.BulkResult, error) {
	oldLabel = strings.TrimSpace(oldLabel)
	newLabel = strings.TrimSpace(newLabel)
	if oldLabel == "" || newLabel == "" {
		return nil, ErrEmptyLabel
	}
	n, err := s.todoRepo.RenameLabel(ownerID, oldLabel, newLabel)
	if err != nil {
		return nil, err
	}
	return &models.BulkResult{AffectedCount: n}, nil
}

// DeleteLabel はラベルに属するTodoをすべて削除します。破壊的操作です。
func (s *TodoService) DeleteLabel(ownerID, label string) (*models.BulkResult, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, ErrEmptyLabel
	}
	n, err := s.todoRepo.DeleteLabel(ownerID, label)
	if err != nil {
		return nil, err
	}
	return &models.BulkResult{AffectedCount: n}, nil
}

// BulkUpdate はIDリストに一括操作を適用します。
func (s *TodoService) BulkUpdate(ownerID string, req models.BulkUpdateRequest) (*models.BulkResult, error) {
	if len(req.TodoIDs) == 0 {
		return nil, ErrNoTodoIDs
	}
	switch req.Operation {
	case models.BulkMarkCompleted, models.BulkMarkPending, models.BulkArchive, models.BulkUnarchive, models.BulkDelete:
	default:
		return nil, ErrInvalidOperation
	}
	n, err := s.todoRepo.BulkUpdate(ownerID, req.TodoIDs, req.Operation)
	if err != nil {
		return nil, err
	}
	return &models.BulkResult{AffectedCount: n}, nil
}

// GetStats は集計結果を返します。
func (s *TodoService) GetStats(ownerID string) (*models.TodoStats, error) {
	return s.todoRepo.Stats(ownerID, time.Now())
}
