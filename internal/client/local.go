package client

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"todovault/internal/filter"
	"todovault/internal/models"
)

// guestDocument はゲストモードの永続化形式です。
// ブラウザ版のlocalStorage 2キー（todos/labels）に相当します。
type guestDocument struct {
	Todos  []models.Todo `json:"todos"`
	Labels []string      `json:"labels"`
}

// LocalStore はゲストモード用のTodoStore実装です。
// すべての変更操作でコレクション全体をファイルに書き戻します。
// 部分更新はしません（データ量が小さい前提の意図的な単純化）。
type LocalStore struct {
	mu     sync.Mutex
	path   string
	todos  []models.Todo // 新しいものが先頭
	lastID int64         // 同一ミリ秒での採番衝突を避けるため
}

// NewLocalStore はファイルからコレクションを読み込んでLocalStoreを作ります。
// ファイルが無ければ空のコレクションで開始します。
func NewLocalStore(path string) (*LocalStore, error) {
	s := &LocalStore{path: path, todos: []models.Todo{}}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("could not read guest data: %w", err)
	}
	var doc guestDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("could not parse guest data: %w", err)
	}
	if doc.Todos != nil {
		s.todos = doc.Todos
	}
	return s, nil
}

// save はコレクション全体を1回のアトミックな置き換えで書き込みます。
func (s *LocalStore) save() error {
	doc := guestDocument{Todos: s.todos, Labels: s.labelSet()}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("could not encode guest data: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("could not create guest data directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("could not write guest data: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("could not replace guest data: %w", err)
	}
	return nil
}

// labelSet はコレクションからラベルの一意な集合を導出します。
func (s *LocalStore) labelSet() []string {
	seen := map[string]bool{}
	labels := []string{}
	for _, t := range s.todos {
		if t.Label != "" && !seen[t.Label] {
			seen[t.Label] = true
			labels = append(labels, t.Label)
		}
	}
	return labels
}

// nextID は現在時刻由来のローカル一意IDを採番します。
func (s *LocalStore) nextID() string {
	id := time.Now().UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return strconv.FormatInt(id, 10)
}

func (s *LocalStore) indexOf(id string) int {
	for i := range s.todos {
		if s.todos[i].ID == id {
			return i
		}
	}
	return -1
}

// Add は新しいTodoを先頭に追加して全体を保存します。
func (s *LocalStore) Add(_ context.Context, req models.TodoCreateRequest) (*models.Todo, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, fmt.Errorf("%w: todo content is required", ErrValidation)
	}
	label := strings.TrimSpace(req.Label)
	if label == "" {
		label = models.DefaultLabel
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	todo := models.Todo{
		ID:        s.nextID(),
		Content:   content,
		Label:     label,
		DueDate:   req.DueDate,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.todos = append([]models.Todo{todo}, s.todos...)
	if err := s.save(); err != nil {
		return nil, err
	}
	return &todo, nil
}

// Update は指定フィールドだけを変更して全体を保存します。
func (s *LocalStore) Update(_ context.Context, id string, req models.TodoUpdateRequest) (*models.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: todo %s", ErrNotFound, id)
	}
	t := s.todos[i]

	if req.Content != nil {
		content := strings.TrimSpace(*req.Content)
		if content == "" {
			return nil, fmt.Errorf("%w: todo content cannot be empty", ErrValidation)
		}
		t.Content = content
	}
	if req.Label != nil {
		label := strings.TrimSpace(*req.Label)
		if label == "" {
			return nil, fmt.Errorf("%w: todo label cannot be empty", ErrValidation)
		}
		t.Label = label
	}
	if req.IsCompleted != nil {
		t.IsCompleted = *req.IsCompleted
	}
	if req.IsArchived != nil {
		t.IsArchived = *req.IsArchived
	}
	if req.DueDate != nil {
		t.DueDate = req.DueDate
	} else if req.ClearDue {
		t.DueDate = nil
	}
	t.UpdatedAt = time.Now()

	s.todos[i] = t
	if err := s.save(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Remove は1件削除して全体を保存します。
func (s *LocalStore) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: todo %s", ErrNotFound, id)
	}
	s.todos = append(s.todos[:i], s.todos[i+1:]...)
	return s.save()
}

func (s *LocalStore) toggle(id string, archive bool) (*models.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: todo %s", ErrNotFound, id)
	}
	if archive {
		s.todos[i].IsArchived = !s.todos[i].IsArchived
	} else {
		s.todos[i].IsCompleted = !s.todos[i].IsCompleted
	}
	s.todos[i].UpdatedAt = time.Now()
	if err := s.save(); err != nil {
		return nil, err
	}
	t := s.todos[i]
	return &t, nil
}

// ToggleCompleted は完了フラグだけを反転します。
func (s *LocalStore) ToggleCompleted(_ context.Context, id string) (*models.Todo, error) {
	return s.toggle(id, false)
}

// ToggleArchived はアーカイブフラグだけを反転します。
func (s *LocalStore) ToggleArchived(_ context.Context, id string) (*models.Todo, error) {
	return s.toggle(id, true)
}

// BulkUpdate はIDリストに一括操作を適用します。存在しないIDは黙ってスキップします。
func (s *LocalStore) BulkUpdate(_ context.Context, ids []string, operation string) (*models.BulkResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idSet := map[string]bool{}
	for _, id := range ids {
		idSet[id] = true
	}

	now := time.Now()
	affected := 0

	if operation == models.BulkDelete {
		kept := s.todos[:0]
		for _, t := range s.todos {
			if idSet[t.ID] {
				affected++
				continue
			}
			kept = append(kept, t)
		}
		s.todos = kept
	} else {
		for i := range s.todos {
			if !idSet[s.todos[i].ID] {
				continue
			}
			switch operation {
			case models.BulkMarkCompleted:
				s.todos[i].IsCompleted = true
			case models.BulkMarkPending:
				s.todos[i].IsCompleted = false
			case models.BulkArchive:
				s.todos[i].IsArchived = true
			case models.BulkUnarchive:
				s.todos[i].IsArchived = false
			default:
				return nil, fmt.Errorf("%w: invalid bulk operation %s", ErrValidation, operation)
			}
			s.todos[i].UpdatedAt = now
			affected++
		}
	}

	if err := s.save(); err != nil {
		return nil, err
	}
	return &models.BulkResult{AffectedCount: affected}, nil
}

// RenameLabel はラベル一致のTodoをすべて書き換えます。
func (s *LocalStore) RenameLabel(_ context.Context, oldLabel, newLabel string) (*models.BulkResult, error) {
	newLabel = strings.TrimSpace(newLabel)
	if strings.TrimSpace(oldLabel) == "" || newLabel == "" {
		return nil, fmt.Errorf("%w: label is required", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	affected := 0
	now := time.Now()
	for i := range s.todos {
		if s.todos[i].Label == oldLabel {
			s.todos[i].Label = newLabel
			s.todos[i].UpdatedAt = now
			affected++
		}
	}
	if err := s.save(); err != nil {
		return nil, err
	}
	return &models.BulkResult{AffectedCount: affected}, nil
}

// DeleteLabel はラベルに属するTodoをすべて削除します。破壊的操作です。
func (s *LocalStore) DeleteLabel(_ context.Context, label string) (*models.BulkResult, error) {
	if strings.TrimSpace(label) == "" {
		return nil, fmt.Errorf("%w: label is required", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	affected := 0
	kept := s.todos[:0]
	for _, t := range s.todos {
		if t.Label == label {
			affected++
			continue
		}
		kept = append(kept, t)
	}
	s.todos = kept
	if err := s.save(); err != nil {
		return nil, err
	}
	return &models.BulkResult{AffectedCount: affected}, nil
}

// Labels はラベルの一意な集合を返します。
func (s *LocalStore) Labels(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.labelSet(), nil
}

// Stats はコレクションを1回走査して集計します。
func (s *LocalStore) Stats(_ context.Context) (*models.TodoStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := filter.ComputeStats(s.todos, time.Now())
	return &stats, nil
}

// List は絞り込み・整列済みの全件を返します。ページングはしません。
func (s *LocalStore) List(_ context.Context, q ListQuery) (*models.TodoPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	todos := filter.Apply(s.todos, filter.Query{Status: q.Status})
	if q.SortBy != "" {
		todos = filter.Sort(todos, q.SortBy, q.SortOrder)
	}
	return &models.TodoPage{
		Todos: todos,
		Pagination: models.Pagination{
			CurrentPage: 1,
			TotalPages:  1,
			TotalTodos:  len(todos),
		},
	}, nil
}
