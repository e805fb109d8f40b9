// Package clientはUIから見たTodoデータサービスを提供します。
// バックエンドAPI（認証モード）とローカルファイル（ゲストモード）の
// どちらを使っていても、同じTodoStoreインターフェースで操作できます。
package client

import (
	"context"
	"errors"

	"todovault/internal/models"
)

// クライアント側のエラー分類です。サーバーのHTTPステータスはここに正規化されます。
var (
	ErrValidation = errors.New("validation error")
	ErrAuth       = errors.New("authentication error")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrNetwork    = errors.New("network error")
)

// ListQuery は一覧取得の条件です。
// ゲストモードではPage/Limitは無視され、常に全件が返ります。
type ListQuery struct {
	Status    string
	SortBy    string
	SortOrder string
	Page      int
	Limit     int
}

// TodoStore はモードに依存しないTodo操作の契約です。
// 実装はセッション状態が変わったときに一度だけ選択し、呼び出し毎に分岐しません。
type TodoStore interface {
	Add(ctx context.Context, req models.TodoCreateRequest) (*models.Todo, error)
	Update(ctx context.Context, id string, req models.TodoUpdateRequest) (*models.Todo, error)
	Remove(ctx context.Context, id string) error
	ToggleCompleted(ctx context.Context, id string) (*models.Todo, error)
	ToggleArchived(ctx context.Context, id string) (*models.Todo, error)
	BulkUpdate(ctx context.Context, ids []string, operation string) (*models.BulkResult, error)
	RenameLabel(ctx context.Context, oldLabel, newLabel string) (*models.BulkResult, error)
	DeleteLabel(ctx context.Context, label string) (*models.BulkResult, error)
	Labels(ctx context.Context) ([]string, error)
	Stats(ctx context.Context) (*models.TodoStats, error)
	List(ctx context.Context, q ListQuery) (*models.TodoPage, error)
}
