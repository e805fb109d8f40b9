// Package modelsはTodoアプリ全体で共有するデータ構造を定義します。
package models

import "time"

// ステータスフィルタの値。
const (
	StatusAll       = "all"
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusArchived  = "archived"
)

// 一括操作の種類。
const (
	BulkMarkCompleted = "markCompleted"
	BulkMarkPending   = "markPending"
	BulkArchive       = "archive"
	BulkUnarchive     = "unarchive"
	BulkDelete        = "delete"
)

// DefaultLabel はラベル未指定時に割り当てるラベルです。
const DefaultLabel = "General"

// Todo はToDoアイテムの正規スキーマを表します。
// サーバーモード・ゲストモードの両方でこの1つの形だけを使います。
type Todo struct {
	ID          string      `json:"id"` // サーバー: UUID / ゲスト: ミリ秒タイムスタンプ文字列
	Content     string      `json:"content" binding:"required"`
	Label       string      `json:"label"`
	IsCompleted bool        `json:"isCompleted"`
	IsArchived  bool        `json:"isArchived"`
	DueDate     *time.Time  `json:"dueDate,omitempty"` // nilは期限なし
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
	OwnerID     string      `json:"-"`
	Owner       *PublicUser `json:"owner,omitempty"` // 単体取得時のみ設定
}

// TodoCreateRequest はTodo作成リクエストの構造体です。
type TodoCreateRequest struct {
	Content string     `json:"content" binding:"required"`
	Label   string     `json:"label"`
	DueDate *time.Time `json:"dueDate"`
}

// TodoUpdateRequest はTodo更新リクエストの構造体です。
// ポインタで「未指定」と「ゼロ値への更新」を区別します。
type TodoUpdateRequest struct {
	Content     *string    `json:"content"`
	Label       *string    `json:"label"`
	IsCompleted *bool      `json:"isCompleted"`
	IsArchived  *bool      `json:"isArchived"`
	DueDate     *time.Time `json:"dueDate"`
	ClearDue    bool       `json:"clearDueDate"` // trueでdueDateを解除
}

// BulkUpdateRequest は一括操作リクエストの構造体です。
type BulkUpdateRequest struct {
	TodoIDs   []string `json:"todoIds" binding:"required"`
	Operation string   `json:"operation" binding:"required"`
}

// RenameLabelRequest はラベル名変更リクエストの構造体です。
type RenameLabelRequest struct {
	NewLabel string `json:"newLabel" binding:"required"`
}

// TodoStats はTodoの集計結果です。
type TodoStats struct {
	Total          int `json:"total"`
	Completed      int `json:"completed"`
	Pending        int `json:"pending"`
	Archived       int `json:"archived"`
	Overdue        int `json:"overdue"`
	CompletionRate int `json:"completionRate"` // 四捨五入したパーセント。total=0なら0
}

// Pagination は一覧取得のページ情報です。
type Pagination struct {
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	TotalTodos  int  `json:"totalTodos"`
	HasNextPage bool `json:"hasNextPage"`
	HasPrevPage bool `json:"hasPrevPage"`
}

// TodoPage は一覧取得レスポンスの構造体です。
type TodoPage struct {
	Todos      []Todo     `json:"todos"`
	Pagination Pagination `json:"pagination"`
}

// BulkResult は一括操作・ラベル操作の影響件数です。
type BulkResult struct {
	AffectedCount int `json:"affectedCount"`
}
