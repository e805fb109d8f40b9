package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"todovault/internal/models"
)

// authSource はRemoteStoreが必要とする認証機能の最小の契約です。
// Sessionが実装します。
type authSource interface {
	AccessToken() string
	Refresh(ctx context.Context) error
}

// RemoteStore はバックエンドAPIを使うTodoStore実装です。
// レスポンスの封筒形式を剥がし、HTTPステータスをクライアントのエラー分類に正規化します。
type RemoteStore struct {
	baseURL    string
	httpClient *http.Client
	auth       authSource
}

// NewRemoteStore はRemoteStoreを作ります。
func NewRemoteStore(baseURL string, auth authSource) *RemoteStore {
	return &RemoteStore{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		auth:       auth,
	}
}

// statusToError はHTTPステータスをエラー分類に対応づけます。
func statusToError(status int, message string) error {
	switch status {
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrValidation, message)
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrAuth, message)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, message)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrConflict, message)
	default:
		return fmt.Errorf("server error (%d): %s", status, message)
	}
}

// do はリクエストを1回送り、封筒を剥がしてoutへデコードします。
// 401のときは一度だけリフレッシュして再送します。
func (r *RemoteStore) do(ctx context.Context, method, path string, body any, out any) error {
	err := r.send(ctx, method, path, body, out)
	if err == nil || r.auth == nil {
		return err
	}
	if !errors.Is(err, ErrAuth) {
		return err
	}
	// アクセストークン失効の可能性があるので一度だけ更新を試みる
	if refreshErr := r.auth.Refresh(ctx); refreshErr != nil {
		return err
	}
	return r.send(ctx, method, path, body, out)
}

func (r *RemoteStore) send(ctx context.Context, method, path string, body any, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("could not encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if r.auth != nil {
		if token := r.auth.AccessToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	var envelope struct {
		StatusCode int             `json:"statusCode"`
		Data       json.RawMessage `json:"data"`
		Message    string          `json:"message"`
		Success    bool            `json:"success"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("%w: could not decode response: %v", ErrNetwork, err)
	}

	if resp.StatusCode >= 400 || !envelope.Success {
		return statusToError(resp.StatusCode, envelope.Message)
	}
	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("%w: could not decode response data: %v", ErrNetwork, err)
		}
	}
	return nil
}

// Add はTodoを作成します。
func (r *RemoteStore) Add(ctx context.Context, req models.TodoCreateRequest) (*models.Todo, error) {
	var todo models.Todo
	if err := r.do(ctx, http.MethodPost, "/api/v1/todos", req, &todo); err != nil {
		return nil, err
	}
	return &todo, nil
}

// Update はTodoを部分更新します。
func (r *RemoteStore) Update(ctx context.Context, id string, req models.TodoUpdateRequest) (*models.Todo, error) {
	var todo models.Todo
	if err := r.do(ctx, http.MethodPatch, "/api/v1/todos/"+url.PathEscape(id), req, &todo); err != nil {
		return nil, err
	}
	return &todo, nil
}

// Remove はTodoを削除します。
func (r *RemoteStore) Remove(ctx context.Context, id string) error {
	return r.do(ctx, http.MethodDelete, "/api/v1/todos/"+url.PathEscape(id), nil, nil)
}

// ToggleCompleted は完了フラグを反転します。
func (r *RemoteStore) ToggleCompleted(ctx context.Context, id string) (*models.Todo, error) {
	var todo models.Todo
	if err := r.do(ctx, http.MethodPatch, "/api/v1/todos/"+url.PathEscape(id)+"/toggle-completion", nil, &todo); err != nil {
		return nil, err
	}
	return &todo, nil
}

// ToggleArchived はアーカイブフラグを反転します。
func (r *RemoteStore) ToggleArchived(ctx context.Context, id string) (*models.Todo, error) {
	var todo models.Todo
	if err := r.do(ctx, http.MethodPatch, "/api/v1/todos/"+url.PathEscape(id)+"/toggle-archive", nil, &todo); err != nil {
		return nil, err
	}
	return &todo, nil
}

// BulkUpdate は複数のTodoに一括操作を適用します。
func (r *RemoteStore) BulkUpdate(ctx context.Context, ids []string, operation string) (*models.BulkResult, error) {
	req := models.BulkUpdateRequest{TodoIDs: ids, Operation: operation}
	var result models.BulkResult
	if err := r.do(ctx, http.MethodPatch, "/api/v1/todos/bulk", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RenameLabel はラベルを改名します。
func (r *RemoteStore) RenameLabel(ctx context.Context, oldLabel, newLabel string) (*models.BulkResult, error) {
	req := models.RenameLabelRequest{NewLabel: newLabel}
	var result models.BulkResult
	if err := r.do(ctx, http.MethodPatch, "/api/v1/todos/label/"+url.PathEscape(oldLabel), req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DeleteLabel はラベルに属するTodoをすべて削除します。
func (r *RemoteStore) DeleteLabel(ctx context.Context, label string) (*models.BulkResult, error) {
	var result models.BulkResult
	if err := r.do(ctx, http.MethodDelete, "/api/v1/todos/label/"+url.PathEscape(label), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Labels はユーザーのラベル一覧を取得します。
func (r *RemoteStore) Labels(ctx context.Context) ([]string, error) {
	var labels []string
	if err := r.do(ctx, http.MethodGet, "/api/v1/todos/user/labels", nil, &labels); err != nil {
		return nil, err
	}
	return labels, nil
}

// Stats は集計をサーバーから取得します。
func (r *RemoteStore) Stats(ctx context.Context) (*models.TodoStats, error) {
	var stats models.TodoStats
	if err := r.do(ctx, http.MethodGet, "/api/v1/todos/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// List はページング付きの一覧を取得します。
func (r *RemoteStore) List(ctx context.Context, q ListQuery) (*models.TodoPage, error) {
	values := url.Values{}
	if q.Status != "" {
		values.Set("status", q.Status)
	}
	if q.SortBy != "" {
		values.Set("sortBy", q.SortBy)
		if q.SortOrder != "" {
			values.Set("sortOrder", q.SortOrder)
		}
	}
	if q.Page > 0 {
		values.Set("page", fmt.Sprint(q.Page))
	}
	if q.Limit > 0 {
		values.Set("limit", fmt.Sprint(q.Limit))
	}

	path := "/api/v1/todos/user/todos"
	if len(values) > 0 {
		path += "?" + values.Encode()
	}
	var page models.TodoPage
	if err := r.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}
