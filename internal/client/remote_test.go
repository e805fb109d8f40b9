package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todovault/internal/models"
)

// stubAuth はテスト用のauthSourceです。
type stubAuth struct {
	token      string
	refreshed  int
	refreshErr error
	next       string // Refresh成功後に切り替わるトークン
}

func (s *stubAuth) AccessToken() string { return s.token }

func (s *stubAuth) Refresh(_ context.Context) error {
	s.refreshed++
	if s.refreshErr != nil {
		return s.refreshErr
	}
	s.token = s.next
	return nil
}

func writeEnvelope(w http.ResponseWriter, code int, data any, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(models.NewAPIResponse(code, data, message))
}

func writeEnvelopeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(models.NewAPIError(code, message))
}

func TestRemoteStore_AddSendsBearerAndDecodesEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/todos", r.URL.Path)
		require.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))

		var req models.TodoCreateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		writeEnvelope(w, http.StatusCreated, models.Todo{
			ID:      "uuid-1",
			Content: req.Content,
			Label:   models.DefaultLabel,
		}, "Todo created successfully")
	}))
	defer server.Close()

	store := NewRemoteStore(server.URL, &stubAuth{token: "token-1"})
	todo, err := store.Add(context.Background(), models.TodoCreateRequest{Content: "buy milk"})
	require.NoError(t, err)
	assert.Equal(t, "uuid-1", todo.ID)
	assert.Equal(t, "buy milk", todo.Content)
}

func TestRemoteStore_StatusCodeMapping(t *testing.T) {
	cases := []struct {
		name    string
		code    int
		wantErr error
	}{
		{"bad request maps to validation", http.StatusBadRequest, ErrValidation},
		{"not found maps to not found", http.StatusNotFound, ErrNotFound},
		{"conflict maps to conflict", http.StatusConflict, ErrConflict},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeEnvelopeError(w, tc.code, "boom")
			}))
			defer server.Close()

			store := NewRemoteStore(server.URL, &stubAuth{token: "t"})
			_, err := store.Stats(context.Background())
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestRemoteStore_NetworkErrorMapping(t *testing.T) {
	// 誰も聞いていないアドレス
	store := NewRemoteStore("http://127.0.0.1:1", &stubAuth{token: "t"})
	_, err := store.Stats(context.Background())
	require.ErrorIs(t, err, ErrNetwork)
}

func TestRemoteStore_RefreshAndRetryOn401(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh" {
			writeEnvelopeError(w, http.StatusUnauthorized, "Unauthorized request")
			return
		}
		writeEnvelope(w, http.StatusOK, models.TodoStats{Total: 5}, "ok")
	}))
	defer server.Close()

	auth := &stubAuth{token: "stale", next: "fresh"}
	store := NewRemoteStore(server.URL, auth)

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, 1, auth.refreshed)
}

func TestRemoteStore_NoRetryWhenRefreshFails(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeEnvelopeError(w, http.StatusUnauthorized, "Unauthorized request")
	}))
	defer server.Close()

	auth := &stubAuth{token: "stale", refreshErr: ErrAuth}
	store := NewRemoteStore(server.URL, auth)

	_, err := store.Stats(context.Background())
	require.ErrorIs(t, err, ErrAuth)
	// リフレッシュに失敗したら再送しない
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, auth.refreshed)
}

func TestRemoteStore_ListBuildsQueryString(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/todos/user/todos", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "pending", q.Get("status"))
		assert.Equal(t, "dueDate", q.Get("sortBy"))
		assert.Equal(t, "asc", q.Get("sortOrder"))
		assert.Equal(t, "2", q.Get("page"))
		assert.Equal(t, "10", q.Get("limit"))

		writeEnvelope(w, http.StatusOK, models.TodoPage{
			Todos:      []models.Todo{},
			Pagination: models.Pagination{CurrentPage: 2, TotalPages: 3, TotalTodos: 25, HasNextPage: true, HasPrevPage: true},
		}, "ok")
	}))
	defer server.Close()

	store := NewRemoteStore(server.URL, &stubAuth{token: "t"})
	page, err := store.List(context.Background(), ListQuery{
		Status:    "pending",
		SortBy:    "dueDate",
		SortOrder: "asc",
		Page:      2,
		Limit:     10,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Pagination.CurrentPage)
	assert.True(t, page.Pagination.HasNextPage)
}

func TestRemoteStore_LabelPathEscaping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/todos/label/Side%20Projects", r.URL.EscapedPath())
		writeEnvelope(w, http.StatusOK, models.BulkResult{AffectedCount: 3}, "ok")
	}))
	defer server.Close()

	store := NewRemoteStore(server.URL, &stubAuth{token: "t"})
	result, err := store.DeleteLabel(context.Background(), "Side Projects")
	require.NoError(t, err)
	assert.Equal(t, 3, result.AffectedCount)
}
