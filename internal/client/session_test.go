package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todovault/internal/models"
)

// fakeAuthServer は認証エンドポイントだけを模したサーバーです。
// リフレッシュトークンは1枠方式で、使用済みトークンの再利用で枠を無効化します。
type fakeAuthServer struct {
	mu           sync.Mutex
	password     string
	accessSeq    int
	refreshSlot  string // 現在有効なリフレッシュトークン。空は無効
	validAccess  map[string]bool
	user         models.PublicUser
}

func newFakeAuthServer() *fakeAuthServer {
	return &fakeAuthServer{
		password:    "Abcdef1!",
		validAccess: map[string]bool{},
		user:        models.PublicUser{ID: "u1", FullName: "Alice Anderson", Username: "alice"},
	}
}

func (f *fakeAuthServer) issuePair() models.TokenPair {
	f.accessSeq++
	access := "access-" + string(rune('a'+f.accessSeq))
	refresh := "refresh-" + string(rune('a'+f.accessSeq))
	f.validAccess[access] = true
	f.refreshSlot = refresh
	return models.TokenPair{AccessToken: access, RefreshToken: refresh}
}

func (f *fakeAuthServer) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/users/login", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		var req models.UserLoginRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Username != "alice" || req.Password != f.password {
			writeEnvelopeError(w, http.StatusUnauthorized, "Invalid user credentials")
			return
		}
		pair := f.issuePair()
		writeEnvelope(w, http.StatusOK, models.LoginResult{
			User:         &f.user,
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
		}, "User logged in successfully")
	})

	mux.HandleFunc("/api/v1/users/refresh-token", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		var req models.RefreshTokenRequest
		json.NewDecoder(r.Body).Decode(&req)
		if f.refreshSlot == "" || req.RefreshToken != f.refreshSlot {
			// 再利用検知: 枠を無効化して失敗させる
			f.refreshSlot = ""
			writeEnvelopeError(w, http.StatusUnauthorized, "Refresh token either expired or used")
			return
		}
		pair := f.issuePair()
		writeEnvelope(w, http.StatusOK, pair, "Access token refreshed")
	})

	mux.HandleFunc("/api/v1/users/current-user", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !f.validAccess[token] {
			writeEnvelopeError(w, http.StatusUnauthorized, "Unauthorized request")
			return
		}
		writeEnvelope(w, http.StatusOK, f.user, "Current user fetched successfully")
	})

	mux.HandleFunc("/api/v1/users/logout", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.refreshSlot = ""
		writeEnvelope(w, http.StatusOK, nil, "User logged out successfully")
	})

	return mux
}

func TestSession_LoginSuccess(t *testing.T) {
	fake := newFakeAuthServer()
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	tokens := &MemoryTokenStore{}
	session := NewSession(server.URL, tokens)
	require.Equal(t, StateAnonymous, session.State())

	user, err := session.Login(context.Background(), "alice", "Abcdef1!")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, StateAuthenticated, session.State())
	assert.NotEmpty(t, session.AccessToken())

	// トークンは永続化されている
	stored, err := tokens.Load()
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, session.AccessToken(), stored.AccessToken)
}

func TestSession_LoginFailureStaysAnonymous(t *testing.T) {
	fake := newFakeAuthServer()
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	session := NewSession(server.URL, &MemoryTokenStore{})
	_, err := session.Login(context.Background(), "alice", "wrong-pass")
	require.ErrorIs(t, err, ErrAuth)
	assert.Equal(t, StateAnonymous, session.State())
	assert.Empty(t, session.AccessToken())
}

func TestSession_RegisterRejectsWeakPasswordLocally(t *testing.T) {
	// サーバーには一切アクセスさせない
	session := NewSession("http://127.0.0.1:1", &MemoryTokenStore{})
	_, err := session.Register(context.Background(), "Alice", "alice", "abc")
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, StateAnonymous, session.State())
}

func TestSession_RefreshRotatesTokens(t *testing.T) {
	fake := newFakeAuthServer()
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	session := NewSession(server.URL, &MemoryTokenStore{})
	_, err := session.Login(context.Background(), "alice", "Abcdef1!")
	require.NoError(t, err)
	before := session.AccessToken()

	require.NoError(t, session.Refresh(context.Background()))
	assert.NotEqual(t, before, session.AccessToken())
	assert.Equal(t, StateAuthenticated, session.State())
}

func TestSession_RefreshReuseFailsClosed(t *testing.T) {
	fake := newFakeAuthServer()
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	tokens := &MemoryTokenStore{}
	session := NewSession(server.URL, tokens)
	_, err := session.Login(context.Background(), "alice", "Abcdef1!")
	require.NoError(t, err)

	// 一度目のリフレッシュで古いトークンは使用済みになる
	require.NoError(t, session.Refresh(context.Background()))

	// 使用済みトークンを持つ別のセッション（盗まれた側の想定）
	fake.mu.Lock()
	fake.refreshSlot = "refresh-stolen-mismatch"
	fake.mu.Unlock()

	err = session.Refresh(context.Background())
	require.ErrorIs(t, err, ErrAuth)
	assert.Equal(t, StateAnonymous, session.State())
	assert.Empty(t, session.AccessToken())

	// 永続化したトークンも消えている
	stored, err := tokens.Load()
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestSession_ResumeWithValidTokens(t *testing.T) {
	fake := newFakeAuthServer()
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	tokens := &MemoryTokenStore{}
	fake.mu.Lock()
	pair := fake.issuePair()
	fake.mu.Unlock()
	require.NoError(t, tokens.Save(StoredTokens{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}))

	session := NewSession(server.URL, tokens)
	user, err := session.Resume(context.Background())
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, StateAuthenticated, session.State())
}

func TestSession_ResumeWithExpiredAccessRefreshesOnce(t *testing.T) {
	fake := newFakeAuthServer()
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	tokens := &MemoryTokenStore{}
	fake.mu.Lock()
	pair := fake.issuePair()
	fake.mu.Unlock()
	// アクセストークンだけ失効している状態
	require.NoError(t, tokens.Save(StoredTokens{AccessToken: "expired", RefreshToken: pair.RefreshToken}))

	session := NewSession(server.URL, tokens)
	user, err := session.Resume(context.Background())
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, StateAuthenticated, session.State())
}

func TestSession_ResumeWithDeadTokensFallsBackToAnonymous(t *testing.T) {
	fake := newFakeAuthServer()
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	tokens := &MemoryTokenStore{}
	require.NoError(t, tokens.Save(StoredTokens{AccessToken: "dead", RefreshToken: "dead"}))

	session := NewSession(server.URL, tokens)
	user, err := session.Resume(context.Background())
	require.NoError(t, err)
	assert.Nil(t, user)
	assert.Equal(t, StateAnonymous, session.State())

	stored, err := tokens.Load()
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestSession_LogoutClearsStateEvenIfServerFails(t *testing.T) {
	fake := newFakeAuthServer()
	server := httptest.NewServer(fake.handler())

	session := NewSession(server.URL, &MemoryTokenStore{})
	_, err := session.Login(context.Background(), "alice", "Abcdef1!")
	require.NoError(t, err)

	// サーバーを落としてからログアウトする
	server.Close()
	err = session.Logout(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateAnonymous, session.State())
	assert.Empty(t, session.AccessToken())
}
