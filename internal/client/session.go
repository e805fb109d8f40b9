package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"todovault/internal/models"
	"todovault/internal/services"
)

// SessionState はセッションの状態です。
type SessionState string

const (
	StateAnonymous      SessionState = "anonymous"      // ゲストモード
	StateAuthenticating SessionState = "authenticating" // 認証リクエスト送信中
	StateAuthenticated  SessionState = "authenticated"  // ログイン済み
)

// StoredTokens は永続化するトークンのペアです。
type StoredTokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// TokenStore はトークンの永続化の契約です。
// OSキーチェーン実装はcredentialパッケージにあります。
type TokenStore interface {
	Save(tokens StoredTokens) error
	Load() (*StoredTokens, error)
	Clear() error
}

// MemoryTokenStore は永続化しないTokenStoreです。テストと--no-keyring用です。
type MemoryTokenStore struct {
	mu     sync.Mutex
	tokens *StoredTokens
}

func (m *MemoryTokenStore) Save(tokens StoredTokens) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = &tokens
	return nil
}

func (m *MemoryTokenStore) Load() (*StoredTokens, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tokens == nil {
		return nil, nil
	}
	t := *m.tokens
	return &t, nil
}

func (m *MemoryTokenStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = nil
	return nil
}

// Session は認証状態とトークンのライフサイクルを管理します。
// 認証系のエラーではセッションを破棄して匿名に戻ります（安全側に倒す）。
type Session struct {
	mu         sync.Mutex
	baseURL    string
	httpClient *http.Client
	tokens     TokenStore

	state        SessionState
	user         *models.PublicUser
	accessToken  string
	refreshToken string
}

// NewSession は匿名状態のSessionを作ります。
func NewSession(baseURL string, tokens TokenStore) *Session {
	return &Session{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		tokens:     tokens,
		state:      StateAnonymous,
	}
}

// State は現在のセッション状態を返します。
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// User はログイン中のユーザーを返します。匿名ならnilです。
func (s *Session) User() *models.PublicUser {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// AccessToken は現在のアクセストークンを返します。RemoteStoreが使います。
func (s *Session) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken
}

// call は認証エンドポイントへJSONを送り、封筒を剥がしてoutへデコードします。
func (s *Session) call(ctx context.Context, method, path, bearer string, body, out any) error {
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

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := s.httpClient.Do(req)
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

// establish はログイン結果をセッションに取り込んで永続化します。
func (s *Session) establish(result *models.LoginResult) {
	s.user = result.User
	s.accessToken = result.AccessToken
	s.refreshToken = result.RefreshToken
	s.state = StateAuthenticated
	// キーチェーンへの保存失敗は致命的ではない（次回起動で再ログインになるだけ）
	_ = s.tokens.Save(StoredTokens{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
	})
}

// reset はセッションを破棄して匿名に戻します。
func (s *Session) reset() {
	s.user = nil
	s.accessToken = ""
	s.refreshToken = ""
	s.state = StateAnonymous
	_ = s.tokens.Clear()
}

// Login はユーザー名とパスワードでログインします。
func (s *Session) Login(ctx context.Context, username, password string) (*models.PublicUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = StateAuthenticating
	req := models.UserLoginRequest{Username: username, Password: password}
	var result models.LoginResult
	if err := s.call(ctx, http.MethodPost, "/api/v1/users/login", "", req, &result); err != nil {
		s.state = StateAnonymous
		return nil, err
	}
	s.establish(&result)
	return s.user, nil
}

// Register は新規ユーザーを登録し、そのままログインします。
// パスワードポリシーはサーバーへ送る前にローカルでも検査します。
func (s *Session) Register(ctx context.Context, fullName, username, password string) (*models.PublicUser, error) {
	if err := services.ValidatePassword(password); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = StateAuthenticating
	req := models.UserRegisterRequest{FullName: fullName, Username: username, Password: password}
	var result models.LoginResult
	if err := s.call(ctx, http.MethodPost, "/api/v1/users/register", "", req, &result); err != nil {
		s.state = StateAnonymous
		return nil, err
	}
	s.establish(&result)
	return s.user, nil
}

// Refresh はリフレッシュトークンでトークンペアを再発行します。
// どんな失敗でもセッションを破棄します。再利用検知でサーバー側の枠も
// 無効化されているため、ここで粘っても復帰できません。
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refreshToken == "" {
		s.reset()
		return fmt.Errorf("%w: no refresh token", ErrAuth)
	}
	req := models.RefreshTokenRequest{RefreshToken: s.refreshToken}
	var pair models.TokenPair
	if err := s.call(ctx, http.MethodPost, "/api/v1/users/refresh-token", "", req, &pair); err != nil {
		s.reset()
		if errors.Is(err, ErrNetwork) {
			return err
		}
		return fmt.Errorf("%w: session expired", ErrAuth)
	}
	s.accessToken = pair.AccessToken
	s.refreshToken = pair.RefreshToken
	_ = s.tokens.Save(StoredTokens{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
	return nil
}

// Logout はサーバーのリフレッシュ枠を無効化してからローカルの状態を破棄します。
// サーバーへの通知が失敗してもローカルは必ず破棄します。
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.accessToken != "" {
		err = s.call(ctx, http.MethodPost, "/api/v1/users/logout", s.accessToken, nil, nil)
	}
	s.reset()
	return err
}

// Resume は前回保存したトークンからセッションの復元を試みます。
// 復元できなければ匿名のまま（エラーにはしません）。
func (s *Session) Resume(ctx context.Context) (*models.PublicUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.tokens.Load()
	if err != nil || stored == nil || stored.RefreshToken == "" {
		return nil, nil
	}
	s.accessToken = stored.AccessToken
	s.refreshToken = stored.RefreshToken

	var user models.PublicUser
	if err := s.call(ctx, http.MethodGet, "/api/v1/users/current-user", s.accessToken, nil, &user); err == nil {
		s.user = &user
		s.state = StateAuthenticated
		return s.user, nil
	}

	// アクセストークン失効の可能性があるので一度だけ更新してやり直す
	req := models.RefreshTokenRequest{RefreshToken: s.refreshToken}
	var pair models.TokenPair
	if err := s.call(ctx, http.MethodPost, "/api/v1/users/refresh-token", "", req, &pair); err != nil {
		s.reset()
		return nil, nil
	}
	s.accessToken = pair.AccessToken
	s.refreshToken = pair.RefreshToken
	_ = s.tokens.Save(StoredTokens{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})

	if err := s.call(ctx, http.MethodGet, "/api/v1/users/current-user", s.accessToken, nil, &user); err != nil {
		s.reset()
		return nil, nil
	}
	s.user = &user
	s.state = StateAuthenticated
	return s.user, nil
}
