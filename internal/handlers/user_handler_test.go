package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todovault/internal/models"
	"todovault/testutil"
)

func postJSON(router http.Handler, path, token, body string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestRegisterHandler(t *testing.T) {
	db, router, _, _ := testutil.SetupTestDB(t)
	defer db.Close()

	t.Run("registers and logs in immediately", func(t *testing.T) {
		body := `{"fullName": "Carol Chen", "username": "Carol", "password": "Abcdef1!"}`
		resp := postJSON(router, "/api/v1/users/register", "", body)

		require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

		var result models.LoginResult
		decodeData(t, resp.Body.Bytes(), &result)
		require.NotNil(t, result.User)
		// ユーザー名は小文字に正規化される
		assert.Equal(t, "carol", result.User.Username)
		assert.Equal(t, "Carol Chen", result.User.FullName)
		assert.NotEmpty(t, result.AccessToken)
		assert.NotEmpty(t, result.RefreshToken)
	})

	t.Run("rejects weak password", func(t *testing.T) {
		body := `{"fullName": "Dan", "username": "dan", "password": "abc"}`
		resp := postJSON(router, "/api/v1/users/register", "", body)
		require.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("rejects duplicate username", func(t *testing.T) {
		body := `{"fullName": "Another Alice", "username": "alice", "password": "Abcdef1!"}`
		resp := postJSON(router, "/api/v1/users/register", "", body)
		require.Equal(t, http.StatusConflict, resp.Code)
	})

	t.Run("rejects missing fields", func(t *testing.T) {
		body := `{"username": "nobody"}`
		resp := postJSON(router, "/api/v1/users/register", "", body)
		require.Equal(t, http.StatusBadRequest, resp.Code)
	})
}

func TestLoginHandler(t *testing.T) {
	db, router, _, _ := testutil.SetupTestDB(t)
	defer db.Close()

	t.Run("success returns tokens and user", func(t *testing.T) {
		body := `{"username": "alice", "password": "` + testutil.TestPassword + `"}`
		resp := postJSON(router, "/api/v1/users/login", "", body)

		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
		var result models.LoginResult
		decodeData(t, resp.Body.Bytes(), &result)
		assert.Equal(t, "alice", result.User.Username)
		assert.NotEmpty(t, result.AccessToken)
		assert.NotEmpty(t, result.RefreshToken)
	})

	t.Run("unknown user returns not found", func(t *testing.T) {
		body := `{"username": "ghost", "password": "whatever1!"}`
		resp := postJSON(router, "/api/v1/users/login", "", body)
		require.Equal(t, http.StatusNotFound, resp.Code)
	})

	t.Run("wrong password returns unauthorized", func(t *testing.T) {
		body := `{"username": "alice", "password": "Wrongpass1!"}`
		resp := postJSON(router, "/api/v1/users/login", "", body)
		require.Equal(t, http.StatusUnauthorized, resp.Code)
	})
}

func TestRefreshTokenHandler_Rotation(t *testing.T) {
	db, router, _, _ := testutil.SetupTestDB(t)
	defer db.Close()

	body := `{"username": "alice", "password": "` + testutil.TestPassword + `"}`
	resp := postJSON(router, "/api/v1/users/login", "", body)
	require.Equal(t, http.StatusOK, resp.Code)

	var login models.LoginResult
	decodeData(t, resp.Body.Bytes(), &login)

	// 1回目のローテーションは成功する
	resp = postJSON(router, "/api/v1/users/refresh-token", "", `{"refreshToken": "`+login.RefreshToken+`"}`)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var pair models.TokenPair
	decodeData(t, resp.Body.Bytes(), &pair)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEqual(t, login.RefreshToken, pair.RefreshToken)

	// 使用済みトークンの再利用は拒否され、保存枠も無効化される
	resp = postJSON(router, "/api/v1/users/refresh-token", "", `{"refreshToken": "`+login.RefreshToken+`"}`)
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	// 再利用検知後は新しい方のトークンも使えない
	resp = postJSON(router, "/api/v1/users/refresh-token", "", `{"refreshToken": "`+pair.RefreshToken+`"}`)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestCurrentUserHandler(t *testing.T) {
	db, router, _, _ := testutil.SetupTestDB(t)
	defer db.Close()

	token, err := testutil.LoginAndGetToken(t, router, "alice", testutil.TestPassword)
	require.NoError(t, err)

	t.Run("returns public profile", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/api/v1/users/current-user", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)

		require.Equal(t, http.StatusOK, resp.Code)
		var user models.PublicUser
		decodeData(t, resp.Body.Bytes(), &user)
		assert.Equal(t, "alice", user.Username)
		assert.Equal(t, "Alice Anderson", user.FullName)

		// パスワードハッシュが漏れていないことを確認
		assert.NotContains(t, resp.Body.String(), "passwordHash")
		assert.NotContains(t, resp.Body.String(), "password_hash")
	})

	t.Run("requires authentication", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/api/v1/users/current-user", nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		require.Equal(t, http.StatusUnauthorized, resp.Code)
	})
}

func TestChangePasswordHandler(t *testing.T) {
	db, router, _, _ := testutil.SetupTestDB(t)
	defer db.Close()

	token, err := testutil.LoginAndGetToken(t, router, "alice", testutil.TestPassword)
	require.NoError(t, err)

	t.Run("rejects wrong old password", func(t *testing.T) {
		body := `{"oldPassword": "Nottherightone1!", "newPassword": "Newpass1!"}`
		resp := postJSON(router, "/api/v1/users/change-password", token, body)
		require.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("rejects weak new password", func(t *testing.T) {
		body := `{"oldPassword": "` + testutil.TestPassword + `", "newPassword": "weak"}`
		resp := postJSON(router, "/api/v1/users/change-password", token, body)
		require.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("changes password and old one stops working", func(t *testing.T) {
		body := `{"oldPassword": "` + testutil.TestPassword + `", "newPassword": "Newpass1!"}`
		resp := postJSON(router, "/api/v1/users/change-password", token, body)
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

		_, err := testutil.LoginAndGetToken(t, router, "alice", testutil.TestPassword)
		require.Error(t, err)

		newToken, err := testutil.LoginAndGetToken(t, router, "alice", "Newpass1!")
		require.NoError(t, err)
		require.NotEmpty(t, newToken)
	})
}

func TestUpdateDetailsHandler(t *testing.T) {
	db, router, _, _ := testutil.SetupTestDB(t)
	defer db.Close()

	token, err := testutil.LoginAndGetToken(t, router, "alice", testutil.TestPassword)
	require.NoError(t, err)

	req, _ := http.NewRequest(http.MethodPatch, "/api/v1/users/update-details", strings.NewReader(`{"fullName": "Alice B. Anderson"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	var user models.PublicUser
	decodeData(t, resp.Body.Bytes(), &user)
	assert.Equal(t, "Alice B. Anderson", user.FullName)
}

func TestLogoutHandler_InvalidatesRefreshToken(t *testing.T) {
	db, router, _, _ := testutil.SetupTestDB(t)
	defer db.Close()

	body := `{"username": "alice", "password": "` + testutil.TestPassword + `"}`
	resp := postJSON(router, "/api/v1/users/login", "", body)
	require.Equal(t, http.StatusOK, resp.Code)

	var login models.LoginResult
	decodeData(t, resp.Body.Bytes(), &login)

	resp = postJSON(router, "/api/v1/users/logout", login.AccessToken, "")
	require.Equal(t, http.StatusOK, resp.Code)

	// ログアウト後はリフレッシュトークンが無効
	resp = postJSON(router, "/api/v1/users/refresh-token", "", `{"refreshToken": "`+login.RefreshToken+`"}`)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestDeleteAccountHandler_CascadesTodos(t *testing.T) {
	db, router, _, _ := testutil.SetupTestDB(t)
	defer db.Close()

	token, err := testutil.LoginAndGetToken(t, router, "bob", testutil.TestPassword)
	require.NoError(t, err)

	todo := testutil.CreateTestTodo(t, router, token, "bob's todo", "Work")

	req, _ := http.NewRequest(http.MethodDelete, "/api/v1/users/delete-account", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)

	// 外部キーの連鎖削除でTodoも消えている
	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM todos WHERE id = ?", todo.ID).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// アカウントが消えたのでログインできない
	_, err = testutil.LoginAndGetToken(t, router, "bob", testutil.TestPassword)
	require.Error(t, err)
}
