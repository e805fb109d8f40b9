package testutil

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"todovault/internal/database"
	"todovault/internal/handlers"
	"todovault/internal/models"
	"todovault/internal/repositories"
	"todovault/internal/routes"
	"todovault/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	_ "github.com/go-sql-driver/mysql"
)

// TestPassword はシードユーザー共通のパスワードです（ポリシーを満たす値）。
const TestPassword = "Password1!"

// SetupTestDB はテスト用のデータベース接続を確立し、テーブルを作成し、テストデータを投入します。
// TEST_DB_HOSTが未設定ならテストをスキップします。
func SetupTestDB(t *testing.T) (*sql.DB, *gin.Engine, *repositories.TodoRepository, *repositories.UserRepository) {
	_ = godotenv.Load("../../.env")

	dbHost := os.Getenv("TEST_DB_HOST")
	if dbHost == "" {
		t.Skip("TEST_DB_HOST not set, skipping database test")
	}
	dbUser := os.Getenv("TEST_DB_USER")
	dbPass := os.Getenv("TEST_DB_PASS")
	dbPort := os.Getenv("TEST_DB_PORT")
	dbName := os.Getenv("TEST_DB_NAME")

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true", dbUser, dbPass, dbHost, dbPort, dbName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Fatalf("Failed to open database connection: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		t.Fatalf("Failed to ping database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	// 既存データを削除 (テストのたびにクリーンな状態にするため)
	// Foreign Key Constraint があるため、todos -> users の順で削除
	if _, err := db.Exec("DELETE FROM todos"); err != nil {
		t.Fatalf("Failed to clear todos table: %v", err)
	}
	if _, err := db.Exec("DELETE FROM users"); err != nil {
		t.Fatalf("Failed to clear users table: %v", err)
	}

	// テストユーザーの挿入
	userRepo := repositories.NewUserRepository(db)
	CreateTestUser(t, userRepo, "Alice Anderson", "alice", TestPassword)
	CreateTestUser(t, userRepo, "Bob Brown", "bob", TestPassword)

	router := SetupTestRouter(t, db)
	todoRepo := repositories.NewTodoRepository(db)

	return db, router, todoRepo, userRepo
}

// SetupTestRouter はテスト用のGinルーターをセットアップします。
func SetupTestRouter(t *testing.T, db *sql.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)

	// リポジトリ
	todoRepo := repositories.NewTodoRepository(db)
	userRepo := repositories.NewUserRepository(db)

	// サービス
	jwtService := services.NewJWTServiceWithSecrets(
		"test-access-secret", "test-refresh-secret",
		15*time.Minute, 24*time.Hour,
	)
	todoService := services.NewTodoService(todoRepo)
	userService := services.NewUserService(userRepo, jwtService)

	// ハンドラー
	userHandler := handlers.NewUserHandler(userService)
	todoHandler := handlers.NewTodoHandler(todoService, userService)

	r := gin.New()
	routes.RegisterRoutes(r, jwtService, userHandler, todoHandler)
	return r
}

// CreateTestUser はテスト用ユーザーを直接リポジトリ経由で作成します。
func CreateTestUser(t *testing.T, userRepo *repositories.UserRepository, fullName, username, password string) *models.User {
	hash, err := repositories.HashPassword(password)
	require.NoError(t, err)

	created, err := userRepo.Create(&models.User{
		FullName:     fullName,
		Username:     username,
		PasswordHash: hash,
	})
	require.NoError(t, err)
	require.NotNil(t, created)
	require.NotEmpty(t, created.ID)
	return created
}

// LoginAndGetToken はログインしてアクセストークンを取り出します。
func LoginAndGetToken(t *testing.T, router *gin.Engine, username, password string) (string, error) {
	body, _ := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})

	req, _ := http.NewRequest(http.MethodPost, "/api/v1/users/login", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		return "", fmt.Errorf("login failed with status %d: %s", resp.Code, resp.Body.String())
	}

	var envelope struct {
		Data models.LoginResult `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		return "", fmt.Errorf("failed to unmarshal login response: %w", err)
	}
	if envelope.Data.AccessToken == "" {
		return "", fmt.Errorf("access token not found in login response")
	}
	return envelope.Data.AccessToken, nil
}

// CreateTestTodo はAPI経由でテスト用のTODOを作成します。
func CreateTestTodo(t *testing.T, router *gin.Engine, token, content, label string) *models.Todo {
	body, _ := json.Marshal(map[string]string{
		"content": content,
		"label":   label,
	})

	req, _ := http.NewRequest(http.MethodPost, "/api/v1/todos", bytes.NewBuffer(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code, "Failed to create todo: %s", resp.Body.String())

	var envelope struct {
		Data models.Todo `json:"data"`
	}
	err := json.Unmarshal(resp.Body.Bytes(), &envelope)
	require.NoError(t, err)
	require.NotEmpty(t, envelope.Data.ID)
	return &envelope.Data
}
