package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"todovault/internal/models"
)

// ユーザー関連のエラーです。
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrDuplicateUsername = errors.New("username already exists")
)

// UserRepository はusersテーブルへの操作を行うための構造体です。
type UserRepository struct {
	DB *sql.DB
}

// NewUserRepository は新しいUserRepositoryインスタンスを作成します。
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{DB: db}
}

// HashPassword はパスワードをbcryptでハッシュ化します。
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// VerifyPassword はプレーンテキストのパスワードとハッシュを比較します。
func VerifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

const userColumns = "id, full_name, username, password_hash, avatar, refresh_token, created_at, updated_at"

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.FullName, &u.Username, &u.PasswordHash, &u.Avatar, &u.RefreshToken, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create は新しいユーザーをデータベースに挿入します。
// username重複はMySQLの一意制約違反(1062)で検出します。
func (r *UserRepository) Create(u *models.User) (*models.User, error) {
	u.ID = uuid.NewString()
	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now

	query := `INSERT INTO users (id, full_name, username, password_hash, avatar, refresh_token, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, '', ?, ?)`
	_, err := r.DB.Exec(query, u.ID, u.FullName, u.Username, u.PasswordHash, u.Avatar, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return nil, ErrDuplicateUsername
		}
		log.Printf("Failed to insert user: %v", err)
		return nil, fmt.Errorf("could not insert user: %w", err)
	}
	return u, nil
}

// FindByUsername はユーザー名でユーザーを検索します。
func (r *UserRepository) FindByUsername(username string) (*models.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE username = ?"
	u, err := scanUser(r.DB.QueryRow(query, username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		log.Printf("Failed to query user by username: %v", err)
		return nil, fmt.Errorf("could not query user: %w", err)
	}
	return u, nil
}

// FindByID はIDでユーザーを検索します。
func (r *UserRepository) FindByID(id string) (*models.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE id = ?"
	u, err := scanUser(r.DB.QueryRow(query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		log.Printf("Failed to query user by ID: %v", err)
		return nil, fmt.Errorf("could not query user: %w", err)
	}
	return u, nil
}

// UpdateRefreshToken はリフレッシュトークン枠を書き換えます。
// 新しいトークンの発行は前のトークンの無効化を意味します。空文字でログアウトです。
func (r *UserRepository) UpdateRefreshToken(userID, token string) error {
	_, err := r.DB.Exec("UPDATE users SET refresh_token = ? WHERE id = ?", token, userID)
	if err != nil {
		log.Printf("Failed to update refresh token: %v", err)
		return fmt.Errorf("could not update refresh token: %w", err)
	}
	return nil
}

// UpdatePassword はパスワードハッシュを更新します。
func (r *UserRepository) UpdatePassword(userID, passwordHash string) error {
	_, err := r.DB.Exec("UPDATE users SET password_hash = ? WHERE id = ?", passwordHash, userID)
	if err != nil {
		return fmt.Errorf("could not update password: %w", err)
	}
	return nil
}

// UpdateDetails はフルネームを更新して更新後のユーザーを返します。
func (r *UserRepository) UpdateDetails(userID, fullName string) (*models.User, error) {
	_, err := r.DB.Exec("UPDATE users SET full_name = ? WHERE id = ?", fullName, userID)
	if err != nil {
		return nil, fmt.Errorf("could not update user details: %w", err)
	}
	return r.FindByID(userID)
}

// UpdateAvatar はアバターURLを更新して更新後のユーザーを返します。
func (r *UserRepository) UpdateAvatar(userID, avatarURL string) (*models.User, error) {
	_, err := r.DB.Exec("UPDATE users SET avatar = ? WHERE id = ?", avatarURL, userID)
	if err != nil {
		return nil, fmt.Errorf("could not update avatar: %w", err)
	}
	return r.FindByID(userID)
}

// Delete はユーザーを削除します。todosはFKのON DELETE CASCADEで消えます。
func (r *UserRepository) Delete(userID string) error {
	result, err := r.DB.Exec("DELETE FROM users WHERE id = ?", userID)
	if err != nil {
		log.Printf("Failed to delete user: %v", err)
		return fmt.Errorf("could not delete user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}
