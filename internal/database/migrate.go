package database

import (
	"database/sql"
	"fmt"
)

// Migrate は必要なテーブルを作成します。起動時に毎回呼んで問題ありません。
func Migrate(db *sql.DB) error {
	createUsersSQL := `
		CREATE TABLE IF NOT EXISTS users (
			id CHAR(36) PRIMARY KEY,
			full_name VARCHAR(255) NOT NULL,
			username VARCHAR(255) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			avatar VARCHAR(512) NOT NULL DEFAULT '',
			refresh_token VARCHAR(1024) NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		);`
	if _, err := db.Exec(createUsersSQL); err != nil {
		return fmt.Errorf("could not create users table: %w", err)
	}

	createTodosSQL := `
		CREATE TABLE IF NOT EXISTS todos (
			id CHAR(36) PRIMARY KEY,
			owner_id CHAR(36) NOT NULL,
			content VARCHAR(500) NOT NULL,
			label VARCHAR(100) NOT NULL DEFAULT 'General',
			is_completed BOOLEAN NOT NULL DEFAULT FALSE,
			is_archived BOOLEAN NOT NULL DEFAULT FALSE,
			due_date DATETIME NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			INDEX idx_todos_owner (owner_id),
			INDEX idx_todos_owner_label (owner_id, label),
			FOREIGN KEY (owner_id) REFERENCES users(id) ON DELETE CASCADE
		);`
	if _, err := db.Exec(createTodosSQL); err != nil {
		return fmt.Errorf("could not create todos table: %w", err)
	}

	return nil
}
