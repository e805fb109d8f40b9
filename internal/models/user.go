package models

import "time"

// User はユーザーのデータベース構造体を表します。
// PasswordHashとRefreshTokenはJSONに出しません。
type User struct {
	ID           string    `json:"id"`
	FullName     string    `json:"fullName"`
	Username     string    `json:"username"` // 小文字で保存、一意
	PasswordHash string    `json:"-"`
	Avatar       string    `json:"avatar,omitempty"`
	RefreshToken string    `json:"-"` // 現在有効なリフレッシュトークン（1枠のみ）
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// PublicUser は他のレスポンスに埋め込む公開プロフィールです。
type PublicUser struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

// Public はUserから公開プロフィールを作ります。
func (u *User) Public() *PublicUser {
	return &PublicUser{
		ID:       u.ID,
		FullName: u.FullName,
		Username: u.Username,
		Avatar:   u.Avatar,
	}
}

// UserRegisterRequest はユーザー登録リクエストの構造体です。
// アバターはmultipartファイルとして別途受け取ります。
type UserRegisterRequest struct {
	FullName string `form:"fullName" json:"fullName" binding:"required"`
	Username string `form:"username" json:"username" binding:"required"`
	Password string `form:"password" json:"password" binding:"required"` // 生パスワード
}

// UserLoginRequest はユーザーログインリクエストの構造体です。
type UserLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ChangePasswordRequest はパスワード変更リクエストの構造体です。
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

// UpdateDetailsRequest はプロフィール更新リクエストの構造体です。
type UpdateDetailsRequest struct {
	FullName string `json:"fullName" binding:"required"`
}

// RefreshTokenRequest はトークン再発行リクエストの構造体です。
// Cookieが無い場合のみボディから読みます。
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// LoginResult はログイン成功時のレスポンスです。
type LoginResult struct {
	User         *PublicUser `json:"user"`
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
}

// TokenPair はトークン再発行レスポンスです。
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
