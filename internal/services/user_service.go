package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"unicode"

	"todovault/internal/models"
	"todovault/internal/repositories"
)

// 認証関連のエラーです。
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrWeakPassword       = errors.New("password must be 8-12 characters and include upper, lower, digit and symbol")
	ErrMissingFields      = errors.New("all fields are required")
	ErrInvalidRefresh     = errors.New("refresh token either expired or used")
)

// UserService はユーザー関連のビジネスロジックを扱います。
type UserService struct {
	userRepo *repositories.UserRepository
	jwt      *JWTService
}

// NewUserService は新しいUserServiceを作成します。
func NewUserService(userRepo *repositories.UserRepository, jwt *JWTService) *UserService {
	return &UserService{userRepo: userRepo, jwt: jwt}
}

// ValidatePassword はパスワードポリシーを検査します。
// 8〜12文字で、大文字・小文字・数字・記号を各1つ以上含むこと。
func ValidatePassword(password string) error {
	runes := []rune(password)
	if len(runes) < 8 || len(runes) > 12 {
		return ErrWeakPassword
	}
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range runes {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSymbol = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit || !hasSymbol {
		return ErrWeakPassword
	}
	return nil
}

// RegisterUser はユーザーを登録します。usernameは小文字に正規化します。
func (s *UserService) RegisterUser(req models.UserRegisterRequest, avatarURL string) (*models.User, error) {
	fullName := strings.TrimSpace(req.FullName)
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if fullName == "" || username == "" || strings.TrimSpace(req.Password) == "" {
		return nil, ErrMissingFields
	}
	if err := ValidatePassword(req.Password); err != nil {
		return nil, err
	}

	hashedPassword, err := repositories.HashPassword(req.Password)
	if err != nil {
		log.Printf("Failed to hash password: %v", err)
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	newUser := &models.User{
		FullName:     fullName,
		Username:     username,
		PasswordHash: hashedPassword,
		Avatar:       avatarURL,
	}
	return s.userRepo.Create(newUser)
}

// AuthenticateUser はユーザーを認証し、成功したらユーザーを返します。
// ユーザー不在はErrUserNotFound、パスワード不一致はErrInvalidCredentialsです。
func (s *UserService) AuthenticateUser(req models.UserLoginRequest) (*models.User, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	foundUser, err := s.userRepo.FindByUsername(username)
	if err != nil {
		return nil, err
	}
	if err := repositories.VerifyPassword(foundUser.PasswordHash, req.Password); err != nil {
		return nil, ErrInvalidCredentials
	}
	return foundUser, nil
}

// IssueTokenPair はアクセス/リフレッシュトークンを発行し、
// リフレッシュトークンをユーザーの1枠に保存します。
func (s *UserService) IssueTokenPair(user *models.User) (*models.TokenPair, error) {
	accessToken, err := s.jwt.GenerateAccessToken(user.ID, user.Username)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.jwt.GenerateRefreshToken(user.ID)
	if err != nil {
		return nil, err
	}
	if err := s.userRepo.UpdateRefreshToken(user.ID, refreshToken); err != nil {
		return nil, err
	}
	return &models.TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// RefreshTokens はリフレッシュトークンをローテーションします。
// 保存中のトークンと一致しない（＝ローテーション済みトークンの再利用）場合は
// 保存枠をクリアしてセッション全体を無効化します。
func (s *UserService) RefreshTokens(incomingToken string) (*models.TokenPair, error) {
	userID, err := s.jwt.ValidateRefreshToken(incomingToken)
	if err != nil {
		return nil, ErrInvalidRefresh
	}

	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, ErrInvalidRefresh
	}

	if user.RefreshToken == "" || user.RefreshToken != incomingToken {
		// 再利用検知: 唯一のリプレイ防御のため、残っているトークンも破棄する
		if clearErr := s.userRepo.UpdateRefreshToken(user.ID, ""); clearErr != nil {
			log.Printf("Failed to clear refresh token after reuse: %v", clearErr)
		}
		return nil, ErrInvalidRefresh
	}

	return s.IssueTokenPair(user)
}

// Logout は保存中のリフレッシュトークンを破棄します。
func (s *UserService) Logout(userID string) error {
	return s.userRepo.UpdateRefreshToken(userID, "")
}

// GetUserByID はIDでユーザーを取得します。
func (s *UserService) GetUserByID(userID string) (*models.User, error) {
	return s.userRepo.FindByID(userID)
}

// ChangePassword は旧パスワードを検証してから新パスワードを設定します。
func (s *UserService) ChangePassword(userID string, req models.ChangePasswordRequest) error {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return err
	}
	if err := repositories.VerifyPassword(user.PasswordHash, req.OldPassword); err != nil {
		return ErrInvalidCredentials
	}
	if err := ValidatePassword(req.NewPassword); err != nil {
		return err
	}
	hashedPassword, err := repositories.HashPassword(req.NewPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return s.userRepo.UpdatePassword(userID, hashedPassword)
}

// UpdateDetails はプロフィールを更新します。
func (s *UserService) UpdateDetails(userID string, req models.UpdateDetailsRequest) (*models.User, error) {
	fullName := strings.TrimSpace(req.FullName)
	if fullName == "" {
		return nil, ErrMissingFields
	}
	return s.userRepo.UpdateDetails(userID, fullName)
}

// UpdateAvatar はアバターURLを更新します。
func (s *UserService) UpdateAvatar(userID, avatarURL string) (*models.User, error) {
	return s.userRepo.UpdateAvatar(userID, avatarURL)
}

// DeleteAccount はアカウントを削除します。
func (s *UserService) DeleteAccount(userID string) error {
	return s.userRepo.Delete(userID)
}
