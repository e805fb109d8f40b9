// Package handlersはHTTPハンドラーを定義します。
package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"todovault/internal/models"
	"todovault/internal/repositories"
	"todovault/internal/services"
)

// リフレッシュトークンのCookie寿命（秒）。トークン自体の寿命はJWT側で検証します。
const refreshCookieMaxAge = 7 * 24 * 60 * 60
const accessCookieMaxAge = 24 * 60 * 60

// UserHandler はユーザー関連のハンドラーを管理します。
type UserHandler struct {
	userService *services.UserService
	avatarDir   string
}

// NewUserHandler は新しいUserHandlerを作成します。
func NewUserHandler(userService *services.UserService) *UserHandler {
	dir := os.Getenv("AVATAR_DIR")
	if dir == "" {
		dir = "./public/avatars"
	}
	return &UserHandler{userService: userService, avatarDir: dir}
}

// currentUserID はAuthMiddlewareが設定したユーザーIDを取り出します。
func currentUserID(c *gin.Context) (string, bool) {
	v, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, models.NewAPIError(http.StatusUnauthorized, "User ID not found in context"))
		return "", false
	}
	id, ok := v.(string)
	if !ok {
		c.JSON(http.StatusInternalServerError, models.NewAPIError(http.StatusInternalServerError, "Invalid user ID type in context"))
		return "", false
	}
	return id, true
}

// saveAvatar はアップロードされたアバターを保存し、公開URLパスを返します。
func (h *UserHandler) saveAvatar(c *gin.Context, file *multipart.FileHeader) (string, error) {
	if err := os.MkdirAll(h.avatarDir, 0o755); err != nil {
		return "", err
	}
	name := uuid.NewString() + filepath.Ext(file.Filename)
	if err := c.SaveUploadedFile(file, filepath.Join(h.avatarDir, name)); err != nil {
		return "", err
	}
	return "/avatars/" + name, nil
}

func setTokenCookies(c *gin.Context, pair *models.TokenPair) {
	c.SetCookie("accessToken", pair.AccessToken, accessCookieMaxAge, "/", "", true, true)
	c.SetCookie("refreshToken", pair.RefreshToken, refreshCookieMaxAge, "/", "", true, true)
}

func clearTokenCookies(c *gin.Context) {
	c.SetCookie("accessToken", "", -1, "/", "", true, true)
	c.SetCookie("refreshToken", "", -1, "/", "", true, true)
}

// RegisterHandler はユーザー登録を処理します。登録成功後そのままログインします。
func (h *UserHandler) RegisterHandler(c *gin.Context) {
	var req models.UserRegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.NewAPIError(http.StatusBadRequest, "All fields are required"))
		return
	}

	avatarURL := ""
	if file, err := c.FormFile("avatar"); err == nil {
		url, saveErr := h.saveAvatar(c, file)
		if saveErr != nil {
			c.JSON(http.StatusInternalServerError, models.NewAPIError(http.StatusInternalServerError, "Something went wrong while uploading avatar"))
			return
		}
		avatarURL = url
	}

	user, err := h.userService.RegisterUser(req, avatarURL)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrDuplicateUsername):
			c.JSON(http.StatusConflict, models.NewAPIError(http.StatusConflict, "User with username already exists"))
		case errors.Is(err, services.ErrWeakPassword), errors.Is(err, services.ErrMissingFields):
			c.JSON(http.StatusBadRequest, models.NewAPIError(http.StatusBadRequest, err.Error()))
		default:
			c.JSON(http.StatusInternalServerError, models.NewAPIError(http.StatusInternalServerError, "Failed to register user"))
		}
		return
	}

	// 登録直後にセッションを確立する
	pair, err := h.userService.IssueTokenPair(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.NewAPIError(http.StatusInternalServerError, "Failed to generate tokens"))
		return
	}
	setTokenCookies(c, pair)

	result := models.LoginResult{User: user.Public(), AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}
	c.JSON(http.StatusCreated, models.NewAPIResponse(http.StatusCreated, result, "User registered successfully"))
}

// LoginHandler はユーザーログインを処理します。
func (h *UserHandler) LoginHandler(c *gin.Context) {
	var req models.UserLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.NewAPIError(http.StatusBadRequest, "Username and password are required"))
		return
	}

	user, err := h.userService.AuthenticateUser(req)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrUserNotFound):
			c.JSON(http.StatusNotFound, models.NewAPIError(http.StatusNotFound, "User not found"))
		case errors.Is(err, services.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, models.NewAPIError(http.StatusUnauthorized, "Invalid password"))
		default:
			c.JSON(http.StatusInternalServerError, models.NewAPIError(http.StatusInternalServerError, "Failed to login"))
		}
		return
	}

	pair, err := h.userService.IssueTokenPair(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.NewAPIError(http.StatusInternalServerError, "Failed to generate tokens"))
		return
	}
	setTokenCookies(c, pair)

	result := models.LoginResult{User: user.Public(), AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}
	c.JSON(http.StatusOK, models.NewAPIResponse(http.StatusOK, result, "User logged in successfully"))
}

// LogoutHandler は保存中のリフレッシュトークンを無効化します。
func (h *UserHandler) LogoutHandler(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.userService.Logout(userID); err != nil {
		c.JSON(http.StatusInternalServerError, models.NewAPIError(http.StatusInternalServerError, "Failed to logout"))
		return
	}
	clearTokenCookies(c)
	c.JSON(http.StatusOK, models.NewAPIResponse(http.StatusOK, nil, "User logged out successfully"))
}

// RefreshTokenHandler はトークンのローテーションを行います。
// トークンはCookie、無ければボディから読みます。
func (h *UserHandler) RefreshTokenHandler(c *gin.Context) {
	incoming, err := c.Cookie("refreshToken")
	if err != nil || incoming == "" {
		var req models.RefreshTokenRequest
		if bindErr := c.ShouldBindJSON(&req); bindErr == nil {
			incoming = req.RefreshToken
		}
	}
	if incoming == "" {
		c.JSON(http.StatusUnauthorized, models.NewAPIError(http.StatusUnauthorized, "Unauthorized request"))
		return
	}

	pair, err := h.userService.RefreshTokens(incoming)
	if err != nil {
		clearTokenCookies(c)
		c.JSON(http.StatusUnauthorized, models.NewAPIError(http.StatusUnauthorized, "Refresh token either expired or used"))
		return
	}
	setTokenCookies(c, pair)
	c.JSON(http.StatusOK, models.NewAPIResponse(http.StatusOK, pair, "Access token refreshed"))
}

// CurrentUserHandler はセッション中のユーザーを返します。
func (h *UserHandler) CurrentUserHandler(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	user, err := h.userService.GetUserByID(userID)
	if err != nil {
		c.JSON(http.StatusNotFound, models.NewAPIError(http.StatusNotFound, "User not found"))
		return
	}
	c.JSON(http.StatusOK, models.NewAPIResponse(http.StatusOK, user.Public(), "Current user fetched successfully"))
}

// ChangePasswordHandler はパスワード変更を処理します。
func (h *UserHandler) ChangePasswordHandler(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req models.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.NewAPIError(http.StatusBadRequest, "Old and new passwords are required"))
		return
	}
	if err := h.userService.ChangePassword(userID, req); err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidCredentials):
			c.JSON(http.StatusBadRequest, models.NewAPIError(http.StatusBadRequest, "Invalid old password"))
		case errors.Is(err, services.ErrWeakPassword):
			c.JSON(http.StatusBadRequest, models.NewAPIError(http.StatusBadRequest, err.Error()))
		default:
			c.JSON(http.StatusInternalServerError, models.NewAPIError(http.StatusInternalServerError, "Failed to change password"))
		}
		return
	}
	c.JSON(http.StatusOK, models.NewAPIResponse(http.StatusOK, nil, "Password changed successfully"))
}

// UpdateDetailsHandler はプロフィールを更新します。
func (h *UserHandler) UpdateDetailsHandler(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req models.UpdateDetailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.NewAPIError(http.StatusBadRequest, "Please provide full name"))
		return
	}
	user, err := h.userService.UpdateDetails(userID, req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.NewAPIError(http.StatusInternalServerError, "Failed to update account details"))
		return
	}
	c.JSON(http.StatusOK, models.NewAPIResponse(http.StatusOK, user.Public(), "Account details updated successfully"))
}

// UpdateAvatarHandler はアバターを更新します。
func (h *UserHandler) UpdateAvatarHandler(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	file, err := c.FormFile("avatar")
	if err != nil {
		c.JSON(http.StatusBadRequest, models.NewAPIError(http.StatusBadRequest, "Avatar file is missing"))
		return
	}
	url, err := h.saveAvatar(c, file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.NewAPIError(http.StatusInternalServerError, "Error while uploading avatar"))
		return
	}
	user, err := h.userService.UpdateAvatar(userID, url)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.NewAPIError(http.StatusInternalServerError, "Failed to update avatar"))
		return
	}
	c.JSON(http.StatusOK, models.NewAPIResponse(http.StatusOK, user.Public(), "Avatar updated successfully"))
}

// DeleteAccountHandler はアカウントを削除します。Todoは外部キーで連鎖削除されます。
func (h *UserHandler) DeleteAccountHandler(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.userService.DeleteAccount(userID); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, models.NewAPIError(http.StatusNotFound, "User not found or already deleted"))
			return
		}
		c.JSON(http.StatusInternalServerError, models.NewAPIError(http.StatusInternalServerError, "Failed to delete account"))
		return
	}
	clearTokenCookies(c)
	c.JSON(http.StatusOK, models.NewAPIResponse(http.StatusOK, nil, "User deleted successfully"))
}
