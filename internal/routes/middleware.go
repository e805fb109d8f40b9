// Package routesはroutingを行います。
package routes

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"todovault/internal/models"
	"todovault/internal/services"
)

// AuthMiddleware はアクセストークンを検証し、ユーザー情報をコンテキストに設定するミドルウェアです。
// Authorizationヘッダー、無ければaccessToken Cookieを見ます。
func AuthMiddleware(jwtService *services.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ""

		header := c.GetHeader("Authorization")
		if header != "" {
			if !strings.HasPrefix(header, "Bearer ") {
				c.JSON(http.StatusUnauthorized, models.NewAPIError(http.StatusUnauthorized, "Invalid token format"))
				c.Abort()
				return
			}
			tokenString = header[len("Bearer "):]
		} else if cookie, err := c.Cookie("accessToken"); err == nil {
			tokenString = cookie
		}

		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, models.NewAPIError(http.StatusUnauthorized, "Unauthorized request"))
			c.Abort()
			return
		}

		claims, err := jwtService.ValidateAccessToken(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, models.NewAPIError(http.StatusUnauthorized, "Invalid or expired token"))
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("username", claims.Username)
		c.Next()
	}
}

// RecoveryMiddleware はハンドラーのpanicを共通封筒の500に変換します。
func RecoveryMiddleware() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, _ any) {
		c.JSON(http.StatusInternalServerError, models.NewAPIError(http.StatusInternalServerError, "Internal server error"))
	})
}
