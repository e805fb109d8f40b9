package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"todovault/internal/models"
)

// HealthcheckHandler は死活確認用のハンドラーです。
func HealthcheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, models.NewAPIResponse(http.StatusOK, "OK", "Health check passed"))
}

// GuestInfoHandler はゲストモードの説明を返します。認証は不要です。
func GuestInfoHandler(c *gin.Context) {
	info := gin.H{
		"message": "Guest mode is active",
		"features": []string{
			"Local todo storage",
			"Basic todo operations",
			"No data persistence across devices",
		},
		"limitations": []string{
			"Data stored locally only",
			"No cloud sync",
			"No advanced features",
		},
	}
	c.JSON(http.StatusOK, models.NewAPIResponse(http.StatusOK, info, "Guest mode information"))
}
