package routes

import (
	"database/sql"
	"net/http"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"todovault/internal/handlers"
	"todovault/internal/models"
	"todovault/internal/repositories"
	"todovault/internal/services"
)

// SetupRouter はGinルーターをセットアップし、すべてのエンドポイントを登録します。
func SetupRouter(db *sql.DB) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), RecoveryMiddleware())

	// CORS対策
	config := cors.DefaultConfig()
	origin := os.Getenv("CORS_ORIGIN")
	if origin == "" {
		origin = "http://localhost:3000"
	}
	config.AllowOrigins = []string{origin}
	config.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	config.AllowCredentials = true
	r.Use(cors.New(config))

	// リポジトリ
	todoRepo := repositories.NewTodoRepository(db)
	userRepo := repositories.NewUserRepository(db)

	// サービス
	jwtService := services.NewJWTService()
	todoService := services.NewTodoService(todoRepo)
	userService := services.NewUserService(userRepo, jwtService)

	// ハンドラー
	userHandler := handlers.NewUserHandler(userService)
	todoHandler := handlers.NewTodoHandler(todoService, userService)

	RegisterRoutes(r, jwtService, userHandler, todoHandler)
	return r
}

// RegisterRoutes はルーティングだけを登録します。テストからも呼びます。
func RegisterRoutes(r *gin.Engine, jwtService *services.JWTService, userHandler *handlers.UserHandler, todoHandler *handlers.TodoHandler) {
	// アップロードされたアバターの配信
	avatarDir := os.Getenv("AVATAR_DIR")
	if avatarDir == "" {
		avatarDir = "./public/avatars"
	}
	r.Static("/avatars", avatarDir)

	v1 := r.Group("/api/v1")

	v1.GET("/healthcheck", handlers.HealthcheckHandler)
	v1.GET("/guest", handlers.GuestInfoHandler)

	users := v1.Group("/users")
	{
		users.POST("/register", userHandler.RegisterHandler)
		users.POST("/login", userHandler.LoginHandler)
		users.POST("/refresh-token", userHandler.RefreshTokenHandler)
	}

	usersAuth := v1.Group("/users")
	usersAuth.Use(AuthMiddleware(jwtService))
	{
		usersAuth.POST("/logout", userHandler.LogoutHandler)
		usersAuth.GET("/current-user", userHandler.CurrentUserHandler)
		usersAuth.POST("/change-password", userHandler.ChangePasswordHandler)
		usersAuth.PATCH("/update-details", userHandler.UpdateDetailsHandler)
		usersAuth.PATCH("/avatar", userHandler.UpdateAvatarHandler)
		usersAuth.DELETE("/delete-account", userHandler.DeleteAccountHandler)
	}

	todos := v1.Group("/todos")
	todos.Use(AuthMiddleware(jwtService))
	{
		todos.POST("", todoHandler.CreateTodoHandler)
		todos.GET("/user/todos", todoHandler.GetUserTodosHandler)
		todos.DELETE("/user/todos", todoHandler.DeleteUserTodosHandler)
		todos.GET("/user/labels", todoHandler.GetUserLabelsHandler)
		todos.GET("/stats", todoHandler.GetTodoStatsHandler)
		todos.PATCH("/bulk", todoHandler.BulkUpdateHandler)
		todos.GET("/label/:label", todoHandler.GetTodosByLabelHandler)
		todos.PATCH("/label/:label", todoHandler.RenameLabelHandler)
		todos.DELETE("/label/:label", todoHandler.DeleteLabelHandler)
		todos.GET("/:id", todoHandler.GetTodoByIDHandler)
		todos.PATCH("/:id", todoHandler.UpdateTodoHandler)
		todos.DELETE("/:id", todoHandler.DeleteTodoHandler)
		todos.PATCH("/:id/toggle-completion", todoHandler.ToggleCompletionHandler)
		todos.PATCH("/:id/toggle-archive", todoHandler.ToggleArchiveHandler)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, models.NewAPIError(http.StatusNotFound, "Route not found"))
	})
}
