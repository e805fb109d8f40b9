package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"todovault/internal/models"
	"todovault/internal/repositories"
	"todovault/internal/services"
)

// TodoHandler はTodo関連のハンドラーを管理します。
type TodoHandler struct {
	todoService *services.TodoService
	userService *services.UserService
}

// NewTodoHandler は新しいTodoHandlerを作成します。
func NewTodoHandler(todoService *services.TodoService, userService *services.UserService) *TodoHandler {
	return &TodoHandler{todoService: todoService, userService: userService}
}

// respondTodoError はサービス層のエラーをHTTPステータスに変換します。
func respondTodoError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repositories.ErrTodoNotFound):
		c.JSON(http.StatusNotFound, models.NewAPIError(http.StatusNotFound, "Todo not found"))
	case errors.Is(err, services.ErrEmptyContent),
		errors.Is(err, services.ErrEmptyLabel),
		errors.Is(err, services.ErrInvalidOperation),
		errors.Is(err, services.ErrNoTodoIDs):
		c.JSON(http.StatusBadRequest, models.NewAPIError(http.StatusBadRequest, err.Error()))
	default:
		c.JSON(http.StatusInternalServerError, models.NewAPIError(http.StatusInternalServerError, "Something went wrong"))
	}
}

// attachOwner は単体取得系レスポンスにownerプロフィールを付与します。
func (h *TodoHandler) attachOwner(todo *models.Todo) {
	if user, err := h.userService.GetUserByID(todo.OwnerID); err == nil {
		todo.Owner = user.Public()
	}
}

// CreateTodoHandler は新しいTodoを作成します。
func (h *TodoHandler) CreateTodoHandler(c *gin.Context) {
	ownerID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req models.TodoCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.NewAPIError(http.StatusBadRequest, "Todo content is required"))
		return
	}
	todo, err := h.todoService.CreateTodo(ownerID, req)
	if err != nil {
		respondTodoError(c, err)
		return
	}
	h.attachOwner(todo)
	c.JSON(http.StatusCreated, models.NewAPIResponse(http.StatusCreated, todo, "Todo created successfully"))
}

// GetUserTodosHandler はページ付き・条件付きでTodo一覧を返します。
func (h *TodoHandler) GetUserTodosHandler(c *gin.Context) {
	ownerID, ok := currentUserID(c)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	q := repositories.TodoListQuery{
		Status:    c.Query("status"),
		SortBy:    c.DefaultQuery("sortBy", "createdAt"),
		SortOrder: c.DefaultQuery("sortOrder", "desc"),
		Page:      page,
		Limit:     limit,
	}
	result, err := h.todoService.GetTodos(ownerID, q)
	if err != nil {
		respondTodoError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewAPIResponse(http.StatusOK, result, "Todos fetched successfully"))
}

// DeleteUserTodosHandler はユーザーのTodoをすべて削除します。
func (h *TodoHandler) DeleteUserTodosHandler(c *gin.Context) {
	ownerID, ok := currentUserID(c)
	if !ok {
		return
	}
	n, err := h.todoService.DeleteAllTodos(ownerID)
	if err != nil {
		respondTodoError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewAPIResponse(http.StatusOK, models.BulkResult{AffectedCount: n}, "All todos deleted successfully"))
}

// GetUserLabelsHandler はラベルの一意な集合を返します。
func (h *TodoHandler) GetUserLabelsHandler(c *gin.Context) {
	ownerID, ok := currentUserID(c)
	if !ok {
		return
	}
	labels, err := h.todoService.GetLabels(ownerID)
	if err != nil {
		respondTodoError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewAPIResponse(http.StatusOK, labels, "Unique labels fetched successfully"))
}

// GetTodoStatsHandler は集計結果を返します。
func (h *TodoHandler) GetTodoStatsHandler(c *gin.Context) {
	ownerID, ok := currentUserID(c)
	if !ok {
		return
	}
	stats, err := h.todoService.GetStats(ownerID)
	if err != nil {
		respondTodoError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewAPIResponse(http.StatusOK, stats, "Todo statistics fetched successfully"))
}

// GetTodoByIDHandler は指定IDのTodoを取得します。
func (h *TodoHandler) GetTodoByIDHandler(c *gin.Context) {
	ownerID, ok := currentUserID(c)
	if !ok {
		return
	}
	todo, err := h.todoService.GetTodoByID(ownerID, c.Param("id"))
	if err != nil {
		respondTodoError(c, err)
		return
	}
	h.attachOwner(todo)
	c.JSON(http.StatusOK, models.NewAPIResponse(http.StatusOK, todo, "Todo fetched successfully"))
}

// UpdateTodoHandler は指定フィールドのみ更新します。
func (h *TodoHandler) UpdateTodoHandler(c *gin.Context) {
	ownerID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req models.TodoUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.NewAPIError(http.StatusBadRequest, "Invalid request payload"))
		return
	}
	todo, err := h.todoService.UpdateTodo(ownerID, c.Param("id"), req)
	if err != nil {
		respondTodoError(c, err)
		return
	}
	h.attachOwner(todo)
	c.JSON(http.StatusOK, models.NewAPIResponse(http.StatusOK, todo, "Todo updated successfully"))
}

// DeleteTodoHandler はTodoを削除します。
func (h *TodoHandler) DeleteTodoHandler(c *gin.Context) {
	ownerID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.todoService.DeleteTodo(ownerID, c.Param("id")); err != nil {
		respondTodoError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewAPIResponse(http.StatusOK, nil, "Todo deleted successfully"))
}

// ToggleCompletionHandler は完了フラグを反転します。
func (h *TodoHandler) ToggleCompletionHandler(c *gin.Context) {
	ownerID, ok := currentUserID(c)
	if !ok {
		return
	}
	todo, err := h.todoService.ToggleCompleted(ownerID, c.Param("id"))
	if err != nil {
		respondTodoError(c, err)
		return
	}
	message := "Todo marked as pending"
	if todo.IsCompleted {
		message = "Todo marked as completed"
	}
	c.JSON(http.StatusOK, models.NewAPIResponse(http.StatusOK, todo, message))
}

// ToggleArchiveHandler はアーカイブフラグを反転します。
func (h *TodoHandler) ToggleArchiveHandler(c *gin.Context) {
	ownerID, ok := currentUserID(c)
	if !ok {
		return
	}
	todo, err := h.todoService.ToggleArchived(ownerID, c.Param("id"))
	if err != nil {
		respondTodoError(c, err)
		return
	}
	message := "Todo unarchived successfully"
	if todo.IsArchived {
		message = "Todo archived successfully"
	}
	c.JSON(http.StatusOK, models.NewAPIResponse(http.StatusOK, todo, message))
}

// GetTodosByLabelHandler はラベル一致のTodoを返します。
func (h *TodoHandler) GetTodosByLabelHandler(c *gin.Context) {
	ownerID, ok := currentUserID(c)
	if !ok {
		return
	}
	todos, err := h.todoService.GetTodosByLabel(ownerID, c.Param("label"))
	if err != nil {
		respondTodoError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewAPIResponse(http.StatusOK, todos, "Todos by label fetched successfully"))
}

// RenameLabelHandler はラベルを一括変更します。
func (h *TodoHandler) RenameLabelHandler(c *gin.Context) {
	ownerID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req models.RenameLabelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.NewAPIError(http.StatusBadRequest, "New label is required"))
		return
	}
	result, err := h.todoService.RenameLabel(ownerID, c.Param("label"), req.NewLabel)
	if err != nil {
		respondTodoError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewAPIResponse(http.StatusOK, result, "Label updated successfully"))
}

// DeleteLabelHandler はラベルに属するTodoをすべて削除します。
func (h *TodoHandler) DeleteLabelHandler(c *gin.Context) {
	ownerID, ok := currentUserID(c)
	if !ok {
		return
	}
	result, err := h.todoService.DeleteLabel(ownerID, c.Param("label"))
	if err != nil {
		respondTodoError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewAPIResponse(http.StatusOK, result, "All todos with label deleted successfully"))
}

// BulkUpdateHandler はIDリストへの一括操作を処理します。
func (h *TodoHandler) BulkUpdateHandler(c *gin.Context) {
	ownerID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req models.BulkUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.NewAPIError(http.StatusBadRequest, "Todo IDs and operation are required"))
		return
	}
	result, err := h.todoService.BulkUpdate(ownerID, req)
	if err != nil {
		respondTodoError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewAPIResponse(http.StatusOK, result, "Bulk operation applied successfully"))
}
