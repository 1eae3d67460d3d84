package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"scoring-service/internal/api/middleware"
	"scoring-service/internal/services"
)

// SubmissionsHandler 处理视频提交相关API请求
type SubmissionsHandler struct {
	submissionService *services.SubmissionService
}

// NewSubmissionsHandler 创建新的视频提交处理器
func NewSubmissionsHandler(submissionService *services.SubmissionService) *SubmissionsHandler {
	return &SubmissionsHandler{
		submissionService: submissionService,
	}
}

// currentUserID 从上下文取当前用户ID
func currentUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get("userID")
	if !exists {
		return "", false
	}
	userIDStr, ok := userID.(string)
	return userIDStr, ok
}

// pagination 解析分页参数
func pagination(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}

// respondServiceError 输出结构化错误响应
func respondServiceError(c *gin.Context, err error) {
	serviceError, ok := err.(*services.ServiceError)
	if ok {
		c.JSON(getStatusCodeForError(serviceError), gin.H{
			"error": serviceError.Message,
			"code":  serviceError.Code,
			"type":  serviceError.Type,
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": err.Error(),
		"code":  "unknown_error",
	})
}

// getStatusCodeForError 根据错误类型返回适当的HTTP状态码
func getStatusCodeForError(err *services.ServiceError) int {
	switch err.Type {
	case services.ErrTypeValidation:
		return http.StatusBadRequest
	case services.ErrTypeNotFound:
		return http.StatusNotFound
	case services.ErrTypeResource:
		return http.StatusConflict
	case services.ErrTypePipeline:
		return http.StatusConflict
	case services.ErrTypeDatabase, services.ErrTypeStorage, services.ErrTypeExternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Submit 提交视频参与评分
func (h *SubmissionsHandler) Submit(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "用户信息缺失"})
		return
	}

	var dto services.SubmitVideoDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("输入数据验证失败: %s", err.Error()),
			"code":  "invalid_input",
		})
		return
	}

	submission, err := h.submissionService.Submit(c.Request.Context(), userID, dto)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	// 评分任务异步运行，提交接口立即返回
	c.JSON(http.StatusAccepted, gin.H{
		"videoId": submission.ID,
		"status":  submission.ScoreStatus,
	})
}

// List 查询自己的提交列表
func (h *SubmissionsHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "用户信息缺失"})
		return
	}

	page, limit := pagination(c)
	submissions, total, err := h.submissionService.ListByUser(c.Request.Context(), userID, page, limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items": submissions,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

// FindOne 查询单个提交详情
func (h *SubmissionsHandler) FindOne(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "用户信息缺失"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的提交ID", "code": "invalid_input"})
		return
	}

	detail, err := h.submissionService.GetByID(c.Request.Context(), userID, middleware.IsAdmin(c), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// Progress 轮询评分任务进度
func (h *SubmissionsHandler) Progress(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "用户信息缺失"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的提交ID", "code": "invalid_input"})
		return
	}

	progress, err := h.submissionService.GetProgress(c.Request.Context(), userID, middleware.IsAdmin(c), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

// Showcase 展厅列表（公开）
func (h *SubmissionsHandler) Showcase(c *gin.Context) {
	sortBy := c.DefaultQuery("sort", "score")
	if sortBy != "score" && sortBy != "latest" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的排序方式", "code": "invalid_input"})
		return
	}

	page, limit := pagination(c)
	submissions, total, err := h.submissionService.ListShowcase(c.Request.Context(), sortBy, page, limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items": submissions,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}
