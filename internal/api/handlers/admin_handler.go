package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"scoring-service/internal/services"
)

// AdminHandler 处理管理员复核相关API请求
type AdminHandler struct {
	adminService *services.AdminService
}

// NewAdminHandler 创建新的管理员处理器
func NewAdminHandler(adminService *services.AdminService) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
	}
}

// List 管理员查询提交列表
func (h *AdminHandler) List(c *gin.Context) {
	page, limit := pagination(c)
	status := c.Query("status")

	submissions, total, err := h.adminService.ListSubmissions(c.Request.Context(), status, page, limit)
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

// adjustScoreRequest 调分请求
type adjustScoreRequest struct {
	NewScore *int   `json:"newScore" binding:"required"`
	Notes    string `json:"notes"`
}

// AdjustScore 管理员改分
func (h *AdminHandler) AdjustScore(c *gin.Context) {
	adminID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "用户信息缺失"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的提交ID", "code": "invalid_input"})
		return
	}

	var req adjustScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("输入数据验证失败: %s", err.Error()),
			"code":  "invalid_input",
		})
		return
	}

	updated, err := h.adminService.AdjustScore(c.Request.Context(), adminID, id, *req.NewScore, req.Notes)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// flagRequest 异常标记请求
type flagRequest struct {
	Action string `json:"action" binding:"required"`
	Notes  string `json:"notes"`
}

// HandleFlag 管理员异常标记操作
func (h *AdminHandler) HandleFlag(c *gin.Context) {
	adminID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "用户信息缺失"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的提交ID", "code": "invalid_input"})
		return
	}

	var req flagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("输入数据验证失败: %s", err.Error()),
			"code":  "invalid_input",
		})
		return
	}

	if err := h.adminService.HandleFlag(c.Request.Context(), adminID, id, req.Action, req.Notes); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "操作成功"})
}
