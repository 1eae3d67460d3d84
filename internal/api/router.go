package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"scoring-service/internal/api/handlers"
	"scoring-service/internal/api/middleware"
	"scoring-service/internal/config"
	"scoring-service/internal/services"
)

// NewRouter 创建并配置API路由
func NewRouter(cfg *config.Config, submissionService *services.SubmissionService, adminService *services.AdminService) http.Handler {
	router := gin.Default()

	// 添加中间件
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())

	// 健康检查路由
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 初始化处理程序
	submissionsHandler := handlers.NewSubmissionsHandler(submissionService)
	adminHandler := handlers.NewAdminHandler(adminService)

	// API路由组 - 公共路由（无需认证）
	apiV1 := router.Group("/api/v1")
	{
		// 展厅列表公开可见
		apiV1.GET("/showcase", submissionsHandler.Showcase)
	}

	// API路由组 - 受保护路由（需要认证）
	protectedAPI := router.Group("/api/v1")
	protectedAPI.Use(middleware.AuthMiddleware(cfg.JWT.Secret))
	{
		// 视频提交相关路由
		videos := protectedAPI.Group("/videos")
		{
			// 提交视频参与评分
			videos.POST("", submissionsHandler.Submit)

			// 查询自己的提交列表
			videos.GET("", submissionsHandler.List)

			// 查询单个提交详情
			videos.GET("/:id", submissionsHandler.FindOne)

			// 轮询评分任务进度
			videos.GET("/:id/progress", submissionsHandler.Progress)
		}

		// 管理员路由
		admin := protectedAPI.Group("/admin")
		admin.Use(middleware.RoleMiddleware(string(middleware.RoleAdmin)))
		{
			// 提交列表（可按状态过滤）
			admin.GET("/videos", adminHandler.List)

			// 管理员改分
			admin.POST("/videos/:id/score", adminHandler.AdjustScore)

			// 异常标记/解除/拒绝展示
			admin.POST("/videos/:id/flag", adminHandler.HandleFlag)
		}
	}

	return router
}
