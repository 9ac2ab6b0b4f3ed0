package router

import (
	"github.com/guoanl/EMS/internal/config"
	"github.com/guoanl/EMS/internal/handler"
	"github.com/guoanl/EMS/internal/middleware"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SetupRouter configures the Gin engine and API routes.
func SetupRouter(cfg *config.Config, db *gorm.DB) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	api := r.Group("/api")

	jwtSecret := cfg.JWT.Secret

	// 登录接口（不需要鉴权）
	authHandler := handler.NewAuthHandler(db, jwtSecret, cfg.JWT.ExpireHours)
	api.POST("/login", authHandler.Login)

	// 需要登录才能访问的接口
	protected := api.Group("")
	protected.Use(
		middleware.AuthMiddleware(jwtSecret, db),
		middleware.AuditMiddleware(db),
	)

	protected.GET("/me", handler.GetMe)

	// 企业端：查看和填报自己的任务
	reportHandler := handler.NewReportHandler(db, cfg.Upload.Dir)
	protected.GET("/client/tasks", reportHandler.GetTasks)
	protected.POST("/client/save-all", reportHandler.SaveAll)

	downloadHandler := handler.NewDownloadHandler(db, cfg.Upload.Dir)
	protected.GET("/download/:filename", downloadHandler.Download)

	// 管理端：账号管理和填报情况
	admin := protected.Group("/admin")
	admin.Use(middleware.RequireAdmin())

	accountHandler := handler.NewAccountHandler(db, cfg.Upload.Dir, cfg.App.PageSize)
	admin.GET("/accounts", accountHandler.ListAccounts)
	admin.GET("/accounts/:id", accountHandler.GetAccount)
	admin.POST("/accounts", accountHandler.CreateAccount)
	admin.PUT("/accounts/:id", accountHandler.UpdateAccount)
	admin.POST("/accounts/:id/reset-password", accountHandler.ResetPassword)
	admin.DELETE("/accounts/:id", accountHandler.DeleteAccount)

	enterpriseHandler := handler.NewEnterpriseHandler(db)
	admin.GET("/enterprises", enterpriseHandler.ListEnterprises)
	admin.GET("/enterprises/:id", enterpriseHandler.GetEnterpriseDetail)
	admin.GET("/export/xlsx", enterpriseHandler.ExportXLSX)

	logHandler := handler.NewLogHandler(db, cfg.App.PageSize)
	admin.GET("/logs", logHandler.ListLogs)

	return r
}
