package middleware

import (
	"github.com/guoanl/EMS/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AuditMiddleware 在请求处理完成后记录一条操作日志。
// 只记录已登录用户的操作，写入失败不影响请求本身。
func AuditMiddleware(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		user := CurrentUser(c)
		if user == nil {
			return
		}

		entry := models.AuditLog{
			UserID:    user.ID,
			Method:    c.Request.Method,
			Path:      c.Request.URL.Path,
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		}
		_ = db.Create(&entry).Error
	}
}
