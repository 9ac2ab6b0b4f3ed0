package handler

import (
	"net/http"
	"strconv"

	"github.com/guoanl/EMS/internal/models"
	"github.com/guoanl/EMS/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// LogHandler 负责管理员查看操作日志。
type LogHandler struct {
	DB       *gorm.DB
	PageSize int
}

// NewLogHandler 构造函数
func NewLogHandler(db *gorm.DB, pageSize int) *LogHandler {
	if pageSize <= 0 {
		pageSize = 10
	}
	return &LogHandler{DB: db, PageSize: pageSize}
}

// ListLogs 倒序分页返回操作日志
func (h *LogHandler) ListLogs(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}

	var total int64
	if err := h.DB.Model(&models.AuditLog{}).Count(&total).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询日志失败")
		return
	}

	var logs []models.AuditLog
	if err := h.DB.
		Order("id DESC").
		Limit(h.PageSize).
		Offset((page - 1) * h.PageSize).
		Find(&logs).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询日志失败")
		return
	}

	items := make([]gin.H, 0, len(logs))
	for i := range logs {
		l := &logs[i]
		items = append(items, gin.H{
			"id":         l.ID,
			"user_id":    l.UserID,
			"method":     l.Method,
			"path":       l.Path,
			"ip":         l.IP,
			"user_agent": l.UserAgent,
			"created_at": l.CreatedAt,
		})
	}

	util.Success(c, util.Response{
		"logs":  items,
		"total": total,
	})
}
