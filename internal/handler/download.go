package handler

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/guoanl/EMS/internal/models"
	"github.com/guoanl/EMS/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// DownloadHandler 负责附件下载。
type DownloadHandler struct {
	DB        *gorm.DB
	UploadDir string
}

// NewDownloadHandler 构造函数
func NewDownloadHandler(db *gorm.DB, uploadDir string) *DownloadHandler {
	return &DownloadHandler{
		DB:        db,
		UploadDir: uploadDir,
	}
}

// Download 按存储文件名下载附件，响应头里带原始文件名。
// 只认附件表里登记过的文件，顺带挡掉路径穿越。
func (h *DownloadHandler) Download(c *gin.Context) {
	filename := c.Param("filename")
	if filename == "" || strings.ContainsAny(filename, `/\`) || filename != filepath.Base(filename) {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "文件名不合法")
		return
	}

	var att models.Attachment
	if err := h.DB.Where("stored_name = ?", filename).First(&att).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			util.Error(c, http.StatusNotFound, util.CodeNotFound, "文件不存在")
		} else {
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询附件失败")
		}
		return
	}

	c.Header("Content-Type", "application/octet-stream")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", att.Name))
	c.File(filepath.Join(h.UploadDir, att.StoredName))
}
