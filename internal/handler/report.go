package handler

import (
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/guoanl/EMS/internal/middleware"
	"github.com/guoanl/EMS/internal/models"
	"github.com/guoanl/EMS/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReportHandler 负责企业侧的任务查看和填报接口。
type ReportHandler struct {
	DB        *gorm.DB
	UploadDir string
}

// NewReportHandler 构造函数
func NewReportHandler(db *gorm.DB, uploadDir string) *ReportHandler {
	return &ReportHandler{
		DB:        db,
		UploadDir: uploadDir,
	}
}

// ---------- 任务序列化 ----------

type attachmentResp struct {
	ID        uint      `json:"id"`
	TaskID    uint      `json:"task_id"`
	Name      string    `json:"name"`
	Path      string    `json:"path"` // 下载用的存储文件名
	CreatedAt time.Time `json:"created_at"`
}

type taskResp struct {
	ID          uint             `json:"id"`
	UserID      uint             `json:"user_id"`
	Name        string           `json:"name"`
	TargetType  string           `json:"target_type"`
	TargetValue string           `json:"target_value"`
	ActualValue string           `json:"actual_value"`
	Remarks     string           `json:"remarks"`
	Progress    int              `json:"progress"`
	UpdatedAt   *time.Time       `json:"updated_at"`
	Attachments []attachmentResp `json:"attachments"`
}

// loadTasksWithAttachments 查出某账号的全部任务，带附件和计算好的进度。
// 管理端详情和企业端自查共用，保证进度口径一致。
func loadTasksWithAttachments(db *gorm.DB, userID uint) ([]taskResp, error) {
	var tasks []models.Task
	if err := db.Preload("Attachments").
		Where("user_id = ?", userID).
		Order("id").
		Find(&tasks).Error; err != nil {
		return nil, err
	}

	resp := make([]taskResp, 0, len(tasks))
	for i := range tasks {
		t := &tasks[i]
		atts := make([]attachmentResp, 0, len(t.Attachments))
		for j := range t.Attachments {
			a := &t.Attachments[j]
			atts = append(atts, attachmentResp{
				ID:        a.ID,
				TaskID:    a.TaskID,
				Name:      a.Name,
				Path:      a.StoredName,
				CreatedAt: a.CreatedAt,
			})
		}
		resp = append(resp, taskResp{
			ID:          t.ID,
			UserID:      t.UserID,
			Name:        t.Name,
			TargetType:  t.TargetType,
			TargetValue: t.TargetValue,
			ActualValue: t.ActualValue,
			Remarks:     t.Remarks,
			Progress:    util.Progress(t.TargetType, t.TargetValue, t.ActualValue),
			UpdatedAt:   t.UpdatedAt,
			Attachments: atts,
		})
	}
	return resp, nil
}

// GetTasks 返回当前企业自己的任务列表
func (h *ReportHandler) GetTasks(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "未登录")
		return
	}

	tasks, err := loadTasksWithAttachments(h.DB, user.ID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询任务失败")
		return
	}

	util.Success(c, util.Response{
		"tasks": tasks,
	})
}

// ---------- 批量填报 ----------

type reportItem struct {
	TaskID              uint        `json:"taskId"`
	ActualValue         interface{} `json:"actualValue"` // 前端可能传字符串或数字
	Remarks             string      `json:"remarks"`
	DeleteAttachmentIDs []uint      `json:"deleteAttachmentIds"`
}

// valueToString 把 JSON 里的实际完成值统一成文本存储
func valueToString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// SaveAll 批量保存填报数据。multipart 表单：
//   - data：JSON 数组 [{taskId, actualValue, remarks, deleteAttachmentIds}]
//   - files_<taskId>：对应任务新上传的附件，可多个
//
// 所有更新在一个事务里提交，要么全部生效要么全部回滚。
// 更新始终带 user_id 条件，别人的任务 id 传进来只会悄悄落空，不会报错。
func (h *ReportHandler) SaveAll(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "未登录")
		return
	}

	dataStr := c.PostForm("data")
	if dataStr == "" {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "参数错误")
		return
	}

	var items []reportItem
	if err := json.Unmarshal([]byte(dataStr), &items); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "参数错误")
		return
	}

	// 取出自己名下任务的目标类型，先把实际值全部校验一遍再动数据库
	var ownTasks []models.Task
	if err := h.DB.Select("id", "target_type").
		Where("user_id = ?", user.ID).
		Find(&ownTasks).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询任务失败")
		return
	}
	targetTypes := make(map[uint]string, len(ownTasks))
	for i := range ownTasks {
		targetTypes[ownTasks[i].ID] = ownTasks[i].TargetType
	}

	for _, item := range items {
		targetType, mine := targetTypes[item.TaskID]
		if !mine {
			// 不属于自己的任务不校验，后面的 UPDATE 也不会命中
			continue
		}
		if err := util.ValidateActualValue(targetType, valueToString(item.ActualValue)); err != nil {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "实际完成值格式不正确")
			return
		}
	}

	form, err := c.MultipartForm()
	if err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "参数错误")
		return
	}

	// 先把上传文件落盘，事务失败时再清理
	type savedFile struct {
		taskID     uint
		name       string
		storedName string
	}
	var saved []savedFile

	cleanup := func() {
		for _, f := range saved {
			_ = os.Remove(filepath.Join(h.UploadDir, f.storedName))
		}
	}

	if err := os.MkdirAll(h.UploadDir, 0o755); err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "创建上传目录失败")
		return
	}

	for _, item := range items {
		files := form.File[fmt.Sprintf("files_%d", item.TaskID)]
		for _, fh := range files {
			storedName, err := h.saveUploadedFile(c, fh)
			if err != nil {
				cleanup()
				util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "保存上传文件失败")
				return
			}
			saved = append(saved, savedFile{
				taskID:     item.TaskID,
				name:       filepath.Base(fh.Filename),
				storedName: storedName,
			})
		}
	}

	now := time.Now()
	var removedFiles []string
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		for _, item := range items {
			res := tx.Model(&models.Task{}).
				Where("id = ? AND user_id = ?", item.TaskID, user.ID).
				Updates(map[string]interface{}{
					"actual_value": valueToString(item.ActualValue),
					"remarks":      item.Remarks,
					"updated_at":   now,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				// 任务不存在或不属于当前账号，跳过（包括它声称的附件操作）
				continue
			}

			if len(item.DeleteAttachmentIDs) > 0 {
				var names []string
				if err := tx.Model(&models.Attachment{}).
					Where("id IN ? AND task_id = ?", item.DeleteAttachmentIDs, item.TaskID).
					Pluck("stored_name", &names).Error; err != nil {
					return err
				}
				if err := tx.Where("id IN ? AND task_id = ?", item.DeleteAttachmentIDs, item.TaskID).
					Delete(&models.Attachment{}).Error; err != nil {
					return err
				}
				removedFiles = append(removedFiles, names...)
			}

			for _, f := range saved {
				if f.taskID != item.TaskID {
					continue
				}
				att := models.Attachment{
					TaskID:     item.TaskID,
					Name:       f.name,
					StoredName: f.storedName,
				}
				if err := tx.Create(&att).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		cleanup()
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "保存失败，请重试")
		return
	}

	// 提交成功后再清理被移除附件的磁盘文件
	for _, name := range removedFiles {
		_ = os.Remove(filepath.Join(h.UploadDir, name))
	}

	util.Success(c, util.Response{
		"message": "保存成功",
	})
}

// saveUploadedFile 把上传文件写入上传目录，返回生成的存储文件名。
// 文件名用 uuid 前缀保证全局唯一，不受用户输入影响。
func (h *ReportHandler) saveUploadedFile(c *gin.Context, fh *multipart.FileHeader) (string, error) {
	storedName := uuid.New().String() + "-" + filepath.Base(fh.Filename)
	dst := filepath.Join(h.UploadDir, storedName)
	if err := c.SaveUploadedFile(fh, dst); err != nil {
		return "", err
	}
	return storedName, nil
}
