package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/guoanl/EMS/internal/models"
	"github.com/guoanl/EMS/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// 填报状态文案，和前端展示保持一致
const (
	statusReported    = "已填报"
	statusNotReported = "未填报"
)

// EnterpriseHandler 负责管理员侧的填报情况查询和导出。
type EnterpriseHandler struct {
	DB *gorm.DB
}

// NewEnterpriseHandler 构造函数
func NewEnterpriseHandler(db *gorm.DB) *EnterpriseHandler {
	return &EnterpriseHandler{DB: db}
}

type enterpriseOverview struct {
	ID             uint       `json:"id"`
	Username       string     `json:"username"`
	EnterpriseName string     `json:"enterprise_name"`
	LastReportedAt *time.Time `json:"last_reported_at"`
	Status         string     `json:"status"`
}

// listOverview 汇总每个企业账号的最近填报时间和填报状态：
// 任何任务填报过（updated_at 非空）即为已填报。
func (h *EnterpriseHandler) listOverview() ([]enterpriseOverview, error) {
	var users []models.User
	if err := h.DB.
		Where("role = ?", models.RoleEnterprise).
		Order("id").
		Find(&users).Error; err != nil {
		return nil, err
	}

	var tasks []models.Task
	if err := h.DB.Select("user_id", "updated_at").
		Where("updated_at IS NOT NULL").
		Find(&tasks).Error; err != nil {
		return nil, err
	}

	latest := make(map[uint]*time.Time, len(users))
	for i := range tasks {
		t := &tasks[i]
		if cur := latest[t.UserID]; cur == nil || t.UpdatedAt.After(*cur) {
			latest[t.UserID] = t.UpdatedAt
		}
	}

	rows := make([]enterpriseOverview, 0, len(users))
	for i := range users {
		u := &users[i]
		ov := enterpriseOverview{
			ID:             u.ID,
			Username:       u.Username,
			EnterpriseName: u.EnterpriseName,
			LastReportedAt: latest[u.ID],
			Status:         statusNotReported,
		}
		if ov.LastReportedAt != nil {
			ov.Status = statusReported
		}
		rows = append(rows, ov)
	}
	return rows, nil
}

// ListEnterprises 填报情况总览
func (h *EnterpriseHandler) ListEnterprises(c *gin.Context) {
	rows, err := h.listOverview()
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询填报情况失败")
		return
	}

	util.Success(c, util.Response{
		"enterprises": rows,
	})
}

// GetEnterpriseDetail 某个企业的全部任务明细，含附件和进度
func (h *EnterpriseHandler) GetEnterpriseDetail(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "ID 不合法")
		return
	}

	var user models.User
	if err := h.DB.First(&user, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			util.Error(c, http.StatusNotFound, util.CodeNotFound, "未找到该企业信息")
		} else {
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询企业失败")
		}
		return
	}

	tasks, err := loadTasksWithAttachments(h.DB, user.ID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询任务失败")
		return
	}

	util.Success(c, util.Response{
		"id":              user.ID,
		"username":        user.Username,
		"enterprise_name": user.EnterpriseName,
		"tasks":           tasks,
	})
}

// ExportXLSX 把填报情况总览和任务明细导出为 Excel
func (h *EnterpriseHandler) ExportXLSX(c *gin.Context) {
	rows, err := h.listOverview()
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询填报情况失败")
		return
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "填报情况"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "创建工作表失败")
		return
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{"账号", "企业名称", "任务", "目标类型", "目标值", "实际完成值", "进度(%)", "填报状态", "最近填报时间"}
	for i, hd := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, hd)
	}

	rowIdx := 2
	for _, ov := range rows {
		var tasks []models.Task
		if err := h.DB.Where("user_id = ?", ov.ID).Order("id").Find(&tasks).Error; err != nil {
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询任务失败")
			return
		}

		lastReported := ""
		if ov.LastReportedAt != nil {
			lastReported = ov.LastReportedAt.Format("2006-01-02 15:04:05")
		}

		if len(tasks) == 0 {
			f.SetCellValue(sheetName, fmt.Sprintf("A%d", rowIdx), ov.Username)
			f.SetCellValue(sheetName, fmt.Sprintf("B%d", rowIdx), ov.EnterpriseName)
			f.SetCellValue(sheetName, fmt.Sprintf("H%d", rowIdx), ov.Status)
			rowIdx++
			continue
		}

		for i := range tasks {
			t := &tasks[i]
			typeText := "数值"
			if t.TargetType == models.TargetBoolean {
				typeText = "是否"
			}
			values := []interface{}{
				ov.Username,
				ov.EnterpriseName,
				t.Name,
				typeText,
				t.TargetValue,
				t.ActualValue,
				util.Progress(t.TargetType, t.TargetValue, t.ActualValue),
				ov.Status,
				lastReported,
			}
			for col, val := range values {
				cell, _ := excelize.CoordinatesToCellName(col+1, rowIdx)
				f.SetCellValue(sheetName, cell, val)
			}
			rowIdx++
		}
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"enterprises_%s.xlsx\"",
		time.Now().Format("20060102")))

	if err := f.Write(c.Writer); err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "导出失败")
		return
	}
}
