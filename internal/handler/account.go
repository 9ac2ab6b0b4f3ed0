package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/guoanl/EMS/internal/models"
	"github.com/guoanl/EMS/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AccountHandler 负责管理员侧的企业账号管理接口。
// 开户、改户都把账号和它的任务集当成一个整体，在一个事务里完成。
type AccountHandler struct {
	DB        *gorm.DB
	UploadDir string
	PageSize  int
}

// NewAccountHandler 构造函数
func NewAccountHandler(db *gorm.DB, uploadDir string, pageSize int) *AccountHandler {
	if pageSize <= 0 {
		pageSize = 10
	}
	return &AccountHandler{
		DB:        db,
		UploadDir: uploadDir,
		PageSize:  pageSize,
	}
}

// ---------- 请求结构 ----------

type taskDefReq struct {
	Name        string `json:"name" binding:"required"`
	TargetType  string `json:"target_type" binding:"required"`
	TargetValue string `json:"target_value" binding:"required"`
}

type createAccountReq struct {
	Username       string       `json:"username" binding:"required"`
	Password       string       `json:"password" binding:"required"`
	EnterpriseName string       `json:"enterprise_name" binding:"required"`
	Tasks          []taskDefReq `json:"tasks"`
}

type updateAccountReq struct {
	Username       string       `json:"username" binding:"required"`
	Password       string       `json:"password"` // 为空表示不改密码
	EnterpriseName string       `json:"enterprise_name" binding:"required"`
	Tasks          []taskDefReq `json:"tasks"`
}

type resetPasswordReq struct {
	Password string `json:"password" binding:"required"`
}

// validateTaskDefs 在落库之前检查全部任务定义，避免写了一半才发现格式不对
func validateTaskDefs(defs []taskDefReq) error {
	for i := range defs {
		d := &defs[i]
		d.Name = strings.TrimSpace(d.Name)
		if err := util.ValidateTaskName(d.Name); err != nil {
			return err
		}
		if err := util.ValidateTargetValue(d.TargetType, d.TargetValue); err != nil {
			return err
		}
	}
	return nil
}

// replaceTasks 替换某个账号的全部任务：旧的删掉，新的插入。
// 必须在调用方的事务里执行，附件行由外键级联删除。
func replaceTasks(tx *gorm.DB, userID uint, defs []taskDefReq) error {
	if err := tx.Where("user_id = ?", userID).Delete(&models.Task{}).Error; err != nil {
		return err
	}
	for _, d := range defs {
		task := models.Task{
			UserID:      userID,
			Name:        d.Name,
			TargetType:  d.TargetType,
			TargetValue: d.TargetValue,
		}
		if err := tx.Create(&task).Error; err != nil {
			return err
		}
	}
	return nil
}

// ---------- 接口 ----------

// ListAccounts 分页列出企业账号
func (h *AccountHandler) ListAccounts(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}

	var total int64
	if err := h.DB.Model(&models.User{}).
		Where("role = ?", models.RoleEnterprise).
		Count(&total).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询账号失败")
		return
	}

	var users []models.User
	if err := h.DB.
		Where("role = ?", models.RoleEnterprise).
		Order("id").
		Limit(h.PageSize).
		Offset((page - 1) * h.PageSize).
		Find(&users).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询账号失败")
		return
	}

	accounts := make([]gin.H, 0, len(users))
	for i := range users {
		u := &users[i]
		accounts = append(accounts, gin.H{
			"id":              u.ID,
			"username":        u.Username,
			"enterprise_name": u.EnterpriseName,
		})
	}

	util.Success(c, util.Response{
		"accounts": accounts,
		"total":    total,
	})
}

// GetAccount 返回账号资料和任务定义，用于编辑页回显
func (h *AccountHandler) GetAccount(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "ID 不合法")
		return
	}

	var user models.User
	if err := h.DB.First(&user, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			util.Error(c, http.StatusNotFound, util.CodeNotFound, "未找到该账号信息")
		} else {
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询账号失败")
		}
		return
	}

	var tasks []models.Task
	if err := h.DB.Where("user_id = ?", user.ID).Order("id").Find(&tasks).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询任务失败")
		return
	}

	defs := make([]gin.H, 0, len(tasks))
	for i := range tasks {
		t := &tasks[i]
		defs = append(defs, gin.H{
			"id":           t.ID,
			"name":         t.Name,
			"target_type":  t.TargetType,
			"target_value": t.TargetValue,
		})
	}

	util.Success(c, util.Response{
		"id":              user.ID,
		"username":        user.Username,
		"enterprise_name": user.EnterpriseName,
		"tasks":           defs,
	})
}

// CreateAccount 开设企业账号并下达任务，一个事务内完成，不留孤儿账号
func (h *AccountHandler) CreateAccount(c *gin.Context) {
	var req createAccountReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "参数错误")
		return
	}

	req.Username = strings.TrimSpace(req.Username)

	if err := validateTaskDefs(req.Tasks); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "任务目标值格式不正确")
		return
	}

	var count int64
	if err := h.DB.Model(&models.User{}).
		Where("username = ?", req.Username).
		Count(&count).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询账号失败")
		return
	}
	if count > 0 {
		util.Error(c, http.StatusBadRequest, util.CodeConflict, "账号名已存在")
		return
	}

	hash, err := util.HashPassword(req.Password)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "密码加密失败")
		return
	}

	user := models.User{
		Username:       req.Username,
		PasswordHash:   hash,
		Role:           models.RoleEnterprise,
		EnterpriseName: req.EnterpriseName,
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		for _, d := range req.Tasks {
			task := models.Task{
				UserID:      user.ID,
				Name:        d.Name,
				TargetType:  d.TargetType,
				TargetValue: d.TargetValue,
			}
			if err := tx.Create(&task).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "创建账号失败")
		return
	}

	util.Success(c, util.Response{
		"id": user.ID,
	})
}

// UpdateAccount 修改账号资料并整体替换任务集（密码只在传了的时候改）
func (h *AccountHandler) UpdateAccount(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "ID 不合法")
		return
	}

	var req updateAccountReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "参数错误")
		return
	}

	req.Username = strings.TrimSpace(req.Username)

	if err := validateTaskDefs(req.Tasks); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "任务目标值格式不正确")
		return
	}

	updates := map[string]interface{}{
		"username":        req.Username,
		"enterprise_name": req.EnterpriseName,
	}
	if req.Password != "" {
		hash, err := util.HashPassword(req.Password)
		if err != nil {
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "密码加密失败")
			return
		}
		updates["password_hash"] = hash
	}

	notFound := false
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			notFound = true
			return gorm.ErrRecordNotFound
		}
		return replaceTasks(tx, uint(id), req.Tasks)
	})
	if err != nil {
		if notFound {
			util.Error(c, http.StatusNotFound, util.CodeNotFound, "未找到该账号信息")
		} else {
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "更新账号失败")
		}
		return
	}

	util.Success(c, util.Response{
		"message": "更新成功",
	})
}

// ResetPassword 管理员重置企业账号密码
func (h *AccountHandler) ResetPassword(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "ID 不合法")
		return
	}

	var req resetPasswordReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "参数错误")
		return
	}

	hash, err := util.HashPassword(req.Password)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "密码加密失败")
		return
	}

	res := h.DB.Model(&models.User{}).Where("id = ?", id).Update("password_hash", hash)
	if res.Error != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "重置密码失败")
		return
	}
	if res.RowsAffected == 0 {
		util.Error(c, http.StatusNotFound, util.CodeNotFound, "未找到该账号信息")
		return
	}

	util.Success(c, util.Response{
		"message": "密码重置成功",
	})
}

// DeleteAccount 删除企业账号，任务和附件记录由外键级联删除。
// 幂等：删除不存在的 id 也返回成功。
func (h *AccountHandler) DeleteAccount(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "ID 不合法")
		return
	}

	// 先收集该账号名下的附件文件名，删完数据后清理磁盘文件
	var storedNames []string
	if err := h.DB.Model(&models.Attachment{}).
		Joins("JOIN tasks ON tasks.id = attachments.task_id").
		Where("tasks.user_id = ?", id).
		Pluck("attachments.stored_name", &storedNames).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询附件失败")
		return
	}

	if err := h.DB.Delete(&models.User{}, id).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "删除账号失败")
		return
	}

	// 磁盘文件清理失败不影响结果，孤儿文件不会再被任何记录引用
	for _, name := range storedNames {
		_ = os.Remove(filepath.Join(h.UploadDir, name))
	}

	util.Success(c, util.Response{
		"message": "删除成功",
	})
}
