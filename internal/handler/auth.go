package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/guoanl/EMS/internal/middleware"
	"github.com/guoanl/EMS/internal/models"
	"github.com/guoanl/EMS/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AuthHandler 负责登录相关接口。
// 本系统没有自助注册，企业账号全部由管理员开设。
type AuthHandler struct {
	DB        *gorm.DB
	JWTSecret string
	TokenTTL  time.Duration
}

// NewAuthHandler 构造函数
func NewAuthHandler(db *gorm.DB, jwtSecret string, ttlHours int) *AuthHandler {
	if ttlHours <= 0 {
		ttlHours = 24
	}
	return &AuthHandler{
		DB:        db,
		JWTSecret: jwtSecret,
		TokenTTL:  time.Duration(ttlHours) * time.Hour,
	}
}

type loginReq struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 账号密码登录，成功返回 24 小时有效的 token
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "参数错误")
		return
	}

	req.Username = strings.TrimSpace(req.Username)

	var user models.User
	if err := h.DB.Where("username = ?", req.Username).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			// 账号不存在和密码错误返回同一个提示，不泄露账号是否存在
			util.Error(c, http.StatusUnauthorized, util.CodeAuth, "账号或密码错误")
		} else {
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询用户失败")
		}
		return
	}

	if !util.CheckPassword(req.Password, user.PasswordHash) {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "账号或密码错误")
		return
	}

	token, err := util.GenerateToken(h.JWTSecret, user.ID, user.Username, user.Role, user.EnterpriseName, h.TokenTTL)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "生成 token 失败")
		return
	}

	util.Success(c, util.Response{
		"token": token,
		"user": gin.H{
			"id":              user.ID,
			"username":        user.Username,
			"role":            user.Role,
			"enterprise_name": user.EnterpriseName,
		},
	})
}

// GetMe 返回当前登录用户信息（需要经过 AuthMiddleware）
func GetMe(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "未登录")
		return
	}

	util.Success(c, util.Response{
		"user": gin.H{
			"id":              user.ID,
			"username":        user.Username,
			"role":            user.Role,
			"enterprise_name": user.EnterpriseName,
			"created_at":      user.CreatedAt,
		},
	})
}
