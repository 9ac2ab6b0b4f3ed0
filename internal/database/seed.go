package database

import (
	"fmt"

	"github.com/guoanl/EMS/internal/models"
	"github.com/guoanl/EMS/internal/util"

	"gorm.io/gorm"
)

// SeedAdmin 初始化内置管理员账号（admin/admin），已存在则什么都不做。
func SeedAdmin(db *gorm.DB) error {
	var user models.User
	err := db.Where("username = ?", "admin").First(&user).Error
	if err == nil {
		return nil
	}
	if err != gorm.ErrRecordNotFound {
		return fmt.Errorf("query admin: %w", err)
	}

	hash, err := util.HashPassword("admin")
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	admin := models.User{
		Username:       "admin",
		PasswordHash:   hash,
		Role:           models.RoleAdmin,
		EnterpriseName: "系统管理员",
	}
	if err := db.Create(&admin).Error; err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	return nil
}
