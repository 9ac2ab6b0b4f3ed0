package models

import "time"

// 用户角色，只有这两种
const (
	RoleAdmin      = "admin"
	RoleEnterprise = "enterprise"
)

// User represents a portal account: the built-in admin or an enterprise.
type User struct {
	ID             uint      `gorm:"primaryKey"`
	Username       string    `gorm:"size:64;uniqueIndex;not null"`
	PasswordHash   string    `gorm:"size:255;not null"`
	Role           string    `gorm:"size:16;index;not null"` // admin / enterprise
	EnterpriseName string    `gorm:"size:128"`               // 企业名称
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Tasks []Task `gorm:"constraint:OnDelete:CASCADE"`
}

// IsAdmin reports whether the account may use the admin surface.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
