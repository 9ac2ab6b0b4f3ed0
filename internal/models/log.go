package models

import "time"

// AuditLog records authenticated API calls for auditing.
type AuditLog struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"index;not null"`
	Method    string `gorm:"size:16"`
	Path      string `gorm:"size:255"`
	IP        string `gorm:"size:64"`
	UserAgent string `gorm:"size:255"`
	CreatedAt time.Time
}
