package models

import "time"

// 考核目标类型
const (
	TargetNumber  = "number"
	TargetBoolean = "boolean"
)

// 布尔型目标/完成值的规范字面量
const (
	BoolYes = "是"
	BoolNo  = "否"
)

// Task 表示一条考核任务：管理员下达目标值，企业填报实际完成值。
// 目标值和实际值都按文本存储，按 TargetType 解释为数值或 是/否。
type Task struct {
	ID          uint       `gorm:"primaryKey"`
	UserID      uint       `gorm:"index;not null"`
	Name        string     `gorm:"size:255;not null"`
	TargetType  string     `gorm:"size:16;not null"` // number / boolean
	TargetValue string     `gorm:"size:64;not null"`
	ActualValue string     `gorm:"size:64"` // 首次填报前为空
	Remarks     string     `gorm:"type:text"`
	// 最近填报时间，未填报为 NULL；只由填报流程写入，关掉 gorm 的自动更新
	UpdatedAt *time.Time `gorm:"index;autoUpdateTime:false"`
	CreatedAt   time.Time

	Attachments []Attachment `gorm:"constraint:OnDelete:CASCADE"`
}
