package models

import "time"

// Attachment 表示填报时上传的佐证材料文件。
// StoredName 是磁盘上的实际文件名（uuid 前缀），全局唯一。
type Attachment struct {
	ID         uint      `gorm:"primaryKey"`
	TaskID     uint      `gorm:"index;not null"`
	Name       string    `gorm:"size:255;not null"` // 原始文件名，用于展示和下载
	StoredName string    `gorm:"size:255;uniqueIndex;not null"`
	CreatedAt  time.Time
}
