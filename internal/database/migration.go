package database

import (
	"fmt"
	"time"

	"github.com/guoanl/EMS/internal/models"

	"gorm.io/gorm"
)

// schemaMigration 记录已执行过的迁移版本
type schemaMigration struct {
	Version   string `gorm:"primaryKey;size:64"`
	AppliedAt time.Time
}

type migration struct {
	version string
	run     func(tx *gorm.DB) error
}

// 迁移按版本号顺序执行，每个版本只执行一次，启动时重复执行是幂等的。
// 新的结构变更追加到列表末尾，不修改已发布的版本。
var migrations = []migration{
	{
		version: "v1_initial_schema",
		run: func(tx *gorm.DB) error {
			return tx.AutoMigrate(
				&models.User{},
				&models.Task{},
				&models.Attachment{},
				&models.AuditLog{},
			)
		},
	},
	{
		// 早期版本的 tasks 表没有备注列
		version: "v2_task_remarks",
		run: func(tx *gorm.DB) error {
			if tx.Migrator().HasColumn(&models.Task{}, "remarks") {
				return nil
			}
			return tx.Migrator().AddColumn(&models.Task{}, "Remarks")
		},
	},
}

// Migrate applies pending schema migrations in order, recording each
// applied version so reruns are no-ops.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&schemaMigration{}); err != nil {
		return fmt.Errorf("migrate schema table: %w", err)
	}

	for _, m := range migrations {
		var count int64
		if err := db.Model(&schemaMigration{}).
			Where("version = ?", m.version).
			Count(&count).Error; err != nil {
			return fmt.Errorf("check migration %s: %w", m.version, err)
		}
		if count > 0 {
			continue
		}

		err := db.Transaction(func(tx *gorm.DB) error {
			if err := m.run(tx); err != nil {
				return err
			}
			return tx.Create(&schemaMigration{Version: m.version, AppliedAt: time.Now()}).Error
		})
		if err != nil {
			return fmt.Errorf("apply migration %s: %w", m.version, err)
		}
	}
	return nil
}
