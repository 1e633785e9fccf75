package setup

import (
	"fmt"

	"gorm.io/gorm"

	"collaborative-sketch/internal/domain"
)

// MigrateDB 迁移事件日志相关的表结构。
// rooms 表由外部的 CRUD 服务拥有，这里的 AutoMigrate 只保证
// 本子系统启动时表和索引存在，不会修改已有数据。
func MigrateDB(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("cannot migrate database with nil DB connection")
	}
	err := db.AutoMigrate(
		&domain.Room{},
		&domain.Event{},
	)
	if err != nil {
		return fmt.Errorf("failed to auto-migrate tables: %w", err)
	}
	return nil
}
