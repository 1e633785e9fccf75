package repository

import (
	"context"

	"collaborative-sketch/internal/domain"
)

// RoomRepository 定义房间数据的只读检索操作。
// 房间由外部的 CRUD 服务创建和维护，本子系统不写入。
type RoomRepository interface {
	// FindByID 根据房间 ID 查找房间。
	// 房间不存在时返回 ErrRoomNotFound。
	FindByID(ctx context.Context, id uint) (*domain.Room, error)

	// FindBySlug 根据唯一别名查找房间。
	// 房间不存在时返回 ErrRoomNotFound。
	FindBySlug(ctx context.Context, slug string) (*domain.Room, error)

	// Exists 检查房间是否存在。
	Exists(ctx context.Context, id uint) (bool, error)
}
