package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"collaborative-sketch/internal/domain"
	"collaborative-sketch/internal/repository"
)

// GormRoomRepository 是 RoomRepository 接口的 GORM 实现。
// 房间表由外部的 CRUD 服务写入，这里只做查询。
type GormRoomRepository struct {
	db *gorm.DB
}

// NewGormRoomRepository 创建 GormRoomRepository 实例
func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	if db == nil {
		panic("database connection cannot be nil for GormRoomRepository")
	}
	return &GormRoomRepository{db: db}
}

// FindByID 实现根据房间 ID 查找房间
func (r *GormRoomRepository) FindByID(ctx context.Context, id uint) (*domain.Room, error) {
	var room domain.Room
	err := r.db.WithContext(ctx).First(&room, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find room by id %d: %w", id, err)
	}
	return &room, nil
}

// FindBySlug 实现根据唯一别名查找房间
func (r *GormRoomRepository) FindBySlug(ctx context.Context, slug string) (*domain.Room, error) {
	var room domain.Room
	err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find room by slug %q: %w", slug, err)
	}
	return &room, nil
}

// Exists 实现检查房间是否存在
func (r *GormRoomRepository) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Room{}).Where("id = ?", id).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("gorm: count rooms by id %d: %w", id, err)
	}
	return count > 0, nil
}
