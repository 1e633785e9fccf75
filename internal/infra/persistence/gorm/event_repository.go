package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"collaborative-sketch/internal/domain"
	"collaborative-sketch/internal/repository"
)

// GormEventRepository 是 EventRepository 接口的 GORM 实现
type GormEventRepository struct {
	db *gorm.DB
}

// NewGormEventRepository 创建 GormEventRepository 实例
func NewGormEventRepository(db *gorm.DB) *GormEventRepository {
	if db == nil {
		panic("database connection cannot be nil for GormEventRepository")
	}
	return &GormEventRepository{db: db}
}

// Save 实现持久化单条事件记录。
// (room_id, seq) 上的唯一索引保证同一序列号不会被写入两次。
func (r *GormEventRepository) Save(ctx context.Context, event *domain.Event) error {
	err := r.db.WithContext(ctx).Create(event).Error
	if err != nil {
		// MySQL 1062: 唯一约束冲突，映射为仓库层错误
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return fmt.Errorf("gorm: save event (room %d, seq %d): %w", event.RoomID, event.Seq, repository.ErrDuplicateEntry)
		}
		return fmt.Errorf("gorm: save event (room %d, seq %d): %w", event.RoomID, event.Seq, err)
	}
	return nil
}

// RecentByRoom 实现按序列号降序获取指定房间最近的事件。
func (r *GormEventRepository) RecentByRoom(ctx context.Context, roomID uint, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	var events []domain.Event
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("seq DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: recent events for room %d: %w", roomID, err)
	}
	return events, nil
}

// CountByRoom 实现获取指定房间的事件总数。
func (r *GormEventRepository) CountByRoom(ctx context.Context, roomID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Event{}).Where("room_id = ?", roomID).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("gorm: count events for room %d: %w", roomID, err)
	}
	return count, nil
}

// MaxSeqByRoom 实现获取指定房间已持久化的最大序列号。
func (r *GormEventRepository) MaxSeqByRoom(ctx context.Context, roomID uint) (uint64, error) {
	var maxSeq uint64
	// COALESCE 保证房间没有事件时返回 0 而不是 NULL 扫描错误
	err := r.db.WithContext(ctx).Model(&domain.Event{}).
		Where("room_id = ?", roomID).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&maxSeq).Error
	if err != nil {
		return 0, fmt.Errorf("gorm: max seq for room %d: %w", roomID, err)
	}
	return maxSeq, nil
}
