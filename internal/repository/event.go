package repository

import (
	"context"
	"encoding/json"

	"collaborative-sketch/internal/domain"
)

// EventLog 是房间事件日志的追加与回放接口。
//
// Append 为指定房间分配下一个序列号并在返回前完成持久化；
// 同一房间的 (roomID, seq) 组合永不重复。后端不可达时返回
// ErrStoreUnavailable（或其包装）。
//
// Recent 返回该房间最近的事件快照，最新的在前，最多 limit 条。
// 这是一次性的有限快照，不是订阅。
type EventLog interface {
	Append(ctx context.Context, roomID, userID uint, payload json.RawMessage) (*domain.Event, error)
	Recent(ctx context.Context, roomID uint, limit int) ([]domain.Event, error)
}

// EventRepository 定义事件记录在持久化存储（数据库）中的操作。
type EventRepository interface {
	// Save 持久化一条事件记录。违反 (room_id, seq) 唯一约束时
	// 返回 ErrDuplicateEntry。
	Save(ctx context.Context, event *domain.Event) error

	// RecentByRoom 按序列号降序返回指定房间最近的事件，最多 limit 条。
	RecentByRoom(ctx context.Context, roomID uint, limit int) ([]domain.Event, error)

	// CountByRoom 返回指定房间的事件总数，用于后台巡检。
	CountByRoom(ctx context.Context, roomID uint) (int64, error)

	// MaxSeqByRoom 返回指定房间已持久化的最大序列号，
	// 房间没有事件时返回 0。用于序列号计数器的灾后恢复。
	MaxSeqByRoom(ctx context.Context, roomID uint) (uint64, error)
}
