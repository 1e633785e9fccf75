package repository

import (
	"context"
	"time"

	"collaborative-sketch/internal/domain"
)

// StateRepository 定义与房间实时状态相关的操作，由 Redis 实现。
type StateRepository interface {
	// === 序列号 ===

	// NextSeq 原子地分配并返回指定房间的下一个序列号。
	// 序列号从 1 开始，严格递增，永不复用。
	NextSeq(ctx context.Context, roomID uint) (uint64, error)

	// AdvanceSeqTo 将房间的序列号计数器推进到不小于 floor。
	// 计数器落后于持久化日志时（例如 Redis 数据丢失后）由
	// 追加路径调用以恢复单调性。
	AdvanceSeqTo(ctx context.Context, roomID uint, floor uint64) error

	// === 最近事件缓存 ===

	// PushEventToHistory 将一条事件追加到房间的最近事件缓存，
	// 并把缓存修剪到固定长度。
	PushEventToHistory(ctx context.Context, roomID uint, event domain.Event) error

	// RecentEvents 从缓存返回指定房间最近的事件，最新的在前，
	// 最多 limit 条。缓存为空时返回空切片和 nil 错误。
	RecentEvents(ctx context.Context, roomID uint, limit int) ([]domain.Event, error)

	// RebuildHistory 用给定的事件序列（最旧在前）原子地重建房间的
	// 最近事件缓存。由后台补水任务调用。
	RebuildHistory(ctx context.Context, roomID uint, events []domain.Event) error

	// TrimHistory 将房间的最近事件缓存修剪到固定长度。
	TrimHistory(ctx context.Context, roomID uint) error

	// === 活跃房间集合（后台巡检用） ===

	// MarkRoomActive 将房间记入"自上次巡检以来有活动"的集合。
	MarkRoomActive(ctx context.Context, roomID uint) error

	// DrainActiveRooms 返回并清空活跃房间集合。
	DrainActiveRooms(ctx context.Context) ([]uint, error)

	// === 限流 ===

	// CheckRateLimit 检查给定 key 的请求频率是否超限，并递增计数。
	// 返回 true 表示超限。
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
