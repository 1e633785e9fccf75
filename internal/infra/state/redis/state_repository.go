package redisstate

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"collaborative-sketch/internal/domain"
)

// historyCacheLen 是每个房间最近事件缓存保留的最大条数。
// 大于回放窗口 (50)，给后台修剪留出余量。
const historyCacheLen = 100

// RedisStateRepository 是 StateRepository 接口的 Redis 实现
type RedisStateRepository struct {
	client    *redis.Client
	keyPrefix string // Redis key 前缀，方便多环境共用实例
}

// NewRedisStateRepository 创建 RedisStateRepository 实例
func NewRedisStateRepository(client *redis.Client, keyPrefix string) *RedisStateRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisStateRepository")
	}
	if keyPrefix == "" {
		keyPrefix = "cs:" // 默认前缀 "cs:" (collaborative-sketch)
	}
	return &RedisStateRepository{client: client, keyPrefix: keyPrefix}
}

// --- Key Generation Helpers ---

func (r *RedisStateRepository) roomSeqKey(roomID uint) string {
	return fmt.Sprintf("%sroom:%d:seq", r.keyPrefix, roomID)
}

func (r *RedisStateRepository) roomHistoryKey(roomID uint) string {
	return fmt.Sprintf("%sroom:%d:events", r.keyPrefix, roomID)
}

func (r *RedisStateRepository) activeRoomsKey() string {
	return r.keyPrefix + "rooms:active"
}

// --- StateRepository Interface Implementation ---

// NextSeq 原子地分配指定房间的下一个序列号。
// INCR 保证同一 (roomID, seq) 对至多被分配一次。
func (r *RedisStateRepository) NextSeq(ctx context.Context, roomID uint) (uint64, error) {
	key := r.roomSeqKey(roomID)
	seq, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: failed to allocate next seq for room %d on key %s: %w", roomID, key, err)
	}
	return uint64(seq), nil
}

// AdvanceSeqTo 将房间的序列号计数器推进到不小于 floor。
// 读改写之间存在窗口，并发时最坏情况是一次额外的唯一约束冲突重试。
func (r *RedisStateRepository) AdvanceSeqTo(ctx context.Context, roomID uint, floor uint64) error {
	key := r.roomSeqKey(roomID)
	currentStr, err := r.client.Get(ctx, key).Result()
	current := uint64(0)
	if err != nil && err != redis.Nil {
		return fmt.Errorf("redis: failed to read seq for room %d on key %s: %w", roomID, key, err)
	}
	if err == nil {
		current, _ = strconv.ParseUint(currentStr, 10, 64)
	}
	if floor <= current {
		return nil
	}
	if err := r.client.Set(ctx, key, strconv.FormatUint(floor, 10), 0).Err(); err != nil {
		return fmt.Errorf("redis: failed to advance seq for room %d on key %s: %w", roomID, key, err)
	}
	return nil
}

// PushEventToHistory 将一条事件追加到房间的最近事件缓存并保持缓存长度。
func (r *RedisStateRepository) PushEventToHistory(ctx context.Context, roomID uint, event domain.Event) error {
	key := r.roomHistoryKey(roomID)
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: failed to marshal event for history (room %d, seq %d): %w", roomID, event.Seq, err)
	}
	pipe := r.client.Pipeline()
	pipe.RPush(ctx, key, string(eventBytes))
	pipe.LTrim(ctx, key, -historyCacheLen, -1)
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("redis: failed to push event to history for room %d on key %s: %w", roomID, key, err)
	}
	return nil
}

// RecentEvents 从缓存获取指定房间最近的事件，最新的在前。
// 列表在 Redis 中按追加顺序存储，这里倒序后返回。
func (r *RedisStateRepository) RecentEvents(ctx context.Context, roomID uint, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	key := r.roomHistoryKey(roomID)
	eventStrs, err := r.client.LRange(ctx, key, int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to get recent events for room %d from %s: %w", roomID, key, err)
	}
	events := make([]domain.Event, 0, len(eventStrs))
	for i := len(eventStrs) - 1; i >= 0; i-- {
		var event domain.Event
		if err := json.Unmarshal([]byte(eventStrs[i]), &event); err == nil {
			events = append(events, event)
		} else {
			logrus.Warnf("redis: failed to unmarshal event from history for room %d: %v, data: %s", roomID, err, eventStrs[i])
		}
	}
	return events, nil
}

// RebuildHistory 用给定的事件序列（最旧在前）原子地重建房间的缓存。
func (r *RedisStateRepository) RebuildHistory(ctx context.Context, roomID uint, events []domain.Event) error {
	key := r.roomHistoryKey(roomID)
	values := make([]interface{}, 0, len(events))
	for _, event := range events {
		eventBytes, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("redis: failed to marshal event for rebuild (room %d, seq %d): %w", roomID, event.Seq, err)
		}
		values = append(values, string(eventBytes))
	}
	// DEL + RPUSH + LTRIM 在一个事务管道中执行，避免读到半重建的列表
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, key)
	if len(values) > 0 {
		pipe.RPush(ctx, key, values...)
		pipe.LTrim(ctx, key, -historyCacheLen, -1)
	}
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("redis: failed to rebuild history for room %d on key %s: %w", roomID, key, err)
	}
	return nil
}

// TrimHistory 将房间的最近事件缓存修剪到固定长度。
func (r *RedisStateRepository) TrimHistory(ctx context.Context, roomID uint) error {
	key := r.roomHistoryKey(roomID)
	if err := r.client.LTrim(ctx, key, -historyCacheLen, -1).Err(); err != nil {
		return fmt.Errorf("redis: failed to trim history for room %d on key %s: %w", roomID, key, err)
	}
	return nil
}

// MarkRoomActive 将房间记入活跃集合，供后台巡检任务消费。
func (r *RedisStateRepository) MarkRoomActive(ctx context.Context, roomID uint) error {
	key := r.activeRoomsKey()
	pipe := r.client.Pipeline()
	pipe.SAdd(ctx, key, strconv.FormatUint(uint64(roomID), 10))
	pipe.Expire(ctx, key, 24*time.Hour)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("redis: failed to mark room %d active on key %s: %w", roomID, key, err)
	}
	return nil
}

// DrainActiveRooms 返回并清空活跃房间集合。
func (r *RedisStateRepository) DrainActiveRooms(ctx context.Context) ([]uint, error) {
	key := r.activeRoomsKey()
	// GETDEL 语义：先取成员再删除整个集合
	pipe := r.client.TxPipeline()
	membersCmd := pipe.SMembers(ctx, key)
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis: failed to drain active rooms from %s: %w", key, err)
	}
	members, err := membersCmd.Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to read active room members from %s: %w", key, err)
	}
	roomIDs := make([]uint, 0, len(members))
	for _, member := range members {
		id, parseErr := strconv.ParseUint(member, 10, 64)
		if parseErr != nil {
			logrus.Warnf("redis: skipping malformed active room id %q: %v", member, parseErr)
			continue
		}
		roomIDs = append(roomIDs, uint(id))
	}
	return roomIDs, nil
}

// CheckRateLimit 检查给定 key 的请求频率是否超限，并递增计数。
func (r *RedisStateRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	// INCR + EXPIRE 放入 Pipeline 减少网络往返
	pipe := r.client.Pipeline()
	incrCmd := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("redis: pipeline failed for rate limit check on key %s: %w", key, err)
	}
	count, err := incrCmd.Result()
	if err != nil {
		return false, fmt.Errorf("redis: failed to get incr result for rate limit on key %s: %w", key, err)
	}
	return count > int64(limit), nil
}
