package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"collaborative-sketch/internal/domain"
	"collaborative-sketch/internal/repository"
	"collaborative-sketch/internal/tasks"
)

// TaskEnqueuer 抽象了后台任务的入队，由 asynq.Client 实现。
type TaskEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// EventLogService 是 repository.EventLog 的生产实现：
// Redis 负责序列号分配和最近事件缓存，MySQL 是持久化的事件日志。
// 持久化成功之后缓存才会更新，因此客户端能观察到的事件一定可回放。
type EventLogService struct {
	eventRepo repository.EventRepository
	stateRepo repository.StateRepository
	enqueuer  TaskEnqueuer // 可为 nil，缓存补水退化为无操作
}

// NewEventLogService 创建 EventLogService 实例
func NewEventLogService(eventRepo repository.EventRepository, stateRepo repository.StateRepository, enqueuer TaskEnqueuer) *EventLogService {
	if eventRepo == nil || stateRepo == nil {
		panic("event and state repositories must be non-nil for EventLogService")
	}
	return &EventLogService{
		eventRepo: eventRepo,
		stateRepo: stateRepo,
		enqueuer:  enqueuer,
	}
}

// Append 分配下一个序列号并在返回前完成持久化。
// 序列号由 Redis INCR 分配，(room_id, seq) 上的数据库唯一索引兜底：
// 计数器落后时（Redis 数据丢失）会从日志恢复计数器并重试一次。
func (s *EventLogService) Append(ctx context.Context, roomID, userID uint, payload json.RawMessage) (*domain.Event, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "user_id": userID})

	event, err := s.appendOnce(ctx, roomID, userID, payload)
	if err != nil && errors.Is(err, repository.ErrDuplicateEntry) {
		// 序列号计数器落后于持久化日志：推进计数器后重试一次
		logCtx.Warn("Sequence counter behind durable log, recovering")
		if recoverErr := s.recoverSeqCounter(ctx, roomID); recoverErr != nil {
			logCtx.WithError(recoverErr).Error("Failed to recover sequence counter")
			return nil, ErrStoreUnavailable
		}
		event, err = s.appendOnce(ctx, roomID, userID, payload)
	}
	if err != nil {
		if errors.Is(err, ErrInvalidPayload) {
			return nil, err
		}
		logCtx.WithError(err).Error("Failed to append event")
		return nil, ErrStoreUnavailable
	}

	// 持久化已完成，缓存和活跃标记失败只降级不报错。
	// 但一次推送失败会在缓存列表里留下缺口，让后台任务重建来修复。
	if cacheErr := s.stateRepo.PushEventToHistory(ctx, roomID, *event); cacheErr != nil {
		logCtx.WithError(cacheErr).Warn("Failed to push event to history cache")
		s.enqueueRehydrate(roomID, logCtx)
	}
	if markErr := s.stateRepo.MarkRoomActive(ctx, roomID); markErr != nil {
		logCtx.WithError(markErr).Warn("Failed to mark room active")
	}

	return event, nil
}

func (s *EventLogService) appendOnce(ctx context.Context, roomID, userID uint, payload json.RawMessage) (*domain.Event, error) {
	seq, err := s.stateRepo.NextSeq(ctx, roomID)
	if err != nil {
		return nil, err
	}
	event := &domain.Event{
		RoomID:    roomID,
		Seq:       seq,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
	}
	if err := event.SetPayload(payload); err != nil {
		return nil, ErrInvalidPayload
	}
	if err := s.eventRepo.Save(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *EventLogService) recoverSeqCounter(ctx context.Context, roomID uint) error {
	maxSeq, err := s.eventRepo.MaxSeqByRoom(ctx, roomID)
	if err != nil {
		return err
	}
	return s.stateRepo.AdvanceSeqTo(ctx, roomID, maxSeq)
}

// Recent 返回指定房间最近的事件快照，最新的在前。
// 优先走 Redis 缓存，但只有当缓存能证明自己是日志的一个完整后缀
// 且覆盖请求的条数时才直接返回；否则回落到数据库并异步触发缓存补水。
func (s *EventLogService) Recent(ctx context.Context, roomID uint, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	logCtx := logrus.WithField("room_id", roomID)

	cached, err := s.stateRepo.RecentEvents(ctx, roomID, limit)
	if err != nil {
		logCtx.WithError(err).Warn("History cache unavailable, falling back to durable log")
	} else if cacheCovers(cached, limit) {
		return cached, nil
	}

	events, err := s.eventRepo.RecentByRoom(ctx, roomID, limit)
	if err != nil {
		logCtx.WithError(err).Error("Failed to read recent events from durable log")
		return nil, ErrStoreUnavailable
	}
	if len(events) > 0 {
		s.enqueueRehydrate(roomID, logCtx)
	}
	return events, nil
}

// cacheCovers 判断缓存快照（最新在前）能否直接作为权威结果返回：
// 序列号必须连续（推送失败会留下缺口），并且要么条数达到 limit，
// 要么最旧一条的序列号为 1（缓存已包含房间的全部历史）。
func cacheCovers(cached []domain.Event, limit int) bool {
	if len(cached) == 0 {
		return false
	}
	for i := 1; i < len(cached); i++ {
		if cached[i].Seq != cached[i-1].Seq-1 {
			return false
		}
	}
	return len(cached) >= limit || cached[len(cached)-1].Seq == 1
}

// enqueueRehydrate 请求后台任务用持久化日志重建该房间的缓存。
func (s *EventLogService) enqueueRehydrate(roomID uint, logCtx *logrus.Entry) {
	if s.enqueuer == nil {
		return
	}
	task, err := tasks.NewHistoryRehydrateTask(roomID)
	if err != nil {
		logCtx.WithError(err).Warn("Failed to build history rehydrate task")
		return
	}
	if _, err := s.enqueuer.Enqueue(task, asynq.Queue("low")); err != nil {
		logCtx.WithError(err).Warn("Failed to enqueue history rehydrate task")
	}
}
