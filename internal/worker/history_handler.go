package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"collaborative-sketch/internal/domain"
	"collaborative-sketch/internal/repository"
	"collaborative-sketch/internal/tasks"
)

// rehydrateLimit 是补水时从持久化日志取回的事件条数，
// 与 Redis 缓存的保留长度一致。
const rehydrateLimit = 100

// HistoryHandler 处理最近事件缓存的后台维护任务。
// 只操作缓存，持久化日志中的事件永不删除。
type HistoryHandler struct {
	eventRepo repository.EventRepository
	stateRepo repository.StateRepository
}

// NewHistoryHandler 创建 Handler 实例
func NewHistoryHandler(eventRepo repository.EventRepository, stateRepo repository.StateRepository) *HistoryHandler {
	return &HistoryHandler{eventRepo: eventRepo, stateRepo: stateRepo}
}

// ProcessRehydrate 用持久化日志重建某个房间的最近事件缓存。
// 实现 asynq.Handler 的处理函数签名。
func (h *HistoryHandler) ProcessRehydrate(ctx context.Context, t *asynq.Task) error {
	var payload tasks.HistoryRehydratePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logrus.WithError(err).Error("Failed to unmarshal history rehydrate payload")
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	logCtx := logrus.WithFields(logrus.Fields{"task_type": t.Type(), "room_id": payload.RoomID})
	logCtx.Info("Rehydrating history cache...")

	// RecentByRoom 返回最新在前，重建缓存需要最旧在前
	events, err := h.eventRepo.RecentByRoom(ctx, payload.RoomID, rehydrateLimit)
	if err != nil {
		return fmt.Errorf("failed to load recent events for room %d: %w", payload.RoomID, err)
	}
	oldestFirst := make([]domain.Event, len(events))
	for i, event := range events {
		oldestFirst[len(events)-1-i] = event
	}

	if err := h.stateRepo.RebuildHistory(ctx, payload.RoomID, oldestFirst); err != nil {
		return fmt.Errorf("failed to rebuild history cache for room %d: %w", payload.RoomID, err)
	}
	logCtx.WithField("events", len(oldestFirst)).Info("History cache rehydrated")
	return nil
}

// ProcessSweep 修剪自上次巡检以来有活动的房间的缓存。
func (h *HistoryHandler) ProcessSweep(ctx context.Context, t *asynq.Task) error {
	logCtx := logrus.WithField("task_type", t.Type())

	roomIDs, err := h.stateRepo.DrainActiveRooms(ctx)
	if err != nil {
		return fmt.Errorf("failed to drain active rooms: %w", err)
	}
	if len(roomIDs) == 0 {
		logCtx.Debug("No active rooms since last sweep")
		return nil
	}

	swept := 0
	for _, roomID := range roomIDs {
		if err := h.stateRepo.TrimHistory(ctx, roomID); err != nil {
			// 单个房间失败不中断整个巡检
			logCtx.WithError(err).WithField("room_id", roomID).Warn("Failed to trim history cache")
			continue
		}
		swept++
	}
	logCtx.WithFields(logrus.Fields{"rooms": len(roomIDs), "swept": swept}).Info("History sweep completed")
	return nil
}
