package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// 任务类型常量
const (
	// TypeHistoryRehydrate 用持久化日志重建某个房间的最近事件缓存
	TypeHistoryRehydrate = "history:rehydrate"
	// TypeHistorySweep 周期性修剪活跃房间的最近事件缓存
	TypeHistorySweep = "history:sweep"
)

// HistoryRehydratePayload 定义缓存补水任务的数据结构
type HistoryRehydratePayload struct {
	RoomID uint `json:"roomId"`
}

// NewHistoryRehydrateTask 创建一个缓存补水任务
func NewHistoryRehydrateTask(roomID uint) (*asynq.Task, error) {
	payload, err := json.Marshal(HistoryRehydratePayload{RoomID: roomID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeHistoryRehydrate, payload), nil
}

// NewHistorySweepTask 创建一个周期性缓存巡检任务（无负载）
func NewHistorySweepTask() *asynq.Task {
	return asynq.NewTask(TypeHistorySweep, nil)
}
