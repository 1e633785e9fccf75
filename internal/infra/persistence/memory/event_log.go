// Package memory 提供事件日志的纯内存实现。
// 用于测试和无外部依赖的本地开发，不提供跨进程持久性。
package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"collaborative-sketch/internal/domain"
	"collaborative-sketch/internal/repository"
)

// EventLog 是 repository.EventLog 的内存实现。
// 每个房间持有独立的互斥锁，追加在房间内串行化。
type EventLog struct {
	mu    sync.Mutex
	rooms map[uint]*roomLog

	// unavailable 置位后所有 Append/Recent 返回 ErrStoreUnavailable，
	// 用于在测试中模拟后端故障。
	unavailable bool
}

type roomLog struct {
	mu     sync.Mutex
	nextID uint
	events []domain.Event
}

// NewEventLog 创建空的内存事件日志
func NewEventLog() *EventLog {
	return &EventLog{rooms: make(map[uint]*roomLog)}
}

// SetUnavailable 模拟持久化后端不可达的状态。
func (l *EventLog) SetUnavailable(unavailable bool) {
	l.mu.Lock()
	l.unavailable = unavailable
	l.mu.Unlock()
}

func (l *EventLog) room(roomID uint) (*roomLog, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.unavailable {
		return nil, repository.ErrStoreUnavailable
	}
	log, ok := l.rooms[roomID]
	if !ok {
		log = &roomLog{}
		l.rooms[roomID] = log
	}
	return log, nil
}

// Append 实现 repository.EventLog。
// 房间锁保证序列号严格递增且不重复。
func (l *EventLog) Append(ctx context.Context, roomID, userID uint, payload json.RawMessage) (*domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log, err := l.room(roomID)
	if err != nil {
		return nil, err
	}

	log.mu.Lock()
	defer log.mu.Unlock()
	log.nextID++
	event := domain.Event{
		ID:        log.nextID,
		RoomID:    roomID,
		Seq:       uint64(len(log.events) + 1),
		UserID:    userID,
		Payload:   string(payload),
		Timestamp: time.Now().UTC(),
	}
	log.events = append(log.events, event)
	return &event, nil
}

// Recent 实现 repository.EventLog，返回最新在前的快照。
func (l *EventLog) Recent(ctx context.Context, roomID uint, limit int) ([]domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	log, err := l.room(roomID)
	if err != nil {
		return nil, err
	}

	log.mu.Lock()
	defer log.mu.Unlock()
	n := len(log.events)
	if limit > n {
		limit = n
	}
	events := make([]domain.Event, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		events = append(events, log.events[i])
	}
	return events, nil
}
