package hub

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"collaborative-sketch/internal/domain"
	"collaborative-sketch/internal/protocol"
	"collaborative-sketch/internal/repository"
	"collaborative-sketch/internal/service"
)

// historyReplayLimit 是 join 回放的事件条数上限。
const historyReplayLimit = 50

// RoomLookup 是 Dispatcher 对房间存在性校验的最小依赖，
// 由 service.RoomService 实现。
type RoomLookup interface {
	Exists(ctx context.Context, roomID uint) (bool, error)
}

// roomLock 带引用计数的房间互斥锁，最后一个使用者释放时回收。
type roomLock struct {
	mu   sync.Mutex
	refs int
}

// Dispatcher 解释客户端帧并驱动成员关系、日志追加和扇出。
//
// 顺序保证：同一房间的追加和广播在该房间的互斥锁内完成，
// 因此所有成员观察到的广播顺序与日志的追加顺序一致；
// 同一连接的帧由 ReadPump 串行派发，连接内先后关系自动保持。
type Dispatcher struct {
	registry *Registry
	events   repository.EventLog
	rooms    RoomLookup

	// 活跃连接集合，用于服务关停时统一收尾
	connMu sync.Mutex
	conns  map[*Client]struct{}

	lockMu    sync.Mutex
	roomLocks map[uint]*roomLock
}

// NewDispatcher 创建 Dispatcher 实例
func NewDispatcher(registry *Registry, events repository.EventLog, rooms RoomLookup) *Dispatcher {
	if registry == nil || events == nil || rooms == nil {
		panic("registry, event log and room lookup must be non-nil for Dispatcher")
	}
	return &Dispatcher{
		registry:  registry,
		events:    events,
		rooms:     rooms,
		conns:     make(map[*Client]struct{}),
		roomLocks: make(map[uint]*roomLock),
	}
}

// Bind 登记一条完成握手的连接。
func (d *Dispatcher) Bind(client *Client) {
	d.connMu.Lock()
	d.conns[client] = struct{}{}
	d.connMu.Unlock()
}

// Unbind 注销连接并执行恰好一次的离开清理。
// 连接从未 join、已经 leave 或已被慢消费者摘除时都是无操作。
func (d *Dispatcher) Unbind(client *Client) {
	d.connMu.Lock()
	delete(d.conns, client)
	d.connMu.Unlock()

	roomID := client.Room()
	if roomID == 0 {
		return
	}
	d.lockRoom(roomID)
	if client.detachRoom(roomID) {
		d.registry.Leave(roomID, client)
	}
	d.unlockRoom(roomID)
}

// Shutdown 关停所有活跃连接，用于服务优雅退出。
func (d *Dispatcher) Shutdown() {
	d.connMu.Lock()
	clients := make([]*Client, 0, len(d.conns))
	for client := range d.conns {
		clients = append(clients, client)
	}
	d.connMu.Unlock()

	for _, client := range clients {
		client.teardown()
	}
	logrus.WithField("connections", len(clients)).Info("Dispatcher shut down")
}

// lockRoom 获取房间锁，按需创建并登记引用。
func (d *Dispatcher) lockRoom(roomID uint) {
	d.lockMu.Lock()
	lock, ok := d.roomLocks[roomID]
	if !ok {
		lock = &roomLock{}
		d.roomLocks[roomID] = lock
	}
	lock.refs++
	d.lockMu.Unlock()

	lock.mu.Lock()
}

// unlockRoom 释放房间锁，引用归零时回收条目。
func (d *Dispatcher) unlockRoom(roomID uint) {
	d.lockMu.Lock()
	lock := d.roomLocks[roomID]
	d.lockMu.Unlock()

	lock.mu.Unlock()

	d.lockMu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(d.roomLocks, roomID)
	}
	d.lockMu.Unlock()
}

// HandleFrame 解码并处理一条客户端帧。
// 返回非 nil 错误表示致命的协议违规，调用方应关闭连接；
// 可恢复的失败（房间不存在、存储不可用）只发错误帧，连接保持打开。
func (d *Dispatcher) HandleFrame(ctx context.Context, client *Client, raw []byte) error {
	frame, err := protocol.DecodeClientFrame(raw)
	if err != nil {
		client.Deliver(protocol.EncodeError(protocol.CodeProtocolError, err.Error()))
		return err
	}

	switch frame.Kind {
	case protocol.KindJoinRoom:
		return d.handleJoin(ctx, client, frame.RoomID)
	case protocol.KindLeaveRoom:
		d.handleLeave(client)
		return nil
	case protocol.KindActivity:
		return d.handleActivity(ctx, client, frame.Payload)
	default:
		// DecodeClientFrame 已拒绝未知 kind，这里不可达
		client.Deliver(encodeProtocolError("unknown frame kind"))
		return protocol.ErrUnknownKind
	}
}

// handleJoin 校验房间、登记成员并回放最近历史。
// 回放读取失败时回滚成员登记并通知 StoreUnavailable，连接保持打开，
// 因此收到 joined 帧的连接一定已经是成员，且不会漏看回放之后的事件。
func (d *Dispatcher) handleJoin(ctx context.Context, client *Client, roomID uint) error {
	logCtx := logrus.WithFields(logrus.Fields{
		"conn_id": client.ID(),
		"user_id": client.Participant().UserID,
		"room_id": roomID,
	})

	exists, err := d.rooms.Exists(ctx, roomID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to check room existence")
		client.Deliver(protocol.EncodeError(protocol.CodeStoreUnavailable, "room lookup failed, try again"))
		return nil
	}
	if !exists {
		client.Deliver(protocol.EncodeError(protocol.CodeRoomNotFound, fmt.Sprintf("room %d does not exist", roomID)))
		return nil
	}

	// 重复 join 按先离开再加入处理
	if current := client.Room(); current != 0 {
		if current == roomID {
			client.Deliver(protocol.EncodeError(protocol.CodeProtocolError, "already joined this room"))
			return nil
		}
		d.handleLeave(client)
	}

	d.lockRoom(roomID)
	defer d.unlockRoom(roomID)

	d.registry.Join(roomID, client)

	// Recent 返回最新在前，回放需要最旧在前
	recent, err := d.events.Recent(ctx, roomID, historyReplayLimit)
	if err != nil {
		d.registry.Leave(roomID, client)
		logCtx.WithError(err).Error("Failed to load replay history")
		client.Deliver(protocol.EncodeError(protocol.CodeStoreUnavailable, "history replay failed, try again"))
		return nil
	}
	history := make([]domain.Event, len(recent))
	for i, event := range recent {
		history[len(recent)-1-i] = event
	}

	joined, err := protocol.EncodeJoined(roomID, history)
	if err != nil {
		d.registry.Leave(roomID, client)
		logCtx.WithError(err).Error("Failed to encode joined frame")
		client.Deliver(protocol.EncodeError(protocol.CodeStoreUnavailable, "history replay failed, try again"))
		return nil
	}
	client.Deliver(joined)
	client.setRoom(roomID)
	logCtx.WithField("replayed", len(history)).Info("Client joined room")
	return nil
}

// handleLeave 幂等地离开当前房间。未加入任何房间时是无操作。
func (d *Dispatcher) handleLeave(client *Client) {
	roomID := client.Room()
	if roomID == 0 {
		return
	}
	d.lockRoom(roomID)
	if client.detachRoom(roomID) {
		d.registry.Leave(roomID, client)
	}
	d.unlockRoom(roomID)
	logrus.WithFields(logrus.Fields{
		"conn_id": client.ID(),
		"user_id": client.Participant().UserID,
		"room_id": roomID,
	}).Info("Client left room")
}

// handleActivity 先持久化再扇出：追加失败时不会有任何成员收到该事件。
// 发送方不会收到自己事件的回显。
func (d *Dispatcher) handleActivity(ctx context.Context, client *Client, payload []byte) error {
	roomID := client.Room()
	if roomID == 0 {
		err := errors.New("activity before join_room")
		client.Deliver(protocol.EncodeError(protocol.CodeProtocolError, err.Error()))
		return err
	}
	logCtx := logrus.WithFields(logrus.Fields{
		"conn_id": client.ID(),
		"user_id": client.Participant().UserID,
		"room_id": roomID,
	})

	d.lockRoom(roomID)
	defer d.unlockRoom(roomID)

	event, err := d.events.Append(ctx, roomID, client.Participant().UserID, payload)
	if err != nil {
		if errors.Is(err, service.ErrInvalidPayload) {
			client.Deliver(protocol.EncodeError(protocol.CodeProtocolError, "activity payload must be valid JSON"))
			return err
		}
		logCtx.WithError(err).Error("Failed to append activity event")
		client.Deliver(protocol.EncodeError(protocol.CodeStoreUnavailable, "event could not be persisted, try again"))
		return nil
	}

	message, err := protocol.EncodeEvent(*event)
	if err != nil {
		logCtx.WithError(err).Error("Failed to encode event frame")
		return nil
	}
	for _, member := range d.registry.Members(roomID) {
		if member == client {
			continue
		}
		if !member.Deliver(message) {
			d.evictSlowConsumer(roomID, member)
		}
	}
	return nil
}

// evictSlowConsumer 摘除出站队列已满的成员。
// 调用方已持有该房间的锁，这里直接操作 registry 而不是走 Unbind，
// 避免重复加锁；后续 teardown 中的 Unbind 看到 roomID 已清零会跳过。
func (d *Dispatcher) evictSlowConsumer(roomID uint, member *Client) {
	logrus.WithFields(logrus.Fields{
		"conn_id": member.ID(),
		"user_id": member.Participant().UserID,
		"room_id": roomID,
	}).Warn("Evicting slow consumer")

	if member.detachRoom(roomID) {
		d.registry.Leave(roomID, member)
	}
	member.Deliver(protocol.EncodeError(protocol.CodeSlowConsumer, "outbound queue overflow"))
	member.shutdown()
}

func encodeProtocolError(message string) []byte {
	return protocol.EncodeError(protocol.CodeProtocolError, message)
}
