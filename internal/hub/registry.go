package hub

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Registry 维护房间到活跃连接集合的映射。
// 只做内存簿记，不触碰持久化；连接由 Gateway 拥有，
// 这里保存的是非拥有引用（按房间 ID 和连接组织的成员项）。
type Registry struct {
	mu sync.RWMutex
	// map[roomID]成员集合
	rooms map[uint]map[*Client]struct{}
}

// NewRegistry 创建空的 Registry
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[uint]map[*Client]struct{})}
}

// Join 将连接加入房间的成员集合。
// 房间是否存在由调用方（Dispatcher）负责校验，这里只管理被告知的成员关系。
func (r *Registry) Join(roomID uint, client *Client) {
	if client == nil {
		logrus.Error("Registry: attempted to join a nil client")
		return
	}
	r.mu.Lock()
	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[*Client]struct{})
		r.rooms[roomID] = members
	}
	members[client] = struct{}{}
	r.mu.Unlock()
}

// Leave 将连接从房间的成员集合移除。
// 幂等：移除非成员是无操作，不是错误。成员集合变空时房间被惰性清理。
func (r *Registry) Leave(roomID uint, client *Client) {
	r.mu.Lock()
	if members, ok := r.rooms[roomID]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(r.rooms, roomID)
		}
	}
	r.mu.Unlock()
}

// Members 返回房间成员的快照。
// 快照不是实时视图，调用方不能假设它在并发 join/leave 之后仍然有效。
func (r *Registry) Members(roomID uint) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	snapshot := make([]*Client, 0, len(members))
	for client := range members {
		snapshot = append(snapshot, client)
	}
	return snapshot
}

// MemberCount 返回房间当前的成员数。
func (r *Registry) MemberCount(roomID uint) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[roomID])
}

// RoomCount 返回当前有成员的房间数。
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
