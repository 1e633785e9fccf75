package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event 表示房间内的一条活动记录（绘图笔画、聊天消息、在场通知等）。
// 事件一旦落库即不可变；(RoomID, Seq) 在全表范围内唯一。
type Event struct {
	ID        uint      `gorm:"primaryKey" json:"id"`                              // 事件记录的唯一标识符 (主键)
	RoomID    uint      `gorm:"uniqueIndex:idx_room_seq;index;not null" json:"roomId"` // 事件所属房间 ID
	Seq       uint64    `gorm:"uniqueIndex:idx_room_seq;not null" json:"seq"`      // 房间内严格递增的序列号
	UserID    uint      `gorm:"index;not null" json:"userId"`                      // 产生该事件的参与者 ID
	Payload   string    `gorm:"type:text;not null" json:"-"`                       // 事件负载，JSON 格式的字符串
	Timestamp time.Time `gorm:"index;not null" json:"timestamp"`                   // 服务端分配的时间戳
	CreatedAt time.Time `gorm:"autoCreateTime" json:"-"`                           // 记录创建时间 (GORM 自动填充)
}

// MarshalJSON 将 Payload 字符串作为原始 JSON 内联输出，
// 避免客户端收到双重转义的负载。
func (e Event) MarshalJSON() ([]byte, error) {
	type alias Event // 防止递归调用 MarshalJSON
	payload := json.RawMessage(e.Payload)
	if len(payload) == 0 || !json.Valid(payload) {
		payload = json.RawMessage("null")
	}
	return json.Marshal(struct {
		alias
		Payload json.RawMessage `json:"payload"`
	}{alias(e), payload})
}

// UnmarshalJSON 与 MarshalJSON 对应，把内联的 payload 还原到字符串字段。
func (e *Event) UnmarshalJSON(data []byte) error {
	type alias Event
	var aux struct {
		alias
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("unmarshal event: %w", err)
	}
	*e = Event(aux.alias)
	e.Payload = string(aux.Payload)
	return nil
}

// RawPayload 返回事件负载的原始 JSON 字节。
func (e *Event) RawPayload() json.RawMessage {
	return json.RawMessage(e.Payload)
}

// SetPayload 校验并设置事件负载。负载必须是合法 JSON。
func (e *Event) SetPayload(payload json.RawMessage) error {
	if !json.Valid(payload) {
		return fmt.Errorf("event payload is not valid JSON")
	}
	e.Payload = string(payload)
	return nil
}
