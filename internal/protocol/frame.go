// Package protocol 定义 WebSocket 连接上的封闭帧集合。
// 客户端帧通过 kind 字段区分，未知的 kind 一律拒绝，不做静默忽略。
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"collaborative-sketch/internal/domain"
)

// 客户端 → 服务端的帧类型
const (
	KindJoinRoom  = "join_room"  // 加入房间，携带 roomId
	KindLeaveRoom = "leave_room" // 离开当前房间
	KindActivity  = "activity"   // 房间活动，携带 payload
)

// 服务端 → 客户端的帧类型
const (
	KindJoined = "joined" // 加入成功，携带历史回放
	KindEvent  = "event"  // 单条广播事件
	KindError  = "error"  // 错误通知
)

// 错误帧的 code 取值
const (
	CodeUnauthenticated  = "Unauthenticated"
	CodeProtocolError    = "ProtocolError"
	CodeRoomNotFound     = "RoomNotFound"
	CodeStoreUnavailable = "StoreUnavailable"
	CodeSlowConsumer     = "SlowConsumer"
)

var (
	// ErrMalformedFrame 表示帧不是合法 JSON 或缺少必需字段
	ErrMalformedFrame = errors.New("protocol: malformed frame")
	// ErrUnknownKind 表示帧携带了封闭集合之外的 kind
	ErrUnknownKind = errors.New("protocol: unknown frame kind")
)

// ClientFrame 是解码后的客户端帧。
type ClientFrame struct {
	Kind    string          `json:"kind"`
	RoomID  uint            `json:"roomId,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// DecodeClientFrame 将原始消息解析为类型化的客户端帧。
// 解析失败或字段缺失返回 ErrMalformedFrame，未知 kind 返回 ErrUnknownKind。
func DecodeClientFrame(raw []byte) (*ClientFrame, error) {
	var frame ClientFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	switch frame.Kind {
	case KindJoinRoom:
		if frame.RoomID == 0 {
			return nil, fmt.Errorf("%w: join_room requires roomId", ErrMalformedFrame)
		}
	case KindLeaveRoom:
		// 无附加字段
	case KindActivity:
		if len(frame.Payload) == 0 || !json.Valid(frame.Payload) {
			return nil, fmt.Errorf("%w: activity requires a JSON payload", ErrMalformedFrame)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, frame.Kind)
	}
	return &frame, nil
}

// joinedFrame 是 join 成功后发送给请求连接的回放帧。
// History 按追加顺序排列（最旧的在前）。
type joinedFrame struct {
	Kind    string         `json:"kind"`
	RoomID  uint           `json:"roomId"`
	History []domain.Event `json:"history"`
}

// eventFrame 携带一条广播事件。
type eventFrame struct {
	Kind  string       `json:"kind"`
	Event domain.Event `json:"event"`
}

// errorFrame 携带错误码和人类可读的说明。
type errorFrame struct {
	Kind    string `json:"kind"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// EncodeJoined 编码 joined 帧。history 必须已按最旧在前排序。
func EncodeJoined(roomID uint, history []domain.Event) ([]byte, error) {
	if history == nil {
		history = []domain.Event{}
	}
	return json.Marshal(joinedFrame{Kind: KindJoined, RoomID: roomID, History: history})
}

// EncodeEvent 编码单条事件广播帧。
func EncodeEvent(evt domain.Event) ([]byte, error) {
	return json.Marshal(eventFrame{Kind: KindEvent, Event: evt})
}

// EncodeError 编码错误帧。编码错误帧本身不应失败，失败时返回手写的兜底帧。
func EncodeError(code, message string) []byte {
	data, err := json.Marshal(errorFrame{Kind: KindError, Code: code, Message: message})
	if err != nil {
		return []byte(`{"kind":"error","code":"ProtocolError","message":"internal encoding error"}`)
	}
	return data
}
