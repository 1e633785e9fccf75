package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collaborative-sketch/internal/domain"
)

func TestDecodeClientFrame_Valid(t *testing.T) {
	testCases := []struct {
		name string
		raw  string
		kind string
	}{
		{"join", `{"kind":"join_room","roomId":7}`, KindJoinRoom},
		{"leave", `{"kind":"leave_room"}`, KindLeaveRoom},
		{"activity object", `{"kind":"activity","payload":{"stroke":[1,2]}}`, KindActivity},
		{"activity array", `{"kind":"activity","payload":[1,2,3]}`, KindActivity},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			frame, err := DecodeClientFrame([]byte(tc.raw))
			require.NoError(t, err)
			assert.Equal(t, tc.kind, frame.Kind)
		})
	}
}

func TestDecodeClientFrame_Malformed(t *testing.T) {
	testCases := []struct {
		name string
		raw  string
	}{
		{"not json", `{{{`},
		{"join without roomId", `{"kind":"join_room"}`},
		{"join with zero roomId", `{"kind":"join_room","roomId":0}`},
		{"activity without payload", `{"kind":"activity"}`},
		{"empty object", `{}`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeClientFrame([]byte(tc.raw))
			assert.ErrorIs(t, err, ErrMalformedFrame)
		})
	}
}

func TestDecodeClientFrame_UnknownKind(t *testing.T) {
	// 未知 kind 必须拒绝，不能静默忽略
	_, err := DecodeClientFrame([]byte(`{"kind":"draw_line","roomId":7}`))
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestEncodeJoined_EmptyHistory(t *testing.T) {
	// nil history 编码为空数组而不是 null
	data, err := EncodeJoined(7, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"joined","roomId":7,"history":[]}`, string(data))
}

func TestEncodeJoined_WithHistory(t *testing.T) {
	// Arrange
	history := []domain.Event{
		{ID: 1, RoomID: 7, Seq: 1, UserID: 42, Payload: `{"x":1}`},
		{ID: 2, RoomID: 7, Seq: 2, UserID: 43, Payload: `{"x":2}`},
	}

	// Act
	data, err := EncodeJoined(7, history)

	// Assert: payload 内联为 JSON 而非字符串
	require.NoError(t, err)
	var decoded struct {
		Kind    string `json:"kind"`
		History []struct {
			Seq     uint64          `json:"seq"`
			Payload json.RawMessage `json:"payload"`
		} `json:"history"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, KindJoined, decoded.Kind)
	require.Len(t, decoded.History, 2)
	assert.Equal(t, uint64(1), decoded.History[0].Seq)
	assert.JSONEq(t, `{"x":2}`, string(decoded.History[1].Payload))
}

func TestEncodeEvent(t *testing.T) {
	// Arrange
	event := domain.Event{ID: 5, RoomID: 7, Seq: 3, UserID: 42, Payload: `{"stroke":[1]}`}

	// Act
	data, err := EncodeEvent(event)

	// Assert
	require.NoError(t, err)
	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.JSONEq(t, `"event"`, string(decoded["kind"]))
	assert.Contains(t, string(decoded["event"]), `"seq":3`)
}

func TestEncodeError(t *testing.T) {
	data := EncodeError(CodeRoomNotFound, "room 7 does not exist")
	assert.JSONEq(t, `{"kind":"error","code":"RoomNotFound","message":"room 7 does not exist"}`, string(data))
}
