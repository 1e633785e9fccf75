package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collaborative-sketch/internal/domain"
	"collaborative-sketch/internal/hub"
	"collaborative-sketch/internal/infra/persistence/memory"
	"collaborative-sketch/internal/protocol"
	"collaborative-sketch/internal/service"
)

const gatewayTestSecret = "gateway-test-secret"

// stubRooms 用固定的房间集合实现 hub.RoomLookup
type stubRooms struct {
	existing map[uint]bool
}

func (s stubRooms) Exists(ctx context.Context, roomID uint) (bool, error) {
	return s.existing[roomID], nil
}

func newGatewayServer(t *testing.T) (*httptest.Server, *memory.EventLog) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	authService, err := service.NewAuthService(gatewayTestSecret)
	require.NoError(t, err)
	events := memory.NewEventLog()
	dispatcher := hub.NewDispatcher(hub.NewRegistry(), events, stubRooms{existing: map[uint]bool{7: true}})
	gateway := NewGateway(authService, dispatcher)

	router := gin.New()
	router.GET("/ws", gateway.HandleConnection)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	t.Cleanup(dispatcher.Shutdown)
	return server, events
}

func gatewayToken(t *testing.T, userID uint) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(gatewayTestSecret))
	require.NoError(t, err)
	return signed
}

func dialGateway(t *testing.T, server *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]json.RawMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var frame map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &frame))
	return frame
}

func frameKind(t *testing.T, frame map[string]json.RawMessage) string {
	t.Helper()
	var kind string
	require.NoError(t, json.Unmarshal(frame["kind"], &kind))
	return kind
}

func frameCode(t *testing.T, frame map[string]json.RawMessage) string {
	t.Helper()
	var code string
	require.NoError(t, json.Unmarshal(frame["code"], &code))
	return code
}

func TestGateway_JoinOutlivesUpgradeHandler(t *testing.T) {
	// Arrange: 预置两条历史事件
	server, events := newGatewayServer(t)
	for i := 1; i <= 2; i++ {
		_, err := events.Append(context.Background(), 7, 99, json.RawMessage(fmt.Sprintf(`{"stroke":%d}`, i)))
		require.NoError(t, err)
	}
	conn := dialGateway(t, server, gatewayToken(t, 42))

	// 等待升级 handler 返回：连接的生命周期必须比 HTTP 请求长，
	// 之后的帧处理不能被请求 context 的取消拖垮
	time.Sleep(200 * time.Millisecond)

	// Act
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"kind":"join_room","roomId":7}`)))
	frame := readFrame(t, conn)

	// Assert: 健康的存储后端必须回放成功，而不是 StoreUnavailable
	require.Equal(t, protocol.KindJoined, frameKind(t, frame))
	var history []domain.Event
	require.NoError(t, json.Unmarshal(frame["history"], &history))
	require.Len(t, history, 2)
	assert.Equal(t, uint64(1), history[0].Seq)
	assert.Equal(t, uint64(2), history[1].Seq)
}

func TestGateway_RejectsInvalidToken(t *testing.T) {
	// Arrange
	server, _ := newGatewayServer(t)
	conn := dialGateway(t, server, "not-a-valid-token")

	// Act: 升级成功，但第一帧必须是认证失败通知
	frame := readFrame(t, conn)

	// Assert
	assert.Equal(t, protocol.KindError, frameKind(t, frame))
	assert.Equal(t, protocol.CodeUnauthenticated, frameCode(t, frame))

	// 之后连接被服务端关闭
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestGateway_ActivityBroadcastBetweenConnections(t *testing.T) {
	// Arrange: 两条真实连接加入同一房间
	server, _ := newGatewayServer(t)
	alice := dialGateway(t, server, gatewayToken(t, 1))
	bob := dialGateway(t, server, gatewayToken(t, 2))

	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte(`{"kind":"join_room","roomId":7}`)))
	require.Equal(t, protocol.KindJoined, frameKind(t, readFrame(t, alice)))
	require.NoError(t, bob.WriteMessage(websocket.TextMessage, []byte(`{"kind":"join_room","roomId":7}`)))
	require.Equal(t, protocol.KindJoined, frameKind(t, readFrame(t, bob)))

	// Act
	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte(`{"kind":"activity","payload":{"stroke":[1,2]}}`)))
	frame := readFrame(t, bob)

	// Assert
	require.Equal(t, protocol.KindEvent, frameKind(t, frame))
	var event domain.Event
	require.NoError(t, json.Unmarshal(frame["event"], &event))
	assert.Equal(t, uint64(1), event.Seq)
	assert.Equal(t, uint(1), event.UserID)
	assert.JSONEq(t, `{"stroke":[1,2]}`, event.Payload)
}

func TestGateway_ProtocolViolationClosesConnection(t *testing.T) {
	// Arrange
	server, _ := newGatewayServer(t)
	conn := dialGateway(t, server, gatewayToken(t, 42))

	// Act: join 之前发 activity 是协议违规
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"kind":"activity","payload":{"x":1}}`)))
	frame := readFrame(t, conn)

	// Assert: 先收到错误帧，随后连接被关闭
	assert.Equal(t, protocol.KindError, frameKind(t, frame))
	assert.Equal(t, protocol.CodeProtocolError, frameCode(t, frame))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}
