package websocket

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"collaborative-sketch/internal/hub"
	"collaborative-sketch/internal/protocol"
	"collaborative-sketch/internal/service"
)

// Gateway 负责 WebSocket 升级和连接级的认证握手。
// 房间操作全部走连接上的类型化帧，由 hub.Dispatcher 处理。
type Gateway struct {
	upgrader    websocket.Upgrader
	authService *service.AuthService
	dispatcher  *hub.Dispatcher
}

// NewGateway 创建 Gateway 实例
func NewGateway(authService *service.AuthService, dispatcher *hub.Dispatcher) *Gateway {
	if authService == nil {
		panic("AuthService cannot be nil for Gateway")
	}
	if dispatcher == nil {
		panic("Dispatcher cannot be nil for Gateway")
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// 允许所有来源连接 (生产环境应配置具体的允许来源)
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	return &Gateway{
		upgrader:    upgrader,
		authService: authService,
		dispatcher:  dispatcher,
	}
}

// HandleConnection 处理 GET /ws 的升级请求。
//
// 先升级再验证凭证：认证失败也要能在 WebSocket 上回 Unauthenticated
// 错误帧再关闭，而不是只给一个裸的 HTTP 状态码。
// 凭证取自 ?token= 查询参数，或 Authorization: Bearer 头。
func (g *Gateway) HandleConnection(c *gin.Context) {
	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 失败时 gorilla 已经写了 HTTP 错误响应
		logrus.WithError(err).Warn("Failed to upgrade connection")
		return
	}

	participant, err := g.authService.VerifyToken(bearerToken(c))
	if err != nil {
		g.rejectUnauthenticated(conn)
		return
	}

	client := hub.NewClient(uuid.NewString(), *participant, conn, g.dispatcher)
	g.dispatcher.Bind(client)

	logrus.WithFields(logrus.Fields{
		"conn_id": client.ID(),
		"user_id": participant.UserID,
		"remote":  conn.RemoteAddr().String(),
	}).Info("Connection established")

	// 泵使用连接自己的生命周期上下文。升级请求的 context 在
	// handler 返回时就被 net/http 取消，不能带进读循环。
	go client.WritePump()
	go client.ReadPump()
}

// bearerToken 从请求中提取凭证，查询参数优先。
func bearerToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

// rejectUnauthenticated 发送认证失败帧后关闭连接。
// 对端没有任何房间操作的机会。
func (g *Gateway) rejectUnauthenticated(conn *websocket.Conn) {
	deadline := time.Now().Add(5 * time.Second)
	conn.SetWriteDeadline(deadline)
	conn.WriteMessage(websocket.TextMessage, protocol.EncodeError(protocol.CodeUnauthenticated, "invalid or missing credential"))
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unauthenticated"), deadline)
	conn.Close()
	logrus.Warn("Rejected unauthenticated connection")
}
