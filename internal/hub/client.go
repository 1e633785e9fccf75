package hub

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"collaborative-sketch/internal/domain"
)

const (
	// 向对端写一条消息允许的最长时间
	writeWait = 10 * time.Second

	// 允许的 pong 等待时间，超时视为对端失联
	pongWait = 60 * time.Second

	// ping 的发送周期，必须小于 pongWait
	pingPeriod = (pongWait * 9) / 10

	// 允许对端发送的最大消息大小
	maxMessageSize = 64 * 1024

	// 出站队列长度，写满即判定为慢消费者
	sendBufferSize = 256
)

// Client 是单条 WebSocket 连接在 Hub 侧的代理。
// 读写各占一个 goroutine，出站消息一律经过 send 队列，
// 不会有两个 goroutine 同时写同一个 conn。
//
// ctx 是连接自己的生命周期上下文，在 teardown 时取消。
// 不能复用升级请求的 context：net/http 在 handler 返回后就会取消它，
// 而连接要在 handler 返回之后继续存活。
type Client struct {
	id          string
	participant domain.Participant
	conn        *websocket.Conn
	dispatcher  *Dispatcher

	ctx    context.Context
	cancel context.CancelFunc

	send chan []byte

	mu     sync.Mutex
	closed bool
	roomID uint // 0 表示未加入任何房间

	teardownOnce sync.Once
}

// NewClient 创建连接代理。conn 在测试里可以为 nil（只用 send 队列做断言）。
func NewClient(id string, participant domain.Participant, conn *websocket.Conn, dispatcher *Dispatcher) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		id:          id,
		participant: participant,
		conn:        conn,
		dispatcher:  dispatcher,
		ctx:         ctx,
		cancel:      cancel,
		send:        make(chan []byte, sendBufferSize),
	}
}

// ID 返回连接标识，只用于日志。
func (c *Client) ID() string { return c.id }

// Participant 返回握手时鉴权得到的参与者身份。
func (c *Client) Participant() domain.Participant { return c.participant }

// Room 返回当前加入的房间 ID，未加入时为 0。
func (c *Client) Room() uint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID
}

func (c *Client) setRoom(roomID uint) {
	c.mu.Lock()
	c.roomID = roomID
	c.mu.Unlock()
}

// detachRoom 在 roomID 等于 expected 时将其清零，返回是否发生了切换。
// 慢消费者摘除和正常离开可能竞争，用比较交换避免误清新房间。
func (c *Client) detachRoom(expected uint) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.roomID != expected || expected == 0 {
		return false
	}
	c.roomID = 0
	return true
}

// Deliver 将消息放入出站队列。
// 返回 false 表示队列已满（慢消费者），由调用方决定摘除；
// 连接已关闭时返回 true：对端已离场，不按慢消费者处理。
func (c *Client) Deliver(message []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

// shutdown 关闭出站队列，WritePump 随之退出。幂等。
func (c *Client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// teardown 是连接退出的唯一出口：注销成员关系、关闭队列和底层连接。
// 读泵退出、慢消费者摘除、服务关停都会走到这里，sync.Once 保证只执行一次。
func (c *Client) teardown() {
	c.teardownOnce.Do(func() {
		c.cancel()
		if c.dispatcher != nil {
			c.dispatcher.Unbind(c)
		}
		c.shutdown()
		if c.conn != nil {
			c.conn.Close()
		}
		logrus.WithFields(logrus.Fields{
			"conn_id": c.id,
			"user_id": c.participant.UserID,
		}).Info("Connection closed")
	})
}

// ReadPump 在独立 goroutine 中循环读取对端消息并同步派发。
// 同一连接的帧按到达顺序依次处理，天然保持单连接内的先后关系。
func (c *Client) ReadPump() {
	defer c.teardown()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logrus.WithFields(logrus.Fields{
					"conn_id": c.id,
					"user_id": c.participant.UserID,
				}).WithError(err).Warn("Unexpected websocket close")
			}
			return
		}
		if messageType != websocket.TextMessage {
			c.Deliver(encodeProtocolError("binary frames are not supported"))
			return
		}
		if err := c.dispatcher.HandleFrame(c.ctx, c, message); err != nil {
			// 致命的协议违规：错误帧已入队，交给 WritePump 冲刷后关闭
			return
		}
	}
}

// WritePump 在独立 goroutine 中把出站队列写到连接上，并定期发送 ping。
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.teardown()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
