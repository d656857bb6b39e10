// Package alerthub 维护通知推送的 WebSocket 连接。worker 进程写完通知后经
// Redis 频道广播，API 进程订阅该频道并把通知推给收件人仍在线的连接。
// 推送是尽力而为：用户不在线或缓冲区满都直接丢弃，客户端上线后靠拉取接口补齐。
package alerthub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"StudioLink/logger"
	"StudioLink/model"
)

// PushMessage 推送给客户端的消息封包
type PushMessage struct {
	Type      string       `json:"type"` // alert / pong
	Alert     *model.Alert `json:"alert,omitempty"`
	Timestamp int64        `json:"timestamp"`
}

// Client 单个用户的一条 WebSocket 连接。同一用户允许多端同时在线。
type Client struct {
	Hub    *Hub
	Conn   *websocket.Conn
	Send   chan []byte
	UserID int64
}

// Hub 通知推送中心，按用户ID索引在线连接。
type Hub struct {
	clients map[int64]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	push       chan *pushJob

	mu   sync.RWMutex
	done chan struct{}
}

type pushJob struct {
	userID  int64
	payload []byte
}

// NewHub 创建推送中心
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[int64]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		push:       make(chan *pushJob, 256),
		done:       make(chan struct{}),
	}
}

// Run 启动主循环
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case job := <-h.push:
			h.deliver(job)

		case <-h.done:
			h.cleanup()
			return
		}
	}
}

// Stop 停止主循环并断开所有连接
func (h *Hub) Stop() {
	close(h.done)
}

// Register 注册一条连接
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister 注销一条连接
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Push 给某个用户的所有在线连接推送一条通知。非阻塞，离线直接丢弃。
func (h *Hub) Push(userID int64, alert *model.Alert) {
	msg := &PushMessage{Type: "alert", Alert: alert, Timestamp: time.Now().UnixMilli()}
	data, err := json.Marshal(msg)
	if err != nil {
		logger.Warn("通知推送封包失败", logger.ErrorField(err))
		return
	}

	select {
	case h.push <- &pushJob{userID: userID, payload: data}:
	default:
		logger.Warn("推送队列已满，丢弃通知", logger.Int64("user", userID))
	}
}

// Online 报告某个用户当前是否有在线连接。
func (h *Hub) Online(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.UserID] == nil {
		h.clients[client.UserID] = make(map[*Client]bool)
	}
	h.clients[client.UserID][client] = true

	logger.Info("通知连接已注册", logger.Int64("user", client.UserID))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.clients[client.UserID]
	if !ok {
		return
	}
	if _, ok := conns[client]; !ok {
		return
	}
	delete(conns, client)
	close(client.Send)
	if len(conns) == 0 {
		delete(h.clients, client.UserID)
	}

	logger.Info("通知连接已注销", logger.Int64("user", client.UserID))
}

func (h *Hub) deliver(job *pushJob) {
	h.mu.RLock()
	conns := make([]*Client, 0, len(h.clients[job.userID]))
	for client := range h.clients[job.userID] {
		conns = append(conns, client)
	}
	h.mu.RUnlock()

	for _, client := range conns {
		select {
		case client.Send <- job.payload:
		default:
			// 缓冲区满说明对端已经不读了
			h.unregister <- client
		}
	}
}

func (h *Hub) cleanup() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, conns := range h.clients {
		for client := range conns {
			close(client.Send)
		}
	}
	h.clients = make(map[int64]map[*Client]bool)
}

// ========== Client 方法 ==========

// ReadPump 读循环。通知连接是单向推送，入站只处理心跳。
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(1024)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("通知连接读取出错",
					logger.ErrorField(err), logger.Int64("user", c.UserID))
			}
			return
		}
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	}
}

// WritePump 写循环，带定期心跳。
func (c *Client) WritePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
