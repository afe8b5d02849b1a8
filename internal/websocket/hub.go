package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"feedbox/backend/internal/domain"
)

// InboxStore 收件箱读取接口，用于订阅时验证所有权
type InboxStore interface {
	GetInbox(id string) (*domain.Inbox, error)
}

// SignatureFunc 根据用户名与口令计算 tripcode 签名
type SignatureFunc func(username, secret string) string

// upgraderFactory 创建带有 Origin 验证的 WebSocket 升级器
func upgraderFactory(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// 如果允许所有来源
			for _, origin := range allowedOrigins {
				if origin == "*" {
					return true
				}
			}

			requestOrigin := r.Header.Get("Origin")
			if requestOrigin == "" {
				// 没有 Origin 视为同源请求
				return true
			}

			for _, origin := range allowedOrigins {
				if requestOrigin == origin {
					return true
				}
			}

			return false
		},
	}
}

// MessageType 定义WebSocket消息类型
type MessageType string

const (
	MessageTypeNewReply    MessageType = "new_reply"
	MessageTypePing        MessageType = "ping"
	MessageTypePong        MessageType = "pong"
	MessageTypeSubscribe   MessageType = "subscribe"
	MessageTypeUnsubscribe MessageType = "unsubscribe"
	MessageTypeSubscribed  MessageType = "subscribed"
	MessageTypeError       MessageType = "error"
)

// Message 定义WebSocket消息结构
type Message struct {
	Type      MessageType     `json:"type"`
	InboxID   string          `json:"inboxId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Client 代表一个WebSocket客户端连接
type Client struct {
	ID        string
	conn      *websocket.Conn
	send      chan []byte
	hub       *Hub
	inboxIDs  map[string]bool // 已订阅的收件箱ID
	mu        sync.RWMutex
	log       *zap.Logger
	signature string // 连接时凭证计算出的 tripcode 签名
}

// Hub 管理所有WebSocket连接
type Hub struct {
	clients        map[string]*Client            // clientID -> Client
	inboxes        map[string]map[string]*Client // inboxID -> clientID -> Client
	register       chan *Client
	unregister     chan *Client
	broadcast      chan *BroadcastMessage
	mu             sync.RWMutex
	log            *zap.Logger
	allowedOrigins []string
	store          InboxStore    // 收件箱存储，订阅时验证所有权
	signatureFn    SignatureFunc // tripcode 签名函数
}

// BroadcastMessage 广播消息
type BroadcastMessage struct {
	InboxID string
	Message *Message
}

// NewHub 创建WebSocket Hub
//
// 订阅收件箱需要所有者凭证：连接时携带的用户名与口令经 signatureFn
// 计算出签名，只有与收件箱 OwnerSignature 相同的客户端才能订阅。
func NewHub(allowedOrigins []string, store InboxStore, signatureFn SignatureFunc, log *zap.Logger) *Hub {
	// 如果没有配置，默认允许所有
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	return &Hub{
		clients:        make(map[string]*Client),
		inboxes:        make(map[string]map[string]*Client),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		broadcast:      make(chan *BroadcastMessage, 256),
		log:            log,
		allowedOrigins: allowedOrigins,
		store:          store,
		signatureFn:    signatureFn,
	}
}

// Run 运行 Hub 主循环，直到 ctx 取消
func (h *Hub) Run(ctx context.Context) {
	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			h.log.Debug("websocket client registered", zap.String("client_id", client.ID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				for inboxID := range client.inboxIDs {
					if clients, ok := h.inboxes[inboxID]; ok {
						delete(clients, client.ID)
						if len(clients) == 0 {
							delete(h.inboxes, inboxID)
						}
					}
				}
				close(client.send)
			}
			h.mu.Unlock()
			h.log.Debug("websocket client unregistered", zap.String("client_id", client.ID))

		case bm := <-h.broadcast:
			h.broadcastToInbox(bm.InboxID, bm.Message)

		case <-pingTicker.C:
			h.pingAllClients()
		}
	}
}

// NotifyNewReply 向订阅了该收件箱的所有客户端推送新回复事件。
//
// 实现 service.ReplyNotifier；非阻塞，广播缓冲满时丢弃事件。
func (h *Hub) NotifyNewReply(inboxID string, message *domain.Message) {
	data, err := json.Marshal(message)
	if err != nil {
		h.log.Error("failed to marshal reply notification", zap.Error(err))
		return
	}

	msg := &Message{
		Type:      MessageTypeNewReply,
		InboxID:   inboxID,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}

	select {
	case h.broadcast <- &BroadcastMessage{InboxID: inboxID, Message: msg}:
	default:
		h.log.Warn("broadcast buffer full, dropping reply notification",
			zap.String("inbox_id", inboxID),
		)
	}
}

// ClientCount 返回当前活跃的客户端连接数
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// broadcastToInbox 将消息发送给订阅了指定收件箱的所有客户端
func (h *Hub) broadcastToInbox(inboxID string, msg *Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("failed to marshal broadcast message", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.inboxes[inboxID] {
		select {
		case client.send <- payload:
		default:
			// 发送缓冲已满的客户端跳过，由 ping 机制最终清理
			h.log.Warn("client send buffer full",
				zap.String("client_id", client.ID),
				zap.String("inbox_id", inboxID),
			)
		}
	}
}

// pingAllClients 向所有客户端发送 ping
func (h *Hub) pingAllClients() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		if err := client.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
			h.log.Debug("ping failed", zap.String("client_id", client.ID), zap.Error(err))
		}
	}
}

// closeAllClients 关闭所有客户端连接
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, client := range h.clients {
		client.conn.Close()
		delete(h.clients, id)
	}
	h.inboxes = make(map[string]map[string]*Client)
}

// authenticateClient 验证连接请求的凭证并创建客户端
func (h *Hub) authenticateClient(c *gin.Context) (*Client, error) {
	username := c.Query("username")
	secret := c.Query("secret")
	if username == "" || secret == "" {
		username = c.GetHeader("X-Username")
		secret = c.GetHeader("X-Secret")
	}
	if username == "" || secret == "" {
		return nil, errors.New("credentials required")
	}

	return &Client{
		ID:        uuid.NewString(),
		send:      make(chan []byte, 64),
		hub:       h,
		inboxIDs:  make(map[string]bool),
		log:       h.log,
		signature: h.signatureFn(username, secret),
	}, nil
}

// HandleWebSocket 返回处理 WebSocket 升级请求的 gin 处理器
func HandleWebSocket(hub *Hub) gin.HandlerFunc {
	upgrader := upgraderFactory(hub.allowedOrigins)

	return func(c *gin.Context) {
		client, err := hub.authenticateClient(c)
		if err != nil {
			c.JSON(http.StatusForbidden, gin.H{
				"code": 403,
				"msg":  "WebSocket 连接需要提供所有者凭证",
			})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.log.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		client.conn = conn

		hub.register <- client

		go client.writePump()
		go client.readPump()

		// 连接时带上 inboxId 则直接订阅，省去一次 subscribe 消息
		if inboxID := c.Query("inboxId"); inboxID != "" {
			client.subscribeInbox(inboxID)
		}
	}
}

// readPump 持续读取客户端消息
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4 * 1024)
	c.conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		return nil
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("websocket read error", zap.String("client_id", c.ID), zap.Error(err))
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			c.sendError("消息格式无效")
			continue
		}

		c.handleMessage(&msg)
	}
}

// writePump 持续向客户端写入消息
func (c *Client) writePump() {
	defer c.conn.Close()

	for payload := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}

	// send 通道关闭，通知客户端正常断开
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// handleMessage 处理客户端发来的消息
func (c *Client) handleMessage(msg *Message) {
	switch msg.Type {
	case MessageTypeSubscribe:
		c.subscribeInbox(msg.InboxID)
	case MessageTypeUnsubscribe:
		c.unsubscribeInbox(msg.InboxID)
	case MessageTypePing:
		c.sendMessage(&Message{Type: MessageTypePong, Timestamp: time.Now().UTC()})
	default:
		c.sendError("不支持的消息类型")
	}
}

// subscribeInbox 订阅收件箱的新回复事件，要求客户端是该收件箱的所有者
func (c *Client) subscribeInbox(inboxID string) {
	if inboxID == "" {
		c.sendError("缺少收件箱ID")
		return
	}

	inbox, err := c.hub.store.GetInbox(inboxID)
	if err != nil {
		c.sendError("收件箱不存在")
		return
	}

	if inbox.OwnerSignature != c.signature {
		c.log.Warn("websocket subscription denied",
			zap.String("client_id", c.ID),
			zap.String("inbox_id", inboxID),
		)
		c.sendError("签名验证失败，只有所有者可以订阅")
		return
	}

	c.hub.mu.Lock()
	c.mu.Lock()
	c.inboxIDs[inboxID] = true
	c.mu.Unlock()
	if c.hub.inboxes[inboxID] == nil {
		c.hub.inboxes[inboxID] = make(map[string]*Client)
	}
	c.hub.inboxes[inboxID][c.ID] = c
	c.hub.mu.Unlock()

	c.sendMessage(&Message{
		Type:      MessageTypeSubscribed,
		InboxID:   inboxID,
		Timestamp: time.Now().UTC(),
	})
}

// unsubscribeInbox 取消订阅
func (c *Client) unsubscribeInbox(inboxID string) {
	c.hub.mu.Lock()
	c.mu.Lock()
	delete(c.inboxIDs, inboxID)
	c.mu.Unlock()
	if clients, ok := c.hub.inboxes[inboxID]; ok {
		delete(clients, c.ID)
		if len(clients) == 0 {
			delete(c.hub.inboxes, inboxID)
		}
	}
	c.hub.mu.Unlock()
}

// sendError 向客户端发送错误消息
func (c *Client) sendError(errMsg string) {
	c.sendMessage(&Message{
		Type:      MessageTypeError,
		Error:     errMsg,
		Timestamp: time.Now().UTC(),
	})
}

// sendMessage 向客户端发送消息，缓冲满时丢弃
func (c *Client) sendMessage(msg *Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}

	select {
	case c.send <- payload:
	default:
	}
}
