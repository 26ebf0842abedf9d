package websocket

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// 메시지 타입
const (
	TypeMatchStateChanged = "match_state_changed"
	TypeMatchInvitation   = "match_invitation"
)

// Hub 사용자별 WebSocket 연결 관리. 사용자당 연결은 하나만 유지한다.
type Hub struct {
	clients map[string]*Client
	mu      sync.RWMutex

	outbound   chan *Message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	logger *zap.Logger
}

// Message WebSocket 메시지
type Message struct {
	UserID  string      `json:"-"` // 비어 있으면 전체 전송
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		outbound:   make(chan *Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger.Named("ws"),
	}
}

// Run ctx 가 끝날 때까지 등록/해제/전송을 처리한다
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.add(client)
		case client := <-h.unregister:
			h.remove(client)
		case message := <-h.outbound:
			h.deliver(message)
		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			return
		}
	}
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, exists := h.clients[client.userID]; exists {
		close(old.send)
		h.logger.Info("Replaced existing WebSocket connection", zap.String("userId", client.userID))
	}

	h.clients[client.userID] = client
	h.logger.Info("WebSocket client registered",
		zap.String("userId", client.userID),
		zap.Int("totalClients", len(h.clients)))
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// 교체된 연결은 이미 닫혔다
	if current, exists := h.clients[client.userID]; exists && current == client {
		delete(h.clients, client.userID)
		close(client.send)
		h.logger.Info("WebSocket client unregistered",
			zap.String("userId", client.userID),
			zap.Int("totalClients", len(h.clients)))
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, client := range h.clients {
		close(client.send)
		delete(h.clients, id)
	}
}

func (h *Hub) deliver(message *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if message.UserID != "" {
		if client, exists := h.clients[message.UserID]; exists {
			h.enqueue(client, message)
		}
		return
	}

	for _, client := range h.clients {
		h.enqueue(client, message)
	}
}

// enqueue 느린 클라이언트 때문에 허브가 막히지 않도록 버퍼가 차면 버린다
func (h *Hub) enqueue(client *Client, message *Message) {
	select {
	case client.send <- message:
	default:
		h.logger.Warn("Client send buffer full, message dropped",
			zap.String("userId", client.userID),
			zap.String("type", message.Type))
	}
}

// Online 연결된 사용자인지
func (h *Hub) Online(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

// ClientCount 연결 수
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SendToUser 특정 사용자에게 전송. 허브 큐가 가득 차면 false.
func (h *Hub) SendToUser(userID, msgType string, payload interface{}) bool {
	return h.push(&Message{UserID: userID, Type: msgType, Payload: payload})
}

// Broadcast 연결된 모든 사용자에게 전송
func (h *Hub) Broadcast(msgType string, payload interface{}) bool {
	return h.push(&Message{Type: msgType, Payload: payload})
}

func (h *Hub) push(message *Message) bool {
	select {
	case h.outbound <- message:
		return true
	default:
		h.logger.Warn("Hub queue full, message dropped", zap.String("type", message.Type))
		return false
	}
}
