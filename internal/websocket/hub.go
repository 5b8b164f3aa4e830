package websocket

import (
	"sync"

	"go.uber.org/zap"
)

const (
	MessageDuelStarted  = "duel_started"
	MessageDuelFinished = "duel_finished"
)

// Hub WebSocket 연결 관리 및 사용자별 전송
type Hub struct {
	// 사용자별 연결 저장 (userID -> *Client)
	clients map[int64]*Client
	mu      sync.RWMutex

	send chan *Message

	// 등록/해제 채널
	register   chan *Client
	unregister chan *Client
	stopChan   chan struct{}

	logger *zap.Logger
}

// Message WebSocket 메시지
type Message struct {
	UserID  int64       `json:"-"`       // 수신자
	Type    string      `json:"type"`    // 메시지 타입
	Payload interface{} `json:"payload"` // 메시지 내용
}

// DuelMessage 대결 시작/종료 알림
type DuelMessage struct {
	DuelID int64 `json:"duelId"`
}

// NewHub Hub 생성
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[int64]*Client),
		send:       make(chan *Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stopChan:   make(chan struct{}),
		logger:     logger,
	}
}

// Run Hub 실행 (Stop까지 블록)
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.send:
			h.deliver(message)

		case <-h.stopChan:
			h.closeAll()
			return
		}
	}
}

// Stop Hub 중지, 모든 연결 종료
func (h *Hub) Stop() {
	close(h.stopChan)
}

// registerClient 클라이언트 등록
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// 기존 연결이 있으면 닫기
	if oldClient, exists := h.clients[client.userID]; exists {
		close(oldClient.send)
		h.logger.Info("Replaced existing WebSocket connection",
			zap.Int64("userId", client.userID))
	}

	h.clients[client.userID] = client
	h.logger.Info("WebSocket client registered",
		zap.Int64("userId", client.userID),
		zap.Int("totalClients", len(h.clients)))
}

// unregisterClient 클라이언트 해제 (교체된 이전 연결이면 무시)
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, exists := h.clients[client.userID]; exists && current == client {
		delete(h.clients, client.userID)
		close(client.send)
		h.logger.Info("WebSocket client unregistered",
			zap.Int64("userId", client.userID),
			zap.Int("totalClients", len(h.clients)))
	}
}

// deliver 특정 사용자에게 전송 (연결이 없으면 버림)
func (h *Hub) deliver(message *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, exists := h.clients[message.UserID]
	if !exists {
		return
	}

	select {
	case client.send <- message:
	default:
		h.logger.Warn("Client send channel full",
			zap.Int64("userId", message.UserID),
			zap.String("type", message.Type))
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, client := range h.clients {
		close(client.send)
		delete(h.clients, userID)
	}
}

// SendToUser 특정 사용자에게 메시지 전송
func (h *Hub) SendToUser(userID int64, msgType string, payload interface{}) {
	message := &Message{
		UserID:  userID,
		Type:    msgType,
		Payload: payload,
	}

	select {
	case h.send <- message:
	default:
		// 알림 때문에 매칭 루프가 막히면 안 된다
		h.logger.Warn("Hub send queue full, dropping message",
			zap.Int64("userId", userID),
			zap.String("type", msgType))
	}
}

// IsConnected 사용자 연결 여부
func (h *Hub) IsConnected(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

// DuelStarted 대결 시작 알림
func (h *Hub) DuelStarted(userID, duelID int64) {
	h.SendToUser(userID, MessageDuelStarted, DuelMessage{DuelID: duelID})
}

// DuelFinished 대결 종료 알림
func (h *Hub) DuelFinished(userID, duelID int64) {
	h.SendToUser(userID, MessageDuelFinished, DuelMessage{DuelID: duelID})
}
