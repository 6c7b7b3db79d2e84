// server/internal/socket/hub.go
package socket

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"krishisetu-api-server/internal/logger"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Event names pushed to clients.
const (
	EventBookingCreated       = "booking_created"
	EventBookingStatusChanged = "booking_status_changed"
)

type client struct {
	conn *websocket.Conn
	// gorilla connections allow one concurrent writer.
	writeMu sync.Mutex
}

// Hub quản lý tất cả các client WebSocket, key là user id.
type Hub struct {
	clients map[string]*client
	mu      sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*client),
	}
}

// Register thêm một client mới vào Hub. A newer connection of the same user replaces the old one.
func (h *Hub) Register(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if old, ok := h.clients[userID]; ok && old.conn != conn {
		_ = old.conn.Close()
	}
	h.clients[userID] = &client{conn: conn}
	logger.Log.WithField("user_id", userID).Info("WebSocket client registered")
}

// Unregister removes conn if it is still the registered connection of userID.
func (h *Hub) Unregister(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[userID]; ok && c.conn == conn {
		delete(h.clients, userID)
		logger.Log.WithField("user_id", userID).Info("WebSocket client unregistered")
	}
}

// Send gửi một tin nhắn đến một client cụ thể. An offline user is not an error.
func (h *Hub) Send(userID string, message []byte) error {
	h.mu.RLock()
	c, ok := h.clients[userID]
	h.mu.RUnlock()
	if !ok {
		logger.Log.WithField("user_id", userID).Debug("WebSocket client not found, message dropped")
		return nil
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, message)
}

// Notify sends {"event": event, "data": data} to userID.
func (h *Hub) Notify(userID, event string, data any) error {
	msg, err := json.Marshal(map[string]any{"event": event, "data": data})
	if err != nil {
		return fmt.Errorf("encode %s notification: %w", event, err)
	}
	return h.Send(userID, msg)
}

func (h *Hub) Connected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}
