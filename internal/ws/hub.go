package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod is the interval for sending pings to peer. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the maximum message size allowed from peer.
	maxMessageSize = 512
)

// PositionUpdate is a real-time position fanned out to everyone watching a
// group's live map.
type PositionUpdate struct {
	GroupID   uuid.UUID `json:"group_id"`
	UserID    uuid.UUID `json:"user_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Heading   *float64  `json:"heading,omitempty"`
	Status    string    `json:"status,omitempty"`
	IsSharing bool      `json:"is_sharing"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatEvent is a chat message or structured group alert pushed to a group room.
type ChatEvent struct {
	Type      string    `json:"type"` // "chat_message" | "group_alert"
	GroupID   uuid.UUID `json:"group_id"`
	MessageID uuid.UUID `json:"message_id"`
	SenderID  uuid.UUID `json:"sender_id"`
	MsgType   string    `json:"message_type"`
	AlertType string    `json:"alert_type,omitempty"`
	Content   string    `json:"content"`
	Lat       *float64  `json:"lat,omitempty"`
	Lng       *float64  `json:"lng,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Client represents a single WebSocket connection subscribed to a group room.
type Client struct {
	Conn    *websocket.Conn
	GroupID uuid.UUID
	Send    chan []byte
}

// Hub manages WebSocket connections organized by group rooms.
type Hub struct {
	rooms      map[uuid.UUID]map[*Client]bool // groupID -> set of clients
	register   chan *Client
	unregister chan *Client
	positions  chan *PositionUpdate
	chatBcast  chan *ChatEvent
	mu         sync.RWMutex
	logger     *zap.Logger
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		rooms:      make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		positions:  make(chan *PositionUpdate, 256),
		chatBcast:  make(chan *ChatEvent, 256),
		logger:     logger,
	}
}

// Run starts the hub's event loop. Should be called in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if _, ok := h.rooms[client.GroupID]; !ok {
				h.rooms[client.GroupID] = make(map[*Client]bool)
			}
			h.rooms[client.GroupID][client] = true
			h.mu.Unlock()

			h.logger.Debug("client registered",
				zap.String("group_id", client.GroupID.String()),
			)

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.GroupID]; ok {
				if _, exists := clients[client]; exists {
					delete(clients, client)
					close(client.Send)
					if len(clients) == 0 {
						delete(h.rooms, client.GroupID)
					}
				}
			}
			h.mu.Unlock()

			h.logger.Debug("client unregistered",
				zap.String("group_id", client.GroupID.String()),
			)

		case update := <-h.positions:
			data, err := json.Marshal(map[string]interface{}{
				"type": "position_update",
				"data": update,
			})
			if err != nil {
				h.logger.Error("failed to marshal position update", zap.Error(err))
				continue
			}

			h.broadcastToRoom(update.GroupID, data)

		case event := <-h.chatBcast:
			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Error("failed to marshal chat event", zap.Error(err))
				continue
			}

			h.broadcastToRoom(event.GroupID, data)
		}
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// BroadcastPosition fans a position update out to the group's room.
func (h *Hub) BroadcastPosition(update *PositionUpdate) {
	h.positions <- update
}

// BroadcastChat fans a chat message or group alert out to the group's room.
func (h *Hub) BroadcastChat(event *ChatEvent) {
	h.chatBcast <- event
}

// broadcastToRoom sends raw data to all clients in a group room.
func (h *Hub) broadcastToRoom(groupID uuid.UUID, data []byte) {
	h.mu.RLock()
	clients, ok := h.rooms[groupID]
	h.mu.RUnlock()

	if !ok {
		return
	}

	for client := range clients {
		select {
		case client.Send <- data:
		default:
			h.mu.Lock()
			delete(clients, client)
			close(client.Send)
			if len(clients) == 0 {
				delete(h.rooms, groupID)
			}
			h.mu.Unlock()
		}
	}
}

// ReadPump pumps messages from the WebSocket connection to the hub.
// It reads messages and discards them (clients only receive; position and
// chat writes go through the HTTP surface).
func (c *Client) ReadPump(hub *Hub) {
	defer func() {
		hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, _, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				hub.logger.Warn("websocket read error", zap.Error(err))
			}
			break
		}
	}
}

// WritePump pumps messages from the hub to the WebSocket connection.
func (c *Client) WritePump(hub *Hub) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel.
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)

			// Drain any queued messages into the current write.
			n := len(c.Send)
			for i := 0; i < n; i++ {
				_, _ = w.Write([]byte("\n"))
				_, _ = w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
