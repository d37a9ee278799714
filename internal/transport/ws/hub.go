// Package ws delivers assistant events to browser clients over WebSocket.
// Clients join a per-user group on connect; events addressed to a user fan
// out to all of that user's open connections.
package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// sendBuffer bounds the per-connection outbound queue. A client that
	// cannot keep up is dropped rather than blocking the dispatcher.
	sendBuffer = 32
)

// Event is the wire frame pushed to clients.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Hub tracks connections grouped by user ID.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu    sync.RWMutex
	users map[string]map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan Event
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The browser client connects cross-origin in local setups.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
		users:  make(map[string]map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request and keeps the connection in the caller's
// user group until it closes. The user ID comes from the userId query
// parameter, mirroring the frontend's connect call.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed",
			zap.String("user_id", userID),
			zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan Event, sendBuffer)}
	h.register(userID, c)

	h.logger.Debug("WebSocket client connected", zap.String("user_id", userID))

	go h.writePump(userID, c)
	go h.readPump(userID, c)
}

// Emit sends an event to every open connection of a user. Fire and forget:
// a full client queue drops the event for that connection only.
func (h *Hub) Emit(userID, event string, payload any) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.users[userID] {
		select {
		case c.send <- Event{Event: event, Data: payload}:
		default:
			h.logger.Warn("Dropping event for slow WebSocket client",
				zap.String("user_id", userID),
				zap.String("event", event))
		}
	}
}

// Connections reports the number of open connections for a user.
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}

func (h *Hub) register(userID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.users[userID] == nil {
		h.users[userID] = make(map[*client]struct{})
	}
	h.users[userID][c] = struct{}{}
}

func (h *Hub) unregister(userID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.users[userID]; ok {
		if _, ok := conns[c]; ok {
			delete(conns, c)
			close(c.send)
			if len(conns) == 0 {
				delete(h.users, userID)
			}
		}
	}
}

// readPump drains inbound frames for close and pong handling. Clients do not
// send application data over the socket; chat messages arrive via HTTP.
func (h *Hub) readPump(userID string, c *client) {
	defer func() {
		h.unregister(userID, c)
		c.conn.Close()
		h.logger.Debug("WebSocket client disconnected", zap.String("user_id", userID))
	}()

	c.conn.SetReadLimit(1024)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(userID string, c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Error("Event marshal failed",
					zap.String("user_id", userID),
					zap.String("event", event.Event),
					zap.Error(err))
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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
