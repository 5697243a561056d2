package dispatch

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/example/parcel-delivery/internal/logging"
	"github.com/example/parcel-delivery/internal/models"
	"github.com/example/parcel-delivery/internal/observability"
)

// Feed event types.
const (
	OrderCreated = "order_created"
	OrderUpdated = "order_updated"
	OrderDeleted = "order_deleted"
)

// FeedEvent is what admin dashboards receive over the websocket.
type FeedEvent struct {
	Type    string        `json:"type"`
	OrderID string        `json:"orderId"`
	Order   *models.Order `json:"order,omitempty"`
	At      time.Time     `json:"at"`
}

const writeWait = 5 * time.Second

// wsSession represents a connected admin dashboard
type wsSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *wsSession) send(ev FeedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(ev)
}

// Hub fans order changes out to every connected admin session.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*wsSession
	logger   *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{sessions: make(map[string]*wsSession), logger: logging.OrDiscard(logger)}
}

// Add registers conn and returns its session id.
func (h *Hub) Add(conn *websocket.Conn) string {
	id := uuid.NewString()
	h.mu.Lock()
	h.sessions[id] = &wsSession{conn: conn}
	h.mu.Unlock()
	observability.AdminFeedSessions.Inc()
	return id
}

// Remove closes and forgets a session. Removing twice is harmless.
func (h *Hub) Remove(id string) {
	h.mu.Lock()
	s, ok := h.sessions[id]
	delete(h.sessions, id)
	h.mu.Unlock()
	if !ok {
		return
	}
	observability.AdminFeedSessions.Dec()
	_ = s.conn.Close()
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Broadcast sends ev to every session and drops the ones that fail.
func (h *Hub) Broadcast(ev FeedEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	h.mu.RLock()
	targets := make(map[string]*wsSession, len(h.sessions))
	for id, s := range h.sessions {
		targets[id] = s
	}
	h.mu.RUnlock()

	for id, s := range targets {
		if err := s.send(ev); err != nil {
			h.logger.Warn("ws_send_failed", "session_id", id, "error", err)
			h.Remove(id)
		}
	}
}

// Serve blocks reading from the session until the client goes away. Dashboards
// never send anything meaningful; reading is what surfaces close frames.
func (h *Hub) Serve(id string, conn *websocket.Conn) {
	defer h.Remove(id)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Close disconnects every session, used on shutdown.
func (h *Hub) Close() {
	h.mu.RLock()
	ids := make([]string, 0, len(h.sessions))
	for id := range h.sessions {
		ids = append(ids, id)
	}
	h.mu.RUnlock()
	for _, id := range ids {
		h.Remove(id)
	}
}
