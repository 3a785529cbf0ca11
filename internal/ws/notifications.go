package ws

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/orgadmin/backend/internal/domain"
	"github.com/orgadmin/backend/internal/handler"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is handled at the HTTP level
	},
}

// Hub fans checkout notifications out to the browser tabs watching each session.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan domain.Notification]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan domain.Notification]struct{})}
}

// Notify delivers n to every subscriber of checkoutID. Slow subscribers miss
// notifications rather than block the checkout.
func (h *Hub) Notify(checkoutID string, n domain.Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[checkoutID] {
		select {
		case ch <- n:
		default:
			log.Printf("[Notify] dropped %q for slow subscriber of %s", n.Title, checkoutID)
		}
	}
}

// Subscribers returns how many connections watch checkoutID.
func (h *Hub) Subscribers(checkoutID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[checkoutID])
}

func (h *Hub) subscribe(checkoutID string) chan domain.Notification {
	ch := make(chan domain.Notification, sendBuffer)
	h.mu.Lock()
	if h.subs[checkoutID] == nil {
		h.subs[checkoutID] = make(map[chan domain.Notification]struct{})
	}
	h.subs[checkoutID][ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) unsubscribe(checkoutID string, ch chan domain.Notification) {
	h.mu.Lock()
	delete(h.subs[checkoutID], ch)
	if len(h.subs[checkoutID]) == 0 {
		delete(h.subs, checkoutID)
	}
	h.mu.Unlock()
}

// SessionLookup finds a checkout session.
type SessionLookup interface {
	Get(id string) (*domain.CheckoutView, error)
}

// NotificationsHandler streams a session's notifications over a WebSocket.
type NotificationsHandler struct {
	hub      *Hub
	sessions SessionLookup
}

// NewNotificationsHandler creates a new NotificationsHandler.
func NewNotificationsHandler(hub *Hub, sessions SessionLookup) *NotificationsHandler {
	return &NotificationsHandler{hub: hub, sessions: sessions}
}

// Handle serves GET /api/checkout/{id}/notifications.
func (h *NotificationsHandler) Handle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	// Subscribe before reading the session so a toast sent in between is kept.
	ch := h.hub.subscribe(id)
	defer h.hub.unsubscribe(id, ch)

	view, err := h.sessions.Get(id)
	if err != nil {
		handler.Error(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// A tab that reconnects sees the latest toast again, unless a newer one
	// is already queued.
	if view.Notification != nil && len(ch) == 0 {
		ch <- *view.Notification
	}

	closed := make(chan struct{})
	go readPump(conn, closed)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case n := <-ch:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(n); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client frames and closes done when the peer goes away.
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
