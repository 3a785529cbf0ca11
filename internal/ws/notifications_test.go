package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/orgadmin/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSessions map[string]*domain.CheckoutView

func (f fakeSessions) Get(id string) (*domain.CheckoutView, error) {
	if v, ok := f[id]; ok {
		return v, nil
	}
	return nil, domain.ErrNotFound("checkout session not found")
}

func newServer(t *testing.T, hub *Hub, sessions SessionLookup) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/api/checkout/{id}/notifications", NewNotificationsHandler(hub, sessions).Handle)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, id string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/checkout/" + id + "/notifications"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestNotificationsStream(t *testing.T) {
	hub := NewHub()
	srv := newServer(t, hub, fakeSessions{"co-1": {ID: "co-1"}})

	conn := dial(t, srv, "co-1")
	require.Eventually(t, func() bool { return hub.Subscribers("co-1") == 1 }, time.Second, 5*time.Millisecond)

	hub.Notify("co-2", domain.NewNotification("other", "not for us", domain.SeverityInfo))
	hub.Notify("co-1", domain.NewNotification("Payment failed", "card declined", domain.SeverityError))

	var got domain.Notification
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "card declined", got.Description)
	assert.Equal(t, domain.SeverityError, got.Severity)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Subscribers("co-1") == 0 }, time.Second, 5*time.Millisecond)
}

func TestNotificationsReplayLatest(t *testing.T) {
	n := domain.NewNotification("Pix code generated", "scan it", domain.SeverityInfo)
	srv := newServer(t, NewHub(), fakeSessions{"co-1": {ID: "co-1", Notification: &n}})

	conn := dial(t, srv, "co-1")
	var got domain.Notification
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "Pix code generated", got.Title)
}

// racingSessions delivers a notification while the session is being read,
// then returns the view as it was before.
type racingSessions struct {
	hub   *Hub
	stale *domain.CheckoutView
	fresh domain.Notification
}

func (s racingSessions) Get(id string) (*domain.CheckoutView, error) {
	s.hub.Notify(id, s.fresh)
	return s.stale, nil
}

func TestNotificationsKeepToastSentDuringLookup(t *testing.T) {
	hub := NewHub()
	old := domain.NewNotification("Pix code generated", "scan it", domain.SeverityInfo)
	srv := newServer(t, hub, racingSessions{
		hub:   hub,
		stale: &domain.CheckoutView{ID: "co-1", Notification: &old},
		fresh: domain.NewNotification("Payment confirmed", "welcome", domain.SeveritySuccess),
	})

	conn := dial(t, srv, "co-1")
	var got domain.Notification
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "Payment confirmed", got.Title)

	conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	assert.Error(t, conn.ReadJSON(&got), "the stale toast must not follow the newer one")
}

func TestNotificationsUnknownSession(t *testing.T) {
	srv := newServer(t, NewHub(), fakeSessions{})

	resp, err := http.Get(srv.URL + "/api/checkout/missing/notifications")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
