package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/atharvakonge/market-game/internal/engine"
	"github.com/atharvakonge/market-game/internal/models"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/notifications", func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.URL.Query().Get("account_id"), 10, 64)
		if err != nil {
			http.Error(w, "bad account", http.StatusBadRequest)
			return
		}
		_ = hub.ServeNotifications(w, r, models.AccountID(id))
	})
	mux.HandleFunc("/ws/prices", func(w http.ResponseWriter, r *http.Request) {
		_ = hub.ServePrices(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_NotifyConnectedAccount(t *testing.T) {
	hub := NewHub()
	defer hub.Close()
	srv := newTestServer(t, hub)
	conn := dial(t, srv, "/ws/notifications?account_id=7")

	require.Eventually(t, func() bool { return hub.Connections(7) == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.NotifyWithImage(context.Background(), 7, "Your invite link: x", "welcome.png"))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "Your invite link: x", msg.Text)
	assert.Equal(t, "welcome.png", msg.Image)
}

func TestHub_NotifyWithoutConnectionFails(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	err := hub.Notify(context.Background(), 9, "hello")
	assert.ErrorIs(t, err, models.ErrDeliveryFailure)
}

func TestHub_DisconnectUnregisters(t *testing.T) {
	hub := NewHub()
	defer hub.Close()
	srv := newTestServer(t, hub)
	conn := dial(t, srv, "/ws/notifications?account_id=3")
	require.Eventually(t, func() bool { return hub.Connections(3) == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Connections(3) == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, hub.Notify(context.Background(), 3, "hello"), models.ErrDeliveryFailure)
}

func TestHub_PublishPrice(t *testing.T) {
	hub := NewHub()
	defer hub.Close()
	srv := newTestServer(t, hub)
	conn := dial(t, srv, "/ws/prices")

	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.prices) == 1
	}, 2*time.Second, 10*time.Millisecond)

	hub.PublishPrice(engine.PriceChange{
		Product:  models.Product{ID: 5, Name: "Oil", Price: decimal.NewFromInt(84), Availability: 10000},
		OldPrice: decimal.NewFromInt(70),
	})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var update PriceUpdate
	require.NoError(t, conn.ReadJSON(&update))
	assert.Equal(t, models.ProductID(5), update.ProductID)
	assert.Equal(t, "Oil", update.Name)
	assert.True(t, decimal.NewFromInt(84).Equal(update.Price))
	assert.True(t, decimal.NewFromInt(20).Equal(update.Change), "change %s", update.Change)
}

func TestHub_CloseRejectsDelivery(t *testing.T) {
	hub := NewHub()
	srv := newTestServer(t, hub)
	conn := dial(t, srv, "/ws/notifications?account_id=1")
	require.Eventually(t, func() bool { return hub.Connections(1) == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Close()
	assert.ErrorIs(t, hub.Notify(context.Background(), 1, "late"), models.ErrDeliveryFailure)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}
