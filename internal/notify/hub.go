// Package notify delivers participant messages and price updates over
// websockets.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/atharvakonge/market-game/internal/engine"
	"github.com/atharvakonge/market-game/internal/models"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 32
)

// Message is a notification pushed to one account.
type Message struct {
	Text      string    `json:"text"`
	Image     string    `json:"image,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// PriceUpdate represents a product price change
type PriceUpdate struct {
	ProductID models.ProductID `json:"product_id"`
	Name      string           `json:"name"`
	Price     decimal.Decimal  `json:"price"`
	OldPrice  decimal.Decimal  `json:"old_price"`
	Change    decimal.Decimal  `json:"change"` // percent
	Timestamp time.Time        `json:"timestamp"`
}

// NewPriceUpdate converts a committed price change into its wire form.
func NewPriceUpdate(c engine.PriceChange, now time.Time) PriceUpdate {
	change := decimal.Zero
	if !c.OldPrice.IsZero() {
		change = c.Product.Price.Sub(c.OldPrice).Div(c.OldPrice).Shift(2).Round(2)
	}
	return PriceUpdate{
		ProductID: c.Product.ID,
		Name:      c.Product.Name,
		Price:     c.Product.Price,
		OldPrice:  c.OldPrice,
		Change:    change,
		Timestamp: now,
	}
}

type client struct {
	conn *websocket.Conn
	send chan any
}

func (c *client) writePump() {
	defer c.conn.Close()
	for v := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(v); err != nil {
			log.Println("WebSocket write error:", err)
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

// Hub tracks open websocket connections per account plus price feed
// subscribers. It implements engine.Notifier and events.PriceSink.
type Hub struct {
	mu       sync.RWMutex
	accounts map[models.AccountID]map[*client]struct{}
	prices   map[*client]struct{}
	closed   bool

	upgrader websocket.Upgrader
	now      func() time.Time
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		accounts: map[models.AccountID]map[*client]struct{}{},
		prices:   map[*client]struct{}{},
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins (for development and demo)
			},
		},
		now: time.Now,
	}
}

var errHubClosed = errors.New("hub closed")

// ServeNotifications upgrades the request and streams account's messages
// until the client disconnects.
func (h *Hub) ServeNotifications(w http.ResponseWriter, r *http.Request, account models.AccountID) error {
	return h.serve(w, r, func(c *client) {
		if h.accounts[account] == nil {
			h.accounts[account] = map[*client]struct{}{}
		}
		h.accounts[account][c] = struct{}{}
	}, func(c *client) {
		delete(h.accounts[account], c)
		if len(h.accounts[account]) == 0 {
			delete(h.accounts, account)
		}
	})
}

// ServePrices upgrades the request and streams every price update until the
// client disconnects.
func (h *Hub) ServePrices(w http.ResponseWriter, r *http.Request) error {
	return h.serve(w, r, func(c *client) {
		h.prices[c] = struct{}{}
	}, func(c *client) {
		delete(h.prices, c)
	})
}

func (h *Hub) serve(w http.ResponseWriter, r *http.Request, register func(*client), unregister func(*client)) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("websocket upgrade: %w", err)
	}
	c := &client{conn: conn, send: make(chan any, sendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return errHubClosed
	}
	register(c)
	h.mu.Unlock()

	go c.writePump()

	// Clients only listen; reading detects the disconnect.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	unregister(c)
	if !h.closed {
		close(c.send)
	}
	h.mu.Unlock()
	return nil
}

// Notify queues text for every open connection of account. It fails with
// models.ErrDeliveryFailure when none accepted the message.
func (h *Hub) Notify(ctx context.Context, account models.AccountID, text string) error {
	return h.NotifyWithImage(ctx, account, text, "")
}

func (h *Hub) NotifyWithImage(_ context.Context, account models.AccountID, text, imageRef string) error {
	msg := Message{Text: text, Image: imageRef, Timestamp: h.now()}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return fmt.Errorf("account %d: %w: %w", account, models.ErrDeliveryFailure, errHubClosed)
	}
	delivered := 0
	for c := range h.accounts[account] {
		select {
		case c.send <- msg:
			delivered++
		default:
		}
	}
	if delivered == 0 {
		return fmt.Errorf("account %d has no open connection: %w", account, models.ErrDeliveryFailure)
	}
	return nil
}

// PublishPrice fans a price change out to the price feed. Slow subscribers
// miss the update.
func (h *Hub) PublishPrice(change engine.PriceChange) {
	update := NewPriceUpdate(change, h.now())

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	for c := range h.prices {
		select {
		case c.send <- update:
		default:
		}
	}
}

// Connections returns the number of open notification connections of account.
func (h *Hub) Connections(account models.AccountID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.accounts[account])
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, set := range h.accounts {
		for c := range set {
			close(c.send)
		}
	}
	for c := range h.prices {
		close(c.send)
	}
	log.Println("Notification hub closed")
}
