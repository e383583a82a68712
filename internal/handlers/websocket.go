package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/atharvakonge/market-game/internal/models"
	"github.com/atharvakonge/market-game/internal/notify"
	"github.com/gin-gonic/gin"
)

// NotificationsWebSocket streams an account's notifications:
// GET /ws/notifications?account_id=N
func NotificationsWebSocket(hub *notify.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Query("account_id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid account ID"})
			return
		}

		log.Printf("Account %d connected to WebSocket", id)
		if err := hub.ServeNotifications(c.Writer, c.Request, models.AccountID(id)); err != nil {
			log.Println("WebSocket error:", err)
			return
		}
		log.Printf("Account %d disconnected from WebSocket", id)
	}
}

// PricesWebSocket streams market price updates: GET /ws/prices
func PricesWebSocket(hub *notify.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		log.Println("Client connected to price feed")
		if err := hub.ServePrices(c.Writer, c.Request); err != nil {
			log.Println("WebSocket error:", err)
		}
	}
}
