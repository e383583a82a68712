package handlers

import (
	"github.com/atharvakonge/market-game/internal/notify"
	"github.com/gin-gonic/gin"
)

// NewRouter wires every HTTP and WebSocket endpoint onto a gin engine.
func NewRouter(h *Handler, hub *notify.Hub) *gin.Engine {
	router := gin.Default()

	api := router.Group("/api")
	{
		// Trading endpoints
		api.POST("/trades/buy", h.BuyProduct)
		api.POST("/trades/sell", h.SellProduct)
		api.GET("/trades/:accountId", h.GetTradeHistory)
		api.GET("/portfolio/:accountId", h.GetPortfolio)
		api.GET("/wealth/:accountId", h.GetWealth)
		api.GET("/ranking", h.GetRanking)
		api.GET("/market", h.GetMarket)

		// Accounts
		api.POST("/accounts", h.Register)
		api.GET("/accounts/:accountId/invite-link", h.GetInviteLink)
		api.GET("/accounts/:accountId/username", h.GetUsername)
		api.PUT("/accounts/:accountId/username", h.ChangeUsername)

		// Companies
		api.POST("/companies", h.CreateCompany)
		api.GET("/companies/:accountId", h.ShowCompany)
		api.POST("/companies/invitations", h.InviteMember)
		api.POST("/invitations/accept", h.AcceptInvitation)
		api.POST("/invitations/decline", h.DeclineInvitation)
	}

	if hub != nil {
		router.GET("/ws/notifications", NotificationsWebSocket(hub))
		router.GET("/ws/prices", PricesWebSocket(hub))
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "healthy"})
	})

	return router
}
