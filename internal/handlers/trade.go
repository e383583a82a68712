package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/atharvakonge/market-game/internal/engine"
	"github.com/atharvakonge/market-game/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/samber/mo"
)

// Handler exposes game operations over HTTP.
type Handler struct {
	game   *engine.Game
	trades *TradeProcessor
}

// NewHandler returns a handler routing trades through trades.
func NewHandler(game *engine.Game, trades *TradeProcessor) *Handler {
	return &Handler{game: game, trades: trades}
}

// statusFor maps error kinds to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrAccountNotFound),
		errors.Is(err, models.ErrProductNotFound),
		errors.Is(err, models.ErrCompanyNotFound),
		errors.Is(err, models.ErrNoCompanyOwned):
		return http.StatusNotFound
	case errors.Is(err, models.ErrCompanyAlreadyOwned),
		errors.Is(err, models.ErrUsernameTaken),
		errors.Is(err, models.ErrNoPendingInvitation):
		return http.StatusConflict
	case errors.Is(err, models.ErrInsufficientFunds),
		errors.Is(err, models.ErrInsufficientHoldings),
		errors.Is(err, models.ErrInsufficientAvailability):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ErrProcessorStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("%s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": models.UserMessage(err)})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func accountParam(c *gin.Context, name string) (models.AccountID, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid account ID"})
		return 0, false
	}
	return models.AccountID(id), true
}

// BuyProduct handles POST /api/trades/buy
func (h *Handler) BuyProduct(c *gin.Context) {
	h.trade(c, models.TradeBuy)
}

// SellProduct handles POST /api/trades/sell
func (h *Handler) SellProduct(c *gin.Context) {
	h.trade(c, models.TradeSell)
}

func (h *Handler) trade(c *gin.Context, kind models.TradeKind) {
	var req models.TradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result := h.trades.SubmitTrade(c.Request.Context(), kind, req)
	if !result.Success() {
		fail(c, result.Err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "Trade executed successfully",
		"trade_id":    result.Transaction.ID,
		"unit_price":  result.Transaction.UnitPrice,
		"total_price": result.Transaction.Total(),
	})
}

// GetTradeHistory handles GET /api/trades/:accountId
func (h *Handler) GetTradeHistory(c *gin.Context) {
	id, ok := accountParam(c, "accountId")
	if !ok {
		return
	}
	trades, err := h.game.History(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, trades)
}

// GetPortfolio handles GET /api/portfolio/:accountId
func (h *Handler) GetPortfolio(c *gin.Context) {
	id, ok := accountParam(c, "accountId")
	if !ok {
		return
	}
	resp, err := h.game.Portfolio(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetWealth handles GET /api/wealth/:accountId
func (h *Handler) GetWealth(c *gin.Context) {
	id, ok := accountParam(c, "accountId")
	if !ok {
		return
	}
	w, err := h.game.Wealth(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": w.Total, "balance": w.Balance})
}

// GetRanking handles GET /api/ranking
func (h *Handler) GetRanking(c *gin.Context) {
	entries, err := h.game.Ranking(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// GetMarket handles GET /api/market
func (h *Handler) GetMarket(c *gin.Context) {
	products, err := h.game.Products(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

// Register handles POST /api/accounts. The first contact answers 201,
// repeated ones 200 with the account unchanged.
func (h *Handler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	referral := mo.EmptyableToOption(req.ReferralCode)
	reg, err := h.game.RegisterOrGreet(c.Request.Context(), req.AccountID, req.Username, referral)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(lo.Ternary(reg.Created, http.StatusCreated, http.StatusOK), reg)
}

// GetInviteLink handles GET /api/accounts/:accountId/invite-link and also
// delivers the link to the account.
func (h *Handler) GetInviteLink(c *gin.Context) {
	id, ok := accountParam(c, "accountId")
	if !ok {
		return
	}
	link, err := h.game.SendInviteLink(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invite_link": link})
}

// GetUsername handles GET /api/accounts/:accountId/username
func (h *Handler) GetUsername(c *gin.Context) {
	id, ok := accountParam(c, "accountId")
	if !ok {
		return
	}
	name, err := h.game.ChangeUsername(c.Request.Context(), id, mo.None[string]())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"username": name})
}

// ChangeUsername handles PUT /api/accounts/:accountId/username
func (h *Handler) ChangeUsername(c *gin.Context) {
	id, ok := accountParam(c, "accountId")
	if !ok {
		return
	}
	var req models.UsernameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	name, err := h.game.ChangeUsername(c.Request.Context(), id, mo.Some(req.Username))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"username": name})
}

// CreateCompany handles POST /api/companies
func (h *Handler) CreateCompany(c *gin.Context) {
	var req models.CompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	company, err := h.game.CreateCompany(c.Request.Context(), req.AccountID, req.Name)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, company)
}

// ShowCompany handles GET /api/companies/:accountId
func (h *Handler) ShowCompany(c *gin.Context) {
	id, ok := accountParam(c, "accountId")
	if !ok {
		return
	}
	info, err := h.game.ShowCompany(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// InviteMember handles POST /api/companies/invitations
func (h *Handler) InviteMember(c *gin.Context) {
	var req models.InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	m, err := h.game.InviteMember(c.Request.Context(), req.OwnerID, req.Username, req.Role)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

// AcceptInvitation handles POST /api/invitations/accept
func (h *Handler) AcceptInvitation(c *gin.Context) {
	h.resolve(c, h.game.AcceptInvitation)
}

// DeclineInvitation handles POST /api/invitations/decline
func (h *Handler) DeclineInvitation(c *gin.Context) {
	h.resolve(c, h.game.DeclineInvitation)
}

func (h *Handler) resolve(c *gin.Context, op func(ctx context.Context, id models.AccountID) (*engine.Invitation, error)) {
	var req models.AccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	inv, err := op(c.Request.Context(), req.AccountID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}
