package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/floorops/loyalty_ledger/internal/apperrors"
	"github.com/floorops/loyalty_ledger/internal/core/domain"
	portssvc "github.com/floorops/loyalty_ledger/internal/core/ports/services"
	"github.com/floorops/loyalty_ledger/internal/dto"
	"github.com/floorops/loyalty_ledger/internal/middleware"
	"github.com/gin-gonic/gin"
)

// ledgerHandler handles HTTP requests for accruals and the ledger read
// surface.
type ledgerHandler struct {
	ledgerService portssvc.LedgerSvcFacade
}

func newLedgerHandler(ls portssvc.LedgerSvcFacade) *ledgerHandler {
	return &ledgerHandler{ledgerService: ls}
}

// registerLedgerRoutes registers accrual and ledger read routes.
func registerLedgerRoutes(rg *gin.RouterGroup, ledgerService portssvc.LedgerSvcFacade) {
	h := newLedgerHandler(ledgerService)

	loyalty := rg.Group("/loyalty")
	{
		loyalty.POST("/accruals", h.manualGrant)
		loyalty.POST("/promotions", h.promotionGrant)
	}

	players := rg.Group("/players")
	{
		players.GET("/:playerID/account", h.getAccount)
		players.GET("/:playerID/ledger", h.listLedger)
	}
}

// manualGrant records a staff-initiated grant, redemption, or adjustment.
// The acting staff member comes from the verified token, never the body.
func (h *ledgerHandler) manualGrant(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	var req dto.ManualGrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for manual grant", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	staffRef, ok := middleware.GetStaffRefFromCtx(c.Request.Context())
	if !ok {
		logger.Error("Staff ref not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	cmd := dto.AccrueCommand{
		PlayerID:        req.PlayerID,
		PointsDelta:     req.PointsDelta,
		TransactionType: domain.TransactionType(req.TransactionType),
		Source:          domain.SourceManual,
		Reason:          req.Reason,
		StaffRef:        staffRef,
	}

	entry, err := h.ledgerService.Accrue(c.Request.Context(), cmd)
	if err != nil {
		h.writeAccrueError(c, logger, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToLedgerEntryResponse(entry))
}

// promotionGrant credits points for an externally identified reward.
func (h *ledgerHandler) promotionGrant(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	var req dto.PromotionGrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for promotion grant", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	staffRef, _ := middleware.GetStaffRefFromCtx(c.Request.Context())

	cmd := dto.AccrueCommand{
		PlayerID:        req.PlayerID,
		PointsDelta:     req.PointsDelta,
		TransactionType: domain.Promotion,
		Source:          domain.SourcePromotion,
		ExternalRef:     req.RewardRef,
		Reason:          req.Reason,
		StaffRef:        staffRef,
	}

	entry, err := h.ledgerService.Accrue(c.Request.Context(), cmd)
	if err != nil {
		h.writeAccrueError(c, logger, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToLedgerEntryResponse(entry))
}

// writeAccrueError maps accrual failures onto HTTP statuses.
func (h *ledgerHandler) writeAccrueError(c *gin.Context, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, apperrors.ErrInsufficientBalance):
		logger.Warn("Accrual rejected: insufficient balance", slog.String("error", err.Error()))
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrValidation):
		logger.Warn("Validation error on accrual", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrUnavailable):
		logger.Error("Ledger store unavailable", slog.String("error", err.Error()))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Ledger store unavailable"})
	default:
		logger.Error("Failed to record accrual", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record accrual"})
	}
}

// getAccount returns the cached loyalty aggregate for a player.
func (h *ledgerHandler) getAccount(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	playerID := c.Param("playerID")

	account, err := h.ledgerService.GetAccount(c.Request.Context(), playerID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Account not found"})
			return
		}
		logger.Error("Failed to fetch account", slog.String("player_id", playerID), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch account"})
		return
	}

	c.JSON(http.StatusOK, dto.ToAccountResponse(account))
}

// listLedger returns one page of a player's ledger, newest first.
func (h *ledgerHandler) listLedger(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	playerID := c.Param("playerID")

	var query struct {
		Limit     int     `form:"limit"`
		NextToken *string `form:"nextToken"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters: " + err.Error()})
		return
	}

	resp, err := h.ledgerService.ListByPlayer(c.Request.Context(), playerID, dto.ListLedgerParams{
		Limit:     query.Limit,
		NextToken: query.NextToken,
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logger.Error("Failed to list ledger entries", slog.String("player_id", playerID), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list ledger entries"})
		return
	}

	c.JSON(http.StatusOK, resp)
}
