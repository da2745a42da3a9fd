package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/floorops/loyalty_ledger/internal/apperrors"
	portssvc "github.com/floorops/loyalty_ledger/internal/core/ports/services"
	"github.com/floorops/loyalty_ledger/internal/dto"
	"github.com/floorops/loyalty_ledger/internal/middleware"
	"github.com/gin-gonic/gin"
)

// sessionHandler handles HTTP requests for session telemetry, the
// completion saga, and recovery.
type sessionHandler struct {
	sessionService    portssvc.SessionSvcFacade
	completionService portssvc.CompletionSvcFacade
	ledgerService     portssvc.LedgerSvcFacade
}

func newSessionHandler(ss portssvc.SessionSvcFacade, cs portssvc.CompletionSvcFacade, ls portssvc.LedgerSvcFacade) *sessionHandler {
	return &sessionHandler{
		sessionService:    ss,
		completionService: cs,
		ledgerService:     ls,
	}
}

// registerSessionRoutes registers session lifecycle routes.
func registerSessionRoutes(rg *gin.RouterGroup, sessionService portssvc.SessionSvcFacade, completionService portssvc.CompletionSvcFacade, ledgerService portssvc.LedgerSvcFacade) {
	h := newSessionHandler(sessionService, completionService, ledgerService)

	sessions := rg.Group("/sessions")
	{
		sessions.POST("", h.openSession)
		sessions.GET("/:sessionRef", h.getSession)
		sessions.POST("/:sessionRef/complete", h.completeSession)
		sessions.POST("/:sessionRef/recover", h.recoverSession)
		sessions.GET("/:sessionRef/ledger", h.listSessionLedger)
	}
}

// openSession registers a new OPEN gameplay session.
func (h *sessionHandler) openSession(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	var req dto.OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for open session", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	session, err := h.sessionService.OpenSession(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, apperrors.ErrDuplicate) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		if errors.Is(err, apperrors.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logger.Error("Failed to open session", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to open session"})
		return
	}

	c.JSON(http.StatusCreated, dto.ToSessionResponse(session))
}

// getSession returns a session telemetry record.
func (h *sessionHandler) getSession(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	sessionRef := c.Param("sessionRef")

	session, err := h.sessionService.GetSession(c.Request.Context(), sessionRef)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
			return
		}
		logger.Error("Failed to fetch session", slog.String("session_ref", sessionRef), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch session"})
		return
	}

	c.JSON(http.StatusOK, dto.ToSessionResponse(session))
}

// completeSession runs the two-step completion: close telemetry, then accrue
// gameplay points. A failure after the close committed is surfaced as 502
// PARTIAL_COMPLETION so the caller knows to invoke recovery rather than
// retry completion.
func (h *sessionHandler) completeSession(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	sessionRef := c.Param("sessionRef")

	var req dto.CompleteSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for complete session", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	result, err := h.completionService.CompleteSession(c.Request.Context(), sessionRef, req.DurationSeconds)
	if err != nil {
		var partialErr *apperrors.PartialCompletionError
		if errors.As(err, &partialErr) {
			logger.Error("Session completion left partial",
				slog.String("session_ref", partialErr.SessionRef),
				slog.String("correlation_id", partialErr.CorrelationID),
				slog.String("error", partialErr.Error()))
			c.JSON(http.StatusBadGateway, gin.H{
				"code":          "PARTIAL_COMPLETION",
				"sessionRef":    partialErr.SessionRef,
				"correlationId": partialErr.CorrelationID,
			})
			return
		}
		if errors.Is(err, apperrors.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
			return
		}
		if errors.Is(err, apperrors.ErrConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		logger.Error("Failed to complete session", slog.String("session_ref", sessionRef), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to complete session"})
		return
	}

	c.JSON(http.StatusOK, dto.ToCompletionResponse(result))
}

// recoverSession replays the accrual step for a partially completed session.
func (h *sessionHandler) recoverSession(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	sessionRef := c.Param("sessionRef")

	entry, err := h.completionService.Recover(c.Request.Context(), sessionRef)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
			return
		}
		if errors.Is(err, apperrors.ErrSessionNotClosed) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		if errors.Is(err, apperrors.ErrValidation) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		logger.Error("Failed to recover session accrual", slog.String("session_ref", sessionRef), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to recover session accrual"})
		return
	}

	c.JSON(http.StatusOK, dto.ToLedgerEntryResponse(entry))
}

// listSessionLedger returns every ledger entry linked to a session.
func (h *sessionHandler) listSessionLedger(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	sessionRef := c.Param("sessionRef")

	entries, err := h.ledgerService.ListBySession(c.Request.Context(), sessionRef)
	if err != nil {
		logger.Error("Failed to list session ledger", slog.String("session_ref", sessionRef), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list session ledger"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": dto.ToLedgerEntryResponses(entries)})
}
