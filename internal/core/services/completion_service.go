package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/floorops/loyalty_ledger/internal/apperrors"
	"github.com/floorops/loyalty_ledger/internal/core/domain"
	portssvc "github.com/floorops/loyalty_ledger/internal/core/ports/services"
	"github.com/floorops/loyalty_ledger/internal/dto"
	"github.com/floorops/loyalty_ledger/internal/middleware"
)

// completionService runs the session-completion saga and its recovery
// re-entry point. The saga is two steps without a cross-step transaction:
//
//	OPEN -> TELEMETRY_CLOSED   (finalize telemetry; unrepeatable)
//	TELEMETRY_CLOSED -> ACCRUED (ledger write; idempotent by session ref)
//
// A step-1 failure leaves no state behind (FAILED, retry the whole thing).
// A step-2 failure is PARTIAL: the typed error carries the session ref and
// correlation id that Recover needs.
type completionService struct {
	sessionSvc portssvc.SessionSvcFacade
	ledgerSvc  portssvc.LedgerSvcFacade
	calculator portssvc.PointsCalculator
}

// NewCompletionService creates a new CompletionService.
func NewCompletionService(sessionSvc portssvc.SessionSvcFacade, ledgerSvc portssvc.LedgerSvcFacade, calculator portssvc.PointsCalculator) portssvc.CompletionSvcFacade {
	return &completionService{
		sessionSvc: sessionSvc,
		ledgerSvc:  ledgerSvc,
		calculator: calculator,
	}
}

var _ portssvc.CompletionSvcFacade = (*completionService)(nil)

// CompleteSession closes the session's telemetry and accrues gameplay points.
func (s *completionService) CompleteSession(ctx context.Context, sessionRef string, durationSeconds int64) (*domain.CompletionResult, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	// Step 1: finalize telemetry. Guarded by the session's own OPEN-state
	// check; on failure nothing happened and the caller may retry freely.
	telemetry, err := s.sessionSvc.CloseSession(ctx, sessionRef, durationSeconds)
	if err != nil {
		return nil, fmt.Errorf("session completion failed before any mutation: %w", err)
	}

	// Step 2: accrue. The session ref is the idempotency key, so a crash
	// between the steps (or a failure here) is recoverable by replaying
	// this step alone.
	entry, err := s.accrueForTelemetry(ctx, telemetry)
	if err != nil {
		correlationID := middleware.GetCorrelationIDFromCtx(ctx)
		logger.Error("Session closed but accrual failed",
			slog.String("session_ref", sessionRef),
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()))
		return nil, &apperrors.PartialCompletionError{
			SessionRef:    sessionRef,
			CorrelationID: correlationID,
			Err:           err,
		}
	}

	if entry != nil {
		logger.Info("Session completed",
			slog.String("session_ref", sessionRef),
			slog.String("entry_id", entry.EntryID),
			slog.Int64("points_delta", entry.PointsDelta))
	}
	return &domain.CompletionResult{State: domain.CompletionAccrued, Entry: entry}, nil
}

// Recover replays step 2 of the saga for a session whose telemetry close
// committed but whose accrual did not. Because the idempotency key and
// uniqueness constraint are identical to the original attempt, any number of
// invocations converge to the single correct entry; no separate "already
// recovered" bookkeeping exists.
func (s *completionService) Recover(ctx context.Context, sessionRef string) (*domain.LedgerEntry, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	session, err := s.sessionSvc.GetSession(ctx, sessionRef)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			logger.Error("Failed to load session for recovery",
				slog.String("session_ref", sessionRef), slog.String("error", err.Error()))
		}
		return nil, err
	}

	if session.Status != domain.SessionClosed {
		logger.Warn("Recovery rejected: session not closed",
			slog.String("session_ref", sessionRef), slog.String("status", string(session.Status)))
		return nil, fmt.Errorf("recovery for session %s: %w", sessionRef, apperrors.ErrSessionNotClosed)
	}

	entry, err := s.accrueForTelemetry(ctx, &domain.SessionTelemetry{
		SessionRef:      session.SessionRef,
		PlayerID:        session.PlayerID,
		BetLevel:        session.BetLevel,
		DurationSeconds: session.DurationSeconds,
		GameParams:      session.GameParams,
	})
	if err != nil {
		logger.Error("Recovery accrual failed",
			slog.String("session_ref", sessionRef), slog.String("error", err.Error()))
		return nil, err
	}
	if entry == nil {
		return nil, fmt.Errorf("session %s yielded no points, nothing to recover: %w", sessionRef, apperrors.ErrValidation)
	}

	logger.Info("Session recovered",
		slog.String("session_ref", sessionRef),
		slog.String("entry_id", entry.EntryID))
	return entry, nil
}

// accrueForTelemetry is step 2 of the saga, shared verbatim with recovery so
// both paths resolve the identical idempotency key. A nil entry with nil
// error means the session yielded no points and there was nothing to append.
func (s *completionService) accrueForTelemetry(ctx context.Context, telemetry *domain.SessionTelemetry) (*domain.LedgerEntry, error) {
	pointsDelta := s.calculator(telemetry.BetLevel, telemetry.DurationSeconds, telemetry.GameParams)
	if pointsDelta <= 0 {
		// A zero-point session is a completed session with nothing to
		// accrue, not a failure.
		middleware.GetLoggerFromCtx(ctx).Info("Session yielded no points",
			slog.String("session_ref", telemetry.SessionRef))
		return nil, nil
	}

	return s.ledgerSvc.Accrue(ctx, dto.AccrueCommand{
		PlayerID:        telemetry.PlayerID,
		PointsDelta:     pointsDelta,
		TransactionType: domain.Gameplay,
		Source:          domain.SourceSystem,
		SessionRef:      telemetry.SessionRef,
	})
}
