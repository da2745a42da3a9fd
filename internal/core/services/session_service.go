package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/floorops/loyalty_ledger/internal/apperrors"
	"github.com/floorops/loyalty_ledger/internal/core/domain"
	portsrepo "github.com/floorops/loyalty_ledger/internal/core/ports/repositories"
	portssvc "github.com/floorops/loyalty_ledger/internal/core/ports/services"
	"github.com/floorops/loyalty_ledger/internal/dto"
	"github.com/floorops/loyalty_ledger/internal/middleware"
)

// sessionService owns gameplay session telemetry records.
type sessionService struct {
	sessionRepo portsrepo.SessionRepositoryFacade
}

// NewSessionService creates a new SessionService.
func NewSessionService(sessionRepo portsrepo.SessionRepositoryFacade) portssvc.SessionSvcFacade {
	return &sessionService{sessionRepo: sessionRepo}
}

var _ portssvc.SessionSvcFacade = (*sessionService)(nil)

// OpenSession registers a new OPEN session. The session ref is caller-supplied
// when the floor system already assigned one, otherwise generated.
func (s *sessionService) OpenSession(ctx context.Context, req dto.OpenSessionRequest) (*domain.GameSession, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	sessionRef := req.SessionRef
	if sessionRef == "" {
		sessionRef = uuid.NewString()
	}

	session := domain.GameSession{
		SessionRef: sessionRef,
		PlayerID:   req.PlayerID,
		Status:     domain.SessionOpen,
		BetLevel:   req.BetLevel,
		GameParams: domain.GameParams{
			GameCode:         req.GameCode,
			PointsMultiplier: req.PointsMultiplier,
		},
		OpenedAt: time.Now().UTC(),
	}

	if err := s.sessionRepo.CreateSession(ctx, session); err != nil {
		if errors.Is(err, apperrors.ErrDuplicate) {
			return nil, fmt.Errorf("session %s already exists: %w", sessionRef, err)
		}
		logger.Error("Failed to create session", slog.String("session_ref", sessionRef), slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	logger.Info("Session opened", slog.String("session_ref", sessionRef), slog.String("player_id", req.PlayerID))
	return &session, nil
}

// GetSession returns a session's telemetry record.
func (s *sessionService) GetSession(ctx context.Context, sessionRef string) (*domain.GameSession, error) {
	return s.sessionRepo.FindSessionByRef(ctx, sessionRef)
}

// CloseSession finalizes the session's telemetry. Only an OPEN session can be
// closed; a second close attempt fails with ErrConflict.
func (s *sessionService) CloseSession(ctx context.Context, sessionRef string, durationSeconds int64) (*domain.SessionTelemetry, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	telemetry, err := s.sessionRepo.CloseSession(ctx, sessionRef, durationSeconds, time.Now().UTC())
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, apperrors.ErrConflict) {
			logger.Warn("Session close rejected", slog.String("session_ref", sessionRef), slog.String("error", err.Error()))
		} else {
			logger.Error("Failed to close session", slog.String("session_ref", sessionRef), slog.String("error", err.Error()))
		}
		return nil, err
	}

	logger.Info("Session telemetry closed",
		slog.String("session_ref", sessionRef),
		slog.String("player_id", telemetry.PlayerID),
		slog.Int64("duration_seconds", telemetry.DurationSeconds))
	return telemetry, nil
}
