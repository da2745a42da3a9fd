package services

import (
	"context"

	"github.com/floorops/loyalty_ledger/internal/core/domain"
	"github.com/floorops/loyalty_ledger/internal/dto"
	"github.com/shopspring/decimal"
)

// LedgerSvcFacade is the Ledger Writer plus the read-only ledger surface.
type LedgerSvcFacade interface {
	// Accrue appends a ledger entry for the command, idempotently. The
	// returned entry may be a replay of an earlier identical attempt;
	// callers must treat both outcomes as success.
	Accrue(ctx context.Context, cmd dto.AccrueCommand) (*domain.LedgerEntry, error)

	GetAccount(ctx context.Context, playerID string) (*domain.LoyaltyAccount, error)
	ListByPlayer(ctx context.Context, playerID string, params dto.ListLedgerParams) (*dto.ListLedgerResponse, error)
	ListBySession(ctx context.Context, sessionRef string) ([]domain.LedgerEntry, error)
}

// SessionSvcFacade is the session/telemetry collaborator contract.
type SessionSvcFacade interface {
	OpenSession(ctx context.Context, req dto.OpenSessionRequest) (*domain.GameSession, error)
	GetSession(ctx context.Context, sessionRef string) (*domain.GameSession, error)

	// CloseSession finalizes the session's telemetry. Fails with ErrConflict
	// if the session is not OPEN.
	CloseSession(ctx context.Context, sessionRef string, durationSeconds int64) (*domain.SessionTelemetry, error)
}

// CompletionSvcFacade is the session-completion saga and its recovery
// re-entry point.
type CompletionSvcFacade interface {
	CompleteSession(ctx context.Context, sessionRef string, durationSeconds int64) (*domain.CompletionResult, error)

	// Recover replays the accrual step for a session whose telemetry close
	// committed but whose accrual did not. Converges to the same single
	// entry on any number of invocations.
	Recover(ctx context.Context, sessionRef string) (*domain.LedgerEntry, error)
}

// PointsCalculator is the provided points policy: pure, no I/O.
type PointsCalculator func(betLevel decimal.Decimal, durationSeconds int64, params domain.GameParams) int64

// ServiceContainer bundles the service facades for route registration.
type ServiceContainer struct {
	Ledger     LedgerSvcFacade
	Session    SessionSvcFacade
	Completion CompletionSvcFacade
}
