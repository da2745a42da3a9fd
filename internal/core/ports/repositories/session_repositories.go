package repositories

import (
	"context"
	"time"

	"github.com/floorops/loyalty_ledger/internal/core/domain"
)

// SessionRepositoryFacade persists gameplay session telemetry.
type SessionRepositoryFacade interface {
	CreateSession(ctx context.Context, session domain.GameSession) error

	FindSessionByRef(ctx context.Context, sessionRef string) (*domain.GameSession, error)

	// CloseSession transitions the session from OPEN to CLOSED, recording
	// final telemetry, and returns the captured values. It fails with
	// ErrNotFound if the session does not exist and ErrConflict if it is not
	// OPEN; the state guard makes the close unrepeatable.
	CloseSession(ctx context.Context, sessionRef string, durationSeconds int64, closedAt time.Time) (*domain.SessionTelemetry, error)

	// ListClosedWithoutAccrual returns session refs whose telemetry is
	// CLOSED but for which no GAMEPLAY ledger entry exists. These are the
	// sessions stranded by a partial saga failure.
	ListClosedWithoutAccrual(ctx context.Context, limit int) ([]string, error)
}
