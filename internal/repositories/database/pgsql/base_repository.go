package pgsql

import (
	"context"
	"database/sql"
	"errors"

	"github.com/floorops/loyalty_ledger/internal/apperrors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BaseRepository provides common functionality for all repositories.
type BaseRepository struct {
	Pool *pgxpool.Pool
}

// Begin starts a new database transaction.
func (r *BaseRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return nil, apperrors.NewAppError(503, "failed to begin transaction", classifyPgError(err))
	}
	return tx, nil
}

// Commit commits a transaction.
func (r *BaseRepository) Commit(ctx context.Context, tx pgx.Tx) error {
	if err := tx.Commit(ctx); err != nil {
		return apperrors.NewAppError(503, "failed to commit transaction", classifyPgError(err))
	}
	return nil
}

// Rollback rolls back a transaction.
func (r *BaseRepository) Rollback(ctx context.Context, tx pgx.Tx) error {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, sql.ErrTxDone) && !errors.Is(err, pgx.ErrTxClosed) {
		return apperrors.NewAppError(500, "failed to rollback transaction", err)
	}
	return nil
}

// classifyPgError maps storage-engine failures onto the application error
// taxonomy so pgx representations never leak to callers. Connection-class
// failures become the retryable ErrUnavailable; context cancellation passes
// through so callers can tell an aborted wait from a down store.
func classifyPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08: connection exceptions; class 57: operator intervention
		// (shutdown); 55P03: lock not available.
		code := pgErr.Code
		if len(code) >= 2 && (code[:2] == "08" || code[:2] == "57") || code == "55P03" {
			return errors.Join(apperrors.ErrUnavailable, err)
		}
		return err
	}

	// Dial/teardown failures arrive as plain net errors from pgconn.
	return errors.Join(apperrors.ErrUnavailable, err)
}
