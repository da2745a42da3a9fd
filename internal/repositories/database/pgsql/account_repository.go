package pgsql

import (
	"context"
	"errors"
	"time"

	"github.com/floorops/loyalty_ledger/internal/apperrors"
	"github.com/floorops/loyalty_ledger/internal/core/domain"
	portsrepo "github.com/floorops/loyalty_ledger/internal/core/ports/repositories"
	"github.com/floorops/loyalty_ledger/internal/models"
	"github.com/floorops/loyalty_ledger/internal/utils/mapping"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxAccountRepository reads the cached loyalty aggregate and provides the
// in-transaction lock/mutate primitives used by the ledger repository.
type PgxAccountRepository struct {
	BaseRepository
}

// NewAccountRepository creates a new repository for loyalty account data.
func NewAccountRepository(pool *pgxpool.Pool) *PgxAccountRepository {
	return &PgxAccountRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.AccountRepositoryFacade = (*PgxAccountRepository)(nil)

// FindAccountByPlayerID retrieves the cached aggregate for a player.
func (r *PgxAccountRepository) FindAccountByPlayerID(ctx context.Context, playerID string) (*domain.LoyaltyAccount, error) {
	query := `
		SELECT player_id, current_balance, lifetime_points, tier, tier_progress, created_at, updated_at
		FROM loyalty_accounts
		WHERE player_id = $1;
	`
	var m models.LoyaltyAccount
	err := r.Pool.QueryRow(ctx, query, playerID).Scan(
		&m.PlayerID,
		&m.CurrentBalance,
		&m.LifetimePoints,
		&m.Tier,
		&m.TierProgress,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.NewAppError(500, "failed to find loyalty account "+playerID, classifyPgError(err))
	}

	account := mapping.ToDomainAccount(m)
	return &account, nil
}

// ensureAccountInTx creates the account row with zero balances if it does not
// exist yet (first-accrual bootstrap). Runs inside the caller's transaction
// so bootstrap and the first ledger write commit as one unit.
func (r *PgxAccountRepository) ensureAccountInTx(ctx context.Context, tx pgx.Tx, playerID string, defaultTier domain.Tier, now time.Time) error {
	query := `
		INSERT INTO loyalty_accounts (player_id, current_balance, lifetime_points, tier, tier_progress, created_at, updated_at)
		VALUES ($1, 0, 0, $2, 0, $3, $3)
		ON CONFLICT (player_id) DO NOTHING;
	`
	if _, err := tx.Exec(ctx, query, playerID, string(defaultTier), now); err != nil {
		return apperrors.NewAppError(500, "failed to bootstrap loyalty account "+playerID, classifyPgError(err))
	}
	return nil
}

// findAccountForUpdate retrieves the account row and locks it exclusively.
// Must be called within a transaction; the lock is held until that
// transaction ends, serializing concurrent writers for the same player.
func (r *PgxAccountRepository) findAccountForUpdate(ctx context.Context, tx pgx.Tx, playerID string) (*models.LoyaltyAccount, error) {
	query := `
		SELECT player_id, current_balance, lifetime_points, tier, tier_progress, created_at, updated_at
		FROM loyalty_accounts
		WHERE player_id = $1
		FOR UPDATE;
	`
	var m models.LoyaltyAccount
	err := tx.QueryRow(ctx, query, playerID).Scan(
		&m.PlayerID,
		&m.CurrentBalance,
		&m.LifetimePoints,
		&m.Tier,
		&m.TierProgress,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// ensureAccountInTx ran first, so this is a genuine anomaly.
			return nil, apperrors.NewNotFoundError("loyalty account " + playerID + " missing after bootstrap")
		}
		return nil, apperrors.NewAppError(500, "failed to lock loyalty account "+playerID, classifyPgError(err))
	}
	return &m, nil
}

// updateAccountInTx persists the mutated aggregate inside the caller's
// transaction, while the row lock is still held.
func (r *PgxAccountRepository) updateAccountInTx(ctx context.Context, tx pgx.Tx, m models.LoyaltyAccount) error {
	query := `
		UPDATE loyalty_accounts
		SET current_balance = $2,
		    lifetime_points = $3,
		    tier = $4,
		    tier_progress = $5,
		    updated_at = $6
		WHERE player_id = $1;
	`
	cmdTag, err := tx.Exec(ctx, query,
		m.PlayerID,
		m.CurrentBalance,
		m.LifetimePoints,
		m.Tier,
		m.TierProgress,
		m.UpdatedAt,
	)
	if err != nil {
		return apperrors.NewAppError(500, "failed to update loyalty account "+m.PlayerID, classifyPgError(err))
	}
	if cmdTag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("loyalty account " + m.PlayerID + " not found for update")
	}
	return nil
}
