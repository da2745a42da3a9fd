package pgsql

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/floorops/loyalty_ledger/internal/apperrors"
	"github.com/floorops/loyalty_ledger/internal/core/domain"
	portsrepo "github.com/floorops/loyalty_ledger/internal/core/ports/repositories"
	"github.com/floorops/loyalty_ledger/internal/models"
	"github.com/floorops/loyalty_ledger/internal/utils/mapping"
	"github.com/floorops/loyalty_ledger/internal/utils/pagination"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TierPolicy is the lookup the locked mutation uses to recompute the tier
// snapshot. Satisfied by services.TierPolicy.
type TierPolicy interface {
	TierFor(lifetimePoints int64) (domain.Tier, int)
}

// PgxLedgerRepository is the durable append-only ledger plus the row-locked
// account mutator.
type PgxLedgerRepository struct {
	BaseRepository
	accountRepo *PgxAccountRepository
	tierPolicy  TierPolicy
}

// NewLedgerRepository creates a new repository for ledger entry data.
func NewLedgerRepository(pool *pgxpool.Pool, accountRepo *PgxAccountRepository, tierPolicy TierPolicy) portsrepo.LedgerRepositoryFacade {
	return &PgxLedgerRepository{
		BaseRepository: BaseRepository{Pool: pool},
		accountRepo:    accountRepo,
		tierPolicy:     tierPolicy,
	}
}

var _ portsrepo.LedgerRepositoryFacade = (*PgxLedgerRepository)(nil)

const ledgerColumns = `entry_id, player_id, session_ref, idempotency_key, points_delta,
	transaction_type, source, reason, staff_ref, balance_before, balance_after,
	tier_before, tier_after, correlation_id, created_at`

// AppendAndMutate appends the drafted entry and mutates the player's account
// row in one atomic unit:
//
//  1. bootstrap the account row if absent (first accrual),
//  2. lock the account row exclusively (serializes writers per player),
//  3. insert the entry under the (idempotency_key, transaction_type, source)
//     uniqueness constraint with ON CONFLICT DO NOTHING,
//  4. on a fresh insert, compute the new balances and tier and persist both
//     rows before committing.
//
// A conflict on the uniqueness constraint is the idempotent-replay success
// path: the transaction is rolled back untouched and the pre-existing entry
// is returned with wasDuplicate=true.
func (r *PgxLedgerRepository) AppendAndMutate(ctx context.Context, draft domain.EntryDraft) (*domain.LedgerEntry, bool, error) {
	tx, err := r.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer r.Rollback(ctx, tx) // No-op once committed.

	defaultTier, _ := r.tierPolicy.TierFor(0)
	if err := r.accountRepo.ensureAccountInTx(ctx, tx, draft.PlayerID, defaultTier, draft.CreatedAt); err != nil {
		return nil, false, err
	}

	account, err := r.accountRepo.findAccountForUpdate(ctx, tx, draft.PlayerID)
	if err != nil {
		return nil, false, err
	}

	balanceBefore := account.CurrentBalance
	balanceAfter := balanceBefore + draft.PointsDelta
	if balanceAfter < 0 {
		return nil, false, fmt.Errorf("%w: balance %d, delta %d", apperrors.ErrInsufficientBalance, balanceBefore, draft.PointsDelta)
	}

	lifetimePoints := account.LifetimePoints
	if draft.PointsDelta > 0 {
		lifetimePoints += draft.PointsDelta
	}

	tierBefore := domain.Tier(account.Tier)
	tierAfter, tierProgress := r.tierPolicy.TierFor(lifetimePoints)

	insertQuery := `
		INSERT INTO ledger_entries (` + ledgerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (idempotency_key, transaction_type, source) DO NOTHING;
	`
	cmdTag, err := tx.Exec(ctx, insertQuery,
		draft.EntryID,
		draft.PlayerID,
		draft.SessionRef,
		string(draft.IdempotencyKey),
		draft.PointsDelta,
		string(draft.TransactionType),
		string(draft.Source),
		draft.Reason,
		draft.StaffRef,
		balanceBefore,
		balanceAfter,
		string(tierBefore),
		string(tierAfter),
		draft.CorrelationID,
		draft.CreatedAt,
	)
	if err != nil {
		return nil, false, apperrors.NewAppError(500, "failed to insert ledger entry "+draft.EntryID, classifyPgError(err))
	}

	if cmdTag.RowsAffected() == 0 {
		// Duplicate replay. Release the lock without mutating anything and
		// hand back the entry the original attempt produced.
		if err := r.Rollback(ctx, tx); err != nil {
			return nil, false, err
		}
		existing, err := r.findEntryByDedupKey(ctx, draft.IdempotencyKey, draft.TransactionType, draft.Source)
		if err != nil {
			return nil, false, err
		}
		return existing, true, nil
	}

	account.CurrentBalance = balanceAfter
	account.LifetimePoints = lifetimePoints
	account.Tier = string(tierAfter)
	account.TierProgress = tierProgress
	account.UpdatedAt = draft.CreatedAt
	if err := r.accountRepo.updateAccountInTx(ctx, tx, *account); err != nil {
		return nil, false, err
	}

	if err := r.Commit(ctx, tx); err != nil {
		return nil, false, err
	}

	entry := domain.LedgerEntry{
		EntryID:         draft.EntryID,
		PlayerID:        draft.PlayerID,
		SessionRef:      draft.SessionRef,
		IdempotencyKey:  draft.IdempotencyKey,
		PointsDelta:     draft.PointsDelta,
		TransactionType: draft.TransactionType,
		Source:          draft.Source,
		Reason:          draft.Reason,
		StaffRef:        draft.StaffRef,
		BalanceBefore:   balanceBefore,
		BalanceAfter:    balanceAfter,
		TierBefore:      tierBefore,
		TierAfter:       tierAfter,
		CorrelationID:   draft.CorrelationID,
		CreatedAt:       draft.CreatedAt,
	}
	return &entry, false, nil
}

// findEntryByDedupKey fetches the entry a duplicate attempt collided with.
func (r *PgxLedgerRepository) findEntryByDedupKey(ctx context.Context, key domain.IdempotencyKey, txType domain.TransactionType, source domain.Source) (*domain.LedgerEntry, error) {
	query := `
		SELECT ` + ledgerColumns + `
		FROM ledger_entries
		WHERE idempotency_key = $1 AND transaction_type = $2 AND source = $3;
	`
	row := r.Pool.QueryRow(ctx, query, string(key), string(txType), string(source))
	m, err := scanLedgerEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// The conflicting row vanished between insert and fetch; the
			// ledger is append-only so this indicates external interference.
			return nil, apperrors.NewAppError(500, "conflicting ledger entry not found for key "+string(key), apperrors.ErrInternal)
		}
		return nil, apperrors.NewAppError(500, "failed to fetch existing ledger entry for key "+string(key), classifyPgError(err))
	}

	entry := mapping.ToDomainLedgerEntry(*m)
	return &entry, nil
}

// ListEntriesByPlayer retrieves a page of the player's ledger, newest first,
// using keyset pagination over (created_at, entry_id).
func (r *PgxLedgerRepository) ListEntriesByPlayer(ctx context.Context, playerID string, limit int, nextToken *string) ([]domain.LedgerEntry, *string, error) {
	if limit <= 0 {
		limit = 20
	}
	fetchLimit := limit + 1

	baseQuery := `
		SELECT ` + ledgerColumns + `
		FROM ledger_entries
		WHERE player_id = $1
	`
	orderByClause := `ORDER BY created_at DESC, entry_id DESC`

	args := []interface{}{playerID}
	query := baseQuery

	if nextToken != nil && *nextToken != "" {
		lastCreatedAt, lastEntryID, decodeErr := pagination.DecodeToken(*nextToken)
		if decodeErr != nil {
			return nil, nil, apperrors.NewAppError(400, "invalid nextToken", decodeErr)
		}
		query += ` AND (created_at, entry_id) < ($2, $3)`
		args = append(args, lastCreatedAt, lastEntryID)
	}
	query += " " + orderByClause + " LIMIT $" + strconv.Itoa(len(args)+1) + ";"
	args = append(args, fetchLimit)

	rows, err := r.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, apperrors.NewAppError(500, "failed to query ledger entries for player "+playerID, classifyPgError(err))
	}
	defer rows.Close()

	entries := make([]models.LedgerEntry, 0, fetchLimit)
	for rows.Next() {
		m, scanErr := scanLedgerEntry(rows)
		if scanErr != nil {
			return nil, nil, apperrors.NewAppError(500, "failed to scan ledger entry row for player "+playerID, scanErr)
		}
		entries = append(entries, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, apperrors.NewAppError(500, "error iterating ledger entry rows for player "+playerID, classifyPgError(err))
	}

	var nextTokenVal *string
	results := entries
	if len(entries) > limit {
		last := entries[limit-1]
		token := pagination.EncodeToken(last.CreatedAt, last.EntryID)
		nextTokenVal = &token
		results = entries[:limit]
	}

	return mapping.ToDomainLedgerEntrySlice(results), nextTokenVal, nil
}

// ListEntriesBySession retrieves all entries linked to a session, oldest first.
func (r *PgxLedgerRepository) ListEntriesBySession(ctx context.Context, sessionRef string) ([]domain.LedgerEntry, error) {
	query := `
		SELECT ` + ledgerColumns + `
		FROM ledger_entries
		WHERE session_ref = $1
		ORDER BY created_at, entry_id;
	`
	rows, err := r.Pool.Query(ctx, query, sessionRef)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to query ledger entries for session "+sessionRef, classifyPgError(err))
	}
	defer rows.Close()

	entries := []models.LedgerEntry{}
	for rows.Next() {
		m, scanErr := scanLedgerEntry(rows)
		if scanErr != nil {
			return nil, apperrors.NewAppError(500, "failed to scan ledger entry row for session "+sessionRef, scanErr)
		}
		entries = append(entries, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewAppError(500, "error iterating ledger entry rows for session "+sessionRef, classifyPgError(err))
	}

	return mapping.ToDomainLedgerEntrySlice(entries), nil
}

// scanLedgerEntry scans one ledger row into a model.
func scanLedgerEntry(row pgx.Row) (*models.LedgerEntry, error) {
	var m models.LedgerEntry
	err := row.Scan(
		&m.EntryID,
		&m.PlayerID,
		&m.SessionRef,
		&m.IdempotencyKey,
		&m.PointsDelta,
		&m.TransactionType,
		&m.Source,
		&m.Reason,
		&m.StaffRef,
		&m.BalanceBefore,
		&m.BalanceAfter,
		&m.TierBefore,
		&m.TierAfter,
		&m.CorrelationID,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
