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
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxSessionRepository persists gameplay session telemetry.
type PgxSessionRepository struct {
	BaseRepository
}

// NewSessionRepository creates a new repository for session data.
func NewSessionRepository(pool *pgxpool.Pool) portsrepo.SessionRepositoryFacade {
	return &PgxSessionRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.SessionRepositoryFacade = (*PgxSessionRepository)(nil)

const sessionColumns = `session_ref, player_id, status, bet_level, duration_seconds, game_params, opened_at, closed_at`

// CreateSession inserts a new OPEN session row. A session_ref collision is
// reported as ErrDuplicate.
func (r *PgxSessionRepository) CreateSession(ctx context.Context, session domain.GameSession) error {
	m, err := mapping.ToModelGameSession(session)
	if err != nil {
		return apperrors.NewAppError(500, "failed to encode game params for session "+session.SessionRef, err)
	}

	query := `
		INSERT INTO game_sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
	`
	_, err = r.Pool.Exec(ctx, query,
		m.SessionRef,
		m.PlayerID,
		m.Status,
		m.BetLevel,
		m.DurationSeconds,
		m.GameParams,
		m.OpenedAt,
		m.ClosedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperrors.NewAppError(409, "session already exists: "+session.SessionRef, apperrors.ErrDuplicate)
		}
		return apperrors.NewAppError(500, "failed to insert session "+session.SessionRef, classifyPgError(err))
	}
	return nil
}

// FindSessionByRef retrieves a session by its reference.
func (r *PgxSessionRepository) FindSessionByRef(ctx context.Context, sessionRef string) (*domain.GameSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM game_sessions
		WHERE session_ref = $1;
	`
	var m models.GameSession
	err := r.Pool.QueryRow(ctx, query, sessionRef).Scan(
		&m.SessionRef,
		&m.PlayerID,
		&m.Status,
		&m.BetLevel,
		&m.DurationSeconds,
		&m.GameParams,
		&m.OpenedAt,
		&m.ClosedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("session " + sessionRef)
		}
		return nil, apperrors.NewAppError(500, "failed to fetch session "+sessionRef, classifyPgError(err))
	}

	session, err := mapping.ToDomainGameSession(m)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to decode game params for session "+sessionRef, err)
	}
	return &session, nil
}

// CloseSession transitions an OPEN session to CLOSED and returns the
// telemetry captured at close time. The state guard lives in the WHERE
// clause, so a concurrent or repeated close affects zero rows; the follow-up
// read distinguishes "no such session" from "already closed".
func (r *PgxSessionRepository) CloseSession(ctx context.Context, sessionRef string, durationSeconds int64, closedAt time.Time) (*domain.SessionTelemetry, error) {
	query := `
		UPDATE game_sessions
		SET status = $1, duration_seconds = $2, closed_at = $3
		WHERE session_ref = $4 AND status = $5
		RETURNING ` + sessionColumns + `;
	`
	var m models.GameSession
	err := r.Pool.QueryRow(ctx, query,
		string(domain.SessionClosed),
		durationSeconds,
		closedAt,
		sessionRef,
		string(domain.SessionOpen),
	).Scan(
		&m.SessionRef,
		&m.PlayerID,
		&m.Status,
		&m.BetLevel,
		&m.DurationSeconds,
		&m.GameParams,
		&m.OpenedAt,
		&m.ClosedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			existing, findErr := r.FindSessionByRef(ctx, sessionRef)
			if findErr != nil {
				return nil, findErr
			}
			return nil, apperrors.NewAppError(409, "session "+sessionRef+" is already "+string(existing.Status), apperrors.ErrConflict)
		}
		return nil, apperrors.NewAppError(500, "failed to close session "+sessionRef, classifyPgError(err))
	}

	session, err := mapping.ToDomainGameSession(m)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to decode game params for session "+sessionRef, err)
	}
	return &domain.SessionTelemetry{
		SessionRef:      session.SessionRef,
		PlayerID:        session.PlayerID,
		BetLevel:        session.BetLevel,
		DurationSeconds: session.DurationSeconds,
		GameParams:      session.GameParams,
	}, nil
}

// ListClosedWithoutAccrual finds sessions whose telemetry is closed but whose
// gameplay accrual never landed in the ledger. These are the stranded saga
// runs the recovery sweep replays.
func (r *PgxSessionRepository) ListClosedWithoutAccrual(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT s.session_ref
		FROM game_sessions s
		WHERE s.status = $1
		  AND NOT EXISTS (
			SELECT 1 FROM ledger_entries e
			WHERE e.session_ref = s.session_ref AND e.transaction_type = $2
		  )
		ORDER BY s.closed_at
		LIMIT $3;
	`
	rows, err := r.Pool.Query(ctx, query, string(domain.SessionClosed), string(domain.Gameplay), limit)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to query sessions pending accrual", classifyPgError(err))
	}
	defer rows.Close()

	refs := []string{}
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, apperrors.NewAppError(500, "failed to scan pending session ref", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewAppError(500, "error iterating pending session refs", classifyPgError(err))
	}
	return refs, nil
}
