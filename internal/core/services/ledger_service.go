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
	"github.com/floorops/loyalty_ledger/internal/events"
	"github.com/floorops/loyalty_ledger/internal/middleware"
)

var (
	ErrZeroDelta       = errors.New("points delta must be non-zero")
	ErrReasonRequired  = errors.New("reason is required for manual entries")
	ErrStaffRequired   = errors.New("staff reference is required for manual entries")
	ErrSessionRequired = errors.New("session reference is required for gameplay entries")
	ErrRewardRequired  = errors.New("external reward reference is required for promotion entries")
)

// ledgerService is the Ledger Writer: it validates accrual commands, resolves
// the idempotency key, builds the entry draft, and delegates the atomic
// append-and-mutate to the ledger store.
type ledgerService struct {
	ledgerRepo  portsrepo.LedgerRepositoryFacade
	accountRepo portsrepo.AccountRepositoryFacade
	publisher   events.Publisher
}

// NewLedgerService creates a new LedgerService.
func NewLedgerService(ledgerRepo portsrepo.LedgerRepositoryFacade, accountRepo portsrepo.AccountRepositoryFacade, publisher events.Publisher) portssvc.LedgerSvcFacade {
	return &ledgerService{
		ledgerRepo:  ledgerRepo,
		accountRepo: accountRepo,
		publisher:   publisher,
	}
}

var _ portssvc.LedgerSvcFacade = (*ledgerService)(nil)

// validateCommand rejects malformed commands before any I/O happens.
func (s *ledgerService) validateCommand(cmd dto.AccrueCommand) error {
	if cmd.PlayerID == "" {
		return fmt.Errorf("%w: player id is required", apperrors.ErrValidation)
	}
	if cmd.PointsDelta == 0 {
		return fmt.Errorf("%w: %w", apperrors.ErrValidation, ErrZeroDelta)
	}

	switch cmd.Source {
	case domain.SourceManual:
		if cmd.Reason == "" {
			return fmt.Errorf("%w: %w", apperrors.ErrValidation, ErrReasonRequired)
		}
		if cmd.StaffRef == "" {
			return fmt.Errorf("%w: %w", apperrors.ErrValidation, ErrStaffRequired)
		}
	case domain.SourceSystem:
		if cmd.SessionRef == "" {
			return fmt.Errorf("%w: %w", apperrors.ErrValidation, ErrSessionRequired)
		}
	case domain.SourcePromotion:
		if cmd.ExternalRef == "" {
			return fmt.Errorf("%w: %w", apperrors.ErrValidation, ErrRewardRequired)
		}
	default:
		return fmt.Errorf("%w: unknown source %q", apperrors.ErrValidation, cmd.Source)
	}

	switch cmd.TransactionType {
	case domain.Gameplay, domain.ManualBonus, domain.Promotion, domain.Redemption, domain.Adjustment:
	default:
		return fmt.Errorf("%w: unknown transaction type %q", apperrors.ErrValidation, cmd.TransactionType)
	}

	return nil
}

// Accrue appends a ledger entry for the command. A replay of a previously
// accepted identical command returns the existing entry; callers see both
// outcomes as success and only logging distinguishes them.
func (s *ledgerService) Accrue(ctx context.Context, cmd dto.AccrueCommand) (*domain.LedgerEntry, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	if err := s.validateCommand(cmd); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	occurredAt := cmd.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = now
	}

	key := ResolveKey(AccrualEvent{
		PlayerID:        cmd.PlayerID,
		TransactionType: cmd.TransactionType,
		Source:          cmd.Source,
		SessionRef:      cmd.SessionRef,
		ExternalRef:     cmd.ExternalRef,
		StaffRef:        cmd.StaffRef,
		PointsDelta:     cmd.PointsDelta,
		Reason:          cmd.Reason,
		OccurredAt:      occurredAt,
	})

	draft := domain.EntryDraft{
		EntryID:         uuid.NewString(),
		PlayerID:        cmd.PlayerID,
		IdempotencyKey:  key,
		PointsDelta:     cmd.PointsDelta,
		TransactionType: cmd.TransactionType,
		Source:          cmd.Source,
		Reason:          cmd.Reason,
		CorrelationID:   middleware.GetCorrelationIDFromCtx(ctx),
		CreatedAt:       now,
	}
	if cmd.SessionRef != "" {
		ref := cmd.SessionRef
		draft.SessionRef = &ref
	}
	if cmd.StaffRef != "" {
		staff := cmd.StaffRef
		draft.StaffRef = &staff
	}

	entry, wasDuplicate, err := s.ledgerRepo.AppendAndMutate(ctx, draft)
	if err != nil {
		logger.Error("Failed to append ledger entry",
			slog.String("player_id", cmd.PlayerID),
			slog.String("idempotency_key", string(key)),
			slog.String("error", err.Error()))
		return nil, err
	}

	logger.Info("Ledger entry accepted",
		slog.String("player_id", entry.PlayerID),
		slog.String("entry_id", entry.EntryID),
		slog.String("transaction_type", string(entry.TransactionType)),
		slog.Int64("points_delta", entry.PointsDelta),
		slog.Int64("balance_before", entry.BalanceBefore),
		slog.Int64("balance_after", entry.BalanceAfter),
		slog.String("correlation_id", entry.CorrelationID),
		slog.Bool("was_duplicate", wasDuplicate))

	if !wasDuplicate {
		// Best effort: the write is committed, fan-out failures are only logged.
		if pubErr := s.publisher.PublishEntryAppended(ctx, *entry); pubErr != nil {
			logger.Warn("Failed to publish ledger entry event",
				slog.String("entry_id", entry.EntryID),
				slog.String("error", pubErr.Error()))
		}
	}

	return entry, nil
}

// GetAccount returns the cached loyalty aggregate for a player.
func (s *ledgerService) GetAccount(ctx context.Context, playerID string) (*domain.LoyaltyAccount, error) {
	account, err := s.accountRepo.FindAccountByPlayerID(ctx, playerID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			middleware.GetLoggerFromCtx(ctx).Error("Failed to find loyalty account",
				slog.String("player_id", playerID), slog.String("error", err.Error()))
		}
		return nil, err
	}
	return account, nil
}

// ListByPlayer returns a page of the player's ledger, newest first.
func (s *ledgerService) ListByPlayer(ctx context.Context, playerID string, params dto.ListLedgerParams) (*dto.ListLedgerResponse, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 20
	}

	entries, nextToken, err := s.ledgerRepo.ListEntriesByPlayer(ctx, playerID, limit, params.NextToken)
	if err != nil {
		middleware.GetLoggerFromCtx(ctx).Error("Failed to list ledger entries",
			slog.String("player_id", playerID), slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to retrieve ledger entries: %w", err)
	}

	return &dto.ListLedgerResponse{
		Entries:   dto.ToLedgerEntryResponses(entries),
		NextToken: nextToken,
	}, nil
}

// ListBySession returns every ledger entry linked to a session.
func (s *ledgerService) ListBySession(ctx context.Context, sessionRef string) ([]domain.LedgerEntry, error) {
	entries, err := s.ledgerRepo.ListEntriesBySession(ctx, sessionRef)
	if err != nil {
		middleware.GetLoggerFromCtx(ctx).Error("Failed to list ledger entries for session",
			slog.String("session_ref", sessionRef), slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to retrieve session ledger entries: %w", err)
	}
	return entries, nil
}
