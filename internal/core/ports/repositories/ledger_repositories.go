package repositories

import (
	"context"

	"github.com/floorops/loyalty_ledger/internal/core/domain"
)

// LedgerRepositoryFacade is the durable append-only ledger plus the
// row-locked account mutator.
type LedgerRepositoryFacade interface {
	// AppendAndMutate appends the drafted entry and mutates the player's
	// account row in one atomic unit, serialized per player by a row-level
	// exclusive lock. A pre-existing entry under the same
	// (idempotency_key, transaction_type, source) is returned unchanged with
	// wasDuplicate=true; that is the idempotent-replay success path, not an
	// error.
	AppendAndMutate(ctx context.Context, draft domain.EntryDraft) (*domain.LedgerEntry, bool, error)

	// ListEntriesByPlayer returns a page of the player's ledger, newest
	// first, with an opaque token for the next page.
	ListEntriesByPlayer(ctx context.Context, playerID string, limit int, nextToken *string) ([]domain.LedgerEntry, *string, error)

	// ListEntriesBySession returns every entry linked to the session.
	ListEntriesBySession(ctx context.Context, sessionRef string) ([]domain.LedgerEntry, error)
}

// AccountRepositoryFacade exposes read access to the cached per-player
// aggregate. Mutation happens only inside AppendAndMutate.
type AccountRepositoryFacade interface {
	FindAccountByPlayerID(ctx context.Context, playerID string) (*domain.LoyaltyAccount, error)
}

// RepositoryProvider bundles the repository facades for service wiring.
type RepositoryProvider struct {
	LedgerRepo  LedgerRepositoryFacade
	AccountRepo AccountRepositoryFacade
	SessionRepo SessionRepositoryFacade
}
