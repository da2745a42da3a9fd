package services_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/floorops/loyalty_ledger/internal/apperrors"
	"github.com/floorops/loyalty_ledger/internal/core/domain"
	portsrepo "github.com/floorops/loyalty_ledger/internal/core/ports/repositories"
	"github.com/floorops/loyalty_ledger/internal/core/services"
	"github.com/floorops/loyalty_ledger/internal/dto"
	"github.com/floorops/loyalty_ledger/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLedgerStore reproduces the store contract in memory: a mutex plays the
// role of the row lock, and a dedup index plays the role of the uniqueness
// constraint. It lets the writer-side semantics be exercised under real
// goroutine interleaving without a database.
type fakeLedgerStore struct {
	mu         sync.Mutex
	tierPolicy *services.TierPolicy
	accounts   map[string]*domain.LoyaltyAccount
	entries    []domain.LedgerEntry
	dedup      map[string]int // dedup key -> index into entries
}

var _ portsrepo.LedgerRepositoryFacade = (*fakeLedgerStore)(nil)
var _ portsrepo.AccountRepositoryFacade = (*fakeLedgerStore)(nil)

func newFakeLedgerStore() *fakeLedgerStore {
	return &fakeLedgerStore{
		tierPolicy: services.DefaultTierPolicy(),
		accounts:   make(map[string]*domain.LoyaltyAccount),
		dedup:      make(map[string]int),
	}
}

func dedupKey(key domain.IdempotencyKey, txType domain.TransactionType, source domain.Source) string {
	return fmt.Sprintf("%s|%s|%s", key, txType, source)
}

func (s *fakeLedgerStore) AppendAndMutate(_ context.Context, draft domain.EntryDraft) (*domain.LedgerEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dk := dedupKey(draft.IdempotencyKey, draft.TransactionType, draft.Source)
	if idx, ok := s.dedup[dk]; ok {
		existing := s.entries[idx]
		return &existing, true, nil
	}

	account, ok := s.accounts[draft.PlayerID]
	if !ok {
		tier, _ := s.tierPolicy.TierFor(0)
		account = &domain.LoyaltyAccount{PlayerID: draft.PlayerID, Tier: tier}
		s.accounts[draft.PlayerID] = account
	}

	balanceAfter := account.CurrentBalance + draft.PointsDelta
	if balanceAfter < 0 {
		return nil, false, apperrors.ErrInsufficientBalance
	}

	lifetime := account.LifetimePoints
	if draft.PointsDelta > 0 {
		lifetime += draft.PointsDelta
	}
	tierAfter, progress := s.tierPolicy.TierFor(lifetime)

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
		BalanceBefore:   account.CurrentBalance,
		BalanceAfter:    balanceAfter,
		TierBefore:      account.Tier,
		TierAfter:       tierAfter,
		CorrelationID:   draft.CorrelationID,
		CreatedAt:       draft.CreatedAt,
	}
	s.entries = append(s.entries, entry)
	s.dedup[dk] = len(s.entries) - 1

	account.CurrentBalance = balanceAfter
	account.LifetimePoints = lifetime
	account.Tier = tierAfter
	account.TierProgress = progress

	return &entry, false, nil
}

func (s *fakeLedgerStore) ListEntriesByPlayer(_ context.Context, playerID string, limit int, _ *string) ([]domain.LedgerEntry, *string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.LedgerEntry
	for _, e := range s.entries {
		if e.PlayerID == playerID {
			out = append(out, e)
		}
	}
	return out, nil, nil
}

func (s *fakeLedgerStore) ListEntriesBySession(_ context.Context, sessionRef string) ([]domain.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.LedgerEntry
	for _, e := range s.entries {
		if e.SessionRef != nil && *e.SessionRef == sessionRef {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeLedgerStore) FindAccountByPlayerID(_ context.Context, playerID string) (*domain.LoyaltyAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[playerID]
	if !ok {
		return nil, apperrors.NewNotFoundError("loyalty account " + playerID)
	}
	copied := *account
	return &copied, nil
}

func TestConcurrentAccrualsKeepBalanceConsistent(t *testing.T) {
	store := newFakeLedgerStore()
	service := services.NewLedgerService(store, store, events.NewNoopPublisher())
	ctx := context.Background()
	playerID := "player-concurrent"

	const writers = 50
	const perWriterDelta = int64(10)

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := service.Accrue(ctx, dto.AccrueCommand{
				PlayerID:        playerID,
				PointsDelta:     perWriterDelta,
				TransactionType: domain.Gameplay,
				Source:          domain.SourceSystem,
				SessionRef:      fmt.Sprintf("sess-%03d", n),
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	account, err := store.FindAccountByPlayerID(ctx, playerID)
	require.NoError(t, err)
	assert.Equal(t, int64(writers)*perWriterDelta, account.CurrentBalance,
		"cached balance must equal the sum of all appended deltas")

	entries, _, err := store.ListEntriesByPlayer(ctx, playerID, 0, nil)
	require.NoError(t, err)
	assert.Len(t, entries, writers)

	var sum int64
	for _, e := range entries {
		sum += e.PointsDelta
		assert.Equal(t, e.BalanceBefore+e.PointsDelta, e.BalanceAfter,
			"every entry carries a consistent balance snapshot")
	}
	assert.Equal(t, account.CurrentBalance, sum)
}

func TestConcurrentReplaysCollapseToOneEntry(t *testing.T) {
	store := newFakeLedgerStore()
	service := services.NewLedgerService(store, store, events.NewNoopPublisher())
	ctx := context.Background()
	playerID := "player-replay"
	sessionRef := "sess-replayed"

	const attempts = 25

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.Accrue(ctx, dto.AccrueCommand{
				PlayerID:        playerID,
				PointsDelta:     120,
				TransactionType: domain.Gameplay,
				Source:          domain.SourceSystem,
				SessionRef:      sessionRef,
			})
			assert.NoError(t, err, "every replay reports success")
		}()
	}
	wg.Wait()

	entries, err := store.ListEntriesBySession(ctx, sessionRef)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "all replays collapse onto the first entry")

	account, err := store.FindAccountByPlayerID(ctx, playerID)
	require.NoError(t, err)
	assert.Equal(t, int64(120), account.CurrentBalance, "the balance moved exactly once")
}

func TestRedemptionCannotOverdraw(t *testing.T) {
	store := newFakeLedgerStore()
	service := services.NewLedgerService(store, store, events.NewNoopPublisher())
	ctx := context.Background()
	playerID := "player-overdraw"

	_, err := service.Accrue(ctx, dto.AccrueCommand{
		PlayerID:        playerID,
		PointsDelta:     100,
		TransactionType: domain.Gameplay,
		Source:          domain.SourceSystem,
		SessionRef:      "sess-fund",
	})
	require.NoError(t, err)

	_, err = service.Accrue(ctx, dto.AccrueCommand{
		PlayerID:        playerID,
		PointsDelta:     -500,
		TransactionType: domain.Redemption,
		Source:          domain.SourceManual,
		Reason:          "prize redemption",
		StaffRef:        "staff-1",
	})
	assert.ErrorIs(t, err, apperrors.ErrInsufficientBalance)

	account, err := store.FindAccountByPlayerID(ctx, playerID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), account.CurrentBalance, "a rejected redemption leaves the balance untouched")
}

func TestLifetimePointsIgnoreRedemptions(t *testing.T) {
	store := newFakeLedgerStore()
	service := services.NewLedgerService(store, store, events.NewNoopPublisher())
	ctx := context.Background()
	playerID := "player-lifetime"

	_, err := service.Accrue(ctx, dto.AccrueCommand{
		PlayerID:        playerID,
		PointsDelta:     1200,
		TransactionType: domain.Gameplay,
		Source:          domain.SourceSystem,
		SessionRef:      "sess-big",
	})
	require.NoError(t, err)

	_, err = service.Accrue(ctx, dto.AccrueCommand{
		PlayerID:        playerID,
		PointsDelta:     -1000,
		TransactionType: domain.Redemption,
		Source:          domain.SourceManual,
		Reason:          "prize redemption",
		StaffRef:        "staff-1",
	})
	require.NoError(t, err)

	account, err := store.FindAccountByPlayerID(ctx, playerID)
	require.NoError(t, err)
	assert.Equal(t, int64(200), account.CurrentBalance)
	assert.Equal(t, int64(1200), account.LifetimePoints, "spending points never reduces lifetime points")
	assert.Equal(t, domain.TierSilver, account.Tier, "the tier earned by lifetime points survives redemptions")
}
