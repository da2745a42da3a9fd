package mapping

import (
	"encoding/json"

	"github.com/floorops/loyalty_ledger/internal/core/domain"
	"github.com/floorops/loyalty_ledger/internal/models"
)

// ToModelLedgerEntry converts a domain LedgerEntry to a model LedgerEntry.
func ToModelLedgerEntry(d domain.LedgerEntry) models.LedgerEntry {
	return models.LedgerEntry{
		EntryID:         d.EntryID,
		PlayerID:        d.PlayerID,
		SessionRef:      d.SessionRef,
		IdempotencyKey:  string(d.IdempotencyKey),
		PointsDelta:     d.PointsDelta,
		TransactionType: string(d.TransactionType),
		Source:          string(d.Source),
		Reason:          d.Reason,
		StaffRef:        d.StaffRef,
		BalanceBefore:   d.BalanceBefore,
		BalanceAfter:    d.BalanceAfter,
		TierBefore:      string(d.TierBefore),
		TierAfter:       string(d.TierAfter),
		CorrelationID:   d.CorrelationID,
		CreatedAt:       d.CreatedAt,
	}
}

// ToDomainLedgerEntry converts a model LedgerEntry to a domain LedgerEntry.
func ToDomainLedgerEntry(m models.LedgerEntry) domain.LedgerEntry {
	return domain.LedgerEntry{
		EntryID:         m.EntryID,
		PlayerID:        m.PlayerID,
		SessionRef:      m.SessionRef,
		IdempotencyKey:  domain.IdempotencyKey(m.IdempotencyKey),
		PointsDelta:     m.PointsDelta,
		TransactionType: domain.TransactionType(m.TransactionType),
		Source:          domain.Source(m.Source),
		Reason:          m.Reason,
		StaffRef:        m.StaffRef,
		BalanceBefore:   m.BalanceBefore,
		BalanceAfter:    m.BalanceAfter,
		TierBefore:      domain.Tier(m.TierBefore),
		TierAfter:       domain.Tier(m.TierAfter),
		CorrelationID:   m.CorrelationID,
		CreatedAt:       m.CreatedAt,
	}
}

// ToDomainLedgerEntrySlice converts a slice of model entries to domain entries.
func ToDomainLedgerEntrySlice(ms []models.LedgerEntry) []domain.LedgerEntry {
	ds := make([]domain.LedgerEntry, len(ms))
	for i, m := range ms {
		ds[i] = ToDomainLedgerEntry(m)
	}
	return ds
}

// ToDomainAccount converts a model LoyaltyAccount to a domain LoyaltyAccount.
func ToDomainAccount(m models.LoyaltyAccount) domain.LoyaltyAccount {
	return domain.LoyaltyAccount{
		PlayerID:       m.PlayerID,
		CurrentBalance: m.CurrentBalance,
		LifetimePoints: m.LifetimePoints,
		Tier:           domain.Tier(m.Tier),
		TierProgress:   m.TierProgress,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// ToModelGameSession converts a domain GameSession to a model GameSession.
// GameParams marshalling cannot fail for the fixed struct shape, but the
// error is still propagated rather than swallowed.
func ToModelGameSession(d domain.GameSession) (models.GameSession, error) {
	params, err := json.Marshal(d.GameParams)
	if err != nil {
		return models.GameSession{}, err
	}
	return models.GameSession{
		SessionRef:      d.SessionRef,
		PlayerID:        d.PlayerID,
		Status:          string(d.Status),
		BetLevel:        d.BetLevel,
		DurationSeconds: d.DurationSeconds,
		GameParams:      params,
		OpenedAt:        d.OpenedAt,
		ClosedAt:        d.ClosedAt,
	}, nil
}

// ToDomainGameSession converts a model GameSession to a domain GameSession.
func ToDomainGameSession(m models.GameSession) (domain.GameSession, error) {
	var params domain.GameParams
	if len(m.GameParams) > 0 {
		if err := json.Unmarshal(m.GameParams, &params); err != nil {
			return domain.GameSession{}, err
		}
	}
	return domain.GameSession{
		SessionRef:      m.SessionRef,
		PlayerID:        m.PlayerID,
		Status:          domain.SessionStatus(m.Status),
		BetLevel:        m.BetLevel,
		DurationSeconds: m.DurationSeconds,
		GameParams:      params,
		OpenedAt:        m.OpenedAt,
		ClosedAt:        m.ClosedAt,
	}, nil
}
