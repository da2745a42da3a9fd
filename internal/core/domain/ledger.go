package domain

import "time"

// TransactionType classifies why points moved.
type TransactionType string

const (
	Gameplay    TransactionType = "GAMEPLAY"
	ManualBonus TransactionType = "MANUAL_BONUS"
	Promotion   TransactionType = "PROMOTION"
	Redemption  TransactionType = "REDEMPTION"
	Adjustment  TransactionType = "ADJUSTMENT"
)

// Source identifies the channel an entry originated from.
type Source string

const (
	SourceSystem    Source = "system"
	SourceManual    Source = "manual"
	SourcePromotion Source = "promotion"
)

// IdempotencyKey is the deterministic dedup key for an accrual attempt.
// Uniqueness is enforced over (key, transaction type, source).
type IdempotencyKey string

// LedgerEntry is one immutable row of the loyalty point ledger. Once written
// it is never updated or deleted; corrections are later ADJUSTMENT entries.
// Balance and tier snapshots are captured at write time and never recomputed.
type LedgerEntry struct {
	EntryID         string          `json:"entryID"`
	PlayerID        string          `json:"playerID"`
	SessionRef      *string         `json:"sessionRef,omitempty"`
	IdempotencyKey  IdempotencyKey  `json:"idempotencyKey"`
	PointsDelta     int64           `json:"pointsDelta"`
	TransactionType TransactionType `json:"transactionType"`
	Source          Source          `json:"source"`
	Reason          string          `json:"reason,omitempty"`
	StaffRef        *string         `json:"staffRef,omitempty"`
	BalanceBefore   int64           `json:"balanceBefore"`
	BalanceAfter    int64           `json:"balanceAfter"`
	TierBefore      Tier            `json:"tierBefore"`
	TierAfter       Tier            `json:"tierAfter"`
	CorrelationID   string          `json:"correlationID"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// EntryDraft carries everything the ledger store needs to append an entry.
// Snapshot fields (balances, tiers) are filled in by the store inside the
// locked mutation, not by the caller.
type EntryDraft struct {
	EntryID         string
	PlayerID        string
	SessionRef      *string
	IdempotencyKey  IdempotencyKey
	PointsDelta     int64
	TransactionType TransactionType
	Source          Source
	Reason          string
	StaffRef        *string
	CorrelationID   string
	CreatedAt       time.Time
}
