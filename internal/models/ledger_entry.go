package models

import "time"

// LedgerEntry mirrors the ledger_entries table.
type LedgerEntry struct {
	EntryID         string
	PlayerID        string
	SessionRef      *string
	IdempotencyKey  string
	PointsDelta     int64
	TransactionType string
	Source          string
	Reason          string
	StaffRef        *string
	BalanceBefore   int64
	BalanceAfter    int64
	TierBefore      string
	TierAfter       string
	CorrelationID   string
	CreatedAt       time.Time
}
