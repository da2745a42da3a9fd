package dto

import (
	"time"

	"github.com/floorops/loyalty_ledger/internal/core/domain"
)

// AccrueCommand is the internal command handed to the Ledger Writer. Handlers
// and the saga build it; the writer validates it, resolves the idempotency
// key, and delegates to the store.
type AccrueCommand struct {
	PlayerID        string
	PointsDelta     int64
	TransactionType domain.TransactionType
	Source          domain.Source
	// SessionRef links gameplay accruals (and recovery replays) to their
	// session; it doubles as the idempotency key for those entries.
	SessionRef string
	// ExternalRef identifies externally-keyed grants such as promotion
	// reward ids.
	ExternalRef string
	Reason      string
	StaffRef    string
	// OccurredAt feeds the manual-grant date bucket. Zero means "now".
	OccurredAt time.Time
}

// ManualGrantRequest is the staff-facing accrual/redemption/adjustment body.
type ManualGrantRequest struct {
	PlayerID        string `json:"playerID" binding:"required"`
	PointsDelta     int64  `json:"pointsDelta" binding:"required"`
	TransactionType string `json:"transactionType" binding:"required,oneof=MANUAL_BONUS REDEMPTION ADJUSTMENT"`
	Reason          string `json:"reason" binding:"required"`
}

// PromotionGrantRequest credits points for an externally identified reward.
type PromotionGrantRequest struct {
	PlayerID string `json:"playerID" binding:"required"`
	// RewardRef is the dedup key for the grant and is not scoped by player:
	// callers must send a per-grant reward id (voucher instance), not a
	// campaign code, or the same campaign granted to a second player is
	// swallowed as a replay of the first.
	RewardRef   string `json:"rewardRef" binding:"required"`
	PointsDelta int64  `json:"pointsDelta" binding:"required,gt=0"`
	Reason      string `json:"reason"`
}

// LedgerEntryResponse is the wire shape of a ledger row.
type LedgerEntryResponse struct {
	EntryID         string    `json:"entryID"`
	PlayerID        string    `json:"playerID"`
	SessionRef      *string   `json:"sessionRef,omitempty"`
	PointsDelta     int64     `json:"pointsDelta"`
	TransactionType string    `json:"transactionType"`
	Source          string    `json:"source"`
	Reason          string    `json:"reason,omitempty"`
	StaffRef        *string   `json:"staffRef,omitempty"`
	BalanceBefore   int64     `json:"balanceBefore"`
	BalanceAfter    int64     `json:"balanceAfter"`
	TierBefore      string    `json:"tierBefore"`
	TierAfter       string    `json:"tierAfter"`
	CorrelationID   string    `json:"correlationID"`
	CreatedAt       time.Time `json:"createdAt"`
}

// ToLedgerEntryResponse converts a domain entry to its wire shape.
func ToLedgerEntryResponse(e *domain.LedgerEntry) LedgerEntryResponse {
	return LedgerEntryResponse{
		EntryID:         e.EntryID,
		PlayerID:        e.PlayerID,
		SessionRef:      e.SessionRef,
		PointsDelta:     e.PointsDelta,
		TransactionType: string(e.TransactionType),
		Source:          string(e.Source),
		Reason:          e.Reason,
		StaffRef:        e.StaffRef,
		BalanceBefore:   e.BalanceBefore,
		BalanceAfter:    e.BalanceAfter,
		TierBefore:      string(e.TierBefore),
		TierAfter:       string(e.TierAfter),
		CorrelationID:   e.CorrelationID,
		CreatedAt:       e.CreatedAt,
	}
}

// ToLedgerEntryResponses converts a slice of domain entries.
func ToLedgerEntryResponses(entries []domain.LedgerEntry) []LedgerEntryResponse {
	out := make([]LedgerEntryResponse, len(entries))
	for i := range entries {
		out[i] = ToLedgerEntryResponse(&entries[i])
	}
	return out
}

// ListLedgerParams carries pagination inputs for the per-player ledger read.
type ListLedgerParams struct {
	Limit     int
	NextToken *string
}

// ListLedgerResponse is one page of a player's ledger.
type ListLedgerResponse struct {
	Entries   []LedgerEntryResponse `json:"entries"`
	NextToken *string               `json:"nextToken,omitempty"`
}

// AccountResponse is the wire shape of the cached loyalty aggregate.
type AccountResponse struct {
	PlayerID       string    `json:"playerID"`
	CurrentBalance int64     `json:"currentBalance"`
	LifetimePoints int64     `json:"lifetimePoints"`
	Tier           string    `json:"tier"`
	TierProgress   int       `json:"tierProgress"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// ToAccountResponse converts a domain account to its wire shape.
func ToAccountResponse(a *domain.LoyaltyAccount) AccountResponse {
	return AccountResponse{
		PlayerID:       a.PlayerID,
		CurrentBalance: a.CurrentBalance,
		LifetimePoints: a.LifetimePoints,
		Tier:           string(a.Tier),
		TierProgress:   a.TierProgress,
		UpdatedAt:      a.UpdatedAt,
	}
}
