package services

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/floorops/loyalty_ledger/internal/core/domain"
)

// AccrualEvent is the semantic description of one triggering event, the
// input to idempotency key resolution.
type AccrualEvent struct {
	PlayerID        string
	TransactionType domain.TransactionType
	Source          domain.Source
	SessionRef      string
	ExternalRef     string
	StaffRef        string
	PointsDelta     int64
	Reason          string
	OccurredAt      time.Time
}

// ResolveKey derives the deterministic idempotency key for an event. It is
// pure and never fails; an event that fits none of the strategies is a
// programming error upstream (the Ledger Writer validates before resolving).
//
// Strategies:
//   - Session-driven accruals use the session reference itself: a session
//     closes at most once, so the ref is inherently replay-safe.
//   - Externally identified grants use "<kind>_<external_id>". The external
//     id is the entire dedup scope: it must name one grant to one player (a
//     voucher instance, an adjustment ticket), never a campaign code shared
//     across players, or the second player's grant would replay the first
//     player's entry as a duplicate.
//   - Free-form manual grants hash {player, staff, delta, reason, UTC day}.
//     The day bucket is a deliberate policy trade-off: repeated clicks within
//     one calendar day collapse to a single entry, while the same grant on a
//     later day is treated as a new, intended grant. This is not full
//     content-based dedup and must not be silently changed into one.
func ResolveKey(ev AccrualEvent) domain.IdempotencyKey {
	if ev.SessionRef != "" {
		return domain.IdempotencyKey(ev.SessionRef)
	}
	if ev.ExternalRef != "" {
		return domain.IdempotencyKey(keyKind(ev.TransactionType) + "_" + ev.ExternalRef)
	}

	day := ev.OccurredAt.UTC().Format("2006-01-02")
	payload := fmt.Sprintf("%s|%s|%d|%s|%s", ev.PlayerID, ev.StaffRef, ev.PointsDelta, ev.Reason, day)
	sum := sha256.Sum256([]byte(payload))
	return domain.IdempotencyKey("manual_" + hex.EncodeToString(sum[:]))
}

func keyKind(t domain.TransactionType) string {
	switch t {
	case domain.Promotion:
		return "promo"
	case domain.Adjustment:
		return "adjust"
	default:
		return "grant"
	}
}
