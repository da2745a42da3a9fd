package domain

import "time"

// Tier is a named loyalty rank derived from lifetime points.
type Tier string

const (
	TierBronze   Tier = "BRONZE"
	TierSilver   Tier = "SILVER"
	TierGold     Tier = "GOLD"
	TierPlatinum Tier = "PLATINUM"
)

// LoyaltyAccount is the mutable per-player aggregate. The ledger is the
// source of truth; this row is a cache maintained in the same atomic unit as
// every accepted ledger write, so CurrentBalance always equals the signed sum
// of the player's entry deltas.
type LoyaltyAccount struct {
	PlayerID       string    `json:"playerID"`
	CurrentBalance int64     `json:"currentBalance"`
	LifetimePoints int64     `json:"lifetimePoints"`
	Tier           Tier      `json:"tier"`
	TierProgress   int       `json:"tierProgress"` // percent toward the next tier, 100 at the top
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
