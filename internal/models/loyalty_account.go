package models

import "time"

// LoyaltyAccount mirrors the loyalty_accounts table.
type LoyaltyAccount struct {
	PlayerID       string
	CurrentBalance int64
	LifetimePoints int64
	Tier           string
	TierProgress   int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
