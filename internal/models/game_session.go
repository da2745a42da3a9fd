package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// GameSession mirrors the game_sessions table. GameParams is stored as JSONB.
type GameSession struct {
	SessionRef      string
	PlayerID        string
	Status          string
	BetLevel        decimal.Decimal
	DurationSeconds int64
	GameParams      []byte
	OpenedAt        time.Time
	ClosedAt        *time.Time
}
