package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SessionStatus is the lifecycle state of a gameplay session's telemetry
// record. Only an OPEN session can be closed, and only once.
type SessionStatus string

const (
	SessionOpen   SessionStatus = "OPEN"
	SessionClosed SessionStatus = "CLOSED"
)

// GameParams carries the game-specific inputs to the points policy.
type GameParams struct {
	GameCode         string          `json:"gameCode"`
	PointsMultiplier decimal.Decimal `json:"pointsMultiplier"`
}

// GameSession is the telemetry record for one play session.
type GameSession struct {
	SessionRef      string        `json:"sessionRef"`
	PlayerID        string        `json:"playerID"`
	Status          SessionStatus `json:"status"`
	BetLevel        decimal.Decimal `json:"betLevel"`
	DurationSeconds int64         `json:"durationSeconds"`
	GameParams      GameParams    `json:"gameParams"`
	OpenedAt        time.Time     `json:"openedAt"`
	ClosedAt        *time.Time    `json:"closedAt,omitempty"`
}

// SessionTelemetry is the value captured when a session closes: everything
// the points policy needs to compute the gameplay accrual.
type SessionTelemetry struct {
	SessionRef      string
	PlayerID        string
	BetLevel        decimal.Decimal
	DurationSeconds int64
	GameParams      GameParams
}

// CompletionState is the explicit state machine of the session-completion
// saga. PARTIAL and FAILED are terminal failure states: FAILED means nothing
// happened (retry the whole completion), PARTIAL means telemetry is closed
// but the accrual is pending (invoke recovery, do not retry completion).
type CompletionState string

const (
	CompletionOpen            CompletionState = "OPEN"
	CompletionTelemetryClosed CompletionState = "TELEMETRY_CLOSED"
	CompletionAccrued         CompletionState = "ACCRUED"
	CompletionPartial         CompletionState = "PARTIAL"
	CompletionFailed          CompletionState = "FAILED"
)

// CompletionResult is the saga outcome on the success path.
type CompletionResult struct {
	State CompletionState `json:"state"`
	Entry *LedgerEntry    `json:"entry"`
}
