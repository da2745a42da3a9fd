package dto

import (
	"github.com/floorops/loyalty_ledger/internal/core/domain"
	"github.com/shopspring/decimal"
)

// OpenSessionRequest registers a new OPEN gameplay session.
type OpenSessionRequest struct {
	SessionRef       string          `json:"sessionRef"`
	PlayerID         string          `json:"playerID" binding:"required"`
	BetLevel         decimal.Decimal `json:"betLevel" binding:"required,gt=0"`
	GameCode         string          `json:"gameCode" binding:"required"`
	PointsMultiplier decimal.Decimal `json:"pointsMultiplier"`
}

// CompleteSessionRequest finalizes a session's telemetry. Duration is
// reported at completion time by the floor system.
type CompleteSessionRequest struct {
	DurationSeconds int64 `json:"durationSeconds" binding:"required,gt=0"`
}

// CompletionResponse is the saga outcome on the success path.
type CompletionResponse struct {
	State string               `json:"state"`
	Entry *LedgerEntryResponse `json:"entry,omitempty"`
}

// ToCompletionResponse converts a domain completion result.
func ToCompletionResponse(r *domain.CompletionResult) CompletionResponse {
	resp := CompletionResponse{State: string(r.State)}
	if r.Entry != nil {
		e := ToLedgerEntryResponse(r.Entry)
		resp.Entry = &e
	}
	return resp
}

// SessionResponse is the wire shape of a session telemetry record.
type SessionResponse struct {
	SessionRef      string          `json:"sessionRef"`
	PlayerID        string          `json:"playerID"`
	Status          string          `json:"status"`
	BetLevel        decimal.Decimal `json:"betLevel"`
	DurationSeconds int64           `json:"durationSeconds"`
	GameCode        string          `json:"gameCode"`
}

// ToSessionResponse converts a domain session.
func ToSessionResponse(s *domain.GameSession) SessionResponse {
	return SessionResponse{
		SessionRef:      s.SessionRef,
		PlayerID:        s.PlayerID,
		Status:          string(s.Status),
		BetLevel:        s.BetLevel,
		DurationSeconds: s.DurationSeconds,
		GameCode:        s.GameParams.GameCode,
	}
}
