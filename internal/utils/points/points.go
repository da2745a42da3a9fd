// Package points holds the default gameplay points policy. The ledger core
// treats the calculation as a provided external policy; this implementation
// is the stock one wired in at startup.
package points

import (
	"github.com/floorops/loyalty_ledger/internal/core/domain"
	"github.com/shopspring/decimal"
)

var secondsPerMinute = decimal.NewFromInt(60)

// Compute converts session telemetry into a points delta:
// bet level x played minutes x game multiplier, floored to a whole point.
// A missing or non-positive multiplier counts as 1. Pure, no I/O.
func Compute(betLevel decimal.Decimal, durationSeconds int64, params domain.GameParams) int64 {
	if durationSeconds <= 0 || betLevel.LessThanOrEqual(decimal.Zero) {
		return 0
	}

	multiplier := params.PointsMultiplier
	if multiplier.LessThanOrEqual(decimal.Zero) {
		multiplier = decimal.NewFromInt(1)
	}

	minutes := decimal.NewFromInt(durationSeconds).Div(secondsPerMinute)
	return betLevel.Mul(minutes).Mul(multiplier).Floor().IntPart()
}
