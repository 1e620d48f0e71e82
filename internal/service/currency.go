package service

import (
	"github.com/shopspring/decimal"
)

// PointsToTaka converts points to a BDT amount at the given rate
// (points per taka), rounded to 2 decimal places. This is the single
// conversion point: the computed amount is persisted with each
// withdrawal request, so a later rate change never alters recorded
// amounts.
func PointsToTaka(points int64, pointsPerTaka int64) decimal.Decimal {
	if pointsPerTaka <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(points).
		DivRound(decimal.NewFromInt(pointsPerTaka), 2)
}
