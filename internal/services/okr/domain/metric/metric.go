// Package metric converts a Key Result's current and target values into a
// progress percentage.
package metric

import (
	"github.com/louisbranch/okrengine/internal/services/okr/domain"
	"github.com/shopspring/decimal"
)

// ratioPlaces is the precision of the current/target ratio before scaling.
const ratioPlaces = 4

var hundred = decimal.NewFromInt(100)

// ProgressOf returns current/target as a percentage in [0, 100]. A target of
// zero or less yields 0. Over-achievement is capped at 100.
func ProgressOf(current, target decimal.Decimal) decimal.Decimal {
	if !target.IsPositive() {
		return decimal.Zero
	}
	pct := current.DivRound(target, ratioPlaces).Mul(hundred)
	if pct.IsNegative() {
		return decimal.Zero
	}
	if pct.GreaterThan(hundred) {
		return hundred
	}
	return pct
}

// KeyResultProgress applies ProgressOf to a Key Result. The metric type does
// not change the formula.
func KeyResultProgress(kr domain.KeyResult) decimal.Decimal {
	return ProgressOf(kr.CurrentValue, kr.TargetValue)
}
