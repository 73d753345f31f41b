// Package progress rolls Key Result progress up into Objective progress.
package progress

import (
	"github.com/louisbranch/okrengine/internal/services/okr/domain"
	"github.com/louisbranch/okrengine/internal/services/okr/domain/metric"
	"github.com/shopspring/decimal"
)

// Places is the precision of aggregated Objective progress.
const Places = 2

// Item is one weighted progress value.
type Item struct {
	Progress decimal.Decimal
	Weight   decimal.Decimal
}

// Combine returns the weight-normalized mean of items rounded to two places,
// half up. Empty input and a zero total weight both yield 0. Negative weights
// count as zero.
func Combine(items []Item) decimal.Decimal {
	if len(items) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	total := decimal.Zero
	for _, item := range items {
		w := item.Weight
		if w.IsNegative() {
			w = decimal.Zero
		}
		sum = sum.Add(item.Progress.Mul(w))
		total = total.Add(w)
	}
	if total.IsZero() {
		return decimal.Zero
	}
	return sum.DivRound(total, Places)
}

// Aggregate returns the weighted Objective progress of keyResults.
func Aggregate(keyResults []domain.KeyResult) decimal.Decimal {
	items := make([]Item, 0, len(keyResults))
	for _, kr := range keyResults {
		items = append(items, Item{
			Progress: metric.KeyResultProgress(kr),
			Weight:   kr.EffectiveWeight(),
		})
	}
	return Combine(items)
}
