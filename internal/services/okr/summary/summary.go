// Package summary rolls Objective snapshots up into dashboard figures.
package summary

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/louisbranch/okrengine/internal/services/okr/domain"
	"github.com/louisbranch/okrengine/internal/services/okr/domain/progress"
)

// DefaultTopLimit caps TopPerformers when the caller passes no limit.
const DefaultTopLimit = 10

// Statuses lists every status in display order.
var Statuses = []domain.Status{
	domain.StatusNotStarted,
	domain.StatusOnTrack,
	domain.StatusAtRisk,
	domain.StatusBehind,
	domain.StatusClosed,
	domain.StatusAbandoned,
}

// Summary describes a set of Objectives.
type Summary struct {
	Total           int
	AverageProgress decimal.Decimal
	// ByStatus has an entry for every status, zero included.
	ByStatus map[domain.Status]int
}

// Summarize totals objectives. Objectives without progress add nothing to
// the sum but still count toward the average's denominator.
func Summarize(objectives []domain.Objective) Summary {
	out := Summary{
		Total:           len(objectives),
		AverageProgress: decimal.Zero,
		ByStatus:        make(map[domain.Status]int, len(Statuses)),
	}
	for _, s := range Statuses {
		out.ByStatus[s] = 0
	}
	sum := decimal.Zero
	for _, objective := range objectives {
		if objective.Progress.Valid {
			sum = sum.Add(objective.Progress.Decimal)
		}
		if objective.Status != "" {
			out.ByStatus[objective.Status]++
		}
	}
	if len(objectives) > 0 {
		out.AverageProgress = sum.DivRound(decimal.NewFromInt(int64(len(objectives))), progress.Places)
	}
	return out
}

// TopPerformers returns up to limit objectives ordered by progress, highest
// first. Equal progress keeps input order; missing progress sorts last.
func TopPerformers(objectives []domain.Objective, limit int) []domain.Objective {
	if limit <= 0 {
		limit = DefaultTopLimit
	}
	ranked := slices.Clone(objectives)
	slices.SortStableFunc(ranked, func(a, b domain.Objective) int {
		if a.Progress.Valid != b.Progress.Valid {
			if a.Progress.Valid {
				return -1
			}
			return 1
		}
		return cmp.Compare(0, a.Progress.Decimal.Cmp(b.Progress.Decimal))
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
