// Package status infers an Objective's lifecycle status from its progress and
// its position within the reporting period.
package status

import (
	"time"

	"github.com/louisbranch/okrengine/internal/services/okr/domain"
	"github.com/shopspring/decimal"
)

// Thresholds for automatic inference.
const (
	OnTrackThreshold   = 70
	AtRiskThreshold    = 30
	DeadlineWindowDays = 30
)

var (
	onTrack = decimal.NewFromInt(OnTrackThreshold)
	atRisk  = decimal.NewFromInt(AtRiskThreshold)
)

// Deadline is the number of whole days until a period ends. The zero value
// means the deadline is unknown.
type Deadline struct {
	Days  int
	Known bool
}

// Near reports whether a known deadline falls inside the warning window.
// Past deadlines are near.
func (d Deadline) Near() bool {
	return d.Known && d.Days < DeadlineWindowDays
}

// DaysUntil counts calendar days from now's date to end's date.
func DaysUntil(end, now time.Time) Deadline {
	from := civilDate(now)
	to := civilDate(end)
	return Deadline{Days: int(to.Sub(from).Hours() / 24), Known: true}
}

// DeadlineFor resolves the deadline of a period key. Unparsable keys yield an
// unknown deadline, which never counts as near.
func DeadlineFor(periodKey string, now time.Time) Deadline {
	period, err := ParsePeriod(periodKey)
	if err != nil {
		return Deadline{}
	}
	return DaysUntil(period.End(), now)
}

// Infer derives the status for progress. CLOSED and ABANDONED are returned
// unchanged.
func Infer(progress decimal.NullDecimal, deadline Deadline, current domain.Status) domain.Status {
	if current.Terminal() {
		return current
	}
	switch {
	case !progress.Valid:
		return domain.StatusNotStarted
	case progress.Decimal.GreaterThanOrEqual(onTrack):
		return domain.StatusOnTrack
	case progress.Decimal.LessThan(atRisk):
		return domain.StatusAtRisk
	case deadline.Near():
		return domain.StatusBehind
	default:
		return domain.StatusOnTrack
	}
}

// Evaluate infers the status of objective as of now.
func Evaluate(objective domain.Objective, now time.Time) domain.Status {
	return Infer(objective.Progress, DeadlineFor(objective.Quarter, now), objective.Status)
}

func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
