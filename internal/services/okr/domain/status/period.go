package status

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PeriodKind is the granularity of a reporting period.
type PeriodKind byte

const (
	Quarter PeriodKind = 'Q'
	Half    PeriodKind = 'H'
)

func (k PeriodKind) months() int {
	if k == Half {
		return 6
	}
	return 3
}

func (k PeriodKind) count() int {
	if k == Half {
		return 2
	}
	return 4
}

// Period is a parsed reporting period key such as "2026-Q3" or "2026-H1".
type Period struct {
	Year  int
	Kind  PeriodKind
	Index int
}

// ParsePeriod parses "YYYY-Qn" (n in 1..4) or "YYYY-Hn" (n in 1..2).
func ParsePeriod(key string) (Period, error) {
	yearPart, subPart, ok := strings.Cut(strings.ToUpper(strings.TrimSpace(key)), "-")
	if !ok || len(subPart) < 2 {
		return Period{}, fmt.Errorf("period %q: expected YYYY-Qn or YYYY-Hn", key)
	}
	year, err := strconv.Atoi(yearPart)
	if err != nil || year < 1 || year > 9999 {
		return Period{}, fmt.Errorf("period %q: invalid year", key)
	}
	kind := PeriodKind(subPart[0])
	if kind != Quarter && kind != Half {
		return Period{}, fmt.Errorf("period %q: unknown period kind %q", key, subPart[:1])
	}
	index, err := strconv.Atoi(subPart[1:])
	if err != nil || index < 1 || index > kind.count() {
		return Period{}, fmt.Errorf("period %q: sub-period out of range", key)
	}
	return Period{Year: year, Kind: kind, Index: index}, nil
}

// Start returns the first day of the period.
func (p Period) Start() time.Time {
	month := time.Month((p.Index-1)*p.Kind.months() + 1)
	return time.Date(p.Year, month, 1, 0, 0, 0, 0, time.UTC)
}

// End returns the last calendar day of the period.
func (p Period) End() time.Time {
	return p.Start().AddDate(0, p.Kind.months(), -1)
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%c%d", p.Year, byte(p.Kind), p.Index)
}
