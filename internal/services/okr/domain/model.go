// Package domain defines the OKR entities, their lifecycle enums and the
// typed errors the engine reports.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle status of an Objective.
type Status string

const (
	StatusNotStarted Status = "NOT_STARTED"
	StatusOnTrack    Status = "ON_TRACK"
	StatusAtRisk     Status = "AT_RISK"
	StatusBehind     Status = "BEHIND"
	StatusClosed     Status = "CLOSED"
	StatusAbandoned  Status = "ABANDONED"
)

// Terminal reports whether the status is only left through an explicit reopen.
func (s Status) Terminal() bool {
	return s == StatusClosed || s == StatusAbandoned
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusNotStarted, StatusOnTrack, StatusAtRisk, StatusBehind, StatusClosed, StatusAbandoned:
		return true
	default:
		return false
	}
}

// ParseStatus parses a status name case-insensitively.
func ParseStatus(value string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(value)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown objective status %q", value)
	}
	return s, nil
}

// MetricType describes how a Key Result is measured.
type MetricType string

const (
	MetricNumber   MetricType = "NUMBER"
	MetricPercent  MetricType = "PERCENT"
	MetricCurrency MetricType = "CURRENCY"
	MetricBoolean  MetricType = "BOOLEAN"
)

// Valid reports whether m is a known metric type.
func (m MetricType) Valid() bool {
	switch m {
	case MetricNumber, MetricPercent, MetricCurrency, MetricBoolean:
		return true
	default:
		return false
	}
}

// ParseMetricType parses a metric type, defaulting to NUMBER when blank.
func ParseMetricType(value string) (MetricType, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return MetricNumber, nil
	}
	m := MetricType(strings.ToUpper(value))
	if !m.Valid() {
		return "", fmt.Errorf("unknown metric type %q", value)
	}
	return m, nil
}

// PercentCeiling bounds PERCENT target and current values.
var PercentCeiling = decimal.NewFromInt(100)

// DefaultWeight applies to Objectives and Key Results without an explicit weight.
var DefaultWeight = decimal.NewFromInt(1)

// Objective is a qualitative goal tracked over a reporting period.
type Objective struct {
	ID          string
	Title       string
	Description string
	OwnerID     string
	TeamID      string
	WorkspaceID string
	// Quarter is the reporting period key, e.g. "2026-Q3".
	Quarter  string
	Status   Status
	Progress decimal.NullDecimal
	Weight   decimal.Decimal
	// ParentID is the KPI hierarchy parent, unrelated to alignment edges.
	ParentID  string
	StartDate time.Time
	EndDate   time.Time
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// KeyResult is a measurable sub-goal of an Objective.
type KeyResult struct {
	ID           string
	ObjectiveID  string
	Title        string
	Description  string
	MetricType   MetricType
	Unit         string
	TargetValue  decimal.Decimal
	CurrentValue decimal.Decimal
	// Weight counts as 1 when not set.
	Weight    decimal.NullDecimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EffectiveWeight returns the stored weight or the default.
func (kr KeyResult) EffectiveWeight() decimal.Decimal {
	if !kr.Weight.Valid {
		return DefaultWeight
	}
	return kr.Weight.Decimal
}

// CheckIn is a timestamped progress entry against a Key Result.
type CheckIn struct {
	ID          string
	KeyResultID string
	Value       decimal.Decimal
	Note        string
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Alignment is a directed parent -> child edge between Objectives.
type Alignment struct {
	ParentObjectiveID string
	ChildObjectiveID  string
	CreatedBy         string
	CreatedAt         time.Time
}

// ClampNonNegative floors negative values to zero.
func ClampNonNegative(value decimal.Decimal) decimal.Decimal {
	if value.IsNegative() {
		return decimal.Zero
	}
	return value
}
