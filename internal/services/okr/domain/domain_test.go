package domain

import (
	"errors"
	"strings"
	"testing"
	"time"

	apperrors "github.com/louisbranch/okrengine/internal/platform/errors"
	"github.com/shopspring/decimal"
)

func TestStatusTerminal(t *testing.T) {
	t.Parallel()

	for _, s := range []Status{StatusClosed, StatusAbandoned} {
		if !s.Terminal() {
			t.Fatalf("%s should be terminal", s)
		}
	}
	for _, s := range []Status{StatusNotStarted, StatusOnTrack, StatusAtRisk, StatusBehind} {
		if s.Terminal() {
			t.Fatalf("%s should not be terminal", s)
		}
	}
}

func TestParseStatus(t *testing.T) {
	t.Parallel()

	got, err := ParseStatus(" on_track ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != StatusOnTrack {
		t.Fatalf("status = %q, want %q", got, StatusOnTrack)
	}
	if _, err := ParseStatus("DONE"); err == nil {
		t.Fatal("expected unknown status error")
	}
}

func TestParseMetricTypeDefaultsToNumber(t *testing.T) {
	t.Parallel()

	got, err := ParseMetricType("")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != MetricNumber {
		t.Fatalf("metric = %q, want %q", got, MetricNumber)
	}
	got, err = ParseMetricType("percent")
	if err != nil || got != MetricPercent {
		t.Fatalf("metric = %q, %v", got, err)
	}
	if _, err := ParseMetricType("ratio"); err == nil {
		t.Fatal("expected unknown metric error")
	}
}

func TestEffectiveWeight(t *testing.T) {
	t.Parallel()

	kr := KeyResult{}
	if !kr.EffectiveWeight().Equal(decimal.NewFromInt(1)) {
		t.Fatalf("unset weight = %s, want 1", kr.EffectiveWeight())
	}
	kr.Weight = decimal.NewNullDecimal(decimal.NewFromInt(3))
	if !kr.EffectiveWeight().Equal(decimal.NewFromInt(3)) {
		t.Fatalf("weight = %s, want 3", kr.EffectiveWeight())
	}
	kr.Weight = decimal.NewNullDecimal(decimal.Zero)
	if !kr.EffectiveWeight().IsZero() {
		t.Fatalf("explicit zero weight = %s, want 0", kr.EffectiveWeight())
	}
}

func TestClampNonNegative(t *testing.T) {
	t.Parallel()

	if got := ClampNonNegative(decimal.NewFromInt(-5)); !got.IsZero() {
		t.Fatalf("clamp(-5) = %s", got)
	}
	if got := ClampNonNegative(decimal.NewFromInt(7)); !got.Equal(decimal.NewFromInt(7)) {
		t.Fatalf("clamp(7) = %s", got)
	}
}

func TestObjectiveInputValidate(t *testing.T) {
	t.Parallel()

	valid := ObjectiveInput{Title: "Grow revenue", OwnerID: "user-1", Quarter: "2026-Q3"}
	tests := []struct {
		name  string
		edit  func(*ObjectiveInput)
		field string
	}{
		{name: "valid"},
		{name: "blank title", edit: func(in *ObjectiveInput) { in.Title = "   " }, field: "title"},
		{name: "long title", edit: func(in *ObjectiveInput) { in.Title = strings.Repeat("x", 256) }, field: "title"},
		{name: "missing owner", edit: func(in *ObjectiveInput) { in.OwnerID = "" }, field: "owner_id"},
		{name: "long quarter", edit: func(in *ObjectiveInput) { in.Quarter = strings.Repeat("q", 17) }, field: "quarter"},
		{name: "long description", edit: func(in *ObjectiveInput) { in.Description = strings.Repeat("d", 2001) }, field: "description"},
		{name: "negative weight", edit: func(in *ObjectiveInput) { in.Weight = decimal.NewNullDecimal(decimal.NewFromInt(-1)) }, field: "weight"},
		{
			name: "end before start",
			edit: func(in *ObjectiveInput) {
				in.StartDate = time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
				in.EndDate = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
			},
			field: "end_date",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := valid
			if tc.edit != nil {
				tc.edit(&in)
			}
			err := in.Validate()
			if tc.field == "" {
				if err != nil {
					t.Fatalf("validate: %v", err)
				}
				return
			}
			assertValidationField(t, err, tc.field)
		})
	}
}

func TestKeyResultInputValidate(t *testing.T) {
	t.Parallel()

	valid := KeyResultInput{
		ObjectiveID: "obj-1",
		Title:       "Close deals",
		TargetValue: decimal.NewFromInt(10),
	}
	tests := []struct {
		name  string
		edit  func(*KeyResultInput)
		field string
	}{
		{name: "valid with default metric"},
		{name: "missing objective", edit: func(in *KeyResultInput) { in.ObjectiveID = "" }, field: "objective_id"},
		{name: "zero target", edit: func(in *KeyResultInput) { in.TargetValue = decimal.Zero }, field: "target_value"},
		{name: "negative target", edit: func(in *KeyResultInput) { in.TargetValue = decimal.NewFromInt(-3) }, field: "target_value"},
		{name: "negative current", edit: func(in *KeyResultInput) { in.CurrentValue = decimal.NewFromInt(-1) }, field: "current_value"},
		{
			name: "percent target over 100",
			edit: func(in *KeyResultInput) {
				in.MetricType = MetricPercent
				in.TargetValue = decimal.NewFromInt(120)
			},
			field: "target_value",
		},
		{
			name: "percent current over 100",
			edit: func(in *KeyResultInput) {
				in.MetricType = MetricPercent
				in.TargetValue = decimal.NewFromInt(100)
				in.CurrentValue = decimal.NewFromInt(101)
			},
			field: "current_value",
		},
		{name: "unknown metric", edit: func(in *KeyResultInput) { in.MetricType = "RATIO" }, field: "metric_type"},
		{name: "long unit", edit: func(in *KeyResultInput) { in.Unit = strings.Repeat("u", 33) }, field: "unit"},
		{name: "negative weight", edit: func(in *KeyResultInput) { in.Weight = decimal.NewNullDecimal(decimal.NewFromInt(-2)) }, field: "weight"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := valid
			if tc.edit != nil {
				tc.edit(&in)
			}
			err := in.Validate()
			if tc.field == "" {
				if err != nil {
					t.Fatalf("validate: %v", err)
				}
				return
			}
			assertValidationField(t, err, tc.field)
		})
	}
}

func TestValidateNote(t *testing.T) {
	t.Parallel()

	if err := ValidateNote(strings.Repeat("n", 1000)); err != nil {
		t.Fatalf("note at limit: %v", err)
	}
	assertValidationField(t, ValidateNote(strings.Repeat("n", 1001)), "note")
	if err := ValidateNote(strings.Repeat("記", 1000)); err != nil {
		t.Fatalf("multibyte note at limit: %v", err)
	}
}

func TestErrorConstructorsMatchSentinels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err      error
		sentinel error
	}{
		{ObjectiveNotFound("o"), ErrObjectiveNotFound},
		{KeyResultNotFound("k"), ErrKeyResultNotFound},
		{CheckInNotFound("c"), ErrCheckInNotFound},
		{ValidationFailed("f", "bad"), ErrValidation},
		{AlignmentCycle("a", "b"), ErrAlignmentCycle},
		{AlignmentSelfReference("a"), ErrAlignmentSelfReference},
		{EditWindowExpired("c", time.Now()), ErrEditWindowExpired},
		{KeyResultLimitReached("o", 5), ErrKeyResultLimitReached},
		{InvalidStatusTransition("o", StatusClosed, StatusAbandoned), ErrInvalidStatusTransition},
	}
	for _, tc := range tests {
		if !errors.Is(tc.err, tc.sentinel) {
			t.Fatalf("%v does not match %v", tc.err, tc.sentinel)
		}
	}
	if errors.Is(AlignmentCycle("a", "b"), ErrAlignmentSelfReference) {
		t.Fatal("cycle should not match self reference")
	}
}

func TestKeyResultLimitMetadata(t *testing.T) {
	t.Parallel()

	var domainErr *apperrors.Error
	if !errors.As(KeyResultLimitReached("obj-9", 5), &domainErr) {
		t.Fatal("expected domain error")
	}
	if domainErr.Metadata["limit"] != "5" || domainErr.Metadata["objective_id"] != "obj-9" {
		t.Fatalf("metadata = %v", domainErr.Metadata)
	}
}

func assertValidationField(t *testing.T, err error, field string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected validation error for %s", field)
	}
	var domainErr *apperrors.Error
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected domain error, got %T: %v", err, err)
	}
	if domainErr.Code != apperrors.CodeValidation {
		t.Fatalf("code = %q, want %q", domainErr.Code, apperrors.CodeValidation)
	}
	if domainErr.Metadata["field"] != field {
		t.Fatalf("field = %q, want %q (%v)", domainErr.Metadata["field"], field, err)
	}
}
