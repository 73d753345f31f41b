package domain

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Field length limits.
const (
	MaxTitleLength       = 255
	MaxDescriptionLength = 2000
	MaxQuarterLength     = 16
	MaxNoteLength        = 1000
	MaxUnitLength        = 32
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	_ = validate.RegisterValidation("nonblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}

// ObjectiveInput carries the caller-supplied fields of a new Objective.
type ObjectiveInput struct {
	Title       string              `json:"title" validate:"nonblank,max=255"`
	Description string              `json:"description" validate:"max=2000"`
	OwnerID     string              `json:"owner_id" validate:"nonblank"`
	TeamID      string              `json:"team_id"`
	WorkspaceID string              `json:"workspace_id"`
	Quarter     string              `json:"quarter" validate:"nonblank,max=16"`
	ParentID    string              `json:"parent_id"`
	Weight      decimal.NullDecimal `json:"weight" validate:"-"`
	StartDate   time.Time           `json:"start_date" validate:"-"`
	EndDate     time.Time           `json:"end_date" validate:"-"`
	CreatedBy   string              `json:"created_by"`
}

// Validate checks the input against field limits and date ordering.
func (in ObjectiveInput) Validate() error {
	if err := structErr(validate.Struct(in)); err != nil {
		return err
	}
	if in.Weight.Valid && in.Weight.Decimal.IsNegative() {
		return ValidationFailed("weight", "must not be negative")
	}
	if !in.StartDate.IsZero() && !in.EndDate.IsZero() && in.EndDate.Before(in.StartDate) {
		return ValidationFailed("end_date", "must not be before start_date")
	}
	return nil
}

// KeyResultInput carries the caller-supplied fields of a new Key Result.
type KeyResultInput struct {
	ObjectiveID  string              `json:"objective_id" validate:"nonblank"`
	Title        string              `json:"title" validate:"nonblank,max=255"`
	Description  string              `json:"description" validate:"max=2000"`
	MetricType   MetricType          `json:"metric_type"`
	Unit         string              `json:"unit" validate:"max=32"`
	TargetValue  decimal.Decimal     `json:"target_value" validate:"-"`
	CurrentValue decimal.Decimal     `json:"current_value" validate:"-"`
	Weight       decimal.NullDecimal `json:"weight" validate:"-"`
}

// Validate checks the input fields and the numeric Key Result invariants.
func (in KeyResultInput) Validate() error {
	if err := structErr(validate.Struct(in)); err != nil {
		return err
	}
	metricType := in.MetricType
	if metricType == "" {
		metricType = MetricNumber
	}
	return ValidateKeyResult(KeyResult{
		Title:        in.Title,
		MetricType:   metricType,
		TargetValue:  in.TargetValue,
		CurrentValue: in.CurrentValue,
		Weight:       in.Weight,
	})
}

// ValidateKeyResult checks the invariants every persisted Key Result holds.
func ValidateKeyResult(kr KeyResult) error {
	if strings.TrimSpace(kr.Title) == "" {
		return ValidationFailed("title", "is required")
	}
	if err := structErr(validate.Struct(keyResultText{
		Title:       kr.Title,
		Description: kr.Description,
		Unit:        kr.Unit,
	})); err != nil {
		return err
	}
	if !kr.MetricType.Valid() {
		return ValidationFailed("metric_type", "unknown metric type "+string(kr.MetricType))
	}
	if !kr.TargetValue.IsPositive() {
		return ValidationFailed("target_value", "must be greater than 0")
	}
	if kr.CurrentValue.IsNegative() {
		return ValidationFailed("current_value", "must not be negative")
	}
	if kr.MetricType == MetricPercent {
		if kr.TargetValue.GreaterThan(PercentCeiling) {
			return ValidationFailed("target_value", "percent target must not exceed 100")
		}
		if kr.CurrentValue.GreaterThan(PercentCeiling) {
			return ValidationFailed("current_value", "percent value must not exceed 100")
		}
	}
	if kr.Weight.Valid && kr.Weight.Decimal.IsNegative() {
		return ValidationFailed("weight", "must not be negative")
	}
	return nil
}

// keyResultText carries the length-bounded Key Result fields.
type keyResultText struct {
	Title       string `json:"title" validate:"max=255"`
	Description string `json:"description" validate:"max=2000"`
	Unit        string `json:"unit" validate:"max=32"`
}

type checkInNote struct {
	Note string `json:"note" validate:"max=1000"`
}

// ValidateNote bounds check-in notes.
func ValidateNote(note string) error {
	return structErr(validate.Struct(checkInNote{Note: note}))
}

func structErr(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return ValidationFailed("input", err.Error())
	}
	first := fieldErrs[0]
	switch first.Tag() {
	case "nonblank", "required":
		return ValidationFailed(first.Field(), "is required")
	case "max":
		return ValidationFailed(first.Field(), "must be at most "+first.Param()+" characters")
	default:
		return ValidationFailed(first.Field(), "failed "+first.Tag()+" check")
	}
}
