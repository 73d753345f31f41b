package domain

import (
	"strconv"
	"time"

	apperrors "github.com/louisbranch/okrengine/internal/platform/errors"
)

// Sentinels for errors.Is checks. Matching is by code, so errors built by the
// constructors below match these regardless of metadata.
var (
	ErrObjectiveNotFound       = apperrors.New(apperrors.CodeObjectiveNotFound, "objective not found")
	ErrKeyResultNotFound       = apperrors.New(apperrors.CodeKeyResultNotFound, "key result not found")
	ErrCheckInNotFound         = apperrors.New(apperrors.CodeCheckInNotFound, "check-in not found")
	ErrValidation              = apperrors.New(apperrors.CodeValidation, "validation failed")
	ErrAlignmentCycle          = apperrors.New(apperrors.CodeAlignmentCycle, "alignment would create a cycle")
	ErrAlignmentSelfReference  = apperrors.New(apperrors.CodeAlignmentSelfReference, "objective cannot align to itself")
	ErrEditWindowExpired       = apperrors.New(apperrors.CodeCheckInEditWindowExpired, "check-in edit window expired")
	ErrKeyResultLimitReached   = apperrors.New(apperrors.CodeKeyResultLimitReached, "key result limit reached")
	ErrInvalidStatusTransition = apperrors.New(apperrors.CodeObjectiveInvalidStatusTransition, "invalid objective status transition")
)

// ObjectiveNotFound reports a missing Objective.
func ObjectiveNotFound(id string) error {
	return apperrors.WithMetadata(apperrors.CodeObjectiveNotFound, "objective not found: "+id, map[string]string{
		"objective_id": id,
	})
}

// KeyResultNotFound reports a missing Key Result.
func KeyResultNotFound(id string) error {
	return apperrors.WithMetadata(apperrors.CodeKeyResultNotFound, "key result not found: "+id, map[string]string{
		"key_result_id": id,
	})
}

// CheckInNotFound reports a missing check-in.
func CheckInNotFound(id string) error {
	return apperrors.WithMetadata(apperrors.CodeCheckInNotFound, "check-in not found: "+id, map[string]string{
		"check_in_id": id,
	})
}

// ValidationFailed reports a rejected field value.
func ValidationFailed(field, message string) error {
	return apperrors.WithMetadata(apperrors.CodeValidation, field+": "+message, map[string]string{
		"field": field,
	})
}

// AlignmentCycle reports that parent -> child would close a cycle.
func AlignmentCycle(parentID, childID string) error {
	return apperrors.WithMetadata(apperrors.CodeAlignmentCycle,
		"alignment "+parentID+" -> "+childID+" would create a cycle",
		map[string]string{
			"parent_objective_id": parentID,
			"child_objective_id":  childID,
		})
}

// AlignmentSelfReference reports an objective aligned to itself.
func AlignmentSelfReference(id string) error {
	return apperrors.WithMetadata(apperrors.CodeAlignmentSelfReference, "objective cannot align to itself: "+id, map[string]string{
		"objective_id": id,
	})
}

// EditWindowExpired reports an amend attempted after the edit window closed.
func EditWindowExpired(checkInID string, createdAt time.Time) error {
	return apperrors.WithMetadata(apperrors.CodeCheckInEditWindowExpired, "check-in edit window expired: "+checkInID, map[string]string{
		"check_in_id": checkInID,
		"created_at":  createdAt.UTC().Format(time.RFC3339),
	})
}

// KeyResultLimitReached reports an Objective already at its Key Result cap.
func KeyResultLimitReached(objectiveID string, limit int) error {
	return apperrors.WithMetadata(apperrors.CodeKeyResultLimitReached, "objective already has the maximum number of key results", map[string]string{
		"objective_id": objectiveID,
		"limit":        strconv.Itoa(limit),
	})
}

// InvalidStatusTransition reports an explicit status change that is not allowed.
func InvalidStatusTransition(objectiveID string, from, to Status) error {
	return apperrors.WithMetadata(apperrors.CodeObjectiveInvalidStatusTransition,
		"cannot move objective from "+string(from)+" to "+string(to),
		map[string]string{
			"objective_id": objectiveID,
			"from":         string(from),
			"to":           string(to),
		})
}
