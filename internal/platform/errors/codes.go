// Package errors provides structured domain errors that callers can tell
// apart by code and map onto transport status codes. okrctl reads codes with
// CodeOf; Error.ToGRPCStatus is for embedders serving the engine over gRPC.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Lookup errors
	CodeObjectiveNotFound Code = "OBJECTIVE_NOT_FOUND"
	CodeKeyResultNotFound Code = "KEY_RESULT_NOT_FOUND"
	CodeCheckInNotFound   Code = "CHECK_IN_NOT_FOUND"

	// Validation errors
	CodeValidation Code = "OKR_VALIDATION_FAILED"

	// Alignment errors
	CodeAlignmentCycle         Code = "ALIGNMENT_CYCLE"
	CodeAlignmentSelfReference Code = "ALIGNMENT_SELF_REFERENCE"

	// Check-in errors
	CodeCheckInEditWindowExpired Code = "CHECK_IN_EDIT_WINDOW_EXPIRED"

	// Planning errors
	CodeKeyResultLimitReached            Code = "KEY_RESULT_LIMIT_REACHED"
	CodeObjectiveInvalidStatusTransition Code = "OBJECTIVE_INVALID_STATUS_TRANSITION"
)

// IsNotFound reports whether the code names a missing entity.
func (c Code) IsNotFound() bool {
	switch c {
	case CodeObjectiveNotFound, CodeKeyResultNotFound, CodeCheckInNotFound:
		return true
	default:
		return false
	}
}

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// NotFound - referenced entity is absent
	case CodeObjectiveNotFound,
		CodeKeyResultNotFound,
		CodeCheckInNotFound:
		return codes.NotFound

	// InvalidArgument - validation failures, bad input
	case CodeValidation,
		CodeAlignmentSelfReference:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeAlignmentCycle,
		CodeCheckInEditWindowExpired,
		CodeKeyResultLimitReached,
		CodeObjectiveInvalidStatusTransition:
		return codes.FailedPrecondition

	default:
		return codes.Internal
	}
}
