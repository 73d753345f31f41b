// Package storage defines persistence contracts for OKR engine state.
package storage

import (
	"context"
	"errors"

	"github.com/louisbranch/okrengine/internal/services/okr/domain"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a uniqueness-constrained record already exists.
	ErrAlreadyExists = errors.New("record already exists")
)

// ObjectiveFilter narrows ListObjectives. Empty fields match everything.
type ObjectiveFilter struct {
	Quarter     string
	OwnerID     string
	TeamID      string
	WorkspaceID string
	Status      domain.Status
}

// ObjectiveStore persists Objectives.
type ObjectiveStore interface {
	GetObjective(ctx context.Context, id string) (domain.Objective, error)
	// PutObjective inserts or replaces an Objective by id.
	PutObjective(ctx context.Context, objective domain.Objective) error
	DeleteObjective(ctx context.Context, id string) error
	// ListObjectives returns matching Objectives ordered by creation time.
	ListObjectives(ctx context.Context, filter ObjectiveFilter) ([]domain.Objective, error)
	// ListObjectivesByParent returns KPI-hierarchy children of parentID.
	ListObjectivesByParent(ctx context.Context, parentID string) ([]domain.Objective, error)
}

// KeyResultStore persists Key Results.
type KeyResultStore interface {
	GetKeyResult(ctx context.Context, id string) (domain.KeyResult, error)
	PutKeyResult(ctx context.Context, keyResult domain.KeyResult) error
	DeleteKeyResult(ctx context.Context, id string) error
	// ListKeyResults returns the Key Results of an Objective ordered by creation time.
	ListKeyResults(ctx context.Context, objectiveID string) ([]domain.KeyResult, error)
}

// CheckInStore persists check-ins.
type CheckInStore interface {
	GetCheckIn(ctx context.Context, id string) (domain.CheckIn, error)
	PutCheckIn(ctx context.Context, checkIn domain.CheckIn) error
	DeleteCheckIn(ctx context.Context, id string) error
	// ListCheckIns returns the check-ins of a Key Result, most recent first.
	// Ties on creation time are broken by insertion order, later first.
	ListCheckIns(ctx context.Context, keyResultID string) ([]domain.CheckIn, error)
	// ListRecentCheckIns returns up to limit check-ins across all Key Results,
	// most recent first.
	ListRecentCheckIns(ctx context.Context, limit int) ([]domain.CheckIn, error)
}

// AlignmentStore persists alignment edges.
type AlignmentStore interface {
	// PutAlignment inserts an edge. It returns ErrAlreadyExists when the
	// (parent, child) pair is already stored.
	PutAlignment(ctx context.Context, alignment domain.Alignment) error
	GetAlignment(ctx context.Context, parentID, childID string) (domain.Alignment, error)
	// DeleteAlignment removes one edge. Missing edges are not an error.
	DeleteAlignment(ctx context.Context, parentID, childID string) error
	// ListAlignmentsFrom returns edges leaving parentID in insertion order.
	ListAlignmentsFrom(ctx context.Context, parentID string) ([]domain.Alignment, error)
	// ListAlignmentsTo returns edges entering childID in insertion order.
	ListAlignmentsTo(ctx context.Context, childID string) ([]domain.Alignment, error)
	// DeleteAlignmentsFor removes every edge incident to objectiveID.
	DeleteAlignmentsFor(ctx context.Context, objectiveID string) error
}

// Store combines every entity store.
type Store interface {
	ObjectiveStore
	KeyResultStore
	CheckInStore
	AlignmentStore
}

// TxStore is a Store that can run a unit of work atomically. fn receives a
// Store bound to the transaction; returning an error rolls every write back.
type TxStore interface {
	Store
	InTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}
