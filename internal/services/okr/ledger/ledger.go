// Package ledger records check-ins against Key Results and cascades each
// write into the owning Key Result and Objective.
//
// A Key Result's current value always equals the value of its most recent
// remaining check-in, or zero when none remain. Every cascade runs inside a
// single storage transaction: the check-in, the Key Result and the Objective
// are either all updated or none are.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/louisbranch/okrengine/internal/platform/id"
	"github.com/louisbranch/okrengine/internal/services/okr/domain"
	"github.com/louisbranch/okrengine/internal/services/okr/domain/progress"
	"github.com/louisbranch/okrengine/internal/services/okr/domain/status"
	"github.com/louisbranch/okrengine/internal/services/okr/storage"
)

// EditWindow is how long after creation a check-in may be amended.
const EditWindow = 24 * time.Hour

// DefaultRecentLimit caps Recent when the caller passes no limit.
const DefaultRecentLimit = 10

// Ledger applies check-in writes.
type Ledger struct {
	store storage.TxStore
	now   func() time.Time
	newID id.Generator
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the ledger clock.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithIDs overrides check-in id generation.
func WithIDs(gen id.Generator) Option {
	return func(l *Ledger) {
		if gen != nil {
			l.newID = gen
		}
	}
}

// New returns a Ledger over store.
func New(store storage.TxStore, opts ...Option) *Ledger {
	l := &Ledger{store: store, now: time.Now, newID: id.NewID}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Record appends a check-in to a Key Result. Negative values are floored to
// zero rather than rejected.
func (l *Ledger) Record(ctx context.Context, keyResultID string, value decimal.Decimal, note, author string) (domain.CheckIn, error) {
	keyResultID = strings.TrimSpace(keyResultID)
	if keyResultID == "" {
		return domain.CheckIn{}, domain.ValidationFailed("key_result_id", "is required")
	}
	note = strings.TrimSpace(note)
	if err := domain.ValidateNote(note); err != nil {
		return domain.CheckIn{}, err
	}

	var saved domain.CheckIn
	err := l.store.InTx(ctx, func(ctx context.Context, tx storage.Store) error {
		kr, err := tx.GetKeyResult(ctx, keyResultID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return domain.KeyResultNotFound(keyResultID)
			}
			return fmt.Errorf("get key result: %w", err)
		}

		checkInID, err := l.newID()
		if err != nil {
			return fmt.Errorf("generate check-in id: %w", err)
		}
		now := l.now().UTC()
		saved = domain.CheckIn{
			ID:          checkInID,
			KeyResultID: kr.ID,
			Value:       domain.ClampNonNegative(value),
			Note:        note,
			CreatedBy:   strings.TrimSpace(author),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.PutCheckIn(ctx, saved); err != nil {
			return fmt.Errorf("put check-in: %w", err)
		}
		return l.apply(ctx, tx, kr, saved.Value, now)
	})
	if err != nil {
		return domain.CheckIn{}, err
	}
	return saved, nil
}

// Amend replaces the value and note of a check-in created within EditWindow.
// The creation time is kept.
func (l *Ledger) Amend(ctx context.Context, checkInID string, value decimal.Decimal, note string) (domain.CheckIn, error) {
	checkInID = strings.TrimSpace(checkInID)
	note = strings.TrimSpace(note)
	if err := domain.ValidateNote(note); err != nil {
		return domain.CheckIn{}, err
	}

	var saved domain.CheckIn
	err := l.store.InTx(ctx, func(ctx context.Context, tx storage.Store) error {
		checkIn, err := l.getCheckIn(ctx, tx, checkInID)
		if err != nil {
			return err
		}
		now := l.now().UTC()
		if now.Sub(checkIn.CreatedAt) > EditWindow {
			return domain.EditWindowExpired(checkIn.ID, checkIn.CreatedAt)
		}

		checkIn.Value = domain.ClampNonNegative(value)
		checkIn.Note = note
		checkIn.UpdatedAt = now
		if err := tx.PutCheckIn(ctx, checkIn); err != nil {
			return fmt.Errorf("put check-in: %w", err)
		}
		saved = checkIn
		kr, err := tx.GetKeyResult(ctx, checkIn.KeyResultID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil
			}
			return fmt.Errorf("get key result: %w", err)
		}
		return l.apply(ctx, tx, kr, checkIn.Value, now)
	})
	if err != nil {
		return domain.CheckIn{}, err
	}
	return saved, nil
}

// Retract deletes a check-in and rolls its Key Result back to the most recent
// remaining value, or zero.
func (l *Ledger) Retract(ctx context.Context, checkInID string) error {
	checkInID = strings.TrimSpace(checkInID)
	return l.store.InTx(ctx, func(ctx context.Context, tx storage.Store) error {
		checkIn, err := l.getCheckIn(ctx, tx, checkInID)
		if err != nil {
			return err
		}
		if err := tx.DeleteCheckIn(ctx, checkIn.ID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return domain.CheckInNotFound(checkIn.ID)
			}
			return fmt.Errorf("delete check-in: %w", err)
		}
		return l.settleByID(ctx, tx, checkIn.KeyResultID, l.now().UTC())
	})
}

// RecomputeObjective re-aggregates progress and re-infers status for one
// Objective. A missing Objective is not an error.
func (l *Ledger) RecomputeObjective(ctx context.Context, objectiveID string) (domain.Objective, bool, error) {
	var (
		objective domain.Objective
		found     bool
	)
	err := l.store.InTx(ctx, func(ctx context.Context, tx storage.Store) error {
		var err error
		objective, found, err = Recompute(ctx, tx, objectiveID, l.now().UTC())
		return err
	})
	if err != nil {
		return domain.Objective{}, false, err
	}
	return objective, found, nil
}

// History returns the check-ins of a Key Result, oldest first.
func (l *Ledger) History(ctx context.Context, keyResultID string) ([]domain.CheckIn, error) {
	keyResultID = strings.TrimSpace(keyResultID)
	if _, err := l.store.GetKeyResult(ctx, keyResultID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, domain.KeyResultNotFound(keyResultID)
		}
		return nil, fmt.Errorf("get key result: %w", err)
	}
	checkIns, err := l.store.ListCheckIns(ctx, keyResultID)
	if err != nil {
		return nil, fmt.Errorf("list check-ins: %w", err)
	}
	slices.Reverse(checkIns)
	return checkIns, nil
}

// Recent returns up to limit check-ins across all Key Results, newest first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]domain.CheckIn, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	checkIns, err := l.store.ListRecentCheckIns(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent check-ins: %w", err)
	}
	return checkIns, nil
}

func (l *Ledger) getCheckIn(ctx context.Context, tx storage.Store, checkInID string) (domain.CheckIn, error) {
	if checkInID == "" {
		return domain.CheckIn{}, domain.ValidationFailed("check_in_id", "is required")
	}
	checkIn, err := tx.GetCheckIn(ctx, checkInID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.CheckIn{}, domain.CheckInNotFound(checkInID)
		}
		return domain.CheckIn{}, fmt.Errorf("get check-in: %w", err)
	}
	return checkIn, nil
}

// settleByID is settle for a Key Result that may have been deleted
// concurrently; the check-in delete stands and the cascade stops.
func (l *Ledger) settleByID(ctx context.Context, tx storage.Store, keyResultID string, now time.Time) error {
	kr, err := tx.GetKeyResult(ctx, keyResultID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("get key result: %w", err)
	}
	return l.settle(ctx, tx, kr, now)
}

// settle rolls the Key Result back to its latest remaining check-in, or zero,
// and recomputes the owning Objective.
func (l *Ledger) settle(ctx context.Context, tx storage.Store, kr domain.KeyResult, now time.Time) error {
	checkIns, err := tx.ListCheckIns(ctx, kr.ID)
	if err != nil {
		return fmt.Errorf("list check-ins: %w", err)
	}
	current := decimal.Zero
	if len(checkIns) > 0 {
		current = checkIns[0].Value
	}
	return l.apply(ctx, tx, kr, current, now)
}

// apply sets the Key Result's current value and recomputes the owning
// Objective.
func (l *Ledger) apply(ctx context.Context, tx storage.Store, kr domain.KeyResult, current decimal.Decimal, now time.Time) error {
	kr.CurrentValue = domain.ClampNonNegative(current)
	kr.UpdatedAt = now
	if err := domain.ValidateKeyResult(kr); err != nil {
		return err
	}
	if err := tx.PutKeyResult(ctx, kr); err != nil {
		return fmt.Errorf("put key result: %w", err)
	}
	if _, _, err := Recompute(ctx, tx, kr.ObjectiveID, now); err != nil {
		return err
	}
	return nil
}

// Recompute aggregates an Objective's Key Results into its progress, infers
// its status as of now and persists the result through tx. It reports false
// when the Objective does not exist. Terminal statuses are kept while
// progress still follows the Key Results. Nothing is written when neither
// progress nor status changes.
func Recompute(ctx context.Context, tx storage.Store, objectiveID string, now time.Time) (domain.Objective, bool, error) {
	objective, err := tx.GetObjective(ctx, objectiveID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Objective{}, false, nil
		}
		return domain.Objective{}, false, fmt.Errorf("get objective: %w", err)
	}
	keyResults, err := tx.ListKeyResults(ctx, objective.ID)
	if err != nil {
		return domain.Objective{}, false, fmt.Errorf("list key results: %w", err)
	}

	before := objective
	objective.Progress = decimal.NewNullDecimal(progress.Aggregate(keyResults))
	objective.Status = status.Evaluate(objective, now)
	if sameProgress(before.Progress, objective.Progress) && before.Status == objective.Status {
		return before, true, nil
	}
	objective.UpdatedAt = now
	if err := tx.PutObjective(ctx, objective); err != nil {
		return domain.Objective{}, false, fmt.Errorf("put objective: %w", err)
	}
	return objective, true, nil
}

func sameProgress(a, b decimal.NullDecimal) bool {
	if a.Valid != b.Valid {
		return false
	}
	return !a.Valid || a.Decimal.Equal(b.Decimal)
}
