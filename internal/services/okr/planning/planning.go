// Package planning holds the Objective and Key Result management use cases
// that surround the check-in ledger: creation, explicit lifecycle
// transitions, edits and cascading deletes.
package planning

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/louisbranch/okrengine/internal/platform/id"
	"github.com/louisbranch/okrengine/internal/services/okr/domain"
	"github.com/louisbranch/okrengine/internal/services/okr/domain/metric"
	"github.com/louisbranch/okrengine/internal/services/okr/ledger"
	"github.com/louisbranch/okrengine/internal/services/okr/storage"
)

// MaxKeyResults caps the Key Results of a single Objective.
const MaxKeyResults = 5

// copyPrefix is prepended to the title of a duplicated Key Result.
const copyPrefix = "Copy of "

// Planner runs planning use cases against a store.
type Planner struct {
	store storage.TxStore
	now   func() time.Time
	newID id.Generator
}

// Option configures a Planner.
type Option func(*Planner)

// WithClock overrides the planner clock.
func WithClock(now func() time.Time) Option {
	return func(p *Planner) {
		if now != nil {
			p.now = now
		}
	}
}

// WithIDs overrides entity id generation.
func WithIDs(gen id.Generator) Option {
	return func(p *Planner) {
		if gen != nil {
			p.newID = gen
		}
	}
}

// New returns a Planner over store.
func New(store storage.TxStore, opts ...Option) *Planner {
	p := &Planner{store: store, now: time.Now, newID: id.NewID}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// KeyResultPatch lists the editable Key Result fields. Nil or invalid fields
// are left unchanged.
type KeyResultPatch struct {
	Title       *string
	Description *string
	Unit        *string
	MetricType  *domain.MetricType
	TargetValue decimal.NullDecimal
	Weight      decimal.NullDecimal
}

// KeyResultProgress pairs a Key Result with its computed progress.
type KeyResultProgress struct {
	KeyResult domain.KeyResult
	Progress  decimal.Decimal
}

// ObjectiveReport is an Objective snapshot with per-Key-Result progress.
type ObjectiveReport struct {
	Objective  domain.Objective
	KeyResults []KeyResultProgress
}

// CreateObjective validates input and stores a new Objective with zero
// progress in NOT_STARTED.
func (p *Planner) CreateObjective(ctx context.Context, in domain.ObjectiveInput) (domain.Objective, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.OwnerID = strings.TrimSpace(in.OwnerID)
	in.Quarter = strings.TrimSpace(in.Quarter)
	in.ParentID = strings.TrimSpace(in.ParentID)
	if err := in.Validate(); err != nil {
		return domain.Objective{}, err
	}

	var created domain.Objective
	err := p.store.InTx(ctx, func(ctx context.Context, tx storage.Store) error {
		if in.ParentID != "" {
			if _, err := getObjective(ctx, tx, in.ParentID); err != nil {
				return err
			}
		}
		objectiveID, err := p.newID()
		if err != nil {
			return fmt.Errorf("generate objective id: %w", err)
		}
		weight := domain.DefaultWeight
		if in.Weight.Valid {
			weight = in.Weight.Decimal
		}
		now := p.now().UTC()
		created = domain.Objective{
			ID:          objectiveID,
			Title:       in.Title,
			Description: in.Description,
			OwnerID:     in.OwnerID,
			TeamID:      strings.TrimSpace(in.TeamID),
			WorkspaceID: strings.TrimSpace(in.WorkspaceID),
			Quarter:     in.Quarter,
			Status:      domain.StatusNotStarted,
			Progress:    decimal.NewNullDecimal(decimal.Zero),
			Weight:      weight,
			ParentID:    in.ParentID,
			StartDate:   in.StartDate,
			EndDate:     in.EndDate,
			CreatedBy:   strings.TrimSpace(in.CreatedBy),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.PutObjective(ctx, created); err != nil {
			return fmt.Errorf("put objective: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Objective{}, err
	}
	return created, nil
}

// GetObjective loads one Objective.
func (p *Planner) GetObjective(ctx context.Context, objectiveID string) (domain.Objective, error) {
	return getObjective(ctx, p.store, strings.TrimSpace(objectiveID))
}

// ListObjectives returns Objectives matching filter.
func (p *Planner) ListObjectives(ctx context.Context, filter storage.ObjectiveFilter) ([]domain.Objective, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, domain.ValidationFailed("status", "unknown status "+string(filter.Status))
	}
	objectives, err := p.store.ListObjectives(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list objectives: %w", err)
	}
	return objectives, nil
}

// CloseObjective moves an Objective into CLOSED.
func (p *Planner) CloseObjective(ctx context.Context, objectiveID string) (domain.Objective, error) {
	return p.finish(ctx, objectiveID, domain.StatusClosed)
}

// AbandonObjective moves an Objective into ABANDONED.
func (p *Planner) AbandonObjective(ctx context.Context, objectiveID string) (domain.Objective, error) {
	return p.finish(ctx, objectiveID, domain.StatusAbandoned)
}

// finish applies an explicit terminal transition. Repeating the same
// transition is a no-op; switching between terminal statuses is rejected.
func (p *Planner) finish(ctx context.Context, objectiveID string, to domain.Status) (domain.Objective, error) {
	var out domain.Objective
	err := p.store.InTx(ctx, func(ctx context.Context, tx storage.Store) error {
		objective, err := getObjective(ctx, tx, strings.TrimSpace(objectiveID))
		if err != nil {
			return err
		}
		if objective.Status == to {
			out = objective
			return nil
		}
		if objective.Status.Terminal() {
			return domain.InvalidStatusTransition(objective.ID, objective.Status, to)
		}
		objective.Status = to
		objective.UpdatedAt = p.now().UTC()
		if err := tx.PutObjective(ctx, objective); err != nil {
			return fmt.Errorf("put objective: %w", err)
		}
		out = objective
		return nil
	})
	if err != nil {
		return domain.Objective{}, err
	}
	return out, nil
}

// ReopenObjective takes a CLOSED or ABANDONED Objective back into automatic
// status inference.
func (p *Planner) ReopenObjective(ctx context.Context, objectiveID string) (domain.Objective, error) {
	var out domain.Objective
	err := p.store.InTx(ctx, func(ctx context.Context, tx storage.Store) error {
		objective, err := getObjective(ctx, tx, strings.TrimSpace(objectiveID))
		if err != nil {
			return err
		}
		if !objective.Status.Terminal() {
			return domain.InvalidStatusTransition(objective.ID, objective.Status, domain.StatusNotStarted)
		}
		now := p.now().UTC()
		objective.Status = domain.StatusNotStarted
		objective.UpdatedAt = now
		if err := tx.PutObjective(ctx, objective); err != nil {
			return fmt.Errorf("put objective: %w", err)
		}
		out, _, err = ledger.Recompute(ctx, tx, objective.ID, now)
		return err
	})
	if err != nil {
		return domain.Objective{}, err
	}
	return out, nil
}

// DeleteObjective removes an Objective with its Key Results, their
// check-ins and every incident alignment edge.
func (p *Planner) DeleteObjective(ctx context.Context, objectiveID string) error {
	objectiveID = strings.TrimSpace(objectiveID)
	return p.store.InTx(ctx, func(ctx context.Context, tx storage.Store) error {
		objective, err := getObjective(ctx, tx, objectiveID)
		if err != nil {
			return err
		}
		keyResults, err := tx.ListKeyResults(ctx, objective.ID)
		if err != nil {
			return fmt.Errorf("list key results: %w", err)
		}
		for _, kr := range keyResults {
			if err := deleteKeyResult(ctx, tx, kr.ID); err != nil {
				return err
			}
		}
		if err := tx.DeleteAlignmentsFor(ctx, objective.ID); err != nil {
			return fmt.Errorf("delete alignments: %w", err)
		}
		if err := tx.DeleteObjective(ctx, objective.ID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return domain.ObjectiveNotFound(objective.ID)
			}
			return fmt.Errorf("delete objective: %w", err)
		}
		return nil
	})
}

// CreateKeyResult adds a Key Result to an existing Objective. The current
// value always starts at zero.
func (p *Planner) CreateKeyResult(ctx context.Context, in domain.KeyResultInput) (domain.KeyResult, error) {
	in.ObjectiveID = strings.TrimSpace(in.ObjectiveID)
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Unit = strings.TrimSpace(in.Unit)
	if err := in.Validate(); err != nil {
		return domain.KeyResult{}, err
	}
	metricType, err := domain.ParseMetricType(string(in.MetricType))
	if err != nil {
		return domain.KeyResult{}, domain.ValidationFailed("metric_type", err.Error())
	}

	var created domain.KeyResult
	err = p.store.InTx(ctx, func(ctx context.Context, tx storage.Store) error {
		if err := p.ensureCapacity(ctx, tx, in.ObjectiveID); err != nil {
			return err
		}
		krID, err := p.newID()
		if err != nil {
			return fmt.Errorf("generate key result id: %w", err)
		}
		now := p.now().UTC()
		created = domain.KeyResult{
			ID:           krID,
			ObjectiveID:  in.ObjectiveID,
			Title:        in.Title,
			Description:  in.Description,
			MetricType:   metricType,
			Unit:         in.Unit,
			TargetValue:  in.TargetValue,
			CurrentValue: decimal.Zero,
			Weight:       in.Weight,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if !created.Weight.Valid {
			created.Weight = decimal.NewNullDecimal(domain.DefaultWeight)
		}
		return p.saveKeyResult(ctx, tx, created, now)
	})
	if err != nil {
		return domain.KeyResult{}, err
	}
	return created, nil
}

// UpdateKeyResult applies patch and recomputes the owning Objective.
func (p *Planner) UpdateKeyResult(ctx context.Context, keyResultID string, patch KeyResultPatch) (domain.KeyResult, error) {
	var updated domain.KeyResult
	err := p.store.InTx(ctx, func(ctx context.Context, tx storage.Store) error {
		kr, err := getKeyResult(ctx, tx, strings.TrimSpace(keyResultID))
		if err != nil {
			return err
		}
		if patch.Title != nil {
			kr.Title = strings.TrimSpace(*patch.Title)
		}
		if patch.Description != nil {
			kr.Description = strings.TrimSpace(*patch.Description)
		}
		if patch.Unit != nil {
			kr.Unit = strings.TrimSpace(*patch.Unit)
		}
		if patch.MetricType != nil {
			metricType, err := domain.ParseMetricType(string(*patch.MetricType))
			if err != nil {
				return domain.ValidationFailed("metric_type", err.Error())
			}
			kr.MetricType = metricType
		}
		if patch.TargetValue.Valid {
			kr.TargetValue = patch.TargetValue.Decimal
		}
		if patch.Weight.Valid {
			kr.Weight = patch.Weight
		}
		now := p.now().UTC()
		kr.UpdatedAt = now
		updated = kr
		return p.saveKeyResult(ctx, tx, kr, now)
	})
	if err != nil {
		return domain.KeyResult{}, err
	}
	return updated, nil
}

// DeleteKeyResult removes a Key Result with its check-ins and recomputes the
// owning Objective.
func (p *Planner) DeleteKeyResult(ctx context.Context, keyResultID string) error {
	return p.store.InTx(ctx, func(ctx context.Context, tx storage.Store) error {
		kr, err := getKeyResult(ctx, tx, strings.TrimSpace(keyResultID))
		if err != nil {
			return err
		}
		if err := deleteKeyResult(ctx, tx, kr.ID); err != nil {
			return err
		}
		_, _, err = ledger.Recompute(ctx, tx, kr.ObjectiveID, p.now().UTC())
		return err
	})
}

// DuplicateKeyResult copies a Key Result under the same Objective with a
// "Copy of" title and a zero current value. Check-ins are not copied.
func (p *Planner) DuplicateKeyResult(ctx context.Context, keyResultID string) (domain.KeyResult, error) {
	var created domain.KeyResult
	err := p.store.InTx(ctx, func(ctx context.Context, tx storage.Store) error {
		source, err := getKeyResult(ctx, tx, strings.TrimSpace(keyResultID))
		if err != nil {
			return err
		}
		if err := p.ensureCapacity(ctx, tx, source.ObjectiveID); err != nil {
			return err
		}
		krID, err := p.newID()
		if err != nil {
			return fmt.Errorf("generate key result id: %w", err)
		}
		now := p.now().UTC()
		created = source
		created.ID = krID
		created.Title = copyTitle(source.Title)
		created.CurrentValue = decimal.Zero
		created.CreatedAt = now
		created.UpdatedAt = now
		return p.saveKeyResult(ctx, tx, created, now)
	})
	if err != nil {
		return domain.KeyResult{}, err
	}
	return created, nil
}

// ObjectiveProgress returns an Objective with the progress of each of its
// Key Results.
func (p *Planner) ObjectiveProgress(ctx context.Context, objectiveID string) (ObjectiveReport, error) {
	objective, err := getObjective(ctx, p.store, strings.TrimSpace(objectiveID))
	if err != nil {
		return ObjectiveReport{}, err
	}
	keyResults, err := p.store.ListKeyResults(ctx, objective.ID)
	if err != nil {
		return ObjectiveReport{}, fmt.Errorf("list key results: %w", err)
	}
	report := ObjectiveReport{
		Objective:  objective,
		KeyResults: make([]KeyResultProgress, 0, len(keyResults)),
	}
	for _, kr := range keyResults {
		report.KeyResults = append(report.KeyResults, KeyResultProgress{
			KeyResult: kr,
			Progress:  metric.KeyResultProgress(kr),
		})
	}
	return report, nil
}

func (p *Planner) ensureCapacity(ctx context.Context, tx storage.Store, objectiveID string) error {
	if _, err := getObjective(ctx, tx, objectiveID); err != nil {
		return err
	}
	existing, err := tx.ListKeyResults(ctx, objectiveID)
	if err != nil {
		return fmt.Errorf("list key results: %w", err)
	}
	if len(existing) >= MaxKeyResults {
		return domain.KeyResultLimitReached(objectiveID, MaxKeyResults)
	}
	return nil
}

func (p *Planner) saveKeyResult(ctx context.Context, tx storage.Store, kr domain.KeyResult, now time.Time) error {
	if err := domain.ValidateKeyResult(kr); err != nil {
		return err
	}
	if err := tx.PutKeyResult(ctx, kr); err != nil {
		return fmt.Errorf("put key result: %w", err)
	}
	_, _, err := ledger.Recompute(ctx, tx, kr.ObjectiveID, now)
	return err
}

func deleteKeyResult(ctx context.Context, tx storage.Store, keyResultID string) error {
	checkIns, err := tx.ListCheckIns(ctx, keyResultID)
	if err != nil {
		return fmt.Errorf("list check-ins: %w", err)
	}
	for _, checkIn := range checkIns {
		if err := tx.DeleteCheckIn(ctx, checkIn.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("delete check-in: %w", err)
		}
	}
	if err := tx.DeleteKeyResult(ctx, keyResultID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.KeyResultNotFound(keyResultID)
		}
		return fmt.Errorf("delete key result: %w", err)
	}
	return nil
}

func copyTitle(title string) string {
	title = copyPrefix + title
	runes := []rune(title)
	if len(runes) > domain.MaxTitleLength {
		title = string(runes[:domain.MaxTitleLength])
	}
	return title
}

func getObjective(ctx context.Context, store storage.ObjectiveStore, objectiveID string) (domain.Objective, error) {
	if objectiveID == "" {
		return domain.Objective{}, domain.ValidationFailed("objective_id", "is required")
	}
	objective, err := store.GetObjective(ctx, objectiveID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Objective{}, domain.ObjectiveNotFound(objectiveID)
		}
		return domain.Objective{}, fmt.Errorf("get objective: %w", err)
	}
	return objective, nil
}

func getKeyResult(ctx context.Context, store storage.KeyResultStore, keyResultID string) (domain.KeyResult, error) {
	if keyResultID == "" {
		return domain.KeyResult{}, domain.ValidationFailed("key_result_id", "is required")
	}
	kr, err := store.GetKeyResult(ctx, keyResultID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.KeyResult{}, domain.KeyResultNotFound(keyResultID)
		}
		return domain.KeyResult{}, fmt.Errorf("get key result: %w", err)
	}
	return kr, nil
}
