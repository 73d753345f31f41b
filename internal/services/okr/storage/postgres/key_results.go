package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/louisbranch/okrengine/internal/services/okr/domain"
	"github.com/louisbranch/okrengine/internal/services/okr/storage"
)

const keyResultColumns = `id, objective_id, title, description, metric_type, unit, target_value, current_value, weight, created_at, updated_at`

// PutKeyResult inserts or updates one Key Result.
func (s *Store) PutKeyResult(ctx context.Context, kr domain.KeyResult) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	id, err := requireID("key result id", kr.ID)
	if err != nil {
		return err
	}
	objectiveID, err := requireID("objective id", kr.ObjectiveID)
	if err != nil {
		return err
	}
	_, err = s.q.ExecContext(
		ctx,
		`INSERT INTO key_results (`+keyResultColumns+`)
		 VALUES (`+placeholders(1, 11)+`)
		 ON CONFLICT (id) DO UPDATE SET
		   title = EXCLUDED.title,
		   description = EXCLUDED.description,
		   metric_type = EXCLUDED.metric_type,
		   unit = EXCLUDED.unit,
		   target_value = EXCLUDED.target_value,
		   current_value = EXCLUDED.current_value,
		   weight = EXCLUDED.weight,
		   updated_at = EXCLUDED.updated_at`,
		id,
		objectiveID,
		kr.Title,
		kr.Description,
		string(kr.MetricType),
		kr.Unit,
		kr.TargetValue,
		kr.CurrentValue,
		kr.Weight,
		kr.CreatedAt.UTC(),
		kr.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("put key result: %w", err)
	}
	return nil
}

// GetKeyResult returns one Key Result by id.
func (s *Store) GetKeyResult(ctx context.Context, id string) (domain.KeyResult, error) {
	if err := s.ready(ctx); err != nil {
		return domain.KeyResult{}, err
	}
	id, err := requireID("key result id", id)
	if err != nil {
		return domain.KeyResult{}, err
	}
	row := s.q.QueryRowContext(ctx, `SELECT `+keyResultColumns+` FROM key_results WHERE id = $1`+s.lockClause(), id)
	kr, err := scanKeyResult(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.KeyResult{}, storage.ErrNotFound
		}
		return domain.KeyResult{}, fmt.Errorf("get key result: %w", err)
	}
	return kr, nil
}

// DeleteKeyResult removes one Key Result.
func (s *Store) DeleteKeyResult(ctx context.Context, id string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	id, err := requireID("key result id", id)
	if err != nil {
		return err
	}
	result, err := s.q.ExecContext(ctx, `DELETE FROM key_results WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete key result: %w", err)
	}
	return requireAffected(result)
}

// ListKeyResults returns the Key Results of an Objective.
func (s *Store) ListKeyResults(ctx context.Context, objectiveID string) ([]domain.KeyResult, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	objectiveID, err := requireID("objective id", objectiveID)
	if err != nil {
		return nil, err
	}
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+keyResultColumns+` FROM key_results WHERE objective_id = $1 ORDER BY created_at ASC, id ASC`,
		objectiveID)
	if err != nil {
		return nil, fmt.Errorf("list key results: %w", err)
	}
	defer rows.Close()

	var krs []domain.KeyResult
	for rows.Next() {
		kr, err := scanKeyResult(rows)
		if err != nil {
			return nil, fmt.Errorf("list key results: %w", err)
		}
		krs = append(krs, kr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list key results: %w", err)
	}
	return krs, nil
}

func scanKeyResult(row rowScanner) (domain.KeyResult, error) {
	var (
		kr         domain.KeyResult
		metricType string
		createdAt  time.Time
		updatedAt  time.Time
	)
	if err := row.Scan(
		&kr.ID,
		&kr.ObjectiveID,
		&kr.Title,
		&kr.Description,
		&metricType,
		&kr.Unit,
		&kr.TargetValue,
		&kr.CurrentValue,
		&kr.Weight,
		&createdAt,
		&updatedAt,
	); err != nil {
		return domain.KeyResult{}, err
	}
	kr.MetricType = domain.MetricType(metricType)
	kr.CreatedAt = createdAt.UTC()
	kr.UpdatedAt = updatedAt.UTC()
	return kr, nil
}
