package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/louisbranch/okrengine/internal/services/okr/domain"
	"github.com/louisbranch/okrengine/internal/services/okr/storage"
)

const objectiveColumns = `id, title, description, owner_id, team_id, workspace_id, quarter, status, progress, weight, parent_id, start_date, end_date, created_by, created_at, updated_at`

// PutObjective inserts or updates one Objective.
func (s *Store) PutObjective(ctx context.Context, objective domain.Objective) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	id, err := requireID("objective id", objective.ID)
	if err != nil {
		return err
	}
	_, err = s.q.ExecContext(
		ctx,
		`INSERT INTO objectives (`+objectiveColumns+`)
		 VALUES (`+placeholders(1, 16)+`)
		 ON CONFLICT (id) DO UPDATE SET
		   title = EXCLUDED.title,
		   description = EXCLUDED.description,
		   owner_id = EXCLUDED.owner_id,
		   team_id = EXCLUDED.team_id,
		   workspace_id = EXCLUDED.workspace_id,
		   quarter = EXCLUDED.quarter,
		   status = EXCLUDED.status,
		   progress = EXCLUDED.progress,
		   weight = EXCLUDED.weight,
		   parent_id = EXCLUDED.parent_id,
		   start_date = EXCLUDED.start_date,
		   end_date = EXCLUDED.end_date,
		   updated_at = EXCLUDED.updated_at`,
		id,
		objective.Title,
		objective.Description,
		objective.OwnerID,
		objective.TeamID,
		objective.WorkspaceID,
		objective.Quarter,
		string(objective.Status),
		objective.Progress,
		objective.Weight,
		objective.ParentID,
		nullTime(objective.StartDate),
		nullTime(objective.EndDate),
		objective.CreatedBy,
		objective.CreatedAt.UTC(),
		objective.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("put objective: %w", err)
	}
	return nil
}

// GetObjective returns one Objective by id.
func (s *Store) GetObjective(ctx context.Context, id string) (domain.Objective, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Objective{}, err
	}
	id, err := requireID("objective id", id)
	if err != nil {
		return domain.Objective{}, err
	}
	row := s.q.QueryRowContext(ctx, `SELECT `+objectiveColumns+` FROM objectives WHERE id = $1`+s.lockClause(), id)
	objective, err := scanObjective(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Objective{}, storage.ErrNotFound
		}
		return domain.Objective{}, fmt.Errorf("get objective: %w", err)
	}
	return objective, nil
}

// DeleteObjective removes one Objective.
func (s *Store) DeleteObjective(ctx context.Context, id string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	id, err := requireID("objective id", id)
	if err != nil {
		return err
	}
	result, err := s.q.ExecContext(ctx, `DELETE FROM objectives WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete objective: %w", err)
	}
	return requireAffected(result)
}

// ListObjectives returns Objectives matching filter.
func (s *Store) ListObjectives(ctx context.Context, filter storage.ObjectiveFilter) ([]domain.Objective, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	var (
		clauses []string
		args    []any
	)
	add := func(column, value string) {
		value = strings.TrimSpace(value)
		if value == "" {
			return
		}
		args = append(args, value)
		clauses = append(clauses, column+" = $"+strconv.Itoa(len(args)))
	}
	add("quarter", filter.Quarter)
	add("owner_id", filter.OwnerID)
	add("team_id", filter.TeamID)
	add("workspace_id", filter.WorkspaceID)
	add("status", string(filter.Status))

	query := `SELECT ` + objectiveColumns + ` FROM objectives`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY created_at ASC, id ASC`
	return s.queryObjectives(ctx, "list objectives", query, args...)
}

// ListObjectivesByParent returns KPI-hierarchy children of parentID.
func (s *Store) ListObjectivesByParent(ctx context.Context, parentID string) ([]domain.Objective, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	parentID, err := requireID("parent id", parentID)
	if err != nil {
		return nil, err
	}
	return s.queryObjectives(ctx, "list objectives by parent",
		`SELECT `+objectiveColumns+` FROM objectives WHERE parent_id = $1 ORDER BY created_at ASC, id ASC`,
		parentID)
}

func (s *Store) queryObjectives(ctx context.Context, op, query string, args ...any) ([]domain.Objective, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var objectives []domain.Objective
	for rows.Next() {
		objective, err := scanObjective(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		objectives = append(objectives, objective)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return objectives, nil
}

func scanObjective(row rowScanner) (domain.Objective, error) {
	var (
		objective domain.Objective
		status    string
		startDate sql.NullTime
		endDate   sql.NullTime
		createdAt time.Time
		updatedAt time.Time
	)
	if err := row.Scan(
		&objective.ID,
		&objective.Title,
		&objective.Description,
		&objective.OwnerID,
		&objective.TeamID,
		&objective.WorkspaceID,
		&objective.Quarter,
		&status,
		&objective.Progress,
		&objective.Weight,
		&objective.ParentID,
		&startDate,
		&endDate,
		&objective.CreatedBy,
		&createdAt,
		&updatedAt,
	); err != nil {
		return domain.Objective{}, err
	}
	objective.Status = domain.Status(status)
	objective.StartDate = fromNullTime(startDate)
	objective.EndDate = fromNullTime(endDate)
	objective.CreatedAt = createdAt.UTC()
	objective.UpdatedAt = updatedAt.UTC()
	return objective, nil
}
