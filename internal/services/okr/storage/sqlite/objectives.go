package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/okrengine/internal/services/okr/domain"
	"github.com/louisbranch/okrengine/internal/services/okr/storage"
	"github.com/shopspring/decimal"
)

const objectiveColumns = `id, title, description, owner_id, team_id, workspace_id, quarter,
        status, progress, weight, parent_id, start_date, end_date,
        created_by, created_at, updated_at`

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
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   title = excluded.title,
		   description = excluded.description,
		   owner_id = excluded.owner_id,
		   team_id = excluded.team_id,
		   workspace_id = excluded.workspace_id,
		   quarter = excluded.quarter,
		   status = excluded.status,
		   progress = excluded.progress,
		   weight = excluded.weight,
		   parent_id = excluded.parent_id,
		   start_date = excluded.start_date,
		   end_date = excluded.end_date,
		   updated_at = excluded.updated_at`,
		id,
		objective.Title,
		objective.Description,
		objective.OwnerID,
		objective.TeamID,
		objective.WorkspaceID,
		objective.Quarter,
		string(objective.Status),
		nullDecimal(objective.Progress),
		objective.Weight.String(),
		objective.ParentID,
		toNullMillis(objective.StartDate),
		toNullMillis(objective.EndDate),
		objective.CreatedBy,
		toMillis(objective.CreatedAt),
		toMillis(objective.UpdatedAt),
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
	row := s.q.QueryRowContext(ctx, `SELECT `+objectiveColumns+` FROM objectives WHERE id = ?`, id)
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
	result, err := s.q.ExecContext(ctx, `DELETE FROM objectives WHERE id = ?`, id)
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
		clauses = append(clauses, column+" = ?")
		args = append(args, value)
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
		`SELECT `+objectiveColumns+` FROM objectives WHERE parent_id = ? ORDER BY created_at ASC, id ASC`,
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanObjective(row rowScanner) (domain.Objective, error) {
	var (
		objective domain.Objective
		status    string
		weight    decimal.Decimal
		startDate sql.NullInt64
		endDate   sql.NullInt64
		createdAt int64
		updatedAt int64
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
		&weight,
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
	objective.Weight = weight
	objective.StartDate = fromNullMillis(startDate)
	objective.EndDate = fromNullMillis(endDate)
	objective.CreatedAt = fromMillis(createdAt)
	objective.UpdatedAt = fromMillis(updatedAt)
	return objective, nil
}

// nullDecimal stores decimals as text so SQLite never coerces them to REAL.
func nullDecimal(value decimal.NullDecimal) sql.NullString {
	if !value.Valid {
		return sql.NullString{}
	}
	return sql.NullString{String: value.Decimal.String(), Valid: true}
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}
