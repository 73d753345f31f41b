package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/louisbranch/okrengine/internal/services/okr/domain"
	"github.com/louisbranch/okrengine/internal/services/okr/storage"
)

const alignmentColumns = `parent_objective_id, child_objective_id, created_by, created_at`

// PutAlignment inserts one alignment edge.
func (s *Store) PutAlignment(ctx context.Context, alignment domain.Alignment) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	parentID, err := requireID("parent objective id", alignment.ParentObjectiveID)
	if err != nil {
		return err
	}
	childID, err := requireID("child objective id", alignment.ChildObjectiveID)
	if err != nil {
		return err
	}
	_, err = s.q.ExecContext(
		ctx,
		`INSERT INTO objective_alignments (`+alignmentColumns+`) VALUES (?, ?, ?, ?)`,
		parentID,
		childID,
		alignment.CreatedBy,
		toMillis(alignment.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("put alignment: %w", err)
	}
	return nil
}

// GetAlignment returns one edge.
func (s *Store) GetAlignment(ctx context.Context, parentID, childID string) (domain.Alignment, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Alignment{}, err
	}
	row := s.q.QueryRowContext(ctx,
		`SELECT `+alignmentColumns+` FROM objective_alignments
		  WHERE parent_objective_id = ? AND child_objective_id = ?`,
		parentID, childID)
	alignment, err := scanAlignment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Alignment{}, storage.ErrNotFound
		}
		return domain.Alignment{}, fmt.Errorf("get alignment: %w", err)
	}
	return alignment, nil
}

// DeleteAlignment removes one edge if present.
func (s *Store) DeleteAlignment(ctx context.Context, parentID, childID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if _, err := s.q.ExecContext(ctx,
		`DELETE FROM objective_alignments WHERE parent_objective_id = ? AND child_objective_id = ?`,
		parentID, childID); err != nil {
		return fmt.Errorf("delete alignment: %w", err)
	}
	return nil
}

// ListAlignmentsFrom returns edges leaving parentID in insertion order.
func (s *Store) ListAlignmentsFrom(ctx context.Context, parentID string) ([]domain.Alignment, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return s.queryAlignments(ctx, "list alignments from",
		`SELECT `+alignmentColumns+` FROM objective_alignments
		  WHERE parent_objective_id = ?
		  ORDER BY seq ASC`,
		parentID)
}

// ListAlignmentsTo returns edges entering childID in insertion order.
func (s *Store) ListAlignmentsTo(ctx context.Context, childID string) ([]domain.Alignment, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return s.queryAlignments(ctx, "list alignments to",
		`SELECT `+alignmentColumns+` FROM objective_alignments
		  WHERE child_objective_id = ?
		  ORDER BY seq ASC`,
		childID)
}

// DeleteAlignmentsFor removes every edge incident to objectiveID.
func (s *Store) DeleteAlignmentsFor(ctx context.Context, objectiveID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if _, err := s.q.ExecContext(ctx,
		`DELETE FROM objective_alignments WHERE parent_objective_id = ? OR child_objective_id = ?`,
		objectiveID, objectiveID); err != nil {
		return fmt.Errorf("delete alignments for objective: %w", err)
	}
	return nil
}

func (s *Store) queryAlignments(ctx context.Context, op, query string, args ...any) ([]domain.Alignment, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var alignments []domain.Alignment
	for rows.Next() {
		alignment, err := scanAlignment(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		alignments = append(alignments, alignment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return alignments, nil
}

func scanAlignment(row rowScanner) (domain.Alignment, error) {
	var (
		alignment domain.Alignment
		createdAt int64
	)
	if err := row.Scan(
		&alignment.ParentObjectiveID,
		&alignment.ChildObjectiveID,
		&alignment.CreatedBy,
		&createdAt,
	); err != nil {
		return domain.Alignment{}, err
	}
	alignment.CreatedAt = fromMillis(createdAt)
	return alignment, nil
}
