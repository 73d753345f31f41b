package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/louisbranch/okrengine/internal/services/okr/domain"
	"github.com/louisbranch/okrengine/internal/services/okr/storage"
)

const checkInColumns = `id, key_result_id, value, note, created_by, created_at, updated_at`

// PutCheckIn inserts or updates one check-in. Updates keep the original
// insertion position and creation time.
func (s *Store) PutCheckIn(ctx context.Context, checkIn domain.CheckIn) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	id, err := requireID("check-in id", checkIn.ID)
	if err != nil {
		return err
	}
	keyResultID, err := requireID("key result id", checkIn.KeyResultID)
	if err != nil {
		return err
	}

	_, err = s.q.ExecContext(
		ctx,
		`INSERT INTO check_ins (`+checkInColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   value = excluded.value,
		   note = excluded.note,
		   updated_at = excluded.updated_at`,
		id,
		keyResultID,
		checkIn.Value.String(),
		checkIn.Note,
		checkIn.CreatedBy,
		toMillis(checkIn.CreatedAt),
		toMillis(checkIn.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put check-in: %w", err)
	}
	return nil
}

// GetCheckIn returns one check-in by id.
func (s *Store) GetCheckIn(ctx context.Context, id string) (domain.CheckIn, error) {
	if err := s.ready(ctx); err != nil {
		return domain.CheckIn{}, err
	}
	id, err := requireID("check-in id", id)
	if err != nil {
		return domain.CheckIn{}, err
	}
	row := s.q.QueryRowContext(ctx, `SELECT `+checkInColumns+` FROM check_ins WHERE id = ?`, id)
	checkIn, err := scanCheckIn(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.CheckIn{}, storage.ErrNotFound
		}
		return domain.CheckIn{}, fmt.Errorf("get check-in: %w", err)
	}
	return checkIn, nil
}

// DeleteCheckIn removes one check-in.
func (s *Store) DeleteCheckIn(ctx context.Context, id string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	id, err := requireID("check-in id", id)
	if err != nil {
		return err
	}
	result, err := s.q.ExecContext(ctx, `DELETE FROM check_ins WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete check-in: %w", err)
	}
	return requireAffected(result)
}

// ListCheckIns returns the check-ins of a Key Result, most recent first.
func (s *Store) ListCheckIns(ctx context.Context, keyResultID string) ([]domain.CheckIn, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	keyResultID, err := requireID("key result id", keyResultID)
	if err != nil {
		return nil, err
	}
	return s.queryCheckIns(ctx, "list check-ins",
		`SELECT `+checkInColumns+` FROM check_ins
		  WHERE key_result_id = ?
		  ORDER BY created_at DESC, seq DESC`,
		keyResultID)
}

// ListRecentCheckIns returns up to limit check-ins, most recent first.
func (s *Store) ListRecentCheckIns(ctx context.Context, limit int) ([]domain.CheckIn, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	return s.queryCheckIns(ctx, "list recent check-ins",
		`SELECT `+checkInColumns+` FROM check_ins
		  ORDER BY created_at DESC, seq DESC
		  LIMIT ?`,
		limit)
}

func (s *Store) queryCheckIns(ctx context.Context, op, query string, args ...any) ([]domain.CheckIn, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var checkIns []domain.CheckIn
	for rows.Next() {
		checkIn, err := scanCheckIn(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		checkIns = append(checkIns, checkIn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return checkIns, nil
}

func scanCheckIn(row rowScanner) (domain.CheckIn, error) {
	var (
		checkIn   domain.CheckIn
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(
		&checkIn.ID,
		&checkIn.KeyResultID,
		&checkIn.Value,
		&checkIn.Note,
		&checkIn.CreatedBy,
		&createdAt,
		&updatedAt,
	); err != nil {
		return domain.CheckIn{}, err
	}
	checkIn.CreatedAt = fromMillis(createdAt)
	checkIn.UpdatedAt = fromMillis(updatedAt)
	return checkIn, nil
}
