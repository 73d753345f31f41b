// Package memory provides an in-process OKR storage implementation for tests,
// fixtures and single-process embedding.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/louisbranch/okrengine/internal/services/okr/domain"
	"github.com/louisbranch/okrengine/internal/services/okr/storage"
)

type checkInRow struct {
	checkIn domain.CheckIn
	seq     int64
}

type alignmentKey struct {
	parent string
	child  string
}

type alignmentRow struct {
	alignment domain.Alignment
	seq       int64
}

type state struct {
	objectives map[string]domain.Objective
	keyResults map[string]domain.KeyResult
	checkIns   map[string]checkInRow
	alignments map[alignmentKey]alignmentRow
	seq        int64
}

func newState() *state {
	return &state{
		objectives: make(map[string]domain.Objective),
		keyResults: make(map[string]domain.KeyResult),
		checkIns:   make(map[string]checkInRow),
		alignments: make(map[alignmentKey]alignmentRow),
	}
}

func (st *state) clone() *state {
	return &state{
		objectives: maps.Clone(st.objectives),
		keyResults: maps.Clone(st.keyResults),
		checkIns:   maps.Clone(st.checkIns),
		alignments: maps.Clone(st.alignments),
		seq:        st.seq,
	}
}

// Store implements storage.TxStore in memory.
// Thread-safe via RWMutex; transactions are serialized.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	st   *state
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{st: newState()}
}

// txStore runs nested InTx calls inside the enclosing transaction.
type txStore struct {
	*Store
}

func (t txStore) InTx(ctx context.Context, fn func(ctx context.Context, tx storage.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, t)
}

// InTx runs fn against the store and restores the prior state if fn fails.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx storage.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if fn == nil {
		return fmt.Errorf("transaction callback is required")
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.st.clone()
	s.mu.RUnlock()

	if err := fn(ctx, txStore{s}); err != nil {
		s.mu.Lock()
		s.st = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// GetObjective returns one Objective by id.
func (s *Store) GetObjective(ctx context.Context, id string) (domain.Objective, error) {
	if err := ctx.Err(); err != nil {
		return domain.Objective{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	objective, ok := s.st.objectives[id]
	if !ok {
		return domain.Objective{}, storage.ErrNotFound
	}
	return objective, nil
}

// PutObjective inserts or updates one Objective.
func (s *Store) PutObjective(ctx context.Context, objective domain.Objective) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(objective.ID) == "" {
		return fmt.Errorf("objective id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.st.objectives[objective.ID]; ok {
		objective.CreatedAt = existing.CreatedAt
		objective.CreatedBy = existing.CreatedBy
	}
	s.st.objectives[objective.ID] = objective
	return nil
}

// DeleteObjective removes one Objective with its Key Results and check-ins.
func (s *Store) DeleteObjective(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.objectives[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.st.objectives, id)
	for krID, kr := range s.st.keyResults {
		if kr.ObjectiveID == id {
			s.deleteKeyResultLocked(krID)
		}
	}
	return nil
}

// ListObjectives returns Objectives matching filter ordered by creation time.
func (s *Store) ListObjectives(ctx context.Context, filter storage.ObjectiveFilter) ([]domain.Objective, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Objective
	for _, objective := range s.st.objectives {
		if !matches(filter.Quarter, objective.Quarter) ||
			!matches(filter.OwnerID, objective.OwnerID) ||
			!matches(filter.TeamID, objective.TeamID) ||
			!matches(filter.WorkspaceID, objective.WorkspaceID) ||
			!matches(string(filter.Status), string(objective.Status)) {
			continue
		}
		out = append(out, objective)
	}
	sortObjectives(out)
	return out, nil
}

// ListObjectivesByParent returns KPI-hierarchy children of parentID.
func (s *Store) ListObjectivesByParent(ctx context.Context, parentID string) ([]domain.Objective, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(parentID) == "" {
		return nil, fmt.Errorf("parent id is required")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Objective
	for _, objective := range s.st.objectives {
		if objective.ParentID == parentID {
			out = append(out, objective)
		}
	}
	sortObjectives(out)
	return out, nil
}

// GetKeyResult returns one Key Result by id.
func (s *Store) GetKeyResult(ctx context.Context, id string) (domain.KeyResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.KeyResult{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	kr, ok := s.st.keyResults[id]
	if !ok {
		return domain.KeyResult{}, storage.ErrNotFound
	}
	return kr, nil
}

// PutKeyResult inserts or updates one Key Result. The owning Objective must exist.
func (s *Store) PutKeyResult(ctx context.Context, kr domain.KeyResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(kr.ID) == "" {
		return fmt.Errorf("key result id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.objectives[kr.ObjectiveID]; !ok {
		return fmt.Errorf("put key result: objective %q does not exist", kr.ObjectiveID)
	}
	if existing, ok := s.st.keyResults[kr.ID]; ok {
		kr.ObjectiveID = existing.ObjectiveID
		kr.CreatedAt = existing.CreatedAt
	}
	s.st.keyResults[kr.ID] = kr
	return nil
}

// DeleteKeyResult removes one Key Result with its check-ins.
func (s *Store) DeleteKeyResult(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.keyResults[id]; !ok {
		return storage.ErrNotFound
	}
	s.deleteKeyResultLocked(id)
	return nil
}

func (s *Store) deleteKeyResultLocked(id string) {
	delete(s.st.keyResults, id)
	for ciID, row := range s.st.checkIns {
		if row.checkIn.KeyResultID == id {
			delete(s.st.checkIns, ciID)
		}
	}
}

// ListKeyResults returns the Key Results of an Objective ordered by creation time.
func (s *Store) ListKeyResults(ctx context.Context, objectiveID string) ([]domain.KeyResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.KeyResult
	for _, kr := range s.st.keyResults {
		if kr.ObjectiveID == objectiveID {
			out = append(out, kr)
		}
	}
	slices.SortFunc(out, func(a, b domain.KeyResult) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

// GetCheckIn returns one check-in by id.
func (s *Store) GetCheckIn(ctx context.Context, id string) (domain.CheckIn, error) {
	if err := ctx.Err(); err != nil {
		return domain.CheckIn{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.st.checkIns[id]
	if !ok {
		return domain.CheckIn{}, storage.ErrNotFound
	}
	return row.checkIn, nil
}

// PutCheckIn inserts or updates one check-in. The owning Key Result must exist.
func (s *Store) PutCheckIn(ctx context.Context, checkIn domain.CheckIn) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(checkIn.ID) == "" {
		return fmt.Errorf("check-in id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.keyResults[checkIn.KeyResultID]; !ok {
		return fmt.Errorf("put check-in: key result %q does not exist", checkIn.KeyResultID)
	}
	if existing, ok := s.st.checkIns[checkIn.ID]; ok {
		checkIn.KeyResultID = existing.checkIn.KeyResultID
		checkIn.CreatedAt = existing.checkIn.CreatedAt
		checkIn.CreatedBy = existing.checkIn.CreatedBy
		s.st.checkIns[checkIn.ID] = checkInRow{checkIn: checkIn, seq: existing.seq}
		return nil
	}
	s.st.seq++
	s.st.checkIns[checkIn.ID] = checkInRow{checkIn: checkIn, seq: s.st.seq}
	return nil
}

// DeleteCheckIn removes one check-in.
func (s *Store) DeleteCheckIn(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.checkIns[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.st.checkIns, id)
	return nil
}

// ListCheckIns returns the check-ins of a Key Result, most recent first.
func (s *Store) ListCheckIns(ctx context.Context, keyResultID string) ([]domain.CheckIn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rows []checkInRow
	for _, row := range s.st.checkIns {
		if row.checkIn.KeyResultID == keyResultID {
			rows = append(rows, row)
		}
	}
	return newestFirst(rows, 0), nil
}

// ListRecentCheckIns returns up to limit check-ins, most recent first.
func (s *Store) ListRecentCheckIns(ctx context.Context, limit int) ([]domain.CheckIn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestFirst(slices.Collect(maps.Values(s.st.checkIns)), limit), nil
}

// PutAlignment inserts one edge.
func (s *Store) PutAlignment(ctx context.Context, alignment domain.Alignment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(alignment.ParentObjectiveID) == "" || strings.TrimSpace(alignment.ChildObjectiveID) == "" {
		return fmt.Errorf("parent and child objective ids are required")
	}
	key := alignmentKey{parent: alignment.ParentObjectiveID, child: alignment.ChildObjectiveID}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.alignments[key]; ok {
		return storage.ErrAlreadyExists
	}
	s.st.seq++
	s.st.alignments[key] = alignmentRow{alignment: alignment, seq: s.st.seq}
	return nil
}

// GetAlignment returns one edge.
func (s *Store) GetAlignment(ctx context.Context, parentID, childID string) (domain.Alignment, error) {
	if err := ctx.Err(); err != nil {
		return domain.Alignment{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.st.alignments[alignmentKey{parent: parentID, child: childID}]
	if !ok {
		return domain.Alignment{}, storage.ErrNotFound
	}
	return row.alignment, nil
}

// DeleteAlignment removes one edge if present.
func (s *Store) DeleteAlignment(ctx context.Context, parentID, childID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.st.alignments, alignmentKey{parent: parentID, child: childID})
	return nil
}

// ListAlignmentsFrom returns edges leaving parentID in insertion order.
func (s *Store) ListAlignmentsFrom(ctx context.Context, parentID string) ([]domain.Alignment, error) {
	return s.listAlignments(ctx, func(key alignmentKey) bool { return key.parent == parentID })
}

// ListAlignmentsTo returns edges entering childID in insertion order.
func (s *Store) ListAlignmentsTo(ctx context.Context, childID string) ([]domain.Alignment, error) {
	return s.listAlignments(ctx, func(key alignmentKey) bool { return key.child == childID })
}

// DeleteAlignmentsFor removes every edge incident to objectiveID.
func (s *Store) DeleteAlignmentsFor(ctx context.Context, objectiveID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.st.alignments {
		if key.parent == objectiveID || key.child == objectiveID {
			delete(s.st.alignments, key)
		}
	}
	return nil
}

func (s *Store) listAlignments(ctx context.Context, keep func(alignmentKey) bool) ([]domain.Alignment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rows []alignmentRow
	for key, row := range s.st.alignments {
		if keep(key) {
			rows = append(rows, row)
		}
	}
	slices.SortFunc(rows, func(a, b alignmentRow) int {
		return int(a.seq - b.seq)
	})
	out := make([]domain.Alignment, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.alignment)
	}
	return out, nil
}

func newestFirst(rows []checkInRow, limit int) []domain.CheckIn {
	slices.SortFunc(rows, func(a, b checkInRow) int {
		if c := b.checkIn.CreatedAt.Compare(a.checkIn.CreatedAt); c != 0 {
			return c
		}
		return int(b.seq - a.seq)
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	out := make([]domain.CheckIn, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.checkIn)
	}
	return out
}

func matches(want, got string) bool {
	want = strings.TrimSpace(want)
	return want == "" || want == got
}

func sortObjectives(objectives []domain.Objective) {
	slices.SortFunc(objectives, func(a, b domain.Objective) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

var _ storage.TxStore = (*Store)(nil)
