// Package storagetest holds behavior checks shared by every storage.TxStore
// implementation.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/louisbranch/okrengine/internal/services/okr/domain"
	"github.com/louisbranch/okrengine/internal/services/okr/storage"
	"github.com/shopspring/decimal"
)

// Factory returns an empty store owned by t.
type Factory func(t *testing.T) storage.TxStore

var base = time.Date(2026, time.August, 3, 9, 0, 0, 0, time.UTC)

// Objective returns a persisted-ready Objective fixture.
func Objective(id string) domain.Objective {
	return domain.Objective{
		ID:        id,
		Title:     "Objective " + id,
		OwnerID:   "owner-1",
		Quarter:   "2026-Q3",
		Status:    domain.StatusNotStarted,
		Progress:  decimal.NewNullDecimal(decimal.Zero),
		Weight:    decimal.NewFromInt(1),
		CreatedAt: base,
		UpdatedAt: base,
	}
}

// KeyResult returns a Key Result fixture for objectiveID.
func KeyResult(id, objectiveID string) domain.KeyResult {
	return domain.KeyResult{
		ID:           id,
		ObjectiveID:  objectiveID,
		Title:        "Key result " + id,
		MetricType:   domain.MetricNumber,
		TargetValue:  decimal.NewFromInt(100),
		CurrentValue: decimal.Zero,
		CreatedAt:    base,
		UpdatedAt:    base,
	}
}

// Run executes the shared contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("objective round trip", func(t *testing.T) { testObjectiveRoundTrip(t, newStore(t)) })
	t.Run("objective filters", func(t *testing.T) { testObjectiveFilters(t, newStore(t)) })
	t.Run("key results", func(t *testing.T) { testKeyResults(t, newStore(t)) })
	t.Run("check-in ordering", func(t *testing.T) { testCheckInOrdering(t, newStore(t)) })
	t.Run("alignments", func(t *testing.T) { testAlignments(t, newStore(t)) })
	t.Run("transaction rollback", func(t *testing.T) { testTxRollback(t, newStore(t)) })
	t.Run("transaction commit", func(t *testing.T) { testTxCommit(t, newStore(t)) })
	t.Run("missing records", func(t *testing.T) { testMissing(t, newStore(t)) })
}

func testObjectiveRoundTrip(t *testing.T, store storage.TxStore) {
	ctx := context.Background()
	want := Objective("obj-1")
	want.Description = "Ship the engine"
	want.TeamID = "team-1"
	want.ParentID = "kpi-1"
	want.Weight = decimal.RequireFromString("2.5")
	want.Progress = decimal.NewNullDecimal(decimal.RequireFromString("42.17"))
	want.StartDate = time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	want.EndDate = time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC)
	if err := store.PutObjective(ctx, want); err != nil {
		t.Fatalf("put objective: %v", err)
	}

	got, err := store.GetObjective(ctx, "obj-1")
	if err != nil {
		t.Fatalf("get objective: %v", err)
	}
	if got.Title != want.Title || got.Description != want.Description || got.TeamID != want.TeamID {
		t.Fatalf("objective = %+v, want %+v", got, want)
	}
	if got.ParentID != "kpi-1" {
		t.Fatalf("parent id = %q, want %q", got.ParentID, "kpi-1")
	}
	if !got.Progress.Valid || !got.Progress.Decimal.Equal(want.Progress.Decimal) {
		t.Fatalf("progress = %v, want %v", got.Progress, want.Progress)
	}
	if !got.Weight.Equal(want.Weight) {
		t.Fatalf("weight = %s, want %s", got.Weight, want.Weight)
	}
	if !got.StartDate.Equal(want.StartDate) || !got.EndDate.Equal(want.EndDate) {
		t.Fatalf("dates = %s..%s", got.StartDate, got.EndDate)
	}
	if !got.CreatedAt.Equal(base) {
		t.Fatalf("created at = %s, want %s", got.CreatedAt, base)
	}

	want.Status = domain.StatusBehind
	want.Progress = decimal.NullDecimal{}
	if err := store.PutObjective(ctx, want); err != nil {
		t.Fatalf("update objective: %v", err)
	}
	got, err = store.GetObjective(ctx, "obj-1")
	if err != nil {
		t.Fatalf("get updated objective: %v", err)
	}
	if got.Status != domain.StatusBehind {
		t.Fatalf("status = %s, want %s", got.Status, domain.StatusBehind)
	}
	if got.Progress.Valid {
		t.Fatalf("progress = %v, want null", got.Progress)
	}

	children, err := store.ListObjectivesByParent(ctx, "kpi-1")
	if err != nil {
		t.Fatalf("list by parent: %v", err)
	}
	if len(children) != 1 || children[0].ID != "obj-1" {
		t.Fatalf("children = %+v", children)
	}

	if err := store.DeleteObjective(ctx, "obj-1"); err != nil {
		t.Fatalf("delete objective: %v", err)
	}
	if _, err := store.GetObjective(ctx, "obj-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("get deleted objective err = %v, want %v", err, storage.ErrNotFound)
	}
}

func testObjectiveFilters(t *testing.T, store storage.TxStore) {
	ctx := context.Background()
	fixtures := []domain.Objective{Objective("a"), Objective("b"), Objective("c")}
	fixtures[1].Quarter = "2026-Q4"
	fixtures[1].CreatedAt = base.Add(time.Minute)
	fixtures[2].OwnerID = "owner-2"
	fixtures[2].CreatedAt = base.Add(2 * time.Minute)
	fixtures[2].Status = domain.StatusAtRisk
	for _, objective := range fixtures {
		if err := store.PutObjective(ctx, objective); err != nil {
			t.Fatalf("put objective %s: %v", objective.ID, err)
		}
	}

	tests := []struct {
		name   string
		filter storage.ObjectiveFilter
		want   []string
	}{
		{name: "all", want: []string{"a", "b", "c"}},
		{name: "quarter", filter: storage.ObjectiveFilter{Quarter: "2026-Q3"}, want: []string{"a", "c"}},
		{name: "owner and quarter", filter: storage.ObjectiveFilter{Quarter: "2026-Q3", OwnerID: "owner-2"}, want: []string{"c"}},
		{name: "status", filter: storage.ObjectiveFilter{Status: domain.StatusAtRisk}, want: []string{"c"}},
		{name: "none", filter: storage.ObjectiveFilter{TeamID: "missing"}, want: nil},
	}
	for _, tc := range tests {
		got, err := store.ListObjectives(ctx, tc.filter)
		if err != nil {
			t.Fatalf("%s: list objectives: %v", tc.name, err)
		}
		if ids := objectiveIDs(got); !equalIDs(ids, tc.want) {
			t.Fatalf("%s: ids = %v, want %v", tc.name, ids, tc.want)
		}
	}
}

func testKeyResults(t *testing.T, store storage.TxStore) {
	ctx := context.Background()
	if err := store.PutObjective(ctx, Objective("obj-1")); err != nil {
		t.Fatalf("put objective: %v", err)
	}
	first := KeyResult("kr-1", "obj-1")
	first.Weight = decimal.NewNullDecimal(decimal.NewFromInt(3))
	first.Unit = "deals"
	second := KeyResult("kr-2", "obj-1")
	second.CreatedAt = base.Add(time.Second)
	second.MetricType = domain.MetricPercent
	for _, kr := range []domain.KeyResult{second, first} {
		if err := store.PutKeyResult(ctx, kr); err != nil {
			t.Fatalf("put key result %s: %v", kr.ID, err)
		}
	}

	got, err := store.ListKeyResults(ctx, "obj-1")
	if err != nil {
		t.Fatalf("list key results: %v", err)
	}
	if len(got) != 2 || got[0].ID != "kr-1" || got[1].ID != "kr-2" {
		t.Fatalf("key results = %+v", got)
	}
	if !got[0].Weight.Valid || !got[0].Weight.Decimal.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("weight = %v, want 3", got[0].Weight)
	}
	if got[1].Weight.Valid {
		t.Fatalf("unset weight = %v, want null", got[1].Weight)
	}
	if got[1].MetricType != domain.MetricPercent {
		t.Fatalf("metric = %s", got[1].MetricType)
	}

	first.CurrentValue = decimal.RequireFromString("37.5")
	if err := store.PutKeyResult(ctx, first); err != nil {
		t.Fatalf("update key result: %v", err)
	}
	updated, err := store.GetKeyResult(ctx, "kr-1")
	if err != nil {
		t.Fatalf("get key result: %v", err)
	}
	if !updated.CurrentValue.Equal(decimal.RequireFromString("37.5")) {
		t.Fatalf("current = %s, want 37.5", updated.CurrentValue)
	}
	if updated.Unit != "deals" {
		t.Fatalf("unit = %q", updated.Unit)
	}

	if err := store.DeleteKeyResult(ctx, "kr-2"); err != nil {
		t.Fatalf("delete key result: %v", err)
	}
	remaining, err := store.ListKeyResults(ctx, "obj-1")
	if err != nil {
		t.Fatalf("list after delete: %v", err)
	}
	if len(remaining) != 1 {
		t.Fatalf("remaining = %d, want 1", len(remaining))
	}
}

func testCheckInOrdering(t *testing.T, store storage.TxStore) {
	ctx := context.Background()
	if err := store.PutObjective(ctx, Objective("obj-1")); err != nil {
		t.Fatalf("put objective: %v", err)
	}
	for _, id := range []string{"kr-1", "kr-2"} {
		if err := store.PutKeyResult(ctx, KeyResult(id, "obj-1")); err != nil {
			t.Fatalf("put key result: %v", err)
		}
	}

	checkIns := []domain.CheckIn{
		{ID: "ci-1", KeyResultID: "kr-1", Value: decimal.NewFromInt(10), CreatedAt: base},
		{ID: "ci-2", KeyResultID: "kr-1", Value: decimal.NewFromInt(20), CreatedAt: base.Add(time.Hour)},
		{ID: "ci-3", KeyResultID: "kr-1", Value: decimal.NewFromInt(30), CreatedAt: base.Add(time.Hour)},
		{ID: "ci-4", KeyResultID: "kr-2", Value: decimal.NewFromInt(5), CreatedAt: base.Add(30 * time.Minute)},
	}
	for _, checkIn := range checkIns {
		checkIn.UpdatedAt = checkIn.CreatedAt
		if err := store.PutCheckIn(ctx, checkIn); err != nil {
			t.Fatalf("put check-in %s: %v", checkIn.ID, err)
		}
	}

	got, err := store.ListCheckIns(ctx, "kr-1")
	if err != nil {
		t.Fatalf("list check-ins: %v", err)
	}
	if ids := checkInIDs(got); !equalIDs(ids, []string{"ci-3", "ci-2", "ci-1"}) {
		t.Fatalf("check-in order = %v", ids)
	}

	amended := checkIns[0]
	amended.Value = decimal.NewFromInt(11)
	amended.Note = "recount"
	amended.UpdatedAt = base.Add(2 * time.Hour)
	if err := store.PutCheckIn(ctx, amended); err != nil {
		t.Fatalf("amend check-in: %v", err)
	}
	reloaded, err := store.GetCheckIn(ctx, "ci-1")
	if err != nil {
		t.Fatalf("get check-in: %v", err)
	}
	if !reloaded.Value.Equal(decimal.NewFromInt(11)) || reloaded.Note != "recount" {
		t.Fatalf("amended check-in = %+v", reloaded)
	}
	if !reloaded.CreatedAt.Equal(base) {
		t.Fatalf("created at changed to %s", reloaded.CreatedAt)
	}

	recent, err := store.ListRecentCheckIns(ctx, 2)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if ids := checkInIDs(recent); !equalIDs(ids, []string{"ci-3", "ci-2"}) {
		t.Fatalf("recent = %v", ids)
	}

	if err := store.DeleteCheckIn(ctx, "ci-3"); err != nil {
		t.Fatalf("delete check-in: %v", err)
	}
	got, err = store.ListCheckIns(ctx, "kr-1")
	if err != nil {
		t.Fatalf("list after delete: %v", err)
	}
	if ids := checkInIDs(got); !equalIDs(ids, []string{"ci-2", "ci-1"}) {
		t.Fatalf("after delete = %v", ids)
	}
}

func testAlignments(t *testing.T, store storage.TxStore) {
	ctx := context.Background()
	edges := []domain.Alignment{
		{ParentObjectiveID: "a", ChildObjectiveID: "c", CreatedBy: "u", CreatedAt: base},
		{ParentObjectiveID: "a", ChildObjectiveID: "b", CreatedBy: "u", CreatedAt: base},
		{ParentObjectiveID: "b", ChildObjectiveID: "d", CreatedBy: "u", CreatedAt: base},
		{ParentObjectiveID: "e", ChildObjectiveID: "b", CreatedBy: "u", CreatedAt: base},
	}
	for _, edge := range edges {
		if err := store.PutAlignment(ctx, edge); err != nil {
			t.Fatalf("put alignment %s->%s: %v", edge.ParentObjectiveID, edge.ChildObjectiveID, err)
		}
	}
	if err := store.PutAlignment(ctx, edges[0]); !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("duplicate edge err = %v, want %v", err, storage.ErrAlreadyExists)
	}

	from, err := store.ListAlignmentsFrom(ctx, "a")
	if err != nil {
		t.Fatalf("list from: %v", err)
	}
	if len(from) != 2 || from[0].ChildObjectiveID != "c" || from[1].ChildObjectiveID != "b" {
		t.Fatalf("edges from a = %+v", from)
	}

	to, err := store.ListAlignmentsTo(ctx, "b")
	if err != nil {
		t.Fatalf("list to: %v", err)
	}
	if len(to) != 2 || to[0].ParentObjectiveID != "a" || to[1].ParentObjectiveID != "e" {
		t.Fatalf("edges to b = %+v", to)
	}

	got, err := store.GetAlignment(ctx, "b", "d")
	if err != nil {
		t.Fatalf("get alignment: %v", err)
	}
	if got.CreatedBy != "u" || !got.CreatedAt.Equal(base) {
		t.Fatalf("alignment = %+v", got)
	}

	if err := store.DeleteAlignment(ctx, "a", "c"); err != nil {
		t.Fatalf("delete alignment: %v", err)
	}
	if err := store.DeleteAlignment(ctx, "a", "c"); err != nil {
		t.Fatalf("delete missing alignment: %v", err)
	}
	if _, err := store.GetAlignment(ctx, "a", "c"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("get deleted alignment err = %v", err)
	}

	if err := store.DeleteAlignmentsFor(ctx, "b"); err != nil {
		t.Fatalf("delete incident: %v", err)
	}
	for _, id := range []string{"a", "b", "e"} {
		left, err := store.ListAlignmentsFrom(ctx, id)
		if err != nil {
			t.Fatalf("list from %s: %v", id, err)
		}
		if len(left) != 0 {
			t.Fatalf("edges from %s = %+v, want none", id, left)
		}
	}
}

func testTxRollback(t *testing.T, store storage.TxStore) {
	ctx := context.Background()
	if err := store.PutObjective(ctx, Objective("obj-1")); err != nil {
		t.Fatalf("put objective: %v", err)
	}
	boom := errors.New("boom")
	err := store.InTx(ctx, func(ctx context.Context, tx storage.Store) error {
		updated := Objective("obj-1")
		updated.Status = domain.StatusClosed
		if err := tx.PutObjective(ctx, updated); err != nil {
			return err
		}
		if err := tx.PutObjective(ctx, Objective("obj-2")); err != nil {
			return err
		}
		if err := tx.PutAlignment(ctx, domain.Alignment{ParentObjectiveID: "obj-1", ChildObjectiveID: "obj-2", CreatedAt: base}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("in tx err = %v, want %v", err, boom)
	}

	got, err := store.GetObjective(ctx, "obj-1")
	if err != nil {
		t.Fatalf("get objective: %v", err)
	}
	if got.Status != domain.StatusNotStarted {
		t.Fatalf("status = %s, want rollback to %s", got.Status, domain.StatusNotStarted)
	}
	if _, err := store.GetObjective(ctx, "obj-2"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("obj-2 err = %v, want not found", err)
	}
	edges, err := store.ListAlignmentsFrom(ctx, "obj-1")
	if err != nil {
		t.Fatalf("list edges: %v", err)
	}
	if len(edges) != 0 {
		t.Fatalf("edges = %+v, want none", edges)
	}
}

func testTxCommit(t *testing.T, store storage.TxStore) {
	ctx := context.Background()
	err := store.InTx(ctx, func(ctx context.Context, tx storage.Store) error {
		if err := tx.PutObjective(ctx, Objective("obj-1")); err != nil {
			return err
		}
		// Reads inside the transaction observe its own writes.
		if _, err := tx.GetObjective(ctx, "obj-1"); err != nil {
			return err
		}
		return tx.PutKeyResult(ctx, KeyResult("kr-1", "obj-1"))
	})
	if err != nil {
		t.Fatalf("in tx: %v", err)
	}
	if _, err := store.GetKeyResult(ctx, "kr-1"); err != nil {
		t.Fatalf("get committed key result: %v", err)
	}
}

func testMissing(t *testing.T, store storage.TxStore) {
	ctx := context.Background()
	if _, err := store.GetObjective(ctx, "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("objective err = %v", err)
	}
	if _, err := store.GetKeyResult(ctx, "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("key result err = %v", err)
	}
	if _, err := store.GetCheckIn(ctx, "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("check-in err = %v", err)
	}
	if err := store.DeleteCheckIn(ctx, "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("delete check-in err = %v", err)
	}
	if err := store.DeleteKeyResult(ctx, "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("delete key result err = %v", err)
	}
	if err := store.DeleteObjective(ctx, "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("delete objective err = %v", err)
	}
	checkIns, err := store.ListCheckIns(ctx, "nope")
	if err != nil {
		t.Fatalf("list check-ins: %v", err)
	}
	if len(checkIns) != 0 {
		t.Fatalf("check-ins = %+v", checkIns)
	}
}

func objectiveIDs(objectives []domain.Objective) []string {
	var ids []string
	for _, objective := range objectives {
		ids = append(ids, objective.ID)
	}
	return ids
}

func checkInIDs(checkIns []domain.CheckIn) []string {
	var ids []string
	for _, checkIn := range checkIns {
		ids = append(ids, checkIn.ID)
	}
	return ids
}

func equalIDs(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
