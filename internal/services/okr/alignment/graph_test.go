package alignment

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/louisbranch/okrengine/internal/platform/errors"
	"github.com/louisbranch/okrengine/internal/services/okr/domain"
	"github.com/louisbranch/okrengine/internal/services/okr/storage/memory"
)

var fixedNow = time.Date(2026, time.August, 3, 9, 0, 0, 0, time.UTC)

func newGraph(t *testing.T) (*Graph, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	return NewGraph(store, WithClock(func() time.Time { return fixedNow })), store
}

func mustPropose(t *testing.T, g *Graph, parent, child string) {
	t.Helper()
	if _, err := g.Propose(context.Background(), parent, child, "user-1"); err != nil {
		t.Fatalf("propose %s -> %s: %v", parent, child, err)
	}
}

func TestProposeRejectsSelfReference(t *testing.T) {
	t.Parallel()

	g, _ := newGraph(t)
	_, err := g.Propose(context.Background(), "A", "A", "user-1")
	if !errors.Is(err, domain.ErrAlignmentSelfReference) {
		t.Fatalf("err = %v, want self reference", err)
	}
	if apperrors.CodeOf(err) != apperrors.CodeAlignmentSelfReference {
		t.Fatalf("code = %s", apperrors.CodeOf(err))
	}
}

func TestProposeRejectsTwoCycle(t *testing.T) {
	t.Parallel()

	g, _ := newGraph(t)
	mustPropose(t, g, "A", "B")
	_, err := g.Propose(context.Background(), "B", "A", "user-1")
	if !errors.Is(err, domain.ErrAlignmentCycle) {
		t.Fatalf("err = %v, want cycle", err)
	}
}

func TestProposeRejectsLongCycle(t *testing.T) {
	t.Parallel()

	g, store := newGraph(t)
	mustPropose(t, g, "A", "B")
	mustPropose(t, g, "B", "C")
	_, err := g.Propose(context.Background(), "C", "A", "user-1")
	if !errors.Is(err, domain.ErrAlignmentCycle) {
		t.Fatalf("err = %v, want cycle", err)
	}

	edges, err := store.ListAlignmentsFrom(context.Background(), "C")
	if err != nil {
		t.Fatalf("list edges: %v", err)
	}
	if len(edges) != 0 {
		t.Fatalf("rejected edge persisted: %+v", edges)
	}
}

func TestProposeAllowsDiamond(t *testing.T) {
	t.Parallel()

	g, _ := newGraph(t)
	mustPropose(t, g, "A", "B")
	mustPropose(t, g, "A", "C")
	mustPropose(t, g, "B", "D")
	mustPropose(t, g, "C", "D")
	mustPropose(t, g, "A", "D")
}

func TestProposeIsIdempotent(t *testing.T) {
	t.Parallel()

	g, store := newGraph(t)
	first, err := g.Propose(context.Background(), "A", "B", "user-1")
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if first.CreatedBy != "user-1" || !first.CreatedAt.Equal(fixedNow) {
		t.Fatalf("edge = %+v", first)
	}
	second, err := g.Propose(context.Background(), "A", "B", "user-2")
	if err != nil {
		t.Fatalf("repeat propose: %v", err)
	}
	if second.CreatedBy != "user-1" {
		t.Fatalf("repeat returned %+v, want original edge", second)
	}
	edges, err := store.ListAlignmentsFrom(context.Background(), "A")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(edges) != 1 {
		t.Fatalf("edges = %d, want 1", len(edges))
	}
}

func TestProposeRequiresIDs(t *testing.T) {
	t.Parallel()

	g, _ := newGraph(t)
	if _, err := g.Propose(context.Background(), " ", "B", "u"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
	if _, err := g.Propose(context.Background(), "A", "", "u"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
}

func TestRemoveAllowsReverseEdge(t *testing.T) {
	t.Parallel()

	g, _ := newGraph(t)
	mustPropose(t, g, "A", "B")
	mustPropose(t, g, "B", "C")
	if err := g.Remove(context.Background(), "A", "B"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	mustPropose(t, g, "C", "A")

	children, err := g.Children(context.Background(), "B")
	if err != nil {
		t.Fatalf("children: %v", err)
	}
	if len(children) != 1 || children[0] != "C" {
		t.Fatalf("children of B = %v, want [C] (no cascade)", children)
	}
}

func TestTreeIsDepthFirstInInsertionOrder(t *testing.T) {
	t.Parallel()

	g, _ := newGraph(t)
	mustPropose(t, g, "A", "B")
	mustPropose(t, g, "A", "C")
	mustPropose(t, g, "B", "D")

	var got []Node
	for node, err := range g.Tree(context.Background(), "A") {
		if err != nil {
			t.Fatalf("tree: %v", err)
		}
		got = append(got, node)
	}
	want := []Node{
		{ObjectiveID: "B", ParentID: "A", Depth: 1},
		{ObjectiveID: "D", ParentID: "B", Depth: 2},
		{ObjectiveID: "C", ParentID: "A", Depth: 1},
	}
	if len(got) != len(want) {
		t.Fatalf("tree = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tree[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestTreeVisitsSharedChildOnce(t *testing.T) {
	t.Parallel()

	g, _ := newGraph(t)
	mustPropose(t, g, "A", "B")
	mustPropose(t, g, "A", "C")
	mustPropose(t, g, "B", "D")
	mustPropose(t, g, "C", "D")

	count := 0
	for node, err := range g.Tree(context.Background(), "A") {
		if err != nil {
			t.Fatalf("tree: %v", err)
		}
		if node.ObjectiveID == "D" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("D yielded %d times, want 1", count)
	}
}

func TestTreeStopsEarly(t *testing.T) {
	t.Parallel()

	g, _ := newGraph(t)
	mustPropose(t, g, "A", "B")
	mustPropose(t, g, "A", "C")

	var got []string
	for node := range g.Tree(context.Background(), "A") {
		got = append(got, node.ObjectiveID)
		break
	}
	if len(got) != 1 || got[0] != "B" {
		t.Fatalf("got %v, want [B]", got)
	}
}

func TestTreeIsRegeneratedPerCall(t *testing.T) {
	t.Parallel()

	g, _ := newGraph(t)
	mustPropose(t, g, "A", "B")
	tree := g.Tree(context.Background(), "A")
	mustPropose(t, g, "A", "C")

	count := 0
	for _, err := range tree {
		if err != nil {
			t.Fatalf("tree: %v", err)
		}
		count++
	}
	if count != 2 {
		t.Fatalf("nodes = %d, want 2", count)
	}
}

type failingLister struct{}

func (failingLister) ListAlignmentsFrom(context.Context, string) ([]domain.Alignment, error) {
	return nil, errors.New("disk on fire")
}

func TestReachableTerminatesOnMalformedCycle(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	ctx := context.Background()
	for _, edge := range [][2]string{{"A", "B"}, {"B", "C"}, {"C", "A"}} {
		if err := store.PutAlignment(ctx, domain.Alignment{ParentObjectiveID: edge[0], ChildObjectiveID: edge[1]}); err != nil {
			t.Fatalf("seed edge: %v", err)
		}
	}
	ok, err := Reachable(ctx, store, "A", "Z")
	if err != nil {
		t.Fatalf("reachable: %v", err)
	}
	if ok {
		t.Fatal("expected Z unreachable")
	}
	ok, err = Reachable(ctx, store, "B", "A")
	if err != nil || !ok {
		t.Fatalf("reachable(B, A) = %v, %v; want true", ok, err)
	}
}

func TestReachablePropagatesErrors(t *testing.T) {
	t.Parallel()

	if _, err := Reachable(context.Background(), failingLister{}, "A", "B"); err == nil {
		t.Fatal("expected storage error")
	}
}

func TestParents(t *testing.T) {
	t.Parallel()

	g, _ := newGraph(t)
	mustPropose(t, g, "A", "C")
	mustPropose(t, g, "B", "C")
	parents, err := g.Parents(context.Background(), "C")
	if err != nil {
		t.Fatalf("parents: %v", err)
	}
	if len(parents) != 2 || parents[0] != "A" || parents[1] != "B" {
		t.Fatalf("parents = %v", parents)
	}
}
