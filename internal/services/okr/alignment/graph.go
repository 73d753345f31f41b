// Package alignment maintains the acyclic parent -> child alignment graph
// between Objectives. Edges live in storage as rows; reachability is computed
// on demand from committed edges.
package alignment

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/louisbranch/okrengine/internal/services/okr/domain"
	"github.com/louisbranch/okrengine/internal/services/okr/storage"
)

// EdgeLister lists outgoing edges in insertion order.
type EdgeLister interface {
	ListAlignmentsFrom(ctx context.Context, parentID string) ([]domain.Alignment, error)
}

// Node is one Objective reached while walking an alignment subtree.
type Node struct {
	ObjectiveID string
	ParentID    string
	// Depth is 1 for direct children of the root.
	Depth int
}

// Graph validates and persists alignment edges.
type Graph struct {
	store storage.TxStore
	now   func() time.Time
}

// Option configures a Graph.
type Option func(*Graph)

// WithClock overrides the edge creation clock.
func WithClock(now func() time.Time) Option {
	return func(g *Graph) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGraph returns a Graph over store.
func NewGraph(store storage.TxStore, opts ...Option) *Graph {
	g := &Graph{store: store, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Propose adds parent -> child unless it would be a self-loop or close a
// cycle. Proposing an existing edge returns it unchanged.
//
// The reachability read and the insert share one transaction; the storage
// layer's isolation and the edge key constraint guard concurrent proposals.
func (g *Graph) Propose(ctx context.Context, parentID, childID, createdBy string) (domain.Alignment, error) {
	parentID = strings.TrimSpace(parentID)
	childID = strings.TrimSpace(childID)
	if parentID == "" {
		return domain.Alignment{}, domain.ValidationFailed("parent_objective_id", "is required")
	}
	if childID == "" {
		return domain.Alignment{}, domain.ValidationFailed("child_objective_id", "is required")
	}
	if parentID == childID {
		return domain.Alignment{}, domain.AlignmentSelfReference(parentID)
	}

	var out domain.Alignment
	err := g.store.InTx(ctx, func(ctx context.Context, tx storage.Store) error {
		existing, err := tx.GetAlignment(ctx, parentID, childID)
		if err == nil {
			out = existing
			return nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("get alignment: %w", err)
		}

		cycle, err := Reachable(ctx, tx, childID, parentID)
		if err != nil {
			return err
		}
		if cycle {
			return domain.AlignmentCycle(parentID, childID)
		}

		edge := domain.Alignment{
			ParentObjectiveID: parentID,
			ChildObjectiveID:  childID,
			CreatedBy:         strings.TrimSpace(createdBy),
			CreatedAt:         g.now().UTC(),
		}
		if err := tx.PutAlignment(ctx, edge); err != nil {
			if errors.Is(err, storage.ErrAlreadyExists) {
				out, err = tx.GetAlignment(ctx, parentID, childID)
				return err
			}
			return fmt.Errorf("put alignment: %w", err)
		}
		out = edge
		return nil
	})
	if err != nil {
		return domain.Alignment{}, err
	}
	return out, nil
}

// Remove deletes parent -> child. Children are not re-parented.
func (g *Graph) Remove(ctx context.Context, parentID, childID string) error {
	parentID = strings.TrimSpace(parentID)
	childID = strings.TrimSpace(childID)
	if parentID == "" || childID == "" {
		return domain.ValidationFailed("alignment", "parent and child objective ids are required")
	}
	return g.store.InTx(ctx, func(ctx context.Context, tx storage.Store) error {
		if err := tx.DeleteAlignment(ctx, parentID, childID); err != nil {
			return fmt.Errorf("delete alignment: %w", err)
		}
		return nil
	})
}

// Children returns the direct children of id in edge insertion order.
func (g *Graph) Children(ctx context.Context, id string) ([]string, error) {
	edges, err := g.store.ListAlignmentsFrom(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	out := make([]string, 0, len(edges))
	for _, edge := range edges {
		out = append(out, edge.ChildObjectiveID)
	}
	return out, nil
}

// Parents returns the direct parents of id in edge insertion order.
func (g *Graph) Parents(ctx context.Context, id string) ([]string, error) {
	edges, err := g.store.ListAlignmentsTo(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list parents: %w", err)
	}
	out := make([]string, 0, len(edges))
	for _, edge := range edges {
		out = append(out, edge.ParentObjectiveID)
	}
	return out, nil
}

// Tree walks the subtree under rootID depth-first, visiting children in edge
// insertion order. The root itself is not yielded and each Objective is
// yielded at most once. Edges are read lazily as the walk advances, so the
// sequence reflects storage at iteration time. A storage error is yielded
// once and ends the walk.
func (g *Graph) Tree(ctx context.Context, rootID string) iter.Seq2[Node, error] {
	return func(yield func(Node, error) bool) {
		visited := map[string]bool{rootID: true}
		var walk func(parentID string, depth int) bool
		walk = func(parentID string, depth int) bool {
			edges, err := g.store.ListAlignmentsFrom(ctx, parentID)
			if err != nil {
				yield(Node{}, fmt.Errorf("list children of %s: %w", parentID, err))
				return false
			}
			for _, edge := range edges {
				child := edge.ChildObjectiveID
				if visited[child] {
					continue
				}
				visited[child] = true
				if !yield(Node{ObjectiveID: child, ParentID: parentID, Depth: depth}, nil) {
					return false
				}
				if !walk(child, depth+1) {
					return false
				}
			}
			return true
		}
		walk(rootID, 1)
	}
}

// Reachable reports whether to can be reached from from by following
// committed parent -> child edges. Each node is expanded at most once, so
// malformed cyclic data still terminates.
func Reachable(ctx context.Context, edges EdgeLister, from, to string) (bool, error) {
	if from == to {
		return true, nil
	}
	visited := map[string]bool{from: true}
	stack := []string{from}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out, err := edges.ListAlignmentsFrom(ctx, node)
		if err != nil {
			return false, fmt.Errorf("list alignments from %s: %w", node, err)
		}
		for _, edge := range out {
			child := edge.ChildObjectiveID
			if child == to {
				return true, nil
			}
			if !visited[child] {
				visited[child] = true
				stack = append(stack, child)
			}
		}
	}
	return false, nil
}
