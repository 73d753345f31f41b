package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/louisbranch/okrengine/internal/platform/errors"
	"github.com/louisbranch/okrengine/internal/platform/id"
	"github.com/louisbranch/okrengine/internal/platform/telemetry/metrics"
	"github.com/louisbranch/okrengine/internal/services/okr/alignment"
	"github.com/louisbranch/okrengine/internal/services/okr/domain"
	"github.com/louisbranch/okrengine/internal/services/okr/ledger"
	"github.com/louisbranch/okrengine/internal/services/okr/planning"
	"github.com/louisbranch/okrengine/internal/services/okr/storage"
	"github.com/louisbranch/okrengine/internal/services/okr/summary"
)

var tracer = otel.Tracer("okrengine.app")

// DefaultRecomputeConcurrency bounds RecomputePeriod when unset.
const DefaultRecomputeConcurrency = 4

// Alignment rejection reasons.
const (
	RejectCycle         = "cycle"
	RejectSelfReference = "self_reference"
)

// Service is the engine facade. Every operation is traced, timed and, when
// it writes, logged.
type Service struct {
	store       storage.TxStore
	planner     *planning.Planner
	ledger      *ledger.Ledger
	graph       *alignment.Graph
	logger      *slog.Logger
	metrics     *metrics.Recorder
	concurrency int
}

type options struct {
	logger      *slog.Logger
	metrics     *metrics.Recorder
	now         func() time.Time
	newID       id.Generator
	concurrency int
}

// Option configures a Service.
type Option func(*options)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics sets the Prometheus recorder.
func WithMetrics(recorder *metrics.Recorder) Option {
	return func(o *options) { o.metrics = recorder }
}

// WithClock overrides the clock used by every use case.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIDs overrides id generation for every use case.
func WithIDs(gen id.Generator) Option {
	return func(o *options) { o.newID = gen }
}

// WithRecomputeConcurrency bounds RecomputePeriod.
func WithRecomputeConcurrency(n int) Option {
	return func(o *options) { o.concurrency = n }
}

// NewService wires the use cases over store.
func NewService(store storage.TxStore, opts ...Option) *Service {
	o := options{now: time.Now, newID: id.NewID}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.concurrency <= 0 {
		o.concurrency = DefaultRecomputeConcurrency
	}
	return &Service{
		store:       store,
		planner:     planning.New(store, planning.WithClock(o.now), planning.WithIDs(o.newID)),
		ledger:      ledger.New(store, ledger.WithClock(o.now), ledger.WithIDs(o.newID)),
		graph:       alignment.NewGraph(store, alignment.WithClock(o.now)),
		logger:      o.logger,
		metrics:     o.metrics,
		concurrency: o.concurrency,
	}
}

type opKind int

const (
	query opKind = iota
	command
)

// begin starts a span for operation and returns the function that ends it.
func (s *Service) begin(ctx context.Context, operation string, kind opKind, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := tracer.Start(ctx, "okr."+operation, trace.WithAttributes(attrs...))
	start := time.Now()
	return ctx, func(err error) {
		elapsed := time.Since(start)
		s.metrics.ObserveOperation(operation, elapsed, err)
		logAttrs := make([]any, 0, len(attrs)+3)
		logAttrs = append(logAttrs, slog.String("operation", operation), slog.Duration("elapsed", elapsed))
		for _, attr := range attrs {
			logAttrs = append(logAttrs, slog.String(string(attr.Key), attr.Value.Emit()))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logAttrs = append(logAttrs, slog.String("code", string(apperrors.CodeOf(err))), slog.Any("error", err))
			s.logger.WarnContext(ctx, "okr operation failed", logAttrs...)
		} else {
			span.SetStatus(codes.Ok, "")
			if kind == command {
				s.logger.InfoContext(ctx, "okr operation applied", logAttrs...)
			}
		}
		span.End()
	}
}

func objectiveAttr(objectiveID string) attribute.KeyValue {
	return attribute.String("okr.objective_id", objectiveID)
}

func keyResultAttr(keyResultID string) attribute.KeyValue {
	return attribute.String("okr.key_result_id", keyResultID)
}

func checkInAttr(checkInID string) attribute.KeyValue {
	return attribute.String("okr.check_in_id", checkInID)
}

// CreateObjective creates an Objective.
func (s *Service) CreateObjective(ctx context.Context, in domain.ObjectiveInput) (_ domain.Objective, err error) {
	ctx, end := s.begin(ctx, "create_objective", command, attribute.String("okr.quarter", in.Quarter))
	defer func() { end(err) }()
	return s.planner.CreateObjective(ctx, in)
}

// GetObjective loads an Objective.
func (s *Service) GetObjective(ctx context.Context, objectiveID string) (_ domain.Objective, err error) {
	ctx, end := s.begin(ctx, "get_objective", query, objectiveAttr(objectiveID))
	defer func() { end(err) }()
	return s.planner.GetObjective(ctx, objectiveID)
}

// ListObjectives lists Objectives matching filter.
func (s *Service) ListObjectives(ctx context.Context, filter storage.ObjectiveFilter) (_ []domain.Objective, err error) {
	ctx, end := s.begin(ctx, "list_objectives", query, attribute.String("okr.quarter", filter.Quarter))
	defer func() { end(err) }()
	return s.planner.ListObjectives(ctx, filter)
}

// CloseObjective marks an Objective CLOSED.
func (s *Service) CloseObjective(ctx context.Context, objectiveID string) (_ domain.Objective, err error) {
	ctx, end := s.begin(ctx, "close_objective", command, objectiveAttr(objectiveID))
	defer func() { end(err) }()
	return s.planner.CloseObjective(ctx, objectiveID)
}

// AbandonObjective marks an Objective ABANDONED.
func (s *Service) AbandonObjective(ctx context.Context, objectiveID string) (_ domain.Objective, err error) {
	ctx, end := s.begin(ctx, "abandon_objective", command, objectiveAttr(objectiveID))
	defer func() { end(err) }()
	return s.planner.AbandonObjective(ctx, objectiveID)
}

// ReopenObjective returns a terminal Objective to automatic inference.
func (s *Service) ReopenObjective(ctx context.Context, objectiveID string) (_ domain.Objective, err error) {
	ctx, end := s.begin(ctx, "reopen_objective", command, objectiveAttr(objectiveID))
	defer func() { end(err) }()
	return s.planner.ReopenObjective(ctx, objectiveID)
}

// DeleteObjective deletes an Objective and everything it owns.
func (s *Service) DeleteObjective(ctx context.Context, objectiveID string) (err error) {
	ctx, end := s.begin(ctx, "delete_objective", command, objectiveAttr(objectiveID))
	defer func() { end(err) }()
	return s.planner.DeleteObjective(ctx, objectiveID)
}

// ObjectiveProgress reports an Objective with per-Key-Result progress.
func (s *Service) ObjectiveProgress(ctx context.Context, objectiveID string) (_ planning.ObjectiveReport, err error) {
	ctx, end := s.begin(ctx, "objective_progress", query, objectiveAttr(objectiveID))
	defer func() { end(err) }()
	return s.planner.ObjectiveProgress(ctx, objectiveID)
}

// CreateKeyResult adds a Key Result.
func (s *Service) CreateKeyResult(ctx context.Context, in domain.KeyResultInput) (_ domain.KeyResult, err error) {
	ctx, end := s.begin(ctx, "create_key_result", command, objectiveAttr(in.ObjectiveID))
	defer func() { end(err) }()
	return s.planner.CreateKeyResult(ctx, in)
}

// UpdateKeyResult patches a Key Result.
func (s *Service) UpdateKeyResult(ctx context.Context, keyResultID string, patch planning.KeyResultPatch) (_ domain.KeyResult, err error) {
	ctx, end := s.begin(ctx, "update_key_result", command, keyResultAttr(keyResultID))
	defer func() { end(err) }()
	return s.planner.UpdateKeyResult(ctx, keyResultID, patch)
}

// DeleteKeyResult deletes a Key Result and its check-ins.
func (s *Service) DeleteKeyResult(ctx context.Context, keyResultID string) (err error) {
	ctx, end := s.begin(ctx, "delete_key_result", command, keyResultAttr(keyResultID))
	defer func() { end(err) }()
	return s.planner.DeleteKeyResult(ctx, keyResultID)
}

// DuplicateKeyResult copies a Key Result.
func (s *Service) DuplicateKeyResult(ctx context.Context, keyResultID string) (_ domain.KeyResult, err error) {
	ctx, end := s.begin(ctx, "duplicate_key_result", command, keyResultAttr(keyResultID))
	defer func() { end(err) }()
	return s.planner.DuplicateKeyResult(ctx, keyResultID)
}

// RecordCheckIn appends a check-in and cascades it.
func (s *Service) RecordCheckIn(ctx context.Context, keyResultID string, value decimal.Decimal, note, author string) (_ domain.CheckIn, err error) {
	ctx, end := s.begin(ctx, "record_check_in", command, keyResultAttr(keyResultID))
	defer func() { end(err) }()
	return s.ledger.Record(ctx, keyResultID, value, note, author)
}

// AmendCheckIn edits a check-in inside its edit window.
func (s *Service) AmendCheckIn(ctx context.Context, checkInID string, value decimal.Decimal, note string) (_ domain.CheckIn, err error) {
	ctx, end := s.begin(ctx, "amend_check_in", command, checkInAttr(checkInID))
	defer func() { end(err) }()
	return s.ledger.Amend(ctx, checkInID, value, note)
}

// RetractCheckIn deletes a check-in and rolls its Key Result back.
func (s *Service) RetractCheckIn(ctx context.Context, checkInID string) (err error) {
	ctx, end := s.begin(ctx, "retract_check_in", command, checkInAttr(checkInID))
	defer func() { end(err) }()
	return s.ledger.Retract(ctx, checkInID)
}

// CheckInHistory lists a Key Result's check-ins, oldest first.
func (s *Service) CheckInHistory(ctx context.Context, keyResultID string) (_ []domain.CheckIn, err error) {
	ctx, end := s.begin(ctx, "check_in_history", query, keyResultAttr(keyResultID))
	defer func() { end(err) }()
	return s.ledger.History(ctx, keyResultID)
}

// RecentCheckIns lists the latest check-ins across all Key Results.
func (s *Service) RecentCheckIns(ctx context.Context, limit int) (_ []domain.CheckIn, err error) {
	ctx, end := s.begin(ctx, "recent_check_ins", query)
	defer func() { end(err) }()
	return s.ledger.Recent(ctx, limit)
}

// ProposeAlignment adds an alignment edge.
func (s *Service) ProposeAlignment(ctx context.Context, parentID, childID, createdBy string) (_ domain.Alignment, err error) {
	ctx, end := s.begin(ctx, "propose_alignment", command,
		attribute.String("okr.parent_objective_id", parentID),
		attribute.String("okr.child_objective_id", childID),
	)
	defer func() { end(err) }()
	edge, err := s.graph.Propose(ctx, parentID, childID, createdBy)
	switch {
	case errors.Is(err, domain.ErrAlignmentCycle):
		s.metrics.RecordAlignmentRejection(RejectCycle)
	case errors.Is(err, domain.ErrAlignmentSelfReference):
		s.metrics.RecordAlignmentRejection(RejectSelfReference)
	}
	return edge, err
}

// RemoveAlignment removes an alignment edge.
func (s *Service) RemoveAlignment(ctx context.Context, parentID, childID string) (err error) {
	ctx, end := s.begin(ctx, "remove_alignment", command,
		attribute.String("okr.parent_objective_id", parentID),
		attribute.String("okr.child_objective_id", childID),
	)
	defer func() { end(err) }()
	return s.graph.Remove(ctx, parentID, childID)
}

// AlignmentTree collects the alignment subtree under rootID in walk order.
func (s *Service) AlignmentTree(ctx context.Context, rootID string) (_ []alignment.Node, err error) {
	ctx, end := s.begin(ctx, "alignment_tree", query, objectiveAttr(rootID))
	defer func() { end(err) }()
	var nodes []alignment.Node
	for node, err := range s.graph.Tree(ctx, rootID) {
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// AlignmentParents lists the direct parents of an Objective.
func (s *Service) AlignmentParents(ctx context.Context, objectiveID string) (_ []string, err error) {
	ctx, end := s.begin(ctx, "alignment_parents", query, objectiveAttr(objectiveID))
	defer func() { end(err) }()
	return s.graph.Parents(ctx, objectiveID)
}

// AlignmentChildren lists the direct children of an Objective.
func (s *Service) AlignmentChildren(ctx context.Context, objectiveID string) (_ []string, err error) {
	ctx, end := s.begin(ctx, "alignment_children", query, objectiveAttr(objectiveID))
	defer func() { end(err) }()
	return s.graph.Children(ctx, objectiveID)
}

// RecomputeObjective re-aggregates one Objective. A missing Objective is not
// an error and reports false.
func (s *Service) RecomputeObjective(ctx context.Context, objectiveID string) (_ domain.Objective, _ bool, err error) {
	ctx, end := s.begin(ctx, "recompute_objective", command, objectiveAttr(objectiveID))
	defer func() { end(err) }()
	return s.ledger.RecomputeObjective(ctx, objectiveID)
}

// RecomputePeriod re-runs progress and status inference for every Objective
// in quarter, each in its own transaction. Status depends on the calendar,
// so this is how BEHIND is picked up without a new check-in. It returns the
// number of Objectives recomputed.
func (s *Service) RecomputePeriod(ctx context.Context, quarter string) (_ int, err error) {
	ctx, end := s.begin(ctx, "recompute_period", command, attribute.String("okr.quarter", quarter))
	defer func() { end(err) }()

	objectives, err := s.store.ListObjectives(ctx, storage.ObjectiveFilter{Quarter: quarter})
	if err != nil {
		return 0, fmt.Errorf("list objectives: %w", err)
	}

	var done atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, objective := range objectives {
		g.Go(func() error {
			_, found, err := s.ledger.RecomputeObjective(ctx, objective.ID)
			if err != nil {
				return fmt.Errorf("recompute %s: %w", objective.ID, err)
			}
			if found {
				done.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(done.Load()), err
	}
	return int(done.Load()), nil
}

// Summarize rolls up Objectives matching filter.
func (s *Service) Summarize(ctx context.Context, filter storage.ObjectiveFilter) (_ summary.Summary, err error) {
	ctx, end := s.begin(ctx, "summarize", query, attribute.String("okr.quarter", filter.Quarter))
	defer func() { end(err) }()
	objectives, err := s.planner.ListObjectives(ctx, filter)
	if err != nil {
		return summary.Summary{}, err
	}
	return summary.Summarize(objectives), nil
}

// TopPerformers ranks Objectives matching filter by progress.
func (s *Service) TopPerformers(ctx context.Context, filter storage.ObjectiveFilter, limit int) (_ []domain.Objective, err error) {
	ctx, end := s.begin(ctx, "top_performers", query, attribute.String("okr.quarter", filter.Quarter))
	defer func() { end(err) }()
	objectives, err := s.planner.ListObjectives(ctx, filter)
	if err != nil {
		return nil, err
	}
	return summary.TopPerformers(objectives, limit), nil
}
