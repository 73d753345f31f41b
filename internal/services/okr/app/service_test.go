package app

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"

	"github.com/louisbranch/okrengine/internal/platform/id"
	"github.com/louisbranch/okrengine/internal/platform/telemetry/metrics"
	"github.com/louisbranch/okrengine/internal/services/okr/domain"
	"github.com/louisbranch/okrengine/internal/services/okr/storage"
	"github.com/louisbranch/okrengine/internal/services/okr/storage/memory"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

type harness struct {
	svc      *Service
	store    *memory.Store
	clock    *clock
	registry *prometheus.Registry
	logs     *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	registry := prometheus.NewRegistry()
	recorder, err := metrics.NewRecorder(registry)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	logs := &bytes.Buffer{}
	c := &clock{now: time.Date(2026, time.August, 3, 9, 0, 0, 0, time.UTC)}
	store := memory.NewStore()
	svc := NewService(store,
		WithLogger(slog.New(slog.NewJSONHandler(logs, nil))),
		WithMetrics(recorder),
		WithClock(c.Now),
		WithIDs(id.Sequence("id")),
		WithRecomputeConcurrency(2),
	)
	return &harness{svc: svc, store: store, clock: c, registry: registry, logs: logs}
}

func (h *harness) objective(t *testing.T, title string) domain.Objective {
	t.Helper()
	objective, err := h.svc.CreateObjective(context.Background(), domain.ObjectiveInput{
		Title:   title,
		OwnerID: "owner-1",
		Quarter: "2026-Q3",
	})
	if err != nil {
		t.Fatalf("create objective: %v", err)
	}
	return objective
}

func (h *harness) keyResult(t *testing.T, objectiveID string) domain.KeyResult {
	t.Helper()
	kr, err := h.svc.CreateKeyResult(context.Background(), domain.KeyResultInput{
		ObjectiveID: objectiveID,
		Title:       "Signups",
		TargetValue: decimal.NewFromInt(100),
	})
	if err != nil {
		t.Fatalf("create key result: %v", err)
	}
	return kr
}

func TestCheckInCascadeEndToEnd(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	objective := h.objective(t, "Grow")
	kr := h.keyResult(t, objective.ID)

	checkIn, err := h.svc.RecordCheckIn(ctx, kr.ID, decimal.NewFromInt(80), "good week", "owner-1")
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	report, err := h.svc.ObjectiveProgress(ctx, objective.ID)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if !report.Objective.Progress.Decimal.Equal(decimal.NewFromInt(80)) || report.Objective.Status != domain.StatusOnTrack {
		t.Fatalf("objective = %+v", report.Objective)
	}

	if err := h.svc.RetractCheckIn(ctx, checkIn.ID); err != nil {
		t.Fatalf("retract: %v", err)
	}
	got, err := h.svc.GetObjective(ctx, objective.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Progress.Decimal.IsZero() {
		t.Fatalf("progress = %s, want 0", got.Progress.Decimal)
	}

	// create_objective, create_key_result, record_check_in, objective_progress,
	// retract_check_in and get_objective, all successful.
	if n, err := testutil.GatherAndCount(h.registry, "okr_operations_total"); err != nil || n != 6 {
		t.Fatalf("operation series = %d, %v; want 6", n, err)
	}
	if !strings.Contains(h.logs.String(), `"operation":"retract_check_in"`) {
		t.Fatalf("logs missing retract record: %s", h.logs.String())
	}
	if strings.Contains(h.logs.String(), `"operation":"get_objective"`) {
		t.Fatalf("queries should not be logged on success: %s", h.logs.String())
	}
}

func TestProposeAlignmentCountsRejections(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	a := h.objective(t, "A")
	b := h.objective(t, "B")

	if _, err := h.svc.ProposeAlignment(ctx, a.ID, b.ID, "owner-1"); err != nil {
		t.Fatalf("propose: %v", err)
	}
	if _, err := h.svc.ProposeAlignment(ctx, b.ID, a.ID, "owner-1"); !errors.Is(err, domain.ErrAlignmentCycle) {
		t.Fatalf("err = %v, want cycle", err)
	}
	if _, err := h.svc.ProposeAlignment(ctx, a.ID, a.ID, "owner-1"); !errors.Is(err, domain.ErrAlignmentSelfReference) {
		t.Fatalf("err = %v, want self reference", err)
	}

	expected := `
# HELP okr_alignment_rejections_total Alignment proposals rejected by reason
# TYPE okr_alignment_rejections_total counter
okr_alignment_rejections_total{reason="cycle"} 1
okr_alignment_rejections_total{reason="self_reference"} 1
`
	if err := testutil.GatherAndCompare(h.registry, strings.NewReader(expected), "okr_alignment_rejections_total"); err != nil {
		t.Fatalf("rejections: %v", err)
	}
	if !strings.Contains(h.logs.String(), `"code":"ALIGNMENT_CYCLE"`) {
		t.Fatalf("logs missing failure code: %s", h.logs.String())
	}

	tree, err := h.svc.AlignmentTree(ctx, a.ID)
	if err != nil {
		t.Fatalf("tree: %v", err)
	}
	if len(tree) != 1 || tree[0].ObjectiveID != b.ID {
		t.Fatalf("tree = %+v", tree)
	}
	parents, err := h.svc.AlignmentParents(ctx, b.ID)
	if err != nil || len(parents) != 1 || parents[0] != a.ID {
		t.Fatalf("parents = %v, %v", parents, err)
	}
	if err := h.svc.RemoveAlignment(ctx, a.ID, b.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	children, err := h.svc.AlignmentChildren(ctx, a.ID)
	if err != nil || len(children) != 0 {
		t.Fatalf("children = %v, %v", children, err)
	}
}

func TestRecomputePeriodPicksUpDeadline(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	var ids []string
	for _, title := range []string{"A", "B", "C"} {
		objective := h.objective(t, title)
		kr := h.keyResult(t, objective.ID)
		if _, err := h.svc.RecordCheckIn(ctx, kr.ID, decimal.NewFromInt(50), "", "owner-1"); err != nil {
			t.Fatalf("record: %v", err)
		}
		ids = append(ids, objective.ID)
	}
	other, err := h.svc.CreateObjective(ctx, domain.ObjectiveInput{Title: "Next", OwnerID: "owner-1", Quarter: "2026-Q4"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	h.clock.now = time.Date(2026, time.September, 15, 9, 0, 0, 0, time.UTC)
	n, err := h.svc.RecomputePeriod(ctx, "2026-Q3")
	if err != nil {
		t.Fatalf("recompute period: %v", err)
	}
	if n != len(ids) {
		t.Fatalf("recomputed = %d, want %d", n, len(ids))
	}
	for _, objectiveID := range ids {
		got, err := h.svc.GetObjective(ctx, objectiveID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Status != domain.StatusBehind {
			t.Fatalf("status = %s, want %s", got.Status, domain.StatusBehind)
		}
	}
	untouched, err := h.svc.GetObjective(ctx, other.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if untouched.Status != domain.StatusNotStarted {
		t.Fatalf("other quarter status = %s, want %s", untouched.Status, domain.StatusNotStarted)
	}
}

func TestSummarizeAndTopPerformers(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	high := h.objective(t, "High")
	low := h.objective(t, "Low")
	for objectiveID, value := range map[string]int64{high.ID: 90, low.ID: 10} {
		kr := h.keyResult(t, objectiveID)
		if _, err := h.svc.RecordCheckIn(ctx, kr.ID, decimal.NewFromInt(value), "", "owner-1"); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	filter := storage.ObjectiveFilter{Quarter: "2026-Q3"}
	sum, err := h.svc.Summarize(ctx, filter)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if sum.Total != 2 || !sum.AverageProgress.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("summary = %+v", sum)
	}
	if sum.ByStatus[domain.StatusOnTrack] != 1 || sum.ByStatus[domain.StatusAtRisk] != 1 {
		t.Fatalf("by status = %v", sum.ByStatus)
	}
	top, err := h.svc.TopPerformers(ctx, filter, 1)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != 1 || top[0].ID != high.ID {
		t.Fatalf("top = %+v", top)
	}
}

func TestOpenDrivers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "okr.db")
	backend, err := Open(ctx, Config{DBDriver: DriverSQLite, DBPath: path})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = backend.Close() })
	svc := NewService(backend, WithLogger(slog.New(slog.DiscardHandler)))
	if _, err := svc.CreateObjective(ctx, domain.ObjectiveInput{Title: "A", OwnerID: "o", Quarter: "2026-Q3"}); err != nil {
		t.Fatalf("create on sqlite: %v", err)
	}

	mem, err := Open(ctx, Config{DBDriver: "MEMORY"})
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	if err := mem.Close(); err != nil {
		t.Fatalf("close memory: %v", err)
	}

	if _, err := Open(ctx, Config{DBDriver: DriverPostgres}); err == nil {
		t.Fatal("expected missing dsn error")
	}
	if _, err := Open(ctx, Config{DBDriver: "mysql"}); err == nil {
		t.Fatal("expected unknown driver error")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{"OKR_DB_DRIVER", "OKR_DB_PATH", "OKR_RECOMPUTE_CONCURRENCY"} {
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("unset %s: %v", key, err)
		}
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DBDriver != DriverSQLite || cfg.DBPath != "data/okr.db" || cfg.RecomputeConcurrency != 4 {
		t.Fatalf("config = %+v", cfg)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("OKR_DB_DRIVER", "postgres")
	t.Setenv("OKR_POSTGRES_DSN", "postgres://okr@localhost/okr")
	t.Setenv("OKR_RECOMPUTE_CONCURRENCY", "8")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DBDriver != DriverPostgres || cfg.PostgresDSN != "postgres://okr@localhost/okr" || cfg.RecomputeConcurrency != 8 {
		t.Fatalf("config = %+v", cfg)
	}
}
