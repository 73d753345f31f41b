package okrctl

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/louisbranch/okrengine/internal/platform/id"
	"github.com/louisbranch/okrengine/internal/services/okr/app"
	"github.com/louisbranch/okrengine/internal/services/okr/domain"
	"github.com/louisbranch/okrengine/internal/services/okr/storage/memory"
)

type nopCloser struct{ closed *int }

func (n nopCloser) Close() error {
	*n.closed++
	return nil
}

type env struct {
	store  *memory.Store
	ids    id.Generator
	now    time.Time
	opens  int
	closes int
}

func newEnv() *env {
	return &env{
		store: memory.NewStore(),
		ids:   id.Sequence("id"),
		now:   time.Date(2026, time.August, 3, 9, 0, 0, 0, time.UTC),
	}
}

func (e *env) open(_ context.Context, logger *slog.Logger) (*app.Service, io.Closer, error) {
	e.opens++
	svc := app.NewService(e.store,
		app.WithLogger(logger),
		app.WithClock(func() time.Time { return e.now }),
		app.WithIDs(e.ids),
	)
	return svc, nopCloser{closed: &e.closes}, nil
}

// exec runs args and returns stdout and stderr.
func (e *env) exec(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := Execute(context.Background(), Options{Open: e.open, Out: &out, Err: &errOut}, args)
	return out.String(), errOut.String(), err
}

func (e *env) mustExec(t *testing.T, args ...string) string {
	t.Helper()
	out, _, err := e.exec(t, args...)
	if err != nil {
		t.Fatalf("okrctl %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func decode[T any](t *testing.T, raw string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		t.Fatalf("decode %q: %v", raw, err)
	}
	return v
}

type objectiveOut struct {
	ID         string              `json:"id"`
	Status     domain.Status       `json:"status"`
	Progress   decimal.NullDecimal `json:"progress"`
	KeyResults []struct {
		ID       string           `json:"id"`
		Progress *decimal.Decimal `json:"progress"`
	} `json:"key_results"`
}

func TestCheckInFlowUpdatesObjective(t *testing.T) {
	t.Parallel()
	e := newEnv()

	obj := decode[objectiveOut](t, e.mustExec(t, "objective", "create",
		"--title", "Grow revenue", "--owner", "u-1", "--quarter", "2026-Q3"))
	if obj.ID != "id-1" {
		t.Fatalf("objective id = %q, want %q", obj.ID, "id-1")
	}
	if obj.Status != domain.StatusNotStarted {
		t.Fatalf("status = %q, want %q", obj.Status, domain.StatusNotStarted)
	}

	kr := decode[struct {
		ID         string            `json:"id"`
		MetricType domain.MetricType `json:"metric_type"`
	}](t, e.mustExec(t, "kr", "create", "--objective", obj.ID, "--title", "ARR", "--target", "100"))
	if kr.MetricType != domain.MetricNumber {
		t.Fatalf("metric type = %q, want %q", kr.MetricType, domain.MetricNumber)
	}

	e.mustExec(t, "checkin", "record", kr.ID, "80", "--note", "good month", "--author", "u-1")

	report := decode[objectiveOut](t, e.mustExec(t, "objective", "get", obj.ID))
	if report.Status != domain.StatusOnTrack {
		t.Fatalf("status = %q, want %q", report.Status, domain.StatusOnTrack)
	}
	if !report.Progress.Valid || !report.Progress.Decimal.Equal(decimal.NewFromInt(80)) {
		t.Fatalf("progress = %v, want 80", report.Progress)
	}
	if len(report.KeyResults) != 1 || report.KeyResults[0].Progress == nil {
		t.Fatalf("key results = %+v, want one with progress", report.KeyResults)
	}

	history := decode[[]struct {
		Value decimal.Decimal `json:"value"`
	}](t, e.mustExec(t, "checkin", "history", kr.ID))
	if len(history) != 1 || !history[0].Value.Equal(decimal.NewFromInt(80)) {
		t.Fatalf("history = %+v, want one check-in of 80", history)
	}
	if e.opens != e.closes {
		t.Fatalf("opens = %d, closes = %d", e.opens, e.closes)
	}
}

func TestDomainErrorsCarryCode(t *testing.T) {
	t.Parallel()
	e := newEnv()

	obj := decode[objectiveOut](t, e.mustExec(t, "objective", "create",
		"--title", "Ship", "--owner", "u-1", "--quarter", "2026-Q3"))

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "self alignment", args: []string{"align", "propose", obj.ID, obj.ID}, want: "ALIGNMENT_SELF_REFERENCE"},
		{name: "missing objective", args: []string{"objective", "get", "nope"}, want: "OBJECTIVE_NOT_FOUND"},
		{name: "missing key result", args: []string{"checkin", "record", "nope", "1"}, want: "KEY_RESULT_NOT_FOUND"},
		{name: "bad value", args: []string{"checkin", "record", "kr", "lots"}, want: "invalid value"},
		{name: "recompute needs scope", args: []string{"recompute"}, want: "exactly one of"},
	}
	for _, tc := range tests {
		_, _, err := e.exec(t, tc.args...)
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: error = %q, want it to contain %q", tc.name, err.Error(), tc.want)
		}
	}
}

func TestAlignmentCommands(t *testing.T) {
	t.Parallel()
	e := newEnv()

	ids := make([]string, 0, 3)
	for _, title := range []string{"Company", "Team", "Squad"} {
		obj := decode[objectiveOut](t, e.mustExec(t, "objective", "create",
			"--title", title, "--owner", "u-1", "--quarter", "2026-Q3"))
		ids = append(ids, obj.ID)
	}
	e.mustExec(t, "align", "propose", ids[0], ids[1], "--by", "u-1")
	e.mustExec(t, "align", "propose", ids[1], ids[2])

	_, _, err := e.exec(t, "align", "propose", ids[2], ids[0])
	if err == nil || !strings.Contains(err.Error(), "ALIGNMENT_CYCLE") {
		t.Fatalf("cycle error = %v, want ALIGNMENT_CYCLE", err)
	}

	nodes := decode[[]struct {
		ObjectiveID string `json:"objective_id"`
		Depth       int    `json:"depth"`
	}](t, e.mustExec(t, "align", "tree", ids[0]))
	if len(nodes) != 2 || nodes[0].ObjectiveID != ids[1] || nodes[1].Depth != 2 {
		t.Fatalf("tree = %+v", nodes)
	}

	parents := decode[[]string](t, e.mustExec(t, "align", "parents", ids[2]))
	if len(parents) != 1 || parents[0] != ids[1] {
		t.Fatalf("parents = %v, want [%s]", parents, ids[1])
	}

	e.mustExec(t, "align", "remove", ids[0], ids[1])
	children := decode[[]string](t, e.mustExec(t, "align", "children", ids[0]))
	if len(children) != 0 {
		t.Fatalf("children = %v, want none", children)
	}
}

func TestImportAndSummary(t *testing.T) {
	t.Parallel()
	e := newEnv()

	path := filepath.Join(t.TempDir(), "seed.yaml")
	doc := `
objectives:
  - key: growth
    title: Grow
    owner_id: u-1
    quarter: 2026-Q3
    key_results:
      - title: Signups
        target: "200"
        check_ins:
          - value: "150"
  - key: hiring
    title: Hire
    owner_id: u-2
    quarter: 2026-Q3
alignments:
  - parent: growth
    child: hiring
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	imported := decode[struct {
		Objectives map[string]string `json:"objectives"`
		CheckIns   int               `json:"check_ins"`
		Alignments int               `json:"alignments"`
	}](t, e.mustExec(t, "import", path))
	if len(imported.Objectives) != 2 || imported.CheckIns != 1 || imported.Alignments != 1 {
		t.Fatalf("import = %+v", imported)
	}

	sum := decode[struct {
		Total    int                   `json:"total_objectives"`
		ByStatus map[domain.Status]int `json:"status_distribution"`
		Top      []objectiveOut        `json:"top_performers"`
	}](t, e.mustExec(t, "objective", "summary", "--quarter", "2026-Q3", "--top", "1"))
	if sum.Total != 2 {
		t.Fatalf("total = %d, want 2", sum.Total)
	}
	if sum.ByStatus[domain.StatusOnTrack] != 1 || sum.ByStatus[domain.StatusNotStarted] != 1 {
		t.Fatalf("distribution = %v", sum.ByStatus)
	}
	if len(sum.Top) != 1 || sum.Top[0].ID != imported.Objectives["growth"] {
		t.Fatalf("top = %+v, want growth first", sum.Top)
	}
}

func TestVerboseLogsOperations(t *testing.T) {
	t.Parallel()
	e := newEnv()

	_, quiet, err := e.exec(t, "objective", "create", "--title", "A", "--owner", "u-1", "--quarter", "2026-Q3")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if quiet != "" {
		t.Fatalf("stderr = %q, want empty without --verbose", quiet)
	}

	_, loud, err := e.exec(t, "-v", "objective", "create", "--title", "B", "--owner", "u-1", "--quarter", "2026-Q3")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.Contains(loud, "create_objective") {
		t.Fatalf("stderr = %q, want the operation logged", loud)
	}
}
