package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveOperationCountsOutcomes(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	r, err := NewRecorder(reg)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}

	r.ObserveOperation("record_check_in", 10*time.Millisecond, nil)
	r.ObserveOperation("record_check_in", 5*time.Millisecond, nil)
	r.ObserveOperation("record_check_in", time.Millisecond, errors.New("boom"))

	if got := testutil.ToFloat64(r.operations.WithLabelValues("record_check_in", OutcomeSuccess)); got != 2 {
		t.Fatalf("success count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.operations.WithLabelValues("record_check_in", OutcomeError)); got != 1 {
		t.Fatalf("error count = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(r.operationDuration); got != 1 {
		t.Fatalf("histogram series = %d, want 1", got)
	}
}

func TestRecordAlignmentRejection(t *testing.T) {
	t.Parallel()

	r, err := NewRecorder(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	r.RecordAlignmentRejection("cycle")
	r.RecordAlignmentRejection("cycle")
	r.RecordAlignmentRejection("self_reference")

	if got := testutil.ToFloat64(r.alignmentRejections.WithLabelValues("cycle")); got != 2 {
		t.Fatalf("cycle rejections = %v, want 2", got)
	}
}

func TestNewRecorderRejectsDoubleRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	if _, err := NewRecorder(reg); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := NewRecorder(reg); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}

func TestNilRecorderIsNoop(t *testing.T) {
	t.Parallel()

	var r *Recorder
	r.ObserveOperation("noop", time.Second, nil)
	r.RecordAlignmentRejection("cycle")
}
