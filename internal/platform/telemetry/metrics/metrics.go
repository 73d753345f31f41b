package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "okr"

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Recorder owns the OKR engine collectors.
type Recorder struct {
	operations          *prometheus.CounterVec
	operationDuration   *prometheus.HistogramVec
	alignmentRejections *prometheus.CounterVec
}

// NewRecorder creates the collectors and registers them on reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total OKR engine operations by name and outcome",
		}, []string{"operation", "outcome"}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "OKR engine operation latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation"}),
		alignmentRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alignment_rejections_total",
			Help:      "Alignment proposals rejected by reason",
		}, []string{"reason"}),
	}
	if reg == nil {
		return r, nil
	}
	for _, c := range []prometheus.Collector{r.operations, r.operationDuration, r.alignmentRejections} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// ObserveOperation records one finished operation.
func (r *Recorder) ObserveOperation(operation string, elapsed time.Duration, err error) {
	if r == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	r.operations.WithLabelValues(operation, outcome).Inc()
	r.operationDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// RecordAlignmentRejection counts a refused alignment proposal.
func (r *Recorder) RecordAlignmentRejection(reason string) {
	if r == nil {
		return
	}
	r.alignmentRejections.WithLabelValues(reason).Inc()
}
