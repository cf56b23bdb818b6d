package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var latencyBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

// Metrics holds all Prometheus metrics for the reconciliation service
type Metrics struct {
	Reconciles          *prometheus.CounterVec
	Identifies          *prometheus.CounterVec
	StorageFailures     *prometheus.CounterVec
	InvariantViolations prometheus.Counter
	ReconcileDuration   prometheus.Histogram
	IdentifyDuration    prometheus.Histogram
}

// New creates and registers all metrics on reg. Pass prometheus.NewRegistry()
// in tests so repeated construction does not collide.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Reconciles: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bitespeed_reconcile_total",
			Help: "Reconcile calls by structural outcome",
		}, []string{"outcome"}),
		Identifies: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bitespeed_identify_total",
			Help: "Identify calls by result",
		}, []string{"result"}),
		StorageFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bitespeed_storage_failures_total",
			Help: "Store errors surfaced to callers",
		}, []string{"op"}),
		InvariantViolations: factory.NewCounter(prometheus.CounterOpts{
			Name: "bitespeed_invariant_violations_total",
			Help: "Secondary contacts found pointing at a non-primary record",
		}),
		ReconcileDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "bitespeed_reconcile_duration_seconds",
			Help:    "Duration of reconcile calls including lock wait",
			Buckets: latencyBuckets,
		}),
		IdentifyDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "bitespeed_identify_duration_seconds",
			Help:    "Duration of identify calls",
			Buckets: latencyBuckets,
		}),
	}
}

// The helpers below are nil-safe so services can run without metrics wired.

func (m *Metrics) IncReconcile(outcome string) {
	if m == nil {
		return
	}
	m.Reconciles.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncIdentify(result string) {
	if m == nil {
		return
	}
	m.Identifies.WithLabelValues(result).Inc()
}

func (m *Metrics) IncStorageFailure(op string) {
	if m == nil {
		return
	}
	m.StorageFailures.WithLabelValues(op).Inc()
}

func (m *Metrics) IncInvariantViolation() {
	if m == nil {
		return
	}
	m.InvariantViolations.Inc()
}

// ObserveReconcile records the duration of a reconcile call.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveReconcile(start time.Time) {
	if m == nil {
		return
	}
	m.ReconcileDuration.Observe(time.Since(start).Seconds())
}

// ObserveIdentify records the duration of an identify call.
func (m *Metrics) ObserveIdentify(start time.Time) {
	if m == nil {
		return
	}
	m.IdentifyDuration.Observe(time.Since(start).Seconds())
}
