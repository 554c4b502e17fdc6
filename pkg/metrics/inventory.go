package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Mutation outcomes used as the "outcome" label.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// InventoryMetrics tracks stock mutations and ledger health.
type InventoryMetrics struct {
	mutations *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	retries   *prometheus.CounterVec
	drift     *prometheus.GaugeVec
}

// NewInventoryMetrics registers the inventory metrics on the provided registerer.
// A nil registerer yields a no-op collector.
func NewInventoryMetrics(reg prometheus.Registerer) *InventoryMetrics {
	if reg == nil {
		return &InventoryMetrics{}
	}
	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "inventory",
		Name:      "mutations_total",
		Help:      "Stock mutations by operation and outcome.",
	}, []string{"op", "outcome"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "inventory",
		Name:      "mutation_duration_seconds",
		Help:      "Latency of stock mutations including retries.",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"op"})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "inventory",
		Name:      "mutation_retries_total",
		Help:      "Mutation transactions retried after a conflict.",
	}, []string{"op"})
	drift := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "inventory",
		Name:      "ledger_drift_records",
		Help:      "Stock records found inconsistent by the last reconcile run.",
	}, []string{"kind"})
	reg.MustRegister(mutations, latency, retries, drift)
	return &InventoryMetrics{
		mutations: mutations,
		latency:   latency,
		retries:   retries,
		drift:     drift,
	}
}

// ObserveMutation records the outcome and latency of one mutation.
func (m *InventoryMetrics) ObserveMutation(op, outcome string, elapsed time.Duration) {
	if m == nil || m.mutations == nil {
		return
	}
	op = normalizeLabel(op)
	m.mutations.WithLabelValues(op, normalizeLabel(outcome)).Inc()
	m.latency.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (m *InventoryMetrics) IncRetry(op string) {
	if m == nil || m.retries == nil {
		return
	}
	m.retries.WithLabelValues(normalizeLabel(op)).Inc()
}

// SetLedgerDrift publishes the number of drifted records for a drift kind
// ("available" or "ledger").
func (m *InventoryMetrics) SetLedgerDrift(kind string, count int) {
	if m == nil || m.drift == nil {
		return
	}
	m.drift.WithLabelValues(normalizeLabel(kind)).Set(float64(count))
}
