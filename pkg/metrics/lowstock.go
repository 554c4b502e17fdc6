package metrics

import "github.com/prometheus/client_golang/prometheus"

// LowStockMetrics counts the life of low-stock alerts from enqueue to dispatch.
type LowStockMetrics struct {
	enqueued   prometheus.Counter
	dropped    prometheus.Counter
	suppressed prometheus.Counter
	dispatched *prometheus.CounterVec
}

func NewLowStockMetrics(reg prometheus.Registerer) *LowStockMetrics {
	if reg == nil {
		return &LowStockMetrics{}
	}
	enqueued := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "lowstock_alerts_enqueued_total",
		Help:      "Low-stock alerts accepted onto the dispatch queue.",
	})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "lowstock_alerts_dropped_total",
		Help:      "Low-stock alerts dropped because the queue was full.",
	})
	suppressed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "lowstock_alerts_suppressed_total",
		Help:      "Low-stock alerts skipped inside the cooldown window.",
	})
	dispatched := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "lowstock_dispatch_total",
		Help:      "Per-actor low-stock notification sends by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(enqueued, dropped, suppressed, dispatched)
	return &LowStockMetrics{
		enqueued:   enqueued,
		dropped:    dropped,
		suppressed: suppressed,
		dispatched: dispatched,
	}
}

func (m *LowStockMetrics) IncEnqueued() {
	if m == nil || m.enqueued == nil {
		return
	}
	m.enqueued.Inc()
}

func (m *LowStockMetrics) IncDropped() {
	if m == nil || m.dropped == nil {
		return
	}
	m.dropped.Inc()
}

func (m *LowStockMetrics) IncSuppressed() {
	if m == nil || m.suppressed == nil {
		return
	}
	m.suppressed.Inc()
}

// IncDispatch counts one per-actor send with outcome ok or error.
func (m *LowStockMetrics) IncDispatch(outcome string) {
	if m == nil || m.dispatched == nil {
		return
	}
	m.dispatched.WithLabelValues(normalizeLabel(outcome)).Inc()
}
