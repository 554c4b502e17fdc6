package lowstock

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/angelmondragon/stockledger/pkg/db/models"
	"github.com/angelmondragon/stockledger/pkg/logger"
	"github.com/angelmondragon/stockledger/pkg/metrics"
)

const defaultQueueSize = 256

// MonitorOptions configures the alert queue.
type MonitorOptions struct {
	QueueSize int
	Metrics   *metrics.LowStockMetrics
	Logger    *logger.Logger
	Now       func() time.Time
}

// Monitor decides whether a committed record needs an alert and queues it
// without blocking the caller.
type Monitor struct {
	queue   chan Alert
	metrics *metrics.LowStockMetrics
	logg    *logger.Logger
	now     func() time.Time

	mu     sync.RWMutex
	closed bool
}

func NewMonitor(opts MonitorOptions) *Monitor {
	size := opts.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	logg := opts.Logger
	if logg == nil {
		logg = logger.New(logger.Options{ServiceName: "lowstock", Output: io.Discard})
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Monitor{
		queue:   make(chan Alert, size),
		metrics: opts.Metrics,
		logg:    logg,
		now:     now,
	}
}

// MaybeAlert queues an alert when the record is tracked and 0 < available <= threshold.
// A full queue drops the alert.
func (m *Monitor) MaybeAlert(ctx context.Context, record models.StockRecord) {
	if !record.IsLowStock() {
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return
	}

	select {
	case m.queue <- alertFromRecord(record, m.now()):
		m.metrics.IncEnqueued()
	default:
		m.metrics.IncDropped()
		logCtx := m.logg.WithVariantID(ctx, record.ProductVariantID.String())
		m.logg.Warn(logCtx, "low-stock alert queue full, dropping alert")
	}
}

// Alerts exposes the queue to workers. It is closed by Close.
func (m *Monitor) Alerts() <-chan Alert {
	return m.queue
}

// Pending reports how many alerts are waiting.
func (m *Monitor) Pending() int {
	return len(m.queue)
}

// Close stops accepting alerts and lets workers drain what is queued.
func (m *Monitor) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	close(m.queue)
}
