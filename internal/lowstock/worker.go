package lowstock

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/stockledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockledger/pkg/errors"
	"github.com/angelmondragon/stockledger/pkg/logger"
	"github.com/angelmondragon/stockledger/pkg/metrics"
)

const (
	defaultWorkers         = 2
	defaultDispatchTimeout = 10 * time.Second
	outcomeOK              = "ok"
	outcomeError           = "error"
)

// WorkerParams wires the dispatch side of the monitor.
type WorkerParams struct {
	Monitor         *Monitor
	Actors          ActorResolver
	Dispatcher      Dispatcher
	Cooldown        Cooldown
	CooldownTTL     time.Duration
	Workers         int
	DispatchTimeout time.Duration
	Metrics         *metrics.LowStockMetrics
	Logger          *logger.Logger
}

// Worker drains the monitor queue and fans each alert out to every actor
// holding the alerts permission.
type Worker struct {
	monitor     *Monitor
	actors      ActorResolver
	dispatcher  Dispatcher
	cooldown    Cooldown
	cooldownTTL time.Duration
	workers     int
	timeout     time.Duration
	metrics     *metrics.LowStockMetrics
	logg        *logger.Logger
}

func NewWorker(p WorkerParams) (*Worker, error) {
	if p.Monitor == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "low-stock monitor required")
	}
	if p.Actors == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "actor resolver required")
	}
	if p.Dispatcher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notification dispatcher required")
	}
	workers := p.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	timeout := p.DispatchTimeout
	if timeout <= 0 {
		timeout = defaultDispatchTimeout
	}
	logg := p.Logger
	if logg == nil {
		logg = logger.New(logger.Options{ServiceName: "lowstock-worker", Output: io.Discard})
	}
	return &Worker{
		monitor:     p.Monitor,
		actors:      p.Actors,
		dispatcher:  p.Dispatcher,
		cooldown:    p.Cooldown,
		cooldownTTL: p.CooldownTTL,
		workers:     workers,
		timeout:     timeout,
		metrics:     p.Metrics,
		logg:        logg,
	}, nil
}

// Run blocks until ctx is cancelled or the monitor is closed and drained.
func (w *Worker) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < w.workers; i++ {
		g.Go(func() error {
			w.loop(gctx)
			return nil
		})
	}
	return g.Wait()
}

func (w *Worker) loop(ctx context.Context) {
	alerts := w.monitor.Alerts()
	for {
		select {
		case <-ctx.Done():
			return
		case alert, ok := <-alerts:
			if !ok {
				return
			}
			w.process(ctx, alert)
		}
	}
}

func (w *Worker) process(ctx context.Context, alert Alert) {
	logCtx := w.logg.WithFields(ctx, map[string]any{
		"variant_id":      alert.VariantID.String(),
		"stock_record_id": alert.StockRecordID.String(),
		"available":       alert.Available,
	})
	if err := w.handle(logCtx, alert); err != nil {
		w.logg.Error(logCtx, "low-stock alert dispatch failed", err)
	}
}

func (w *Worker) handle(ctx context.Context, alert Alert) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("low-stock dispatch panic: %v", r)
		}
	}()

	resolveCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	if w.suppressed(resolveCtx, alert) {
		w.metrics.IncSuppressed()
		w.logg.Debug(ctx, "low-stock alert inside cooldown window")
		return nil
	}

	actors, err := w.actors.ActorsWithPermission(resolveCtx, enums.PermissionInventoryAlerts)
	if err != nil {
		return fmt.Errorf("resolve alert recipients: %w", err)
	}
	if len(actors) == 0 {
		w.logg.Warn(ctx, "no recipients hold the inventory alerts permission")
		return nil
	}

	title, message, metadata := render(alert)
	var errs error
	for _, actorID := range actors {
		if sendErr := w.send(ctx, actorID, title, message, metadata); sendErr != nil {
			w.metrics.IncDispatch(outcomeError)
			errs = multierr.Append(errs, fmt.Errorf("actor %s: %w", actorID, sendErr))
			continue
		}
		w.metrics.IncDispatch(outcomeOK)
	}
	return errs
}

// send delivers to one actor under its own deadline. A panic is reported as
// that actor's error.
func (w *Worker) send(ctx context.Context, actorID uuid.UUID, title, message string, metadata map[string]any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatch panic: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	return w.dispatcher.Send(ctx, actorID, title, message, metadata)
}

// suppressed fails open: a cooldown store error lets the alert through.
func (w *Worker) suppressed(ctx context.Context, alert Alert) bool {
	if w.cooldown == nil || w.cooldownTTL <= 0 {
		return false
	}
	key := w.cooldown.LowStockKey(alert.VariantID.String())
	acquired, err := w.cooldown.SetNX(ctx, key, alert.RaisedAt.Unix(), w.cooldownTTL)
	if err != nil {
		w.logg.Warn(ctx, "low-stock cooldown check failed: "+err.Error())
		return false
	}
	return !acquired
}

func render(alert Alert) (string, string, map[string]any) {
	title := "Low stock"
	message := fmt.Sprintf("Variant %s is down to %d available (threshold %d).", alert.VariantID, alert.Available, alert.Threshold)
	metadata := map[string]any{
		"stockRecordId":    alert.StockRecordID.String(),
		"productVariantId": alert.VariantID.String(),
		"available":        alert.Available,
		"threshold":        alert.Threshold,
		"raisedAt":         alert.RaisedAt.Format(time.RFC3339),
	}
	return title, message, metadata
}
