package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockledger/pkg/db/models"
	"github.com/angelmondragon/stockledger/pkg/enums"
	"github.com/angelmondragon/stockledger/pkg/logger"
	"github.com/angelmondragon/stockledger/pkg/metrics"
)

const (
	defaultReconcileBatch = 500
	maxDriftSamples       = 10

	DriftAvailable = "available"
	DriftLedger    = "ledger"
)

type stockRecordPager interface {
	ListAfter(ctx context.Context, afterID uuid.UUID, limit int) ([]models.StockRecord, error)
}

type ledgerSummer interface {
	SumByRecord(ctx context.Context, recordIDs []uuid.UUID) (map[uuid.UUID]int64, error)
}

type driftRecipients interface {
	ActorsWithPermission(ctx context.Context, permission enums.Permission) ([]uuid.UUID, error)
}

type driftNotifier interface {
	Send(ctx context.Context, actorID uuid.UUID, title, message string, metadata map[string]any) error
}

type LedgerReconcileJobParams struct {
	Logger     *logger.Logger
	Records    stockRecordPager
	Ledger     ledgerSummer
	Metrics    *metrics.InventoryMetrics
	Recipients driftRecipients
	Notifier   driftNotifier
	BatchSize  int
	Every      time.Duration
}

// NewLedgerReconcileJob builds the read-only audit that compares every stock
// record against its own arithmetic and against the sum of its ledger rows.
// Notifications go out only when both Recipients and Notifier are set.
func NewLedgerReconcileJob(params LedgerReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Records == nil {
		return nil, fmt.Errorf("stock record repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultReconcileBatch
	}
	return &ledgerReconcileJob{
		logg:       params.Logger,
		records:    params.Records,
		ledger:     params.Ledger,
		metrics:    params.Metrics,
		recipients: params.Recipients,
		notifier:   params.Notifier,
		batch:      batch,
		every:      params.Every,
	}, nil
}

type ledgerReconcileJob struct {
	logg       *logger.Logger
	records    stockRecordPager
	ledger     ledgerSummer
	metrics    *metrics.InventoryMetrics
	recipients driftRecipients
	notifier   driftNotifier
	batch      int
	every      time.Duration
}

type driftReport struct {
	scanned   int
	available []uuid.UUID
	ledger    []uuid.UUID
}

func (r driftReport) total() int { return len(r.available) + len(r.ledger) }

func (j *ledgerReconcileJob) Name() string { return "ledger_reconcile" }

func (j *ledgerReconcileJob) Every() time.Duration { return j.every }

func (j *ledgerReconcileJob) Run(ctx context.Context) (Report, error) {
	report, err := j.scan(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("ledger reconcile: %w", err)
	}

	j.metrics.SetLedgerDrift(DriftAvailable, len(report.available))
	j.metrics.SetLedgerDrift(DriftLedger, len(report.ledger))

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"records_scanned": report.scanned,
		"available_drift": len(report.available),
		"ledger_drift":    len(report.ledger),
	})
	if report.total() == 0 {
		j.logg.Info(logCtx, "ledger reconcile found no drift")
		return Report{}, nil
	}

	logCtx = j.logg.WithFields(logCtx, map[string]any{
		"available_samples": samples(report.available),
		"ledger_samples":    samples(report.ledger),
	})
	j.logg.Warn(logCtx, "ledger reconcile found drifted stock records")

	if err := j.notify(ctx, report); err != nil {
		j.logg.Error(logCtx, "ledger drift notification failed", err)
	}
	return Report{Items: int64(report.total())}, nil
}

func (j *ledgerReconcileJob) scan(ctx context.Context) (driftReport, error) {
	var report driftReport
	after := uuid.Nil
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		page, err := j.records.ListAfter(ctx, after, j.batch)
		if err != nil {
			return report, fmt.Errorf("list stock records: %w", err)
		}
		if len(page) == 0 {
			return report, nil
		}

		ids := make([]uuid.UUID, 0, len(page))
		for _, rec := range page {
			ids = append(ids, rec.ID)
		}
		sums, err := j.ledger.SumByRecord(ctx, ids)
		if err != nil {
			return report, fmt.Errorf("sum ledger: %w", err)
		}

		for _, rec := range page {
			report.scanned++
			if !rec.AllowBackorder && rec.Available != rec.Quantity-rec.Reserved {
				report.available = append(report.available, rec.ID)
			}
			if int64(rec.Quantity) != sums[rec.ID] {
				report.ledger = append(report.ledger, rec.ID)
			}
		}

		if len(page) < j.batch {
			return report, nil
		}
		after = page[len(page)-1].ID
	}
}

func (j *ledgerReconcileJob) notify(ctx context.Context, report driftReport) error {
	if j.recipients == nil || j.notifier == nil {
		return nil
	}
	actors, err := j.recipients.ActorsWithPermission(ctx, enums.PermissionInventoryAlerts)
	if err != nil {
		return err
	}
	message := fmt.Sprintf("%d stock records disagree with their arithmetic and %d with their adjustment ledger.",
		len(report.available), len(report.ledger))
	metadata := map[string]any{
		"scanned":          report.scanned,
		"availableDrift":   len(report.available),
		"ledgerDrift":      len(report.ledger),
		"availableSamples": samples(report.available),
		"ledgerSamples":    samples(report.ledger),
	}
	for _, actor := range actors {
		if err := j.notifier.Send(ctx, actor, "Stock ledger drift detected", message, metadata); err != nil {
			return err
		}
	}
	return nil
}

func samples(ids []uuid.UUID) []string {
	n := len(ids)
	if n > maxDriftSamples {
		n = maxDriftSamples
	}
	out := make([]string, 0, n)
	for _, id := range ids[:n] {
		out = append(out, id.String())
	}
	return out
}
