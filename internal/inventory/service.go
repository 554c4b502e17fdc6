package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockledger/pkg/db/models"
	"github.com/angelmondragon/stockledger/pkg/logger"
	"github.com/angelmondragon/stockledger/pkg/metrics"
)

// Service is the inventory surface used by the HTTP layer.
type Service interface {
	CheckAvailability(ctx context.Context, variantID uuid.UUID, requested int) (AvailabilityResult, error)
	Reserve(ctx context.Context, in ReserveInput) (*models.StockRecord, error)
	Release(ctx context.Context, in ReleaseInput) (*models.StockRecord, error)
	Adjust(ctx context.Context, in AdjustInput) (*models.StockRecord, *models.StockAdjustment, error)
	Initialize(ctx context.Context, in InitializeInput) (*models.StockRecord, error)
	UpdateSettings(ctx context.Context, in UpdateSettingsInput) (*models.StockRecord, error)
	List(ctx context.Context, in ListInput) (*ListResult, error)
	GetByVariant(ctx context.Context, variantID uuid.UUID) (*models.StockRecord, error)
	LowStock(ctx context.Context) ([]models.StockRecord, error)
	History(ctx context.Context, stockRecordID uuid.UUID, page, limit int) (*HistoryResult, error)
}

// ServiceParams wires the engines. Alerts and Metrics are optional.
type ServiceParams struct {
	DB         *gorm.DB
	Tx         TxRunner
	Store      StockRecordStore
	Ledger     LedgerStore
	Events     EventEmitter
	Alerts     AlertSink
	Metrics    *metrics.InventoryMetrics
	Logger     *logger.Logger
	MaxRetries int
	Now        func() time.Time
}

type service struct {
	*AvailabilityEngine
	*ReservationEngine
	*AdjustmentEngine
	*QueryEngine
}

// NewService builds the inventory service from its collaborators.
func NewService(p ServiceParams) (Service, error) {
	if p.DB == nil {
		return nil, fmt.Errorf("db required")
	}
	if p.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if p.Events == nil {
		return nil, fmt.Errorf("event emitter required")
	}
	if p.Store == nil {
		p.Store = NewRepository(p.DB)
	}
	if p.Ledger == nil {
		p.Ledger = NewLedgerRepository(p.DB)
	}
	if p.Alerts == nil {
		p.Alerts = noopAlerts{}
	}
	if p.Now == nil {
		p.Now = func() time.Time { return time.Now().UTC() }
	}

	mut := newMutator(p.Tx, p.MaxRetries, p.Metrics, p.Logger)
	return &service{
		AvailabilityEngine: NewAvailabilityEngine(p.Store),
		ReservationEngine: &ReservationEngine{
			store:  p.Store,
			events: p.Events,
			alerts: p.Alerts,
			mut:    mut,
		},
		AdjustmentEngine: &AdjustmentEngine{
			store:  p.Store,
			ledger: p.Ledger,
			events: p.Events,
			alerts: p.Alerts,
			mut:    mut,
			now:    p.Now,
		},
		QueryEngine: NewQueryEngine(p.DB, p.Store, p.Ledger),
	}, nil
}
