package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockledger/internal/repo"
	"github.com/angelmondragon/stockledger/pkg/db/models"
	"github.com/angelmondragon/stockledger/pkg/pagination"
)

// LedgerStore is the append-only adjustment ledger. Rows are never updated or deleted.
type LedgerStore interface {
	WithTx(tx *gorm.DB) LedgerStore
	Append(ctx context.Context, adjustment *models.StockAdjustment) error
	ListByRecord(ctx context.Context, stockRecordID uuid.UUID, page pagination.Page) ([]models.StockAdjustment, int64, error)
	SumByRecord(ctx context.Context, stockRecordIDs []uuid.UUID) (map[uuid.UUID]int64, error)
}

// LedgerRepository is the gorm-backed LedgerStore.
type LedgerRepository struct {
	base repo.Base
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{base: repo.NewBase(db)}
}

func (r *LedgerRepository) WithTx(tx *gorm.DB) LedgerStore {
	return &LedgerRepository{base: r.base.Bind(tx)}
}

func (r *LedgerRepository) Append(ctx context.Context, adjustment *models.StockAdjustment) error {
	return r.base.DB(ctx).Create(adjustment).Error
}

// ListByRecord returns one page of adjustments, newest first, with the total row count.
func (r *LedgerRepository) ListByRecord(ctx context.Context, stockRecordID uuid.UUID, page pagination.Page) ([]models.StockAdjustment, int64, error) {
	var total int64
	if err := r.base.DB(ctx).
		Model(&models.StockAdjustment{}).
		Where("stock_record_id = ?", stockRecordID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.StockAdjustment
	if err := r.base.DB(ctx).
		Where("stock_record_id = ?", stockRecordID).
		Order("created_at DESC").
		Order("id DESC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

type ledgerSum struct {
	StockRecordID uuid.UUID
	Total         int64
}

// SumByRecord totals quantity_change per record. Records with no rows are absent from the map.
func (r *LedgerRepository) SumByRecord(ctx context.Context, stockRecordIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	out := make(map[uuid.UUID]int64, len(stockRecordIDs))
	if len(stockRecordIDs) == 0 {
		return out, nil
	}
	var sums []ledgerSum
	if err := r.base.DB(ctx).
		Model(&models.StockAdjustment{}).
		Select("stock_record_id, COALESCE(SUM(quantity_change), 0) AS total").
		Where("stock_record_id IN ?", stockRecordIDs).
		Group("stock_record_id").
		Scan(&sums).Error; err != nil {
		return nil, err
	}
	for _, s := range sums {
		out[s.StockRecordID] = s.Total
	}
	return out, nil
}
