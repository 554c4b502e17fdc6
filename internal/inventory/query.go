package inventory

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockledger/internal/repo"
	"github.com/angelmondragon/stockledger/pkg/db/models"
	pkgerrors "github.com/angelmondragon/stockledger/pkg/errors"
	"github.com/angelmondragon/stockledger/pkg/pagination"
)

// sortColumns maps API sort keys onto SQL expressions.
var sortColumns = map[string]string{
	"quantity":          "sr.quantity",
	"reserved":          "sr.reserved",
	"available":         "sr.available",
	"lowStockThreshold": "sr.low_stock_threshold",
	"lastRestockedAt":   "sr.last_restocked_at",
	"createdAt":         "sr.created_at",
	"updatedAt":         "sr.updated_at",
	"sku":               "pv.sku",
	"variantName":       "pv.name",
	"productTitle":      "p.title",
}

const (
	defaultSortBy    = "updatedAt"
	defaultSortOrder = "desc"
)

// QueryEngine serves read-only listings. It never mutates.
type QueryEngine struct {
	base   repo.Base
	store  StockRecordStore
	ledger LedgerStore
}

func NewQueryEngine(db *gorm.DB, store StockRecordStore, ledger LedgerStore) *QueryEngine {
	return &QueryEngine{base: repo.NewBase(db), store: store, ledger: ledger}
}

type stockListRow struct {
	ID                uuid.UUID
	ProductVariantID  uuid.UUID
	ProductID         sql.NullString
	ProductTitle      sql.NullString
	VariantName       sql.NullString
	SKU               sql.NullString
	Quantity          int
	Reserved          int
	Available         int
	LowStockThreshold int
	TrackInventory    bool
	AllowBackorder    bool
	LastRestockedAt   *time.Time
	UpdatedAt         time.Time
}

func (r stockListRow) toItem() StockListItem {
	item := StockListItem{
		ID:                r.ID,
		ProductVariantID:  r.ProductVariantID,
		ProductTitle:      r.ProductTitle.String,
		VariantName:       r.VariantName.String,
		SKU:               r.SKU.String,
		Quantity:          r.Quantity,
		Reserved:          r.Reserved,
		Available:         r.Available,
		LowStockThreshold: r.LowStockThreshold,
		TrackInventory:    r.TrackInventory,
		AllowBackorder:    r.AllowBackorder,
		LastRestockedAt:   r.LastRestockedAt,
		UpdatedAt:         r.UpdatedAt,
	}
	if r.ProductID.Valid {
		if id, err := uuid.Parse(r.ProductID.String); err == nil {
			item.ProductID = &id
		}
	}
	return item
}

func (q *QueryEngine) filtered(ctx context.Context, in ListInput) *gorm.DB {
	qb := q.base.DB(ctx).
		Table("stock_records sr").
		Joins("LEFT JOIN product_variants pv ON pv.id = sr.product_variant_id").
		Joins("LEFT JOIN products p ON p.id = pv.product_id")

	if search := strings.TrimSpace(in.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		qb = qb.Where("(LOWER(pv.name) LIKE ? OR LOWER(p.title) LIKE ? OR LOWER(pv.sku) LIKE ?)", pattern, pattern, pattern)
	}
	if in.LowStockOnly {
		qb = qb.Where("sr.available > 0 AND sr.available <= sr.low_stock_threshold")
	}
	if in.OutOfStockOnly {
		qb = qb.Where("sr.available <= 0")
	}
	return qb
}

// List returns one filtered, sorted page of stock records.
func (q *QueryEngine) List(ctx context.Context, in ListInput) (*ListResult, error) {
	sortBy := in.SortBy
	if sortBy == "" {
		sortBy = defaultSortBy
	}
	column, ok := sortColumns[sortBy]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported sortBy "+sortBy)
	}
	order := strings.ToLower(in.SortOrder)
	if order == "" {
		order = defaultSortOrder
	}
	if order != "asc" && order != "desc" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sortOrder must be asc or desc")
	}
	page := pagination.NewPage(in.Page, in.Limit)

	var total int64
	if err := q.filtered(ctx, in).Count(&total).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count stock records")
	}

	var rows []stockListRow
	if err := q.filtered(ctx, in).
		Select(strings.Join([]string{
			"sr.id",
			"sr.product_variant_id",
			"pv.product_id",
			"p.title AS product_title",
			"pv.name AS variant_name",
			"pv.sku",
			"sr.quantity",
			"sr.reserved",
			"sr.available",
			"sr.low_stock_threshold",
			"sr.track_inventory",
			"sr.allow_backorder",
			"sr.last_restocked_at",
			"sr.updated_at",
		}, ", ")).
		Order(column + " " + order).
		Order("sr.id " + order).
		Offset(page.Offset()).
		Limit(page.Limit).
		Scan(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stock records")
	}

	items := make([]StockListItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toItem())
	}
	return pagination.NewResult(page, total, items), nil
}

// GetByVariant returns the record or NOT_FOUND.
func (q *QueryEngine) GetByVariant(ctx context.Context, variantID uuid.UUID) (*models.StockRecord, error) {
	record, err := q.store.FindByVariant(ctx, variantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "stock record not found for variant")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock record")
	}
	return record, nil
}

// LowStock lists records with 0 < available <= threshold, lowest availability first.
func (q *QueryEngine) LowStock(ctx context.Context) ([]models.StockRecord, error) {
	var records []models.StockRecord
	if err := q.base.DB(ctx).
		Where("available > 0 AND available <= low_stock_threshold").
		Order("available ASC").
		Order("id ASC").
		Find(&records).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list low stock records")
	}
	return records, nil
}

// History pages through a record's adjustments, newest first.
func (q *QueryEngine) History(ctx context.Context, stockRecordID uuid.UUID, pageNum, limit int) (*HistoryResult, error) {
	if _, err := q.store.FindByID(ctx, stockRecordID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "stock record not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock record")
	}

	page := pagination.NewPage(pageNum, limit)
	rows, total, err := q.ledger.ListByRecord(ctx, stockRecordID, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list adjustments")
	}
	return pagination.NewResult(page, total, rows), nil
}
