package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/stockledger/internal/repo"
	"github.com/angelmondragon/stockledger/pkg/db/models"
)

// errVersionConflict signals that another writer committed between our read and write.
var errVersionConflict = errors.New("stock record version conflict")

// StockRecordStore persists stock records. Writes are compare-and-swap on version.
type StockRecordStore interface {
	WithTx(tx *gorm.DB) StockRecordStore
	FindByVariant(ctx context.Context, variantID uuid.UUID) (*models.StockRecord, error)
	FindByVariantForUpdate(ctx context.Context, variantID uuid.UUID) (*models.StockRecord, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.StockRecord, error)
	Create(ctx context.Context, record *models.StockRecord) error
	Save(ctx context.Context, record *models.StockRecord) error
}

// Repository is the gorm-backed StockRecordStore.
type Repository struct {
	base repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(db)}
}

func (r *Repository) WithTx(tx *gorm.DB) StockRecordStore {
	return &Repository{base: r.base.Bind(tx)}
}

// FindByVariant returns gorm.ErrRecordNotFound when the variant has no record.
func (r *Repository) FindByVariant(ctx context.Context, variantID uuid.UUID) (*models.StockRecord, error) {
	var record models.StockRecord
	if err := r.base.DB(ctx).
		Where("product_variant_id = ?", variantID).
		Take(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// FindByVariantForUpdate reads the record with a row lock held until the surrounding
// transaction ends.
func (r *Repository) FindByVariantForUpdate(ctx context.Context, variantID uuid.UUID) (*models.StockRecord, error) {
	var record models.StockRecord
	if err := r.base.DB(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_variant_id = ?", variantID).
		Take(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.StockRecord, error) {
	var record models.StockRecord
	if err := r.base.DB(ctx).Where("id = ?", id).Take(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *Repository) Create(ctx context.Context, record *models.StockRecord) error {
	return r.base.DB(ctx).Create(record).Error
}

// Save writes every mutable column if the stored version still matches record.Version,
// then bumps the version on the passed record. Zero rows affected yields errVersionConflict.
func (r *Repository) Save(ctx context.Context, record *models.StockRecord) error {
	now := time.Now().UTC()
	res := r.base.DB(ctx).
		Model(&models.StockRecord{}).
		Where("id = ? AND version = ?", record.ID, record.Version).
		Updates(map[string]any{
			"quantity":            record.Quantity,
			"reserved":            record.Reserved,
			"available":           record.Available,
			"low_stock_threshold": record.LowStockThreshold,
			"track_inventory":     record.TrackInventory,
			"allow_backorder":     record.AllowBackorder,
			"last_restocked_at":   record.LastRestockedAt,
			"version":             record.Version + 1,
			"updated_at":          now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errVersionConflict
	}
	record.Version++
	record.UpdatedAt = now
	return nil
}

// ListAfter pages through every record in id order, starting after afterID.
// Pass uuid.Nil for the first page.
func (r *Repository) ListAfter(ctx context.Context, afterID uuid.UUID, limit int) ([]models.StockRecord, error) {
	query := r.base.DB(ctx).Order("id ASC").Limit(limit)
	if afterID != uuid.Nil {
		query = query.Where("id > ?", afterID)
	}
	var records []models.StockRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
