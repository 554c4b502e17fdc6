package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StockRecord holds the stock position for exactly one product variant.
// Available is stored rather than computed so list filters can index it.
type StockRecord struct {
	ID                uuid.UUID  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ProductVariantID  uuid.UUID  `gorm:"column:product_variant_id;type:uuid;not null;uniqueIndex:ux_stock_records_variant" json:"productVariantId"`
	Quantity          int        `gorm:"column:quantity;not null;default:0;check:chk_stock_records_quantity,quantity >= 0" json:"quantity"`
	Reserved          int        `gorm:"column:reserved;not null;default:0;check:chk_stock_records_reserved,reserved >= 0" json:"reserved"`
	Available         int        `gorm:"column:available;not null;default:0" json:"available"`
	LowStockThreshold int        `gorm:"column:low_stock_threshold;not null;default:0;check:chk_stock_records_threshold,low_stock_threshold >= 0" json:"lowStockThreshold"`
	TrackInventory    bool       `gorm:"column:track_inventory;not null" json:"trackInventory"`
	AllowBackorder    bool       `gorm:"column:allow_backorder;not null;default:false" json:"allowBackorder"`
	LastRestockedAt   *time.Time `gorm:"column:last_restocked_at" json:"lastRestockedAt,omitempty"`
	Version           int64      `gorm:"column:version;not null;default:0" json:"version"`
	CreatedAt         time.Time  `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt         time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (StockRecord) TableName() string { return "stock_records" }

func (r *StockRecord) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}

// IsLowStock reports whether a tracked record sits in (0, threshold].
func (r StockRecord) IsLowStock() bool {
	return r.TrackInventory && r.Available > 0 && r.Available <= r.LowStockThreshold
}
