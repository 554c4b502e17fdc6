package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockledger/pkg/enums"
)

// StockAdjustment is an immutable ledger row describing one on-hand change.
type StockAdjustment struct {
	ID             uuid.UUID              `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	StockRecordID  uuid.UUID              `gorm:"column:stock_record_id;type:uuid;not null;index:ix_stock_adjustments_record_created,priority:1" json:"stockRecordId"`
	QuantityChange int                    `gorm:"column:quantity_change;not null" json:"quantityChange"`
	Reason         enums.AdjustmentReason `gorm:"column:reason;type:text;not null" json:"reason"`
	Notes          *string                `gorm:"column:notes;type:text" json:"notes,omitempty"`
	ActorUserID    *uuid.UUID             `gorm:"column:actor_user_id;type:uuid" json:"userId,omitempty"`
	CreatedAt      time.Time              `gorm:"column:created_at;autoCreateTime;index:ix_stock_adjustments_record_created,priority:2" json:"createdAt"`
}

func (StockAdjustment) TableName() string { return "stock_adjustments" }

func (a *StockAdjustment) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
