package inventory

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockledger/pkg/db/models"
	"github.com/angelmondragon/stockledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockledger/pkg/errors"
	"github.com/angelmondragon/stockledger/pkg/outbox"
	"github.com/angelmondragon/stockledger/pkg/pagination"
)

// maxStockUnits bounds every stored counter; the columns are 32-bit integers.
const maxStockUnits = math.MaxInt32

func outOfRange(n int) bool {
	return n > maxStockUnits || n < -maxStockUnits
}

// AlertSink receives committed records that may have crossed the low-stock threshold.
// Implementations must return immediately.
type AlertSink interface {
	MaybeAlert(ctx context.Context, record models.StockRecord)
}

// EventEmitter writes domain events inside the mutation transaction.
type EventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type noopAlerts struct{}

func (noopAlerts) MaybeAlert(context.Context, models.StockRecord) {}

// ReserveInput claims stock for an order line.
type ReserveInput struct {
	VariantID uuid.UUID
	Quantity  int
	ActorID   *uuid.UUID
}

func (in ReserveInput) validate() error {
	return validateQuantity(in.VariantID, in.Quantity)
}

// ReleaseInput returns previously reserved stock.
type ReleaseInput struct {
	VariantID uuid.UUID
	Quantity  int
	ActorID   *uuid.UUID
}

func (in ReleaseInput) validate() error {
	return validateQuantity(in.VariantID, in.Quantity)
}

// AdjustInput changes on-hand quantity and is recorded in the ledger.
type AdjustInput struct {
	VariantID      uuid.UUID
	QuantityChange int
	Reason         enums.AdjustmentReason
	Notes          *string
	ActorID        *uuid.UUID
}

func (in AdjustInput) validate() error {
	if in.VariantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "productVariantId is required")
	}
	if in.QuantityChange == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantityChange must not be zero")
	}
	if outOfRange(in.QuantityChange) {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantityChange is out of range")
	}
	if !in.Reason.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid adjustment reason")
	}
	return nil
}

// InitializeInput creates the stock record for a new variant.
type InitializeInput struct {
	VariantID         uuid.UUID
	Quantity          int
	LowStockThreshold int
	TrackInventory    bool
	AllowBackorder    bool
	ActorID           *uuid.UUID
}

func (in InitializeInput) validate() error {
	if in.VariantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "productVariantId is required")
	}
	if in.Quantity < 0 || in.Quantity > maxStockUnits {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be between 0 and 2147483647")
	}
	if in.LowStockThreshold < 0 || in.LowStockThreshold > maxStockUnits {
		return pkgerrors.New(pkgerrors.CodeValidation, "lowStockThreshold must be between 0 and 2147483647")
	}
	return nil
}

// UpdateSettingsInput patches stock policy. Nil fields are left unchanged.
type UpdateSettingsInput struct {
	VariantID         uuid.UUID
	LowStockThreshold *int
	TrackInventory    *bool
	AllowBackorder    *bool
}

func (in UpdateSettingsInput) validate() error {
	if in.VariantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "productVariantId is required")
	}
	if in.LowStockThreshold == nil && in.TrackInventory == nil && in.AllowBackorder == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one setting is required")
	}
	if in.LowStockThreshold != nil && (*in.LowStockThreshold < 0 || *in.LowStockThreshold > maxStockUnits) {
		return pkgerrors.New(pkgerrors.CodeValidation, "lowStockThreshold must be between 0 and 2147483647")
	}
	return nil
}

func validateQuantity(variantID uuid.UUID, qty int) error {
	if variantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "productVariantId is required")
	}
	if qty < 1 || qty > maxStockUnits {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be between 1 and 2147483647")
	}
	return nil
}

// InsufficientDetails is attached to reservation conflicts so callers can react.
type InsufficientDetails struct {
	Available int `json:"available"`
	Requested int `json:"requested"`
}

// ListInput drives QueryEngine.List.
type ListInput struct {
	Search         string
	LowStockOnly   bool
	OutOfStockOnly bool
	SortBy         string
	SortOrder      string
	Page           int
	Limit          int
}

// StockListItem is a stock record joined with its catalog labels.
type StockListItem struct {
	ID                uuid.UUID  `json:"id"`
	ProductVariantID  uuid.UUID  `json:"productVariantId"`
	ProductID         *uuid.UUID `json:"productId,omitempty"`
	ProductTitle      string     `json:"productTitle"`
	VariantName       string     `json:"variantName"`
	SKU               string     `json:"sku"`
	Quantity          int        `json:"quantity"`
	Reserved          int        `json:"reserved"`
	Available         int        `json:"available"`
	LowStockThreshold int        `json:"lowStockThreshold"`
	TrackInventory    bool       `json:"trackInventory"`
	AllowBackorder    bool       `json:"allowBackorder"`
	LastRestockedAt   *time.Time `json:"lastRestockedAt,omitempty"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// ListResult is one page of stock records.
type ListResult = pagination.Result[StockListItem]

// HistoryResult is one page of ledger rows, newest first.
type HistoryResult = pagination.Result[models.StockAdjustment]
