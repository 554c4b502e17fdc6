package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockledger/pkg/db/models"
	pkgerrors "github.com/angelmondragon/stockledger/pkg/errors"
)

// AvailabilityResult answers whether a quantity can be claimed right now.
type AvailabilityResult struct {
	Available    bool `json:"available"`
	CurrentStock int  `json:"currentStock"`
}

// ComputeAvailable is the canonical available formula.
func ComputeAvailable(quantity, reserved int) int {
	return quantity - reserved
}

// Evaluate decides availability for an already loaded record. A nil record is never available.
func Evaluate(record *models.StockRecord, requested int) AvailabilityResult {
	if record == nil {
		return AvailabilityResult{Available: false, CurrentStock: 0}
	}
	if !record.TrackInventory {
		return AvailabilityResult{Available: true, CurrentStock: record.Quantity}
	}
	return AvailabilityResult{
		Available:    record.Available >= requested || record.AllowBackorder,
		CurrentStock: record.Available,
	}
}

// AvailabilityEngine answers read-only availability checks.
type AvailabilityEngine struct {
	store StockRecordStore
}

func NewAvailabilityEngine(store StockRecordStore) *AvailabilityEngine {
	return &AvailabilityEngine{store: store}
}

func (e *AvailabilityEngine) CheckAvailability(ctx context.Context, variantID uuid.UUID, requested int) (AvailabilityResult, error) {
	if variantID == uuid.Nil {
		return AvailabilityResult{}, pkgerrors.New(pkgerrors.CodeValidation, "productVariantId is required")
	}
	if requested < 1 {
		return AvailabilityResult{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	record, err := e.store.FindByVariant(ctx, variantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Evaluate(nil, requested), nil
		}
		return AvailabilityResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock record")
	}
	return Evaluate(record, requested), nil
}
