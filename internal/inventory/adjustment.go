package inventory

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/stockledger/pkg/db"
	"github.com/angelmondragon/stockledger/pkg/db/models"
	"github.com/angelmondragon/stockledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockledger/pkg/errors"
)

const (
	opAdjust     = "adjust"
	opInitialize = "initialize"
	opSettings   = "settings"
)

// AdjustmentEngine owns every change to on-hand quantity. Each change writes the
// record and exactly one ledger row in the same transaction.
type AdjustmentEngine struct {
	store  StockRecordStore
	ledger LedgerStore
	events EventEmitter
	alerts AlertSink
	mut    *mutator
	now    func() time.Time
}

// Adjust applies a signed delta, creating a zeroed record on first use. Adjustments
// never produce negative availability, whatever the backorder policy says.
func (e *AdjustmentEngine) Adjust(ctx context.Context, in AdjustInput) (*models.StockRecord, *models.StockAdjustment, error) {
	if err := in.validate(); err != nil {
		return nil, nil, err
	}

	var (
		result     models.StockRecord
		adjustment models.StockAdjustment
	)
	err := e.mut.run(ctx, opAdjust, func(tx *gorm.DB) error {
		store := e.store.WithTx(tx)
		record, err := store.FindByVariantForUpdate(ctx, in.VariantID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			record, err = e.createZeroed(ctx, store, in)
		}
		if err != nil {
			return err
		}

		newQuantity := record.Quantity + in.QuantityChange
		newAvailable := ComputeAvailable(newQuantity, record.Reserved)
		if newQuantity < 0 {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "adjustment would result in negative inventory").
				WithDetails(map[string]int{"quantity": record.Quantity, "quantityChange": in.QuantityChange})
		}
		if outOfRange(newQuantity) {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "adjustment would exceed the maximum stock level").
				WithDetails(map[string]int{"quantity": record.Quantity, "quantityChange": in.QuantityChange})
		}
		if newAvailable < 0 {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "reserved stock exceeds total").
				WithDetails(map[string]int{"quantity": newQuantity, "reserved": record.Reserved})
		}

		now := e.now()
		record.Quantity = newQuantity
		record.Available = newAvailable
		if in.QuantityChange > 0 {
			record.LastRestockedAt = &now
		}
		if err := store.Save(ctx, record); err != nil {
			return err
		}

		adj := &models.StockAdjustment{
			StockRecordID:  record.ID,
			QuantityChange: in.QuantityChange,
			Reason:         in.Reason,
			Notes:          in.Notes,
			ActorUserID:    in.ActorID,
			CreatedAt:      now,
		}
		if err := e.ledger.WithTx(tx).Append(ctx, adj); err != nil {
			return err
		}
		if err := e.events.Emit(ctx, tx, adjustedEvent(record, adj)); err != nil {
			return err
		}
		result, adjustment = *record, *adj
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	e.alerts.MaybeAlert(ctx, result)
	return &result, &adjustment, nil
}

func (e *AdjustmentEngine) createZeroed(ctx context.Context, store StockRecordStore, in AdjustInput) (*models.StockRecord, error) {
	record := &models.StockRecord{
		ProductVariantID: in.VariantID,
		TrackInventory:   true,
	}
	if err := store.Create(ctx, record); err != nil {
		switch {
		case db.IsUniqueViolation(err, ""):
			return nil, errCreateRace
		case db.IsForeignKeyViolation(err):
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found")
		}
		return nil, err
	}
	return record, nil
}

// Initialize creates the record explicitly, typically when the variant is created.
// Opening stock is written to the ledger as initial_stock so the audit sum holds.
func (e *AdjustmentEngine) Initialize(ctx context.Context, in InitializeInput) (*models.StockRecord, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var result models.StockRecord
	err := e.mut.run(ctx, opInitialize, func(tx *gorm.DB) error {
		store := e.store.WithTx(tx)
		if _, err := store.FindByVariant(ctx, in.VariantID); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "stock record already exists for variant")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		now := e.now()
		record := &models.StockRecord{
			ProductVariantID:  in.VariantID,
			Quantity:          in.Quantity,
			Available:         ComputeAvailable(in.Quantity, 0),
			LowStockThreshold: in.LowStockThreshold,
			TrackInventory:    in.TrackInventory,
			AllowBackorder:    in.AllowBackorder,
		}
		if in.Quantity > 0 {
			record.LastRestockedAt = &now
		}
		if err := store.Create(ctx, record); err != nil {
			switch {
			case db.IsUniqueViolation(err, ""):
				return pkgerrors.New(pkgerrors.CodeConflict, "stock record already exists for variant")
			case db.IsForeignKeyViolation(err):
				return pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found")
			}
			return err
		}

		if in.Quantity > 0 {
			adj := &models.StockAdjustment{
				StockRecordID:  record.ID,
				QuantityChange: in.Quantity,
				Reason:         enums.AdjustmentReasonInitialStock,
				ActorUserID:    in.ActorID,
				CreatedAt:      now,
			}
			if err := e.ledger.WithTx(tx).Append(ctx, adj); err != nil {
				return err
			}
		}
		if err := e.events.Emit(ctx, tx, initializedEvent(record, in.ActorID)); err != nil {
			return err
		}
		result = *record
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.alerts.MaybeAlert(ctx, result)
	return &result, nil
}

// UpdateSettings patches threshold and policy flags. Backorder cannot be switched off
// while the record is backordered.
func (e *AdjustmentEngine) UpdateSettings(ctx context.Context, in UpdateSettingsInput) (*models.StockRecord, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var result models.StockRecord
	err := e.mut.run(ctx, opSettings, func(tx *gorm.DB) error {
		store := e.store.WithTx(tx)
		record, err := lockRecord(ctx, store, in.VariantID)
		if err != nil {
			return err
		}
		if in.LowStockThreshold != nil {
			record.LowStockThreshold = *in.LowStockThreshold
		}
		if in.TrackInventory != nil {
			record.TrackInventory = *in.TrackInventory
		}
		if in.AllowBackorder != nil {
			if !*in.AllowBackorder && record.Available < 0 {
				return pkgerrors.New(pkgerrors.CodeInvalidState, "cannot disable backorder while stock is backordered").
					WithDetails(map[string]int{"available": record.Available})
			}
			record.AllowBackorder = *in.AllowBackorder
		}
		if err := store.Save(ctx, record); err != nil {
			return err
		}
		result = *record
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.alerts.MaybeAlert(ctx, result)
	return &result, nil
}
