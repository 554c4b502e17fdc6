package inventory

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/stockledger/pkg/db/models"
	"github.com/angelmondragon/stockledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockledger/pkg/errors"
)

const (
	opReserve = "reserve"
	opRelease = "release"
)

// ReservationEngine claims and unclaims stock for order lines. Callers pair every
// release with an earlier reserve; per-order provenance is not tracked here.
type ReservationEngine struct {
	store  StockRecordStore
	events EventEmitter
	alerts AlertSink
	mut    *mutator
}

// Reserve adds qty to reserved. Untracked records are returned unchanged. Without
// backorder a reservation past zero availability fails with INSUFFICIENT_INVENTORY.
func (e *ReservationEngine) Reserve(ctx context.Context, in ReserveInput) (*models.StockRecord, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var (
		result  models.StockRecord
		changed bool
	)
	err := e.mut.run(ctx, opReserve, func(tx *gorm.DB) error {
		store := e.store.WithTx(tx)
		record, err := lockRecord(ctx, store, in.VariantID)
		if err != nil {
			return err
		}
		if !record.TrackInventory {
			result, changed = *record, false
			return nil
		}

		newAvailable := record.Available - in.Quantity
		if outOfRange(record.Reserved+in.Quantity) || outOfRange(newAvailable) {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "reservation would exceed the maximum stock level").
				WithDetails(map[string]int{"reserved": record.Reserved, "requested": in.Quantity})
		}
		if newAvailable < 0 && !record.AllowBackorder {
			return pkgerrors.New(pkgerrors.CodeInsufficient, "insufficient inventory").
				WithDetails(InsufficientDetails{Available: record.Available, Requested: in.Quantity})
		}

		record.Reserved += in.Quantity
		record.Available = newAvailable
		if err := store.Save(ctx, record); err != nil {
			return err
		}
		if err := e.events.Emit(ctx, tx, reservationEvent(enums.EventInventoryReserved, record, in.Quantity, in.ActorID)); err != nil {
			return err
		}
		result, changed = *record, true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		e.alerts.MaybeAlert(ctx, result)
	}
	return &result, nil
}

// Release returns qty from reserved to available, tracked or not, so claims made
// before tracking was switched off can still be returned. It never alerts since
// availability only grows.
func (e *ReservationEngine) Release(ctx context.Context, in ReleaseInput) (*models.StockRecord, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var result models.StockRecord
	err := e.mut.run(ctx, opRelease, func(tx *gorm.DB) error {
		store := e.store.WithTx(tx)
		record, err := lockRecord(ctx, store, in.VariantID)
		if err != nil {
			return err
		}
		if in.Quantity > record.Reserved {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "cannot release more than reserved").
				WithDetails(map[string]int{"reserved": record.Reserved, "requested": in.Quantity})
		}

		record.Reserved -= in.Quantity
		record.Available += in.Quantity
		if err := store.Save(ctx, record); err != nil {
			return err
		}
		if err := e.events.Emit(ctx, tx, reservationEvent(enums.EventInventoryReleased, record, in.Quantity, in.ActorID)); err != nil {
			return err
		}
		result = *record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}
