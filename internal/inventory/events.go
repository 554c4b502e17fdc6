package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockledger/pkg/db/models"
	"github.com/angelmondragon/stockledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockledger/pkg/errors"
	"github.com/angelmondragon/stockledger/pkg/outbox"
	"github.com/angelmondragon/stockledger/pkg/outbox/payloads"
)

func snapshot(r *models.StockRecord) payloads.StockSnapshot {
	return payloads.StockSnapshot{
		Quantity:  r.Quantity,
		Reserved:  r.Reserved,
		Available: r.Available,
	}
}

func actorRef(id *uuid.UUID) *outbox.ActorRef {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	return &outbox.ActorRef{UserID: *id}
}

func stockEvent(eventType enums.OutboxEventType, r *models.StockRecord, actor *uuid.UUID, data any) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateStockRecord,
		AggregateID:   r.ID,
		Actor:         actorRef(actor),
		Data:          data,
	}
}

func reservationEvent(eventType enums.OutboxEventType, r *models.StockRecord, qty int, actor *uuid.UUID) outbox.DomainEvent {
	return stockEvent(eventType, r, actor, payloads.InventoryReservationEvent{
		StockRecordID:    r.ID,
		ProductVariantID: r.ProductVariantID,
		Quantity:         qty,
		Backordered:      r.Available < 0,
		After:            snapshot(r),
	})
}

func adjustedEvent(r *models.StockRecord, adj *models.StockAdjustment) outbox.DomainEvent {
	return stockEvent(enums.EventInventoryAdjusted, r, adj.ActorUserID, payloads.InventoryAdjustedEvent{
		StockRecordID:    r.ID,
		ProductVariantID: r.ProductVariantID,
		AdjustmentID:     adj.ID,
		QuantityChange:   adj.QuantityChange,
		Reason:           adj.Reason,
		ActorUserID:      adj.ActorUserID,
		After:            snapshot(r),
	})
}

func initializedEvent(r *models.StockRecord, actor *uuid.UUID) outbox.DomainEvent {
	return stockEvent(enums.EventInventoryInitialized, r, actor, payloads.InventoryInitializedEvent{
		StockRecordID:     r.ID,
		ProductVariantID:  r.ProductVariantID,
		LowStockThreshold: r.LowStockThreshold,
		TrackInventory:    r.TrackInventory,
		AllowBackorder:    r.AllowBackorder,
		After:             snapshot(r),
	})
}

// lockRecord loads the variant's record for update and maps a missing row to NotFound.
func lockRecord(ctx context.Context, store StockRecordStore, variantID uuid.UUID) (*models.StockRecord, error) {
	record, err := store.FindByVariantForUpdate(ctx, variantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "stock record not found for variant")
		}
		return nil, err
	}
	return record, nil
}
