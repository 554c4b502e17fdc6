package main

import (
	"strconv"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/stockledger/pkg/db/models"
	"github.com/angelmondragon/stockledger/pkg/outbox/payloads"
	"github.com/angelmondragon/stockledger/pkg/outbox/registry"
)

// buildMessage wraps the stored envelope unchanged. The ordering key is the stock
// record, so subscribers see each record's movements in commit order; the extra
// attributes let subscriptions filter without decoding the body.
func buildMessage(event models.OutboxEvent, resolved *registry.ResolvedEvent) *gcppubsub.Message {
	attrs := map[string]string{
		"event_id":       resolved.Envelope.EventID,
		"event_type":     string(event.EventType),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID.String(),
		"created_at":     event.CreatedAt.Format(time.RFC3339Nano),
		"schema_version": strconv.Itoa(resolved.Envelope.Version),
	}

	switch p := resolved.Payload.(type) {
	case *payloads.InventoryInitializedEvent:
		setIDs(attrs, p.StockRecordID, p.ProductVariantID)
	case *payloads.InventoryAdjustedEvent:
		setIDs(attrs, p.StockRecordID, p.ProductVariantID)
		attrs["reason"] = string(p.Reason)
		attrs["quantity_change"] = strconv.Itoa(p.QuantityChange)
	case *payloads.InventoryReservationEvent:
		setIDs(attrs, p.StockRecordID, p.ProductVariantID)
		attrs["quantity"] = strconv.Itoa(p.Quantity)
		if p.Backordered {
			attrs["backordered"] = "true"
		}
	}

	return &gcppubsub.Message{
		Data:        event.Payload,
		Attributes:  attrs,
		OrderingKey: event.AggregateID.String(),
	}
}

func setIDs(attrs map[string]string, recordID, variantID uuid.UUID) {
	if recordID != uuid.Nil {
		attrs["stock_record_id"] = recordID.String()
	}
	if variantID != uuid.Nil {
		attrs["product_variant_id"] = variantID.String()
	}
}
