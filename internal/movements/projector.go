package movements

import (
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"

	bq "github.com/angelmondragon/stockledger/pkg/bigquery"
	"github.com/angelmondragon/stockledger/pkg/enums"
	"github.com/angelmondragon/stockledger/pkg/outbox"
	"github.com/angelmondragon/stockledger/pkg/outbox/payloads"
	"github.com/angelmondragon/stockledger/pkg/outbox/registry"
)

const payloadVersion = 1

// NewDecoders registers the inventory payload decoders the consumer understands.
func NewDecoders() *registry.DecoderRegistry {
	reg := registry.NewDecoderRegistry()
	reg.Register(enums.EventInventoryInitialized, payloadVersion, decodeInto[payloads.InventoryInitializedEvent])
	reg.Register(enums.EventInventoryAdjusted, payloadVersion, decodeInto[payloads.InventoryAdjustedEvent])
	reg.Register(enums.EventInventoryReserved, payloadVersion, decodeInto[payloads.InventoryReservationEvent])
	reg.Register(enums.EventInventoryReleased, payloadVersion, decodeInto[payloads.InventoryReservationEvent])
	return reg
}

func decodeInto[T any](payload json.RawMessage) (interface{}, error) {
	var decoded T
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, err
	}
	return decoded, nil
}

// Project turns one decoded inventory event into its stock_movements row.
func Project(eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope, payload interface{}, ingestedAt time.Time) (bq.StockMovementRow, error) {
	row := bq.StockMovementRow{
		EventID:    envelope.EventID,
		EventType:  string(eventType),
		OccurredAt: envelope.OccurredAt.UTC(),
		IngestedAt: ingestedAt.UTC(),
	}
	if envelope.Actor != nil && envelope.Actor.UserID != uuid.Nil {
		row.ActorUserID = nullString(envelope.Actor.UserID.String())
	}

	var after payloads.StockSnapshot
	switch p := payload.(type) {
	case payloads.InventoryInitializedEvent:
		row.StockRecordID = p.StockRecordID.String()
		row.ProductVariantID = p.ProductVariantID.String()
		row.QuantityChange = int64(p.After.Quantity)
		if p.After.Quantity > 0 {
			row.Reason = nullString(string(enums.AdjustmentReasonInitialStock))
		}
		after = p.After
	case payloads.InventoryAdjustedEvent:
		row.StockRecordID = p.StockRecordID.String()
		row.ProductVariantID = p.ProductVariantID.String()
		row.QuantityChange = int64(p.QuantityChange)
		row.Reason = nullString(string(p.Reason))
		if !row.ActorUserID.Valid && p.ActorUserID != nil {
			row.ActorUserID = nullString(p.ActorUserID.String())
		}
		after = p.After
	case payloads.InventoryReservationEvent:
		row.StockRecordID = p.StockRecordID.String()
		row.ProductVariantID = p.ProductVariantID.String()
		switch eventType {
		case enums.EventInventoryReserved:
			row.ReservedChange = int64(p.Quantity)
		case enums.EventInventoryReleased:
			row.ReservedChange = -int64(p.Quantity)
		default:
			return bq.StockMovementRow{}, fmt.Errorf("reservation payload on %s", eventType)
		}
		after = p.After
	default:
		return bq.StockMovementRow{}, fmt.Errorf("unsupported payload %T for %s", payload, eventType)
	}

	row.QuantityAfter = int64(after.Quantity)
	row.ReservedAfter = int64(after.Reserved)
	row.AvailableAfter = int64(after.Available)
	return row, nil
}

func nullString(v string) bigquery.NullString {
	return bigquery.NullString{StringVal: v, Valid: v != ""}
}
