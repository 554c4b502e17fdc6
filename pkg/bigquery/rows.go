package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
)

// StockMovementRow is the analytics projection of one inventory event.
type StockMovementRow struct {
	EventID          string              `bigquery:"event_id"`
	EventType        string              `bigquery:"event_type"`
	StockRecordID    string              `bigquery:"stock_record_id"`
	ProductVariantID string              `bigquery:"product_variant_id"`
	QuantityChange   int64               `bigquery:"quantity_change"`
	ReservedChange   int64               `bigquery:"reserved_change"`
	QuantityAfter    int64               `bigquery:"quantity_after"`
	ReservedAfter    int64               `bigquery:"reserved_after"`
	AvailableAfter   int64               `bigquery:"available_after"`
	Reason           bigquery.NullString `bigquery:"reason"`
	ActorUserID      bigquery.NullString `bigquery:"actor_user_id"`
	OccurredAt       time.Time           `bigquery:"occurred_at"`
	IngestedAt       time.Time           `bigquery:"ingested_at"`
}
