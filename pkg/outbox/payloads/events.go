package payloads

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/stockledger/pkg/enums"
)

// StockSnapshot is the post-mutation position carried by every inventory event.
type StockSnapshot struct {
	Quantity  int `json:"quantity"`
	Reserved  int `json:"reserved"`
	Available int `json:"available"`
}

// InventoryInitializedEvent is emitted when a stock record is created explicitly.
type InventoryInitializedEvent struct {
	StockRecordID     uuid.UUID     `json:"stockRecordId"`
	ProductVariantID  uuid.UUID     `json:"productVariantId"`
	LowStockThreshold int           `json:"lowStockThreshold"`
	TrackInventory    bool          `json:"trackInventory"`
	AllowBackorder    bool          `json:"allowBackorder"`
	After             StockSnapshot `json:"after"`
}

// InventoryAdjustedEvent mirrors one adjustment ledger row.
type InventoryAdjustedEvent struct {
	StockRecordID    uuid.UUID              `json:"stockRecordId"`
	ProductVariantID uuid.UUID              `json:"productVariantId"`
	AdjustmentID     uuid.UUID              `json:"adjustmentId"`
	QuantityChange   int                    `json:"quantityChange"`
	Reason           enums.AdjustmentReason `json:"reason"`
	ActorUserID      *uuid.UUID             `json:"actorUserId,omitempty"`
	After            StockSnapshot          `json:"after"`
}

// InventoryReservationEvent describes a reserve or a release of stock.
type InventoryReservationEvent struct {
	StockRecordID    uuid.UUID     `json:"stockRecordId"`
	ProductVariantID uuid.UUID     `json:"productVariantId"`
	Quantity         int           `json:"quantity"`
	Backordered      bool          `json:"backordered,omitempty"`
	After            StockSnapshot `json:"after"`
}
