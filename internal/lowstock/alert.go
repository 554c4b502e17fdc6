// Package lowstock raises out-of-band alerts when a tracked stock record drops
// into its low-stock band. Alerts never travel back onto the mutation path.
package lowstock

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockledger/pkg/db/models"
	"github.com/angelmondragon/stockledger/pkg/enums"
)

// Alert is the snapshot handed from the mutation path to the dispatch workers.
type Alert struct {
	StockRecordID uuid.UUID
	VariantID     uuid.UUID
	Available     int
	Threshold     int
	RaisedAt      time.Time
}

func alertFromRecord(record models.StockRecord, now time.Time) Alert {
	return Alert{
		StockRecordID: record.ID,
		VariantID:     record.ProductVariantID,
		Available:     record.Available,
		Threshold:     record.LowStockThreshold,
		RaisedAt:      now,
	}
}

// ActorResolver finds the users who should hear about an alert.
type ActorResolver interface {
	ActorsWithPermission(ctx context.Context, permission enums.Permission) ([]uuid.UUID, error)
}

// Dispatcher delivers one notification to one actor.
type Dispatcher interface {
	Send(ctx context.Context, actorID uuid.UUID, title, message string, metadata map[string]any) error
}

// Cooldown suppresses repeat alerts for a variant; *redis.Client satisfies it.
type Cooldown interface {
	LowStockKey(variantID string) string
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
}
