package inventory

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockledger/pkg/db"
	"github.com/angelmondragon/stockledger/pkg/db/models"
	"github.com/angelmondragon/stockledger/pkg/logger"
	"github.com/angelmondragon/stockledger/pkg/migrate"
	"github.com/angelmondragon/stockledger/pkg/outbox"
)

type recordingAlerts struct {
	mu      sync.Mutex
	records []models.StockRecord
}

func (r *recordingAlerts) MaybeAlert(_ context.Context, record models.StockRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if record.IsLowStock() {
		r.records = append(r.records, record)
	}
}

func (r *recordingAlerts) fired() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

type testEnv struct {
	conn   *gorm.DB
	svc    Service
	alerts *recordingAlerts
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, migrate.AutoMigrateModels(conn))
	return conn
}

// steppingClock returns strictly increasing UTC times so ledger ordering is deterministic.
func steppingClock() func() time.Time {
	var mu sync.Mutex
	current := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	conn := openTestDB(t)
	logg := logger.New(logger.Options{ServiceName: "inventory-test", Output: io.Discard})
	alerts := &recordingAlerts{}
	svc, err := NewService(ServiceParams{
		DB:         conn,
		Tx:         db.FromGorm(conn),
		Events:     outbox.NewService(outbox.NewRepository(conn), logg),
		Alerts:     alerts,
		Logger:     logg,
		MaxRetries: DefaultMaxRetries,
		Now:        steppingClock(),
	})
	require.NoError(t, err)
	return &testEnv{conn: conn, svc: svc, alerts: alerts}
}

func (e *testEnv) seed(t *testing.T, quantity, reserved, threshold int, backorder bool) uuid.UUID {
	t.Helper()
	variantID := uuid.New()
	record := models.StockRecord{
		ProductVariantID:  variantID,
		Quantity:          quantity,
		Reserved:          reserved,
		Available:         quantity - reserved,
		LowStockThreshold: threshold,
		TrackInventory:    true,
		AllowBackorder:    backorder,
	}
	require.NoError(t, e.conn.Create(&record).Error)
	return variantID
}

func (e *testEnv) load(t *testing.T, variantID uuid.UUID) models.StockRecord {
	t.Helper()
	var record models.StockRecord
	require.NoError(t, e.conn.Where("product_variant_id = ?", variantID).Take(&record).Error)
	return record
}

func (e *testEnv) adjustments(t *testing.T, recordID uuid.UUID) []models.StockAdjustment {
	t.Helper()
	var rows []models.StockAdjustment
	require.NoError(t, e.conn.Where("stock_record_id = ?", recordID).Order("created_at ASC").Find(&rows).Error)
	return rows
}

func (e *testEnv) outboxEvents(t *testing.T) []models.OutboxEvent {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, e.conn.Order("created_at ASC").Find(&rows).Error)
	return rows
}

func requireInvariant(t *testing.T, r models.StockRecord) {
	t.Helper()
	require.GreaterOrEqual(t, r.Quantity, 0)
	require.GreaterOrEqual(t, r.Reserved, 0)
	if !r.AllowBackorder {
		require.Equal(t, r.Quantity-r.Reserved, r.Available)
	}
}
