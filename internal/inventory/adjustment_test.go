package inventory

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/stockledger/pkg/db/models"
	"github.com/angelmondragon/stockledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockledger/pkg/errors"
	"github.com/angelmondragon/stockledger/pkg/outbox"
	"github.com/angelmondragon/stockledger/pkg/outbox/payloads"
)

func TestAdjustBelowZeroIsRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	variant := env.seed(t, 100, 0, 20, false)
	before := env.load(t, variant)

	_, _, err := env.svc.Adjust(ctx, AdjustInput{
		VariantID:      variant,
		QuantityChange: -200,
		Reason:         enums.AdjustmentReasonShrinkage,
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInvalidState, typed.Code())
	assert.Contains(t, typed.Message(), "negative inventory")

	after := env.load(t, variant)
	assert.Equal(t, before.Quantity, after.Quantity)
	assert.Equal(t, before.Version, after.Version)
	assert.Empty(t, env.adjustments(t, after.ID))
	assert.Empty(t, env.outboxEvents(t))
}

func TestAdjustRestockAppendsLedgerRow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	variant := env.seed(t, 100, 10, 20, false)
	actor := uuid.New()
	notes := "pallet 7"

	record, adj, err := env.svc.Adjust(ctx, AdjustInput{
		VariantID:      variant,
		QuantityChange: 50,
		Reason:         enums.AdjustmentReasonRestock,
		Notes:          &notes,
		ActorID:        &actor,
	})
	require.NoError(t, err)
	assert.Equal(t, 150, record.Quantity)
	assert.Equal(t, 140, record.Available)
	require.NotNil(t, record.LastRestockedAt)
	assert.Equal(t, 50, adj.QuantityChange)

	rows := env.adjustments(t, record.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, 50, rows[0].QuantityChange)
	assert.Equal(t, enums.AdjustmentReasonRestock, rows[0].Reason)
	require.NotNil(t, rows[0].Notes)
	assert.Equal(t, notes, *rows[0].Notes)
	require.NotNil(t, rows[0].ActorUserID)
	assert.Equal(t, actor, *rows[0].ActorUserID)

	stored := env.load(t, variant)
	require.NotNil(t, stored.LastRestockedAt)
	requireInvariant(t, stored)

	events := env.outboxEvents(t)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventInventoryAdjusted, events[0].EventType)
	var envelope outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(events[0].Payload, &envelope))
	var payload payloads.InventoryAdjustedEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &payload))
	assert.Equal(t, rows[0].ID, payload.AdjustmentID)
	assert.Equal(t, 150, payload.After.Quantity)
	require.NotNil(t, envelope.Actor)
	assert.Equal(t, actor, envelope.Actor.UserID)
}

func TestAdjustDecreaseKeepsRestockTimestamp(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	variant := env.seed(t, 10, 0, 0, false)

	_, _, err := env.svc.Adjust(ctx, AdjustInput{VariantID: variant, QuantityChange: 5, Reason: enums.AdjustmentReasonRestock})
	require.NoError(t, err)
	restocked := env.load(t, variant).LastRestockedAt
	require.NotNil(t, restocked)

	_, _, err = env.svc.Adjust(ctx, AdjustInput{VariantID: variant, QuantityChange: -3, Reason: enums.AdjustmentReasonDamage})
	require.NoError(t, err)
	after := env.load(t, variant)
	require.NotNil(t, after.LastRestockedAt)
	assert.True(t, restocked.Equal(*after.LastRestockedAt))
	assert.Equal(t, 12, after.Quantity)
}

func TestAdjustCannotDropBelowReservedEvenWithBackorder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	variant := env.seed(t, 10, 8, 0, true)

	_, _, err := env.svc.Adjust(ctx, AdjustInput{VariantID: variant, QuantityChange: -5, Reason: enums.AdjustmentReasonRecount})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInvalidState, typed.Code())
	assert.Equal(t, "reserved stock exceeds total", typed.Message())
	assert.Equal(t, 10, env.load(t, variant).Quantity)
}

func TestAdjustLazilyCreatesRecord(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	variant := uuid.New()

	record, _, err := env.svc.Adjust(ctx, AdjustInput{VariantID: variant, QuantityChange: 7, Reason: enums.AdjustmentReasonRestock})
	require.NoError(t, err)
	assert.Equal(t, 7, record.Quantity)
	assert.Equal(t, 7, record.Available)
	assert.Equal(t, 0, record.Reserved)
	assert.True(t, record.TrackInventory)

	stored := env.load(t, variant)
	assert.Equal(t, record.ID, stored.ID)
}

func TestAdjustRejectedOnMissingRecordCreatesNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	variant := uuid.New()

	_, _, err := env.svc.Adjust(ctx, AdjustInput{VariantID: variant, QuantityChange: -1, Reason: enums.AdjustmentReasonShrinkage})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidState))

	var count int64
	require.NoError(t, env.conn.Model(&models.StockRecord{}).Where("product_variant_id = ?", variant).Count(&count).Error)
	assert.Zero(t, count, "rolled back lazy create")
}

func TestAdjustValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := map[string]AdjustInput{
		"zero delta":     {VariantID: uuid.New(), QuantityChange: 0, Reason: enums.AdjustmentReasonRestock},
		"missing reason": {VariantID: uuid.New(), QuantityChange: 1},
		"nil variant":    {QuantityChange: 1, Reason: enums.AdjustmentReasonRestock},
		"oversized":      {VariantID: uuid.New(), QuantityChange: 3_000_000_000, Reason: enums.AdjustmentReasonRestock},
	}
	for name, in := range cases {
		_, _, err := env.svc.Adjust(ctx, in)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), name)
	}
}

func TestAdjustPastStockCeilingIsInvalidState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	variant := env.seed(t, maxStockUnits-5, 0, 0, false)

	_, _, err := env.svc.Adjust(ctx, AdjustInput{VariantID: variant, QuantityChange: 10, Reason: enums.AdjustmentReasonRestock})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidState))

	stored := env.load(t, variant)
	assert.Equal(t, maxStockUnits-5, stored.Quantity)
	assert.Empty(t, env.adjustments(t, stored.ID))
}

func TestAdjustmentAuditCompleteness(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	variant := uuid.New()

	deltas := []int{40, -5, 12, -20, 3, -30}
	var recordID uuid.UUID
	for _, d := range deltas {
		reason := enums.AdjustmentReasonRestock
		if d < 0 {
			reason = enums.AdjustmentReasonShrinkage
		}
		record, _, err := env.svc.Adjust(ctx, AdjustInput{VariantID: variant, QuantityChange: d, Reason: reason})
		require.NoError(t, err)
		recordID = record.ID
	}
	// -30 from 30 lands on exactly zero; one more unit down must fail without a ledger row.
	_, _, err := env.svc.Adjust(ctx, AdjustInput{VariantID: variant, QuantityChange: -1, Reason: enums.AdjustmentReasonShrinkage})
	require.Error(t, err)

	rows := env.adjustments(t, recordID)
	require.Len(t, rows, len(deltas))
	sum := 0
	for i, row := range rows {
		assert.Equal(t, deltas[i], row.QuantityChange)
		sum += row.QuantityChange
	}
	assert.Equal(t, env.load(t, variant).Quantity, sum)

	sums, err := NewLedgerRepository(env.conn).SumByRecord(ctx, []uuid.UUID{recordID})
	require.NoError(t, err)
	assert.Equal(t, int64(sum), sums[recordID])
}

func TestInitializeCreatesRecordAndOpeningLedgerRow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	variant := uuid.New()

	record, err := env.svc.Initialize(ctx, InitializeInput{
		VariantID:         variant,
		Quantity:          12,
		LowStockThreshold: 15,
		TrackInventory:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, 12, record.Available)
	assert.Equal(t, 1, env.alerts.fired(), "opening stock already under threshold")

	rows := env.adjustments(t, record.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.AdjustmentReasonInitialStock, rows[0].Reason)

	_, err = env.svc.Initialize(ctx, InitializeInput{VariantID: variant, TrackInventory: true})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	events := env.outboxEvents(t)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventInventoryInitialized, events[0].EventType)
}

func TestInitializeUntrackedPersistsFalse(t *testing.T) {
	env := newTestEnv(t)
	variant := uuid.New()

	_, err := env.svc.Initialize(context.Background(), InitializeInput{VariantID: variant, TrackInventory: false})
	require.NoError(t, err)
	assert.False(t, env.load(t, variant).TrackInventory)
}

func TestUpdateSettings(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	variant := env.seed(t, 10, 0, 0, false)

	threshold := 12
	record, err := env.svc.UpdateSettings(ctx, UpdateSettingsInput{VariantID: variant, LowStockThreshold: &threshold})
	require.NoError(t, err)
	assert.Equal(t, 12, record.LowStockThreshold)
	assert.Equal(t, 1, env.alerts.fired())

	_, err = env.svc.UpdateSettings(ctx, UpdateSettingsInput{VariantID: variant})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = env.svc.UpdateSettings(ctx, UpdateSettingsInput{VariantID: uuid.New(), LowStockThreshold: &threshold})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestUpdateSettingsRefusesToDisableBackorderWhileNegative(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	variant := env.seed(t, 2, 0, 0, true)
	_, err := env.svc.Reserve(ctx, ReserveInput{VariantID: variant, Quantity: 5})
	require.NoError(t, err)

	off := false
	_, err = env.svc.UpdateSettings(ctx, UpdateSettingsInput{VariantID: variant, AllowBackorder: &off})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidState))
	assert.True(t, env.load(t, variant).AllowBackorder)
}
