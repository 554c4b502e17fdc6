package movements

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bq "github.com/angelmondragon/stockledger/pkg/bigquery"
	"github.com/angelmondragon/stockledger/pkg/enums"
	"github.com/angelmondragon/stockledger/pkg/logger"
	"github.com/angelmondragon/stockledger/pkg/outbox"
	"github.com/angelmondragon/stockledger/pkg/outbox/idempotency"
	"github.com/angelmondragon/stockledger/pkg/outbox/payloads"
)

type memoryStore struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (m *memoryStore) Get(context.Context, string) (string, error) { return "", nil }

func (m *memoryStore) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys == nil {
		m.keys = map[string]bool{}
	}
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "sl:idempotency:" + scope + ":" + id
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.keys, k)
	}
	return nil
}

type recordingSink struct {
	rows []bq.StockMovementRow
	err  error
}

func (r *recordingSink) InsertMovements(_ context.Context, rows []bq.StockMovementRow) error {
	if r.err != nil {
		return r.err
	}
	r.rows = append(r.rows, rows...)
	return nil
}

func newTestConsumer(t *testing.T, sink *recordingSink) *Consumer {
	t.Helper()
	manager, err := idempotency.NewManager(&memoryStore{}, time.Hour)
	require.NoError(t, err)
	c, err := NewConsumer(ConsumerParams{
		Subscription: noopSubscription{},
		Sink:         sink,
		Idempotency:  manager,
		Logger:       logger.New(logger.Options{ServiceName: "movements-test", Output: io.Discard}),
		Now:          func() time.Time { return time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return c
}

func envelopeFor(t *testing.T, data any, actor *uuid.UUID) (uuid.UUID, []byte) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	env := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Date(2025, 3, 1, 9, 59, 0, 0, time.UTC),
		Data:       raw,
	}
	if actor != nil {
		env.Actor = &outbox.ActorRef{UserID: *actor}
	}
	body, err := json.Marshal(env)
	require.NoError(t, err)
	return uuid.MustParse(env.EventID), body
}

func attrs(eventType enums.OutboxEventType) map[string]string {
	return map[string]string{"event_type": string(eventType)}
}

func TestConsumerRecordsAdjustment(t *testing.T) {
	sink := &recordingSink{}
	c := newTestConsumer(t, sink)
	actor := uuid.New()
	payload := payloads.InventoryAdjustedEvent{
		StockRecordID:    uuid.New(),
		ProductVariantID: uuid.New(),
		AdjustmentID:     uuid.New(),
		QuantityChange:   -7,
		Reason:           enums.AdjustmentReasonDamage,
		After:            payloads.StockSnapshot{Quantity: 13, Reserved: 3, Available: 10},
	}
	eventID, body := envelopeFor(t, payload, &actor)

	res := c.process(context.Background(), "m-1", attrs(enums.EventInventoryAdjusted), body)
	assert.False(t, res.nack)
	require.Len(t, sink.rows, 1)

	row := sink.rows[0]
	assert.Equal(t, eventID.String(), row.EventID)
	assert.Equal(t, int64(-7), row.QuantityChange)
	assert.Zero(t, row.ReservedChange)
	assert.Equal(t, int64(10), row.AvailableAfter)
	assert.Equal(t, "damage", row.Reason.StringVal)
	assert.Equal(t, actor.String(), row.ActorUserID.StringVal)
	assert.Equal(t, payload.ProductVariantID.String(), row.ProductVariantID)
}

func TestConsumerDeduplicatesRedelivery(t *testing.T) {
	sink := &recordingSink{}
	c := newTestConsumer(t, sink)
	_, body := envelopeFor(t, payloads.InventoryReservationEvent{StockRecordID: uuid.New(), Quantity: 2}, nil)

	assert.False(t, c.process(context.Background(), "m-1", attrs(enums.EventInventoryReserved), body).nack)
	assert.False(t, c.process(context.Background(), "m-2", attrs(enums.EventInventoryReserved), body).nack)
	require.Len(t, sink.rows, 1)
	assert.Equal(t, int64(2), sink.rows[0].ReservedChange)
}

func TestConsumerNacksAndAllowsRetryWhenSinkFails(t *testing.T) {
	sink := &recordingSink{err: errors.New("bigquery unavailable")}
	c := newTestConsumer(t, sink)
	_, body := envelopeFor(t, payloads.InventoryReservationEvent{StockRecordID: uuid.New(), Quantity: 4}, nil)

	assert.True(t, c.process(context.Background(), "m-1", attrs(enums.EventInventoryReleased), body).nack)

	sink.err = nil
	assert.False(t, c.process(context.Background(), "m-1", attrs(enums.EventInventoryReleased), body).nack)
	require.Len(t, sink.rows, 1)
	assert.Equal(t, int64(-4), sink.rows[0].ReservedChange)
}

func TestConsumerAcksPoisonMessages(t *testing.T) {
	sink := &recordingSink{}
	c := newTestConsumer(t, sink)

	cases := map[string]struct {
		attrs map[string]string
		body  []byte
	}{
		"foreign event":   {attrs: attrs("order_created"), body: []byte(`{}`)},
		"bad envelope":    {attrs: attrs(enums.EventInventoryAdjusted), body: []byte(`not json`)},
		"bad event id":    {attrs: attrs(enums.EventInventoryAdjusted), body: []byte(`{"version":1,"eventId":"nope","data":{}}`)},
		"unknown version": {attrs: attrs(enums.EventInventoryAdjusted), body: []byte(`{"version":9,"eventId":"` + uuid.NewString() + `","data":{}}`)},
	}
	for name, tc := range cases {
		res := c.process(context.Background(), name, tc.attrs, tc.body)
		assert.False(t, res.nack, name)
	}
	assert.Empty(t, sink.rows)
}

func TestProjectInitialized(t *testing.T) {
	env := outbox.PayloadEnvelope{EventID: uuid.NewString(), OccurredAt: time.Now()}
	row, err := Project(enums.EventInventoryInitialized, env, payloads.InventoryInitializedEvent{
		StockRecordID: uuid.New(),
		After:         payloads.StockSnapshot{Quantity: 12, Available: 12},
	}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(12), row.QuantityChange)
	assert.Equal(t, string(enums.AdjustmentReasonInitialStock), row.Reason.StringVal)
	assert.False(t, row.ActorUserID.Valid)

	empty, err := Project(enums.EventInventoryInitialized, env, payloads.InventoryInitializedEvent{}, time.Now())
	require.NoError(t, err)
	assert.False(t, empty.Reason.Valid)

	_, err = Project(enums.EventInventoryAdjusted, env, "garbage", time.Now())
	require.Error(t, err)
}

type noopSubscription struct{}

func (noopSubscription) Receive(ctx context.Context, _ func(context.Context, *pubsub.Message)) error {
	<-ctx.Done()
	return nil
}
