// Package movements streams committed inventory events into the BigQuery
// stock_movements table.
package movements

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	bq "github.com/angelmondragon/stockledger/pkg/bigquery"
	"github.com/angelmondragon/stockledger/pkg/enums"
	"github.com/angelmondragon/stockledger/pkg/logger"
	"github.com/angelmondragon/stockledger/pkg/outbox"
	"github.com/angelmondragon/stockledger/pkg/outbox/idempotency"
	"github.com/angelmondragon/stockledger/pkg/outbox/registry"
)

const consumerName = "stock-movements"

type subscription interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

type movementSink interface {
	InsertMovements(ctx context.Context, rows []bq.StockMovementRow) error
}

type guard interface {
	Guard(ctx context.Context, consumer string, eventID uuid.UUID, fn func(context.Context) error) error
}

// ConsumerParams wires the consumer's collaborators.
type ConsumerParams struct {
	Subscription subscription
	Sink         movementSink
	Idempotency  guard
	Decoders     *registry.DecoderRegistry
	Logger       *logger.Logger
	Now          func() time.Time
}

// Consumer acks poison messages, nacks transient failures, and writes each
// event id at most once.
type Consumer struct {
	sub      subscription
	sink     movementSink
	guard    guard
	decoders *registry.DecoderRegistry
	logg     *logger.Logger
	now      func() time.Time
}

func NewConsumer(p ConsumerParams) (*Consumer, error) {
	if p.Subscription == nil {
		return nil, fmt.Errorf("inventory subscription required")
	}
	if p.Sink == nil {
		return nil, fmt.Errorf("movement sink required")
	}
	if p.Idempotency == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	decoders := p.Decoders
	if decoders == nil {
		decoders = NewDecoders()
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}
	return &Consumer{
		sub:      p.Subscription,
		sink:     p.Sink,
		guard:    p.Idempotency,
		decoders: decoders,
		logg:     p.Logger,
		now:      now,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg.ID, msg.Attributes, msg.Data).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	nack bool
}

var ack = processResult{}

func (c *Consumer) process(ctx context.Context, messageID string, attrs map[string]string, data []byte) processResult {
	eventType := enums.OutboxEventType(attrs["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": messageID,
		"event_type": string(eventType),
	})

	if !eventType.IsValid() {
		c.logg.Info(logCtx, "skipping non-inventory event")
		return ack
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return ack
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return ack
	}
	logCtx = c.logg.WithField(logCtx, "event_id", eventID.String())

	payload, err := c.decoders.Decode(eventType, envelope.Version, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode payload", err)
		return ack
	}
	row, err := Project(eventType, envelope, payload, c.now())
	if err != nil {
		c.logg.Error(logCtx, "failed to project movement", err)
		return ack
	}

	err = c.guard.Guard(ctx, consumerName, eventID, func(ctx context.Context) error {
		return c.sink.InsertMovements(ctx, []bq.StockMovementRow{row})
	})
	switch {
	case errors.Is(err, idempotency.ErrAlreadyProcessed):
		c.logg.Info(logCtx, "event already processed")
		return ack
	case err != nil:
		c.logg.Error(logCtx, "failed to record stock movement", err)
		return processResult{nack: true}
	}
	c.logg.Debug(logCtx, "stock movement recorded")
	return ack
}
