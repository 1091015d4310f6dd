package subscriptions

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	inats "github.com/krishna-platform/quotad/internal/nats"
)

// Consumer listens for subscription events published by peer instances and
// evicts the local quota caches so tier changes converge across the fleet.
type Consumer struct {
	invalidator Invalidator
	consumerMgr *inats.ConsumerManager
	durable     string
}

// NewConsumer creates a new subscription event Consumer. The durable name
// must be unique per instance so every instance sees every event.
func NewConsumer(invalidator Invalidator, consumerMgr *inats.ConsumerManager, instanceID string) *Consumer {
	return &Consumer{
		invalidator: invalidator,
		consumerMgr: consumerMgr,
		durable:     "quota-invalidator-" + instanceID,
	}
}

// Start begins the consume loop. Blocks until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	consumer, err := c.consumerMgr.EnsureConsumer(ctx, inats.StreamEvents, c.durable, inats.SubjectSubscriptionEvent)
	if err != nil {
		return err
	}

	slog.Info("subscription consumer started", "consumer", c.durable)

	for {
		msgs, err := consumer.Fetch(10, jetstream.FetchMaxWait(inats.FetchTimeout))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Debug("subscription consumer: fetching events", "error", err)
			continue
		}

		for msg := range msgs.Messages() {
			c.handleEvent(msg)
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *Consumer) handleEvent(msg jetstream.Msg) {
	var event inats.SubscriptionEvent
	if err := json.Unmarshal(msg.Data(), &event); err != nil {
		slog.Error("subscription consumer: unmarshaling event", "error", err)
		_ = msg.Nak()
		return
	}

	if event.UserID == uuid.Nil {
		slog.Warn("subscription consumer: event without user id, dropping")
		_ = msg.Ack()
		return
	}

	// Eviction is idempotent, so reprocessing a redelivered event is
	// harmless.
	c.invalidator.Invalidate(event.UserID)
	_ = msg.Ack()

	slog.Debug("subscription consumer: invalidated quota caches",
		"user_id", event.UserID,
		"event_type", event.EventType,
		"product_id", event.ProductID,
	)
}
