package transport

import (
	"context"
	"log/slog"

	"github.com/meridian-data/streamloader/internal/decode"
)

// SubscriptionConsumer adapts a subscription backend to the Source contract.
// Every message is acknowledged once its decode outcome is known, success or
// failure alike; leaving unparsable records unacked would redeliver them
// forever.
type SubscriptionConsumer struct {
	cfg SubscriptionConfig
	sub Subscription
	dec decode.Decoder
}

func NewSubscriptionConsumer(cfg SubscriptionConfig, sub Subscription, dec decode.Decoder) *SubscriptionConsumer {
	if sub == nil {
		panic("transport: subscription must not be nil")
	}
	if dec == nil {
		panic("transport: decoder must not be nil")
	}
	return &SubscriptionConsumer{cfg: cfg, sub: sub, dec: dec}
}

func (c *SubscriptionConsumer) Stream(ctx context.Context) (<-chan decode.Outcome, error) {
	out := make(chan decode.Outcome)

	go func() {
		defer close(out)
		slog.Info("Subscription consumer started",
			"project", c.cfg.ProjectID,
			"subscription", c.cfg.SubscriptionID)

		err := c.sub.Receive(ctx, func(msg Message) {
			outcome := c.dec(msg.Data())

			select {
			case out <- outcome:
			case <-ctx.Done():
				// Outcome never delivered: leave the message unacked so the
				// backend redelivers it after restart.
				return
			}

			if err := msg.Ack(); err != nil {
				slog.Error("Failed to ack message, backend may redeliver",
					"subscription", c.cfg.SubscriptionID,
					"error", err)
			}
		})
		if err != nil && ctx.Err() == nil {
			slog.Error("Subscription receive terminated",
				"subscription", c.cfg.SubscriptionID,
				"error", err)
		}
	}()
	return out, nil
}
