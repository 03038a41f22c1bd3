// Package kafka backs the subscription transport contract with a Kafka
// consumer group. Offsets are committed only for records whose decode
// outcome was delivered, via mark-then-commit with auto-commit disabled.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/meridian-data/streamloader/internal/transport"
)

const defaultMaxPollRecords = 500

// Config configures the consumer group.
type Config struct {
	Brokers        []string
	Topic          string
	GroupID        string
	ClientID       string
	MaxPollRecords int
}

func (c *Config) withDefaults() {
	if c.MaxPollRecords <= 0 {
		c.MaxPollRecords = defaultMaxPollRecords
	}
}

func (c Config) Validate() error {
	if len(c.Brokers) == 0 {
		return errors.New("kafka: brokers are required")
	}
	if c.Topic == "" {
		return errors.New("kafka: topic is required")
	}
	if c.GroupID == "" {
		return errors.New("kafka: group_id is required")
	}
	return nil
}

// Subscription consumes one topic as a consumer group and presents each
// record as an acknowledgable message.
type Subscription struct {
	cfg    Config
	client *kgo.Client
}

func NewSubscription(cfg Config, opts ...kgo.Opt) (*Subscription, error) {
	cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	kopts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.GroupID),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.DisableAutoCommit(),
		kgo.BlockRebalanceOnPoll(),
	}
	if cfg.ClientID != "" {
		kopts = append(kopts, kgo.ClientID(cfg.ClientID))
	}
	kopts = append(kopts, opts...)

	client, err := kgo.NewClient(kopts...)
	if err != nil {
		return nil, fmt.Errorf("new kafka client: %w", err)
	}
	return &Subscription{cfg: cfg, client: client}, nil
}

// message adapts one kgo record. Ack marks its offset; the poll loop flushes
// marked offsets after each batch.
type message struct {
	rec    *kgo.Record
	client *kgo.Client
}

func (m *message) Data() []byte { return m.rec.Value }

func (m *message) Ack() error {
	m.client.MarkCommitRecords(m.rec)
	return nil
}

// Receive polls until ctx is cancelled or the client reports a fatal fetch
// error. Marked offsets are committed after every poll; a commit failure is
// logged and retried on the next cycle rather than escalated.
func (s *Subscription) Receive(ctx context.Context, handle func(transport.Message)) error {
	defer s.client.Close()

	for {
		if ctx.Err() != nil {
			// Final best-effort commit of whatever the handler acked.
			s.commitMarked(context.Background())
			return ctx.Err()
		}

		fetches := s.client.PollRecords(ctx, s.cfg.MaxPollRecords)
		if fetches.IsClientClosed() {
			return nil
		}
		if errs := fetches.Errors(); len(errs) > 0 {
			for _, fe := range errs {
				if errors.Is(fe.Err, context.Canceled) {
					s.commitMarked(context.Background())
					return ctx.Err()
				}
			}
			return fmt.Errorf("kafka fetch %s: %w", s.cfg.Topic, errs[0].Err)
		}

		fetches.EachRecord(func(rec *kgo.Record) {
			handle(&message{rec: rec, client: s.client})
		})

		s.commitMarked(ctx)
		s.client.AllowRebalance()
	}
}

func (s *Subscription) commitMarked(ctx context.Context) {
	if err := s.client.CommitMarkedOffsets(ctx); err != nil {
		slog.Error("Failed to commit marked offsets",
			"topic", s.cfg.Topic,
			"group", s.cfg.GroupID,
			"error", err)
	}
}
