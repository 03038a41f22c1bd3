package transport

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/meridian-data/streamloader/internal/decode"
)

// ShardConsumer adapts a shard-stream backend to the Source contract.
// Replay position is whatever the backend last checkpointed; there is no
// application-level acknowledgment.
type ShardConsumer struct {
	cfg    ShardStreamConfig
	reader ShardReader
	dec    decode.Decoder
}

func NewShardConsumer(cfg ShardStreamConfig, reader ShardReader, dec decode.Decoder) *ShardConsumer {
	if reader == nil {
		panic("transport: shard reader must not be nil")
	}
	if dec == nil {
		panic("transport: decoder must not be nil")
	}
	return &ShardConsumer{cfg: cfg, reader: reader, dec: dec}
}

func (c *ShardConsumer) Stream(ctx context.Context) (<-chan decode.Outcome, error) {
	records, err := c.reader.Records(ctx)
	if err != nil {
		return nil, fmt.Errorf("open shard stream %s: %w", c.cfg.StreamName, err)
	}

	out := make(chan decode.Outcome)
	go func() {
		defer close(out)
		slog.Info("Shard stream consumer started",
			"application", c.cfg.ApplicationName,
			"stream", c.cfg.StreamName,
			"region", c.cfg.Region,
			"starting_position", string(c.cfg.StartingPosition))

		for {
			select {
			case <-ctx.Done():
				return
			case data, ok := <-records:
				if !ok {
					slog.Info("Shard stream closed by backend", "stream", c.cfg.StreamName)
					return
				}
				select {
				case out <- c.dec(data):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
