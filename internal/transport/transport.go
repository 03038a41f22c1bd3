// Package transport unifies the supported ingestion backends behind one
// contract: a lazy, unbounded stream of decode outcomes. Decode failures
// travel in-band as bad records so a single malformed payload never
// terminates the stream.
package transport

import (
	"context"

	"github.com/meridian-data/streamloader/internal/decode"
)

// StartingPosition selects where a shard-stream consumer begins.
type StartingPosition string

const (
	PositionLatest      StartingPosition = "latest"
	PositionTrimHorizon StartingPosition = "trim-horizon"
	PositionAtTimestamp StartingPosition = "at-timestamp"
)

// ShardStreamConfig configures a shard-stream (Kinesis-like) consumer.
// Checkpointing lives in the backend; this core never manages offsets.
type ShardStreamConfig struct {
	ApplicationName  string
	StreamName       string
	Region           string
	StartingPosition StartingPosition
}

// SubscriptionConfig configures a subscription (PubSub-like) consumer.
type SubscriptionConfig struct {
	ProjectID      string
	SubscriptionID string
}

// Source is the single contract exposed to the writer: a channel of decode
// outcomes that stays open until ctx is cancelled or the backend fails.
type Source interface {
	Stream(ctx context.Context) (<-chan decode.Outcome, error)
}

// ShardReader is the narrow view of a shard-stream backend. The backend owns
// shard iteration and checkpointing; records arrive already sequenced.
type ShardReader interface {
	Records(ctx context.Context) (<-chan []byte, error)
}

// Message is one acknowledgable delivery from a subscription backend.
type Message interface {
	Data() []byte
	Ack() error
}

// Subscription is the narrow view of a subscription backend. Receive blocks,
// invoking the handler per delivery, until ctx is cancelled or the backend
// terminates.
type Subscription interface {
	Receive(ctx context.Context, handle func(Message)) error
}
