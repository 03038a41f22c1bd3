package transport

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-data/streamloader/internal/decode"
)

func newDecoder(t *testing.T) decode.Decoder {
	t.Helper()
	dec, err := decode.NewDecoder(decode.PurposeSelfDescribing)
	require.NoError(t, err)
	return dec
}

type fakeShardReader struct {
	records [][]byte
	openErr error
}

func (f *fakeShardReader) Records(_ context.Context) (<-chan []byte, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	ch := make(chan []byte, len(f.records))
	for _, r := range f.records {
		ch <- r
	}
	close(ch)
	return ch, nil
}

type fakeMessage struct {
	data   []byte
	ackErr error

	mu    sync.Mutex
	acked bool
}

func (m *fakeMessage) Data() []byte { return m.data }

func (m *fakeMessage) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acked = true
	return m.ackErr
}

func (m *fakeMessage) Acked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acked
}

type fakeSubscription struct {
	messages []*fakeMessage
	err      error
}

func (f *fakeSubscription) Receive(ctx context.Context, handle func(Message)) error {
	for _, m := range f.messages {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		handle(m)
	}
	return f.err
}

func collect(t *testing.T, ch <-chan decode.Outcome, n int) []decode.Outcome {
	t.Helper()
	var got []decode.Outcome
	for len(got) < n {
		select {
		case o, ok := <-ch:
			if !ok {
				return got
			}
			got = append(got, o)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d outcomes", len(got))
		}
	}
	return got
}

func TestShardConsumer_MixedRecords(t *testing.T) {
	reader := &fakeShardReader{records: [][]byte{
		[]byte(`{"schema":"com.acme/click/jsonschema/1-0-0","data":{}}`),
		[]byte("definitely not json"),
		{0xff, 0xfe},
	}}
	c := NewShardConsumer(ShardStreamConfig{StreamName: "raw"}, reader, newDecoder(t))

	ch, err := c.Stream(context.Background())
	require.NoError(t, err)

	got := collect(t, ch, 3)
	require.Len(t, got, 3)
	assert.NotNil(t, got[0].Event)
	assert.NotNil(t, got[1].Bad)
	assert.NotNil(t, got[2].Bad)

	// Channel closes when the backend drains.
	_, open := <-ch
	assert.False(t, open)
}

func TestShardConsumer_OpenFailure(t *testing.T) {
	c := NewShardConsumer(ShardStreamConfig{StreamName: "raw"},
		&fakeShardReader{openErr: errors.New("no such stream")}, newDecoder(t))

	_, err := c.Stream(context.Background())
	require.Error(t, err)
}

func TestSubscriptionConsumer_AcksAfterOutcome(t *testing.T) {
	good := &fakeMessage{data: []byte(`{"schema":"com.acme/click/jsonschema/1-0-0","data":{}}`)}
	badJSON := &fakeMessage{data: []byte("{broken")}
	sub := &fakeSubscription{messages: []*fakeMessage{good, badJSON}}

	c := NewSubscriptionConsumer(SubscriptionConfig{SubscriptionID: "loader"}, sub, newDecoder(t))
	ch, err := c.Stream(context.Background())
	require.NoError(t, err)

	got := collect(t, ch, 2)
	require.Len(t, got, 2)
	assert.NotNil(t, got[0].Event)
	assert.NotNil(t, got[1].Bad)

	_, open := <-ch
	assert.False(t, open)

	// Bad records are acked too: redelivering an unparsable payload is useless.
	assert.True(t, good.Acked())
	assert.True(t, badJSON.Acked())
}

func TestSubscriptionConsumer_AckFailureDoesNotStop(t *testing.T) {
	failing := &fakeMessage{data: []byte("{broken"), ackErr: errors.New("deadline exceeded")}
	after := &fakeMessage{data: []byte(`{"schema":"com.acme/click/jsonschema/1-0-0","data":{}}`)}
	sub := &fakeSubscription{messages: []*fakeMessage{failing, after}}

	c := NewSubscriptionConsumer(SubscriptionConfig{SubscriptionID: "loader"}, sub, newDecoder(t))
	ch, err := c.Stream(context.Background())
	require.NoError(t, err)

	got := collect(t, ch, 2)
	require.Len(t, got, 2)

	_, open := <-ch
	assert.False(t, open)

	assert.True(t, after.Acked())
}

func TestSubscriptionConsumer_BackendErrorClosesStream(t *testing.T) {
	sub := &fakeSubscription{err: errors.New("subscription revoked")}
	c := NewSubscriptionConsumer(SubscriptionConfig{}, sub, newDecoder(t))

	ch, err := c.Stream(context.Background())
	require.NoError(t, err)

	_, open := <-ch
	assert.False(t, open)
}
