package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/fractalrespect/orecx/pkg/ortypes"
	"github.com/fractalrespect/orecx/pkg/store"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type published struct {
	channel string
	message any
}

type fakePublisher struct {
	published []published
	streamed  []map[string]any
}

func (f *fakePublisher) Publish(_ context.Context, channel string, message any) {
	f.published = append(f.published, published{channel, message})
}

func (f *fakePublisher) XAdd(_ context.Context, stream string, values map[string]any) string {
	f.streamed = append(f.streamed, values)
	return "1-0"
}

func TestNotifierPublishesAndStreams(t *testing.T) {
	pub := &fakePublisher{}
	n := newNotifier(pub, zaptest.NewLogger(t))

	ev := store.Event{
		Type:      store.EventProposalStored,
		PropID:    ortypes.PropID("0x" + "ab" + "00000000000000000000000000000000000000000000000000000000000000"),
		PeriodNum: 4,
		Time:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	n.Notify(context.Background(), ev)

	require.Len(t, pub.published, 1)
	assert.Equal(t, "ornode:proposal.stored", pub.published[0].channel)

	var got store.Event
	require.NoError(t, json.Unmarshal(pub.published[0].message.([]byte), &got))
	assert.Equal(t, ev, got)

	require.Len(t, pub.streamed, 1)
	assert.Equal(t, "proposal.stored", pub.streamed[0]["type"])
}

func TestDecodeEvent(t *testing.T) {
	ev := store.Event{Type: store.EventPeriodAdvanced, PeriodNum: 9, Time: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	payload, err := json.Marshal(ev)
	require.NoError(t, err)

	got, err := DecodeEvent(redis.XMessage{ID: "1-0", Values: map[string]any{"data": string(payload)}})
	require.NoError(t, err)
	assert.Equal(t, ev, got)

	_, err = DecodeEvent(redis.XMessage{ID: "2-0", Values: map[string]any{}})
	assert.Error(t, err)

	_, err = DecodeEvent(redis.XMessage{ID: "3-0", Values: map[string]any{"data": "{"}})
	assert.Error(t, err)
}

func TestNewEventConsumerDefaults(t *testing.T) {
	_, err := NewEventConsumer(nil, ConsumerConfig{}, nil)
	assert.Error(t, err)

	ec, err := NewEventConsumer(Wrap(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), nil), ConsumerConfig{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "$", ec.config.LastID)
	assert.Equal(t, int64(100), ec.config.Count)
	assert.Equal(t, 30*time.Second, ec.config.MaxRetryInterval)
	require.NoError(t, ec.client.Close())
}
