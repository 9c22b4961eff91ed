package redis

import (
	"context"
	"encoding/json"

	"github.com/fractalrespect/orecx/pkg/store"
	"go.uber.org/zap"
)

const (
	// ChannelPrefix prefixes the pub/sub channel of each event type,
	// e.g. "ornode:proposal.stored".
	ChannelPrefix = "ornode:"
	// ChannelPattern matches every ornode channel.
	ChannelPattern = ChannelPrefix + "*"
	// EventStream keeps a capped history of events for late readers.
	EventStream = "ornode:events"
)

type publisher interface {
	Publish(ctx context.Context, channel string, message any)
	XAdd(ctx context.Context, stream string, values map[string]any) string
}

// Notifier publishes store events to Redis.
type Notifier struct {
	pub    publisher
	logger *zap.Logger
}

var _ store.Notifier = (*Notifier)(nil)

func NewNotifier(c *Client, logger *zap.Logger) *Notifier {
	return newNotifier(c, logger)
}

func newNotifier(pub publisher, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{pub: pub, logger: logger}
}

// Notify publishes ev on its channel and appends it to EventStream.
func (n *Notifier) Notify(ctx context.Context, ev store.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		n.logger.Warn("Failed to encode store event", zap.String("type", string(ev.Type)), zap.Error(err))
		return
	}
	n.pub.Publish(ctx, Channel(ev.Type), payload)
	n.pub.XAdd(ctx, EventStream, map[string]any{
		"type": string(ev.Type),
		"data": payload,
	})
}

// Channel returns the pub/sub channel of an event type.
func Channel(t store.EventType) string {
	return ChannelPrefix + string(t)
}
