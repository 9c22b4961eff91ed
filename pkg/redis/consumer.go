package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fractalrespect/orecx/pkg/store"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// EventHandler processes one event read from the history stream.
type EventHandler func(ctx context.Context, ev store.Event) error

// ConsumerConfig configures an EventConsumer.
type ConsumerConfig struct {
	// LastID is the starting position: "0" replays the whole history,
	// "$" (default) only follows new entries.
	LastID string
	// Count is the max number of entries per read. Default: 100.
	Count int64
	// Block bounds each read. Default: 5 seconds.
	Block time.Duration
	// RetryInterval is the first wait after a read error; it doubles up
	// to MaxRetryInterval. Defaults: 1s and 30s.
	RetryInterval    time.Duration
	MaxRetryInterval time.Duration
}

// EventConsumer follows EventStream and reconnects with backoff.
type EventConsumer struct {
	client *Client
	config ConsumerConfig
	logger *zap.Logger
}

func NewEventConsumer(client *Client, config ConsumerConfig, logger *zap.Logger) (*EventConsumer, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if config.LastID == "" {
		config.LastID = "$"
	}
	if config.Count == 0 {
		config.Count = 100
	}
	if config.Block == 0 {
		config.Block = 5 * time.Second
	}
	if config.RetryInterval == 0 {
		config.RetryInterval = time.Second
	}
	if config.MaxRetryInterval == 0 {
		config.MaxRetryInterval = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventConsumer{client: client, config: config, logger: logger}, nil
}

// Run calls handler for each event until ctx is done. Handler errors are
// logged and the entry is skipped.
func (ec *EventConsumer) Run(ctx context.Context, handler EventHandler) error {
	lastID := ec.config.LastID
	retryInterval := ec.config.RetryInterval

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		streams, err := ec.client.XRead(ctx, EventStream, lastID, ec.config.Count, ec.config.Block)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			ec.logger.Warn("Error reading event stream, will retry",
				zap.Error(err),
				zap.Duration("retryIn", retryInterval))
			select {
			case <-time.After(retryInterval):
				retryInterval = min(retryInterval*2, ec.config.MaxRetryInterval)
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		retryInterval = ec.config.RetryInterval

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				lastID = msg.ID
				ev, err := DecodeEvent(msg)
				if err != nil {
					ec.logger.Warn("Skipping malformed event", zap.String("id", msg.ID), zap.Error(err))
					continue
				}
				if err := handler(ctx, ev); err != nil {
					ec.logger.Error("Error processing event",
						zap.String("id", msg.ID),
						zap.Error(err))
				}
			}
		}
	}
}

// Recent returns up to n of the newest events, oldest first.
func (c *Client) Recent(ctx context.Context, n int64) ([]store.Event, error) {
	msgs, err := c.XRevRange(ctx, EventStream, n)
	if err != nil {
		return nil, err
	}
	out := make([]store.Event, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		ev, err := DecodeEvent(msgs[i])
		if err != nil {
			c.logger.Warn("Skipping malformed event", zap.String("id", msgs[i].ID), zap.Error(err))
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// DecodeEvent parses the "data" field written by Notifier.
func DecodeEvent(msg redis.XMessage) (store.Event, error) {
	var raw []byte
	switch v := msg.Values["data"].(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return store.Event{}, fmt.Errorf("entry %s has no data field", msg.ID)
	}
	var ev store.Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return store.Event{}, fmt.Errorf("entry %s: %w", msg.ID, err)
	}
	return ev, nil
}
