package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultStreamMaxLen = 10000

// Client wraps the Redis client used for ornode live notifications.
type Client struct {
	client       *redis.Client
	logger       *zap.Logger
	streamMaxLen int64 // 0 = unlimited
}

// Config is read from REDIS_* environment variables.
type Config struct {
	Enabled  bool   `envconfig:"ENABLED" default:"false"`
	Host     string `envconfig:"HOST" default:"localhost"`
	Port     string `envconfig:"PORT" default:"6379"`
	Password string `envconfig:"PASSWORD"`
	DB       int    `envconfig:"DB" default:"0"`
	// StreamMaxLen caps the event history stream; 0 means unlimited.
	StreamMaxLen int64 `envconfig:"STREAM_MAXLEN" default:"10000"`
}

// LoadConfig reads REDIS_ENABLED, REDIS_HOST, REDIS_PORT, REDIS_PASSWORD,
// REDIS_DB and REDIS_STREAM_MAXLEN.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("REDIS", &cfg); err != nil {
		return Config{}, fmt.Errorf("redis config: %w", err)
	}
	return cfg, nil
}

// NewClient connects to cfg and checks the connection.
func NewClient(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.DB < 0 || cfg.StreamMaxLen < 0 {
		return nil, fmt.Errorf("redis config: negative REDIS_DB or REDIS_STREAM_MAXLEN")
	}
	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
	db := cfg.DB

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       db,

		PoolSize:     10,
		MinIdleConns: 2,

		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	c := Wrap(rdb, logger)
	c.streamMaxLen = cfg.StreamMaxLen
	logger.Info("Connected to Redis",
		zap.String("addr", addr),
		zap.Int("db", db),
		zap.Int64("streamMaxLen", c.streamMaxLen))
	return c, nil
}

// Wrap adopts an existing go-redis client.
func Wrap(rdb *redis.Client, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{client: rdb, logger: logger, streamMaxLen: DefaultStreamMaxLen}
}

func (c *Client) Close() error {
	return c.client.Close()
}

// Publish is best effort: failures are logged and never returned, so a
// Redis outage cannot fail a store mutation.
func (c *Client) Publish(ctx context.Context, channel string, message any) {
	if err := c.client.Publish(ctx, channel, message).Err(); err != nil {
		c.logger.Warn("Failed to publish Redis message",
			zap.String("channel", channel),
			zap.Error(err))
	}
}

// PSubscribe subscribes to channel patterns such as "ornode:*". The caller
// closes the returned PubSub.
func (c *Client) PSubscribe(ctx context.Context, patterns ...string) *redis.PubSub {
	c.logger.Debug("Subscribing to Redis patterns", zap.Strings("patterns", patterns))
	return c.client.PSubscribe(ctx, patterns...)
}

func (c *Client) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// XAdd appends to a stream capped at the configured length. Best effort:
// returns "" on failure.
func (c *Client) XAdd(ctx context.Context, stream string, values map[string]any) string {
	args := &redis.XAddArgs{Stream: stream, Values: values}
	if c.streamMaxLen > 0 {
		args.MaxLen = c.streamMaxLen
		args.Approx = true
	}
	id, err := c.client.XAdd(ctx, args).Result()
	if err != nil {
		c.logger.Warn("Failed to add to Redis stream",
			zap.String("stream", stream),
			zap.Error(err))
		return ""
	}
	return id
}

// XRead reads entries after lastID, blocking up to block.
func (c *Client) XRead(ctx context.Context, stream, lastID string, count int64, block time.Duration) ([]redis.XStream, error) {
	return c.client.XRead(ctx, &redis.XReadArgs{
		Streams: []string{stream, lastID},
		Count:   count,
		Block:   block,
	}).Result()
}

// XRevRange returns up to count of the newest entries, newest first.
func (c *Client) XRevRange(ctx context.Context, stream string, count int64) ([]redis.XMessage, error) {
	return c.client.XRevRangeN(ctx, stream, "+", "-", count).Result()
}
