package ornode

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/fractalrespect/orecx/pkg/chain"
	"github.com/fractalrespect/orecx/pkg/chain/memchain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("CHAIN", ChainEth)
	t.Setenv("ETH_RPC_URL", "")
	_, err := LoadConfig()
	assert.Error(t, err)

	t.Setenv("CHAIN", "solana")
	_, err = LoadConfig()
	assert.Error(t, err)

	for _, key := range []string{"ADDR", "REDIS_ENABLED", "REDIS_HOST", "REDIS_STREAM_MAXLEN"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	t.Setenv("CHAIN", ChainMem)
	t.Setenv("PROP_ALIVENESS", "2h")
	t.Setenv("PRUNE_SCHEDULE", "@every 1h")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, cfg.PropAliveness)
	assert.Equal(t, "@every 1h", cfg.PruneSchedule)
	assert.Equal(t, ":8090", cfg.Addr)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "localhost", cfg.Redis.Host)
	assert.Equal(t, int64(10000), cfg.Redis.StreamMaxLen)
}

func TestLoadConfigReadsAddrAndRedis(t *testing.T) {
	t.Setenv("CHAIN", ChainMem)
	t.Setenv("ADDR", "127.0.0.1:9000")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("REDIS_STREAM_MAXLEN", "50")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "cache", cfg.Redis.Host)
	assert.Equal(t, "6380", cfg.Redis.Port)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, int64(50), cfg.Redis.StreamMaxLen)

	t.Setenv("REDIS_DB", "two")
	_, err = LoadConfig()
	assert.Error(t, err)
}

func TestBuildAndStartMemChain(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := Build(ctx, Config{Addr: "127.0.0.1:0", Chain: ChainMem, PruneSchedule: "@every 1h"}, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NotNil(t, app.Cron)
	assert.Nil(t, app.RedisClient)
	require.NoError(t, NewServer(app))

	// The app owns the only subscription of the gateway.
	_, err = app.Gateway.Subscribe(ctx)
	assert.ErrorIs(t, err, chain.ErrAlreadySubscribed)

	done := make(chan error, 1)
	go func() { done <- app.Start(ctx) }()

	mc := app.Gateway.(*memchain.Chain)
	mc.EmitSignal(chain.SignalTick, nil)
	require.Eventually(t, func() bool {
		n, _ := app.Store.GetPeriodNum(ctx)
		return n == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not shut down")
	}

	// Shutdown released the subscription.
	sub, err := mc.Subscribe(context.Background())
	require.NoError(t, err)
	sub.Unsubscribe()
}

func TestStartStopsOnIndexerFailure(t *testing.T) {
	app, err := Build(context.Background(), Config{Addr: "127.0.0.1:0", Chain: ChainMem}, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, NewServer(app))

	done := make(chan error, 1)
	go func() { done <- app.Start(context.Background()) }()

	mc := app.Gateway.(*memchain.Chain)
	require.Eventually(t, func() bool {
		return mc.FailSubscription(assert.AnError) == nil
	}, time.Second, 10*time.Millisecond)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, assert.AnError)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop after the indexer failed")
	}
}
