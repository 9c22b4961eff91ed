package ornode

import (
	"context"
	"fmt"
	"time"

	"github.com/fractalrespect/orecx/app/ornode/types"
	"github.com/fractalrespect/orecx/pkg/chain"
	"github.com/fractalrespect/orecx/pkg/chain/eth"
	"github.com/fractalrespect/orecx/pkg/chain/memchain"
	"github.com/fractalrespect/orecx/pkg/indexer"
	"github.com/fractalrespect/orecx/pkg/logging"
	"github.com/fractalrespect/orecx/pkg/redis"
	"github.com/fractalrespect/orecx/pkg/store"
	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	ChainEth = "eth"
	ChainMem = "mem"
)

// Config is read from the environment.
type Config struct {
	// Addr is <ip>:<port> to bind one interface or :<port> for all.
	Addr  string `envconfig:"ADDR" default:":8090"`
	Chain string `envconfig:"CHAIN" default:"eth"`

	EthRPCURL   string `envconfig:"ETH_RPC_URL"`
	OrecAddress string `envconfig:"OREC_ADDRESS"`

	// PropAliveness defaults to the contract's vote length.
	PropAliveness time.Duration `envconfig:"PROP_ALIVENESS"`
	// PruneSchedule is a cron spec; empty disables pruning.
	PruneSchedule string `envconfig:"PRUNE_SCHEDULE"`

	// Redis is read from REDIS_ENABLED, REDIS_HOST and the other REDIS_* keys.
	Redis redis.Config
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("ornode config: %w", err)
	}
	switch cfg.Chain {
	case ChainEth:
		if cfg.EthRPCURL == "" || cfg.OrecAddress == "" {
			return Config{}, fmt.Errorf("ornode config: ETH_RPC_URL and OREC_ADDRESS are required with CHAIN=%s", ChainEth)
		}
	case ChainMem:
	default:
		return Config{}, fmt.Errorf("ornode config: unknown CHAIN %q", cfg.Chain)
	}
	return cfg, nil
}

// Initialize initializes the application.
func Initialize(ctx context.Context) *types.App {
	logger, err := logging.New("ornode")
	if err != nil {
		// nothing else to do here, we'll just log to stderr
		panic(err)
	}

	cfg, err := LoadConfig()
	if err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	app, err := Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Unable to initialize ornode", zap.Error(err))
	}
	return app
}

// Build wires the node for cfg. The chain subscription is opened here,
// once, and handed to the App.
func Build(ctx context.Context, cfg Config, logger *zap.Logger) (*types.App, error) {
	app := &types.App{Addr: cfg.Addr, Logger: logger, Registry: prometheus.NewRegistry()}
	app.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	switch cfg.Chain {
	case ChainMem:
		logger.Warn("Using in-memory chain, proposals only come from this process")
		app.Gateway = memchain.New()
	default:
		gw, err := eth.Dial(ctx, eth.Config{RPCURL: cfg.EthRPCURL, OrecAddress: cfg.OrecAddress}, logger)
		if err != nil {
			return nil, err
		}
		app.Gateway = gw
		app.CloseGateway = gw.Close
	}

	storeOpts := []store.Option{store.WithLogger(logger), store.WithMetrics(app.Registry)}
	if cfg.Redis.Enabled {
		client, err := redis.NewClient(ctx, cfg.Redis, logger)
		if err != nil {
			logger.Warn("Failed to initialize Redis client - live events will be disabled", zap.Error(err))
		} else {
			app.RedisClient = client
			storeOpts = append(storeOpts, store.WithNotifier(redis.NewNotifier(client, logger)))
		}
	} else {
		logger.Info("Redis disabled - live events will not be available")
	}
	app.Store = store.New(storeOpts...)

	sub, err := app.Gateway.Subscribe(ctx)
	if err != nil {
		release(app)
		return nil, fmt.Errorf("subscribe to chain events: %w", err)
	}
	app.Subscription = sub
	app.Indexer = indexer.New(app.Store, indexer.WithLogger(logger), indexer.WithMetrics(app.Registry))

	if cfg.PruneSchedule != "" {
		c, err := schedulePruner(ctx, cfg, app.Store, app.Gateway, logger)
		if err != nil {
			sub.Unsubscribe()
			release(app)
			return nil, err
		}
		app.Cron = c
	}

	logger.Info("ornode initialized",
		zap.String("chain", cfg.Chain),
		zap.Bool("redis", app.RedisClient != nil),
		zap.Bool("pruning", app.Cron != nil))
	return app, nil
}

func schedulePruner(ctx context.Context, cfg Config, st *store.Store, gw chain.Gateway, logger *zap.Logger) (*cron.Cron, error) {
	aliveness := cfg.PropAliveness
	if aliveness == 0 {
		voteLen, err := gw.VoteLength(ctx)
		if err != nil {
			return nil, fmt.Errorf("read vote length for pruner: %w", err)
		}
		aliveness = voteLen
	}
	return store.NewPruner(st, gw, aliveness, logger).Schedule(cfg.PruneSchedule)
}

// release closes the connections of a partially built app.
func release(app *types.App) {
	if app.Store != nil {
		app.Store.Close()
	}
	if app.RedisClient != nil {
		_ = app.RedisClient.Close()
	}
	if app.CloseGateway != nil {
		app.CloseGateway()
	}
}
