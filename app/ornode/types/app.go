package types

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fractalrespect/orecx/pkg/chain"
	"github.com/fractalrespect/orecx/pkg/indexer"
	"github.com/fractalrespect/orecx/pkg/redis"
	"github.com/fractalrespect/orecx/pkg/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type App struct {
	Store   *store.Store
	Gateway chain.Gateway
	// Subscription is the only chain event subscription of the process.
	// The indexer releases it when it stops.
	Subscription chain.Subscription
	Indexer      *indexer.Indexer
	// Cron runs the stub pruner; nil when pruning is disabled.
	Cron *cron.Cron
	// RedisClient publishes store events; nil when Redis is disabled.
	RedisClient *redis.Client
	Registry    *prometheus.Registry
	// Zap Logger
	Logger *zap.Logger
	// Addr is the HTTP listen address.
	Addr string
	// Server represents the HTTP server instance used to handle incoming client requests and manage HTTP routes.
	Server *http.Server
	// CloseGateway releases the chain connection, if any.
	CloseGateway func()
}

// Start serves HTTP and runs the indexer until ctx is done or the indexer
// stops. An indexer failure is returned after shutdown.
func (a *App) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	indexerErr := make(chan error, 1)
	go func() { indexerErr <- a.Indexer.Run(ctx, a.Subscription) }()

	serverErr := make(chan error, 1)
	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-indexerErr:
		if runErr != nil {
			a.Logger.Error("Indexer stopped", zap.Error(runErr))
		}
	case runErr = <-serverErr:
		a.Logger.Error("HTTP server failed", zap.Error(runErr))
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = a.Server.Shutdown(shutdownCtx)

	if a.Cron != nil {
		<-a.Cron.Stop().Done()
	}
	// Run always releases the subscription; this covers an indexer that
	// never got to start.
	a.Subscription.Unsubscribe()
	// Flush queued notifications while Redis is still open.
	a.Store.Close()
	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Logger.Error("Failed to close Redis connection", zap.Error(err))
		}
	}
	if a.CloseGateway != nil {
		a.CloseGateway()
	}
	a.Logger.Info("さようなら!")
	return runErr
}
