package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fractalrespect/orecx/app/ornode"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	defer cancel()

	app := ornode.Initialize(ctx)

	serverErr := ornode.NewServer(app)
	if serverErr != nil {
		app.Logger.Fatal("Unable to initialize server", zap.Error(serverErr))
	}

	if err := app.Start(ctx); err != nil {
		app.Logger.Error("ornode stopped", zap.Error(err))
		_ = app.Logger.Sync()
		cancel()
		os.Exit(1)
	}
}
