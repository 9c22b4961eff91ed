package main

import (
	"context"
	"errors"

	"github.com/fractalrespect/orecx/pkg/orclient"
	"github.com/fractalrespect/orecx/pkg/redis"
	"github.com/fractalrespect/orecx/pkg/store"
	"github.com/spf13/cobra"
)

func watchCommand() *cobra.Command {
	var fromStart bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow node events from the Redis event stream",
		Args:  cobra.NoArgs,
		RunE: run(false, func(ctx context.Context, e *env, _ *orclient.Client, _ []string) error {
			rc, err := redis.LoadConfig()
			if err != nil {
				return err
			}
			client, err := redis.NewClient(ctx, rc, e.logger)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			cfg := redis.ConsumerConfig{}
			if fromStart {
				cfg.LastID = "0"
			}
			consumer, err := redis.NewEventConsumer(client, cfg, e.logger)
			if err != nil {
				return err
			}
			err = consumer.Run(ctx, func(_ context.Context, ev store.Event) error {
				return printJSON(ev)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}),
	}
	cmd.Flags().BoolVar(&fromStart, "from-start", false, "replay the whole event history first")
	return cmd
}
