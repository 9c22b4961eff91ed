package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fractalrespect/orecx/pkg/orclient"
	"github.com/fractalrespect/orecx/pkg/ortypes"
	"github.com/fractalrespect/orecx/pkg/retry"
	"github.com/fractalrespect/orecx/pkg/validation"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// putCommand is the recovery path after a failed content push: the
// proposal is already on chain, only its content is sent again.
func putCommand() *cobra.Command {
	var (
		attempts int
		backoff  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "put <proposal.json>",
		Short: "Push proposal content to the ornode, retrying with backoff",
		Args:  cobra.ExactArgs(1),
		RunE: run(false, func(ctx context.Context, e *env, c *orclient.Client, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			full, err := validation.Validate(raw)
			if err != nil {
				return err
			}

			cfg := retry.DefaultConfig()
			cfg.MaxRetries = attempts
			cfg.InitialDelay = backoff
			cfg.Retryable = orclient.PutRetryable

			var status ortypes.PropStatus
			err = retry.WithBackoff(ctx, cfg, e.logger, "putProposal", func() error {
				s, putErr := c.RetryPut(ctx, full)
				status = s
				return putErr
			})
			if err != nil {
				return err
			}
			e.logger.Info("Proposal content stored",
				zap.String("propId", full.ID.String()),
				zap.String("propStatus", string(status)))
			return printJSON(map[string]any{"id": full.ID, "propStatus": status})
		}),
	}
	cmd.Flags().IntVar(&attempts, "attempts", retry.DefaultConfig().MaxRetries, "maximum push attempts")
	cmd.Flags().DurationVar(&backoff, "backoff", retry.DefaultConfig().InitialDelay, "delay before the first retry, doubled on each attempt")
	return cmd
}

func getCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <propId>",
		Short: "Show one proposal",
		Args:  cobra.ExactArgs(1),
		RunE: run(false, func(ctx context.Context, _ *env, c *orclient.Client, args []string) error {
			id, err := ortypes.ParsePropID(args[0])
			if err != nil {
				return err
			}
			p, err := c.GetProposal(ctx, id)
			if err != nil {
				return err
			}
			return printJSON(p)
		}),
	}
}

func listCommand() *cobra.Command {
	var from, limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List proposals, newest first",
		Args:  cobra.NoArgs,
		RunE: run(false, func(ctx context.Context, _ *env, c *orclient.Client, _ []string) error {
			props, err := c.ListProposals(ctx, from, limit)
			if err != nil {
				return err
			}
			return printJSON(props)
		}),
	}
	cmd.Flags().IntVar(&from, "from", 0, "offset from the newest proposal")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of proposals")
	return cmd
}

func periodCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "period",
		Short: "Show the current period number",
		Args:  cobra.NoArgs,
		RunE: run(false, func(ctx context.Context, _ *env, c *orclient.Client, _ []string) error {
			n, err := c.GetPeriodNum(ctx)
			if err != nil {
				return err
			}
			fmt.Println(n)
			return nil
		}),
	}
}
