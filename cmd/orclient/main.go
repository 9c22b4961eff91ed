// Command orclient submits proposals to the OREC contract and their
// content to an ornode, and queries the node.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fractalrespect/orecx/pkg/chain/eth"
	"github.com/fractalrespect/orecx/pkg/logging"
	"github.com/fractalrespect/orecx/pkg/orclient"
	"github.com/fractalrespect/orecx/pkg/rpc"
	"github.com/fractalrespect/orecx/pkg/utils"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const programName = "orclient"

var globalFlags = struct {
	nodeURLs []string
	timeout  time.Duration
	debug    bool
}{}

// cliConfig holds the connection settings read from the environment.
type cliConfig struct {
	NodeURL    string `envconfig:"ORNODE_URL" default:"http://localhost:8090"`
	EthRPCURL  string `envconfig:"ETH_RPC_URL"`
	PrivateKey string `envconfig:"PRIVATE_KEY"`
}

func loadCLIConfig() (cliConfig, error) {
	var cfg cliConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return cliConfig{}, fmt.Errorf("%s config: %w", programName, err)
	}
	return cfg, nil
}

// env bundles what every subcommand needs.
type env struct {
	logger *zap.Logger
	cfg    orclient.Config
	cli    cliConfig
	node   *rpc.NodeClient
	// closeChain is set once a chain gateway has been dialed.
	closeChain func()
}

func (e *env) close() {
	if e.closeChain != nil {
		e.closeChain()
	}
	_ = e.logger.Sync()
}

func newEnv() (*env, error) {
	lc, err := logging.LoadConfig()
	if err != nil {
		return nil, err
	}
	if globalFlags.debug {
		lc.Level = "debug"
	}
	logger, err := logging.NewWithConfig(programName, lc)
	if err != nil {
		return nil, err
	}
	cfg, err := orclient.LoadConfig()
	if err != nil {
		return nil, err
	}
	cli, err := loadCLIConfig()
	if err != nil {
		return nil, err
	}
	urls := utils.Dedup(globalFlags.nodeURLs)
	if len(urls) == 0 {
		return nil, fmt.Errorf("at least one ornode URL is required (--node or ORNODE_URL)")
	}
	node := rpc.NewNodeClient(rpc.Opts{Endpoints: urls, Timeout: globalFlags.timeout})
	return &env{logger: logger, cfg: cfg, cli: cli, node: node}, nil
}

// client returns an orclient.Client. withChain dials ETH_RPC_URL using
// PRIVATE_KEY to sign transactions.
func (e *env) client(ctx context.Context, withChain bool) (*orclient.Client, error) {
	opts := []orclient.Option{orclient.WithLogger(e.logger)}
	if !withChain {
		return orclient.New(nil, e.node, e.cfg, opts...), nil
	}

	if e.cli.EthRPCURL == "" || e.cfg.OrecAddress == "" {
		return nil, fmt.Errorf("ETH_RPC_URL and OREC_ADDRESS are required for chain commands")
	}
	gw, err := eth.Dial(ctx, eth.Config{
		RPCURL:      e.cli.EthRPCURL,
		OrecAddress: e.cfg.OrecAddress,
		PrivateKey:  e.cli.PrivateKey,
	}, e.logger)
	if err != nil {
		return nil, err
	}
	e.closeChain = gw.Close

	if e.cfg.RespectAddress != "" {
		b, err := orclient.NewBuilder(e.cfg.OrecAddress, e.cfg.RespectAddress)
		if err != nil {
			return nil, err
		}
		opts = append(opts, orclient.WithBuilder(b))
	}
	return orclient.New(gw, e.node, e.cfg, opts...), nil
}

// run wraps a subcommand body with env setup and teardown.
func run(withChain bool, fn func(ctx context.Context, e *env, c *orclient.Client, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		e, err := newEnv()
		if err != nil {
			return err
		}
		defer e.close()
		c, err := e.client(cmd.Context(), withChain)
		if err != nil {
			return err
		}
		return fn(cmd.Context(), e, c, args)
	}
}

func newRootCommand(cli cliConfig) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "Submit and query OREC proposals",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().
		StringSliceVar(&globalFlags.nodeURLs, "node", []string{cli.NodeURL}, "ornode base URL, repeat for failover")
	rootCmd.PersistentFlags().
		DurationVar(&globalFlags.timeout, "timeout", 15*time.Second, "per-request timeout against the ornode")
	rootCmd.PersistentFlags().
		BoolVarP(&globalFlags.debug, "debug", "D", false, "enable debug logging")

	rootCmd.AddCommand(putCommand())
	rootCmd.AddCommand(getCommand())
	rootCmd.AddCommand(listCommand())
	rootCmd.AddCommand(periodCommand())
	rootCmd.AddCommand(proposeCommand())
	rootCmd.AddCommand(voteCommand())
	rootCmd.AddCommand(executeCommand())
	rootCmd.AddCommand(onchainCommand())
	rootCmd.AddCommand(watchCommand())
	return rootCmd
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cli, err := loadCLIConfig()
	if err == nil {
		err = newRootCommand(cli).ExecuteContext(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", programName, err)
		cancel()
		os.Exit(1)
	}
}
