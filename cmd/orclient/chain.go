package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"github.com/fractalrespect/orecx/pkg/chain"
	"github.com/fractalrespect/orecx/pkg/orclient"
	"github.com/fractalrespect/orecx/pkg/ortypes"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type voteFlags struct {
	vote string
	memo string
}

func (v *voteFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&v.vote, "vote", "yes", "vote cast with the proposal: yes, no or none")
	fs.StringVar(&v.memo, "vote-memo", "", "memo attached to the vote")
}

func (v *voteFlags) request() (*orclient.VoteRequest, error) {
	vt, err := chain.ParseVoteType(v.vote)
	if err != nil {
		return nil, err
	}
	return &orclient.VoteRequest{Vote: vt, Memo: []byte(v.memo)}, nil
}

// proposeRun reports a failed content push with the command that
// recovers it.
func proposeRun(fn func(ctx context.Context, c *orclient.Client, vote *orclient.VoteRequest, args []string) (ortypes.Full, error), vf *voteFlags) func(*cobra.Command, []string) error {
	return run(true, func(ctx context.Context, e *env, c *orclient.Client, args []string) error {
		vote, err := vf.request()
		if err != nil {
			return err
		}
		full, err := fn(ctx, c, vote, args)
		var putErr *orclient.PutProposalFailure
		if errors.As(err, &putErr) {
			_ = printJSON(putErr.Proposal)
			return fmt.Errorf("%w; save the proposal above and run `orclient put <file>` to retry", err)
		}
		if err != nil {
			return err
		}
		return printJSON(full)
	})
}

func proposeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "propose",
		Short: "Create a proposal on chain and push its content to the ornode",
	}
	cmd.AddCommand(proposeBreakoutCommand())
	cmd.AddCommand(proposeRespectCommand())
	cmd.AddCommand(proposeBurnCommand())
	cmd.AddCommand(proposeSignalCommand())
	cmd.AddCommand(proposeTickCommand())
	cmd.AddCommand(proposeCallCommand())
	return cmd
}

func proposeBreakoutCommand() *cobra.Command {
	var (
		vf             voteFlags
		group, meeting uint64
	)
	cmd := &cobra.Command{
		Use:   "breakout <address>...",
		Short: "Mint breakout room respect, best rank first",
		Args:  cobra.RangeArgs(3, 6),
		RunE: proposeRun(func(ctx context.Context, c *orclient.Client, vote *orclient.VoteRequest, args []string) (ortypes.Full, error) {
			return c.ProposeBreakout(ctx, orclient.RespectBreakoutRequest{
				GroupNum:   group,
				MeetingNum: meeting,
				Rankings:   args,
			}, vote)
		}, &vf),
	}
	vf.register(cmd.Flags())
	cmd.Flags().Uint64Var(&group, "group", 0, "breakout group number")
	cmd.Flags().Uint64Var(&meeting, "meeting", 0, "meeting number, defaults to the next meeting")
	_ = cmd.MarkFlagRequired("group")
	return cmd
}

func proposeRespectCommand() *cobra.Command {
	var (
		vf             voteFlags
		value, meeting uint64
		mintType       uint8
		title, reason  string
	)
	cmd := &cobra.Command{
		Use:   "respect <address>",
		Short: "Mint respect to one account",
		Args:  cobra.ExactArgs(1),
		RunE: proposeRun(func(ctx context.Context, c *orclient.Client, vote *orclient.VoteRequest, args []string) (ortypes.Full, error) {
			return c.ProposeRespectTo(ctx, orclient.RespectAccountRequest{
				Account:    args[0],
				Value:      value,
				MeetingNum: meeting,
				MintType:   mintType,
				Title:      title,
				Reason:     reason,
			}, vote)
		}, &vf),
	}
	vf.register(cmd.Flags())
	cmd.Flags().Uint64Var(&value, "value", 0, "amount of respect")
	cmd.Flags().Uint64Var(&meeting, "meeting", 0, "meeting number, defaults to the last meeting")
	cmd.Flags().Uint8Var(&mintType, "mint-type", orclient.MintTypeRespectAccount, "token mint type")
	cmd.Flags().StringVar(&title, "title", "", "proposal title")
	cmd.Flags().StringVar(&reason, "reason", "", "mint reason")
	_ = cmd.MarkFlagRequired("value")
	return cmd
}

func proposeBurnCommand() *cobra.Command {
	var (
		vf     voteFlags
		reason string
	)
	cmd := &cobra.Command{
		Use:   "burn <tokenId>",
		Short: "Burn a respect token",
		Args:  cobra.ExactArgs(1),
		RunE: proposeRun(func(ctx context.Context, c *orclient.Client, vote *orclient.VoteRequest, args []string) (ortypes.Full, error) {
			tokenID, ok := new(big.Int).SetString(args[0], 0)
			if !ok {
				return ortypes.Full{}, fmt.Errorf("invalid token id %q", args[0])
			}
			return c.ProposeBurnRespect(ctx, orclient.BurnRespectRequest{TokenID: tokenID, Reason: reason}, vote)
		}, &vf),
	}
	vf.register(cmd.Flags())
	cmd.Flags().StringVar(&reason, "reason", "", "burn reason")
	return cmd
}

func proposeSignalCommand() *cobra.Command {
	var (
		vf                      voteFlags
		data, link, title, desc string
	)
	cmd := &cobra.Command{
		Use:   "signal",
		Short: "Emit a custom signal",
		Args:  cobra.NoArgs,
		RunE: proposeRun(func(ctx context.Context, c *orclient.Client, vote *orclient.VoteRequest, _ []string) (ortypes.Full, error) {
			return c.ProposeCustomSignal(ctx, orclient.CustomSignalRequest{
				Data:        []byte(data),
				Link:        link,
				Title:       title,
				Description: desc,
			}, vote)
		}, &vf),
	}
	vf.register(cmd.Flags())
	cmd.Flags().StringVar(&data, "data", "", "signal data")
	cmd.Flags().StringVar(&link, "link", "", "link describing the signal")
	cmd.Flags().StringVar(&title, "title", "", "proposal title")
	cmd.Flags().StringVar(&desc, "description", "", "proposal description")
	return cmd
}

func proposeTickCommand() *cobra.Command {
	var (
		vf         voteFlags
		data, link string
	)
	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Advance the period counter",
		Args:  cobra.NoArgs,
		RunE: proposeRun(func(ctx context.Context, c *orclient.Client, vote *orclient.VoteRequest, _ []string) (ortypes.Full, error) {
			return c.ProposeTick(ctx, orclient.TickRequest{Data: []byte(data), Link: link}, vote)
		}, &vf),
	}
	vf.register(cmd.Flags())
	cmd.Flags().StringVar(&data, "data", "", "tick data")
	cmd.Flags().StringVar(&link, "link", "", "link describing the meeting")
	return cmd
}

func proposeCallCommand() *cobra.Command {
	var (
		vf          voteFlags
		title, desc string
	)
	cmd := &cobra.Command{
		Use:   "call <address> <cdata>",
		Short: "Propose an arbitrary contract call",
		Args:  cobra.ExactArgs(2),
		RunE: proposeRun(func(ctx context.Context, c *orclient.Client, vote *orclient.VoteRequest, args []string) (ortypes.Full, error) {
			return c.ProposeCustomCall(ctx, orclient.CustomCallRequest{
				Address:     args[0],
				CData:       args[1],
				Title:       title,
				Description: desc,
			}, vote)
		}, &vf),
	}
	vf.register(cmd.Flags())
	cmd.Flags().StringVar(&title, "title", "", "proposal title")
	cmd.Flags().StringVar(&desc, "description", "", "proposal description")
	return cmd
}

func voteCommand() *cobra.Command {
	var memo string
	cmd := &cobra.Command{
		Use:   "vote <propId> <yes|no>",
		Short: "Vote on an existing proposal",
		Args:  cobra.ExactArgs(2),
		RunE: run(true, func(ctx context.Context, _ *env, c *orclient.Client, args []string) error {
			id, err := ortypes.ParsePropID(args[0])
			if err != nil {
				return err
			}
			vt, err := chain.ParseVoteType(args[1])
			if err != nil {
				return err
			}
			receipt, err := c.Vote(ctx, id, vt, []byte(memo))
			if err != nil {
				return err
			}
			return printJSON(receipt)
		}),
	}
	cmd.Flags().StringVar(&memo, "memo", "", "vote memo")
	return cmd
}

func executeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "execute <propId>",
		Short: "Execute a passed proposal using the content stored on the ornode",
		Args:  cobra.ExactArgs(1),
		RunE: run(true, func(ctx context.Context, _ *env, c *orclient.Client, args []string) error {
			id, err := ortypes.ParsePropID(args[0])
			if err != nil {
				return err
			}
			receipt, err := c.Execute(ctx, id)
			if err != nil {
				return err
			}
			return printJSON(receipt)
		}),
	}
}

func onchainCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "onchain <propId>",
		Short: "Show the chain's state of a proposal",
		Args:  cobra.ExactArgs(1),
		RunE: run(true, func(ctx context.Context, _ *env, c *orclient.Client, args []string) error {
			id, err := ortypes.ParsePropID(args[0])
			if err != nil {
				return err
			}
			p, err := c.GetOnchainProposal(ctx, id)
			if err != nil {
				return err
			}
			return printJSON(map[string]string{
				"id":         p.ID.String(),
				"createTime": p.CreateTime.UTC().Format("2006-01-02T15:04:05Z"),
				"yesWeight":  p.YesWeight.String(),
				"noWeight":   p.NoWeight.String(),
				"execStatus": strconv.Itoa(int(p.Status)),
				"stage":      strconv.Itoa(int(p.Stage)),
				"voteStatus": strconv.Itoa(int(p.VoteStatus)),
			})
		}),
	}
}
