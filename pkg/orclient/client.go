// Package orclient submits proposals to the OREC contract and their content
// to an ornode.
//
// A submission has two phases. The proposal is first created on chain,
// by proposing it or by voting on it, and once the transaction is
// confirmed the content is pushed to the node. The node refuses content
// for proposals the chain has not created, which fixes the order. A
// failure in the second phase never undoes the first: it is reported as
// *PutProposalFailure and the push alone is retried with RetryPut.
package orclient

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/fractalrespect/orecx/pkg/chain"
	"github.com/fractalrespect/orecx/pkg/ortypes"
	"github.com/fractalrespect/orecx/pkg/validation"
	"go.uber.org/zap"
)

// VoteRequest accompanies a submission. Voting also creates the proposal,
// so a submission with a vote other than chain.VoteNone sends a single vote
// transaction.
type VoteRequest struct {
	Vote chain.VoteType
	Memo []byte
}

// DefaultVote is used by the Propose* helpers when no vote is given.
var DefaultVote = VoteRequest{Vote: chain.VoteYes}

// Client couples a chain gateway with an ornode.
type Client struct {
	chain   chain.Gateway
	node    ortypes.Node
	builder *Builder
	cfg     Config
	logger  *zap.Logger
}

type Option func(*Client)

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithBuilder enables the Propose* helpers.
func WithBuilder(b *Builder) Option {
	return func(c *Client) { c.builder = b }
}

func New(gw chain.Gateway, node ortypes.Node, cfg Config, opts ...Option) *Client {
	if cfg.PropConfirms == 0 {
		cfg.PropConfirms = DefaultConfig().PropConfirms
	}
	c := &Client{chain: gw, node: node, cfg: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit runs both phases for an already built proposal. Invalid content
// is rejected before anything is broadcast.
func (c *Client) Submit(ctx context.Context, candidate ortypes.Full, vote *VoteRequest) (ortypes.Full, error) {
	full, err := validation.ValidateFull(candidate)
	if err != nil {
		return ortypes.Full{}, err
	}

	receipt, err := c.submitToChain(ctx, full, vote)
	if err != nil {
		return ortypes.Full{}, err
	}
	c.logger.Info("Proposal confirmed onchain",
		zap.String("propId", full.ID.String()),
		zap.String("txHash", receipt.TxHash),
		zap.Uint64("block", receipt.BlockNumber))

	status, err := c.RetryPut(ctx, full)
	if err != nil {
		return ortypes.Full{}, err
	}
	c.logger.Info("Proposal content pushed to ornode",
		zap.String("propId", full.ID.String()),
		zap.String("propStatus", string(status)))
	return full, nil
}

// RetryPut pushes content for a proposal already created on chain. It is
// the second phase of Submit and the recovery step after a
// *PutProposalFailure. Any failure is returned as *PutProposalFailure.
func (c *Client) RetryPut(ctx context.Context, full ortypes.Full) (ortypes.PropStatus, error) {
	if c.cfg.PutTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.PutTimeout)
		defer cancel()
	}
	status, err := c.node.PutProposal(ctx, full)
	if err != nil {
		c.logger.Warn("Pushing proposal content failed",
			zap.String("propId", full.ID.String()),
			zap.Error(err))
		return "", &PutProposalFailure{Proposal: full, Err: err}
	}
	return status, nil
}

func (c *Client) submitToChain(ctx context.Context, full ortypes.Full, vote *VoteRequest) (*chain.Receipt, error) {
	var (
		tx  chain.PendingTx
		err error
	)
	if vote != nil && vote.Vote != chain.VoteNone {
		tx, err = c.chain.Vote(ctx, full.ID, vote.Vote, vote.Memo)
	} else {
		tx, err = c.chain.Propose(ctx, full.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("submit proposal %s: %w", full.ID, err)
	}
	return c.confirm(ctx, tx)
}

// confirm waits for PropConfirms confirmations of a broadcast transaction.
func (c *Client) confirm(ctx context.Context, tx chain.PendingTx) (*chain.Receipt, error) {
	waitCtx := ctx
	if c.cfg.ConfirmTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, c.cfg.ConfirmTimeout)
		defer cancel()
	}

	receipt, err := tx.Wait(waitCtx, c.cfg.PropConfirms)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			c.logger.Warn("Stopped waiting for confirmations",
				zap.String("txHash", tx.Hash()),
				zap.Error(err))
			return nil, &ConfirmationTimeoutError{TxHash: tx.Hash(), Err: err}
		}
		return nil, fmt.Errorf("wait for %s: %w", tx.Hash(), err)
	}
	if !receipt.Success {
		return nil, &TxFailedError{TxHash: tx.Hash(), Receipt: receipt}
	}
	return receipt, nil
}

// Vote casts a vote on an existing proposal and waits for confirmations.
func (c *Client) Vote(ctx context.Context, id ortypes.PropID, vote chain.VoteType, memo []byte) (*chain.Receipt, error) {
	if vote == chain.VoteNone {
		return nil, errors.New("vote: a yes or no vote is required")
	}
	tx, err := c.chain.Vote(ctx, id, vote, memo)
	if err != nil {
		return nil, fmt.Errorf("vote on %s: %w", id, err)
	}
	return c.confirm(ctx, tx)
}

// Execute fetches the content of id from the node and executes it on chain.
func (c *Client) Execute(ctx context.Context, id ortypes.PropID) (*chain.Receipt, error) {
	prop, err := c.node.GetProposal(ctx, id)
	if err != nil {
		return nil, err
	}
	full, ok := prop.(ortypes.Full)
	if !ok {
		return nil, fmt.Errorf("execute %s: proposal content was never uploaded", id)
	}
	tx, err := c.chain.Execute(ctx, full.Content)
	if err != nil {
		return nil, fmt.Errorf("execute %s: %w", id, err)
	}
	return c.confirm(ctx, tx)
}

func (c *Client) GetProposal(ctx context.Context, id ortypes.PropID) (ortypes.Proposal, error) {
	return c.node.GetProposal(ctx, id)
}

// ListProposals returns proposals newest first. A limit of 0 means 50.
func (c *Client) ListProposals(ctx context.Context, from, limit int) ([]ortypes.Proposal, error) {
	if limit == 0 {
		limit = 50
	}
	return c.node.GetProposals(ctx, from, limit)
}

func (c *Client) GetPeriodNum(ctx context.Context) (uint64, error) {
	return c.node.GetPeriodNum(ctx)
}

// NextMeetingNum is the meeting whose results are proposed next.
func (c *Client) NextMeetingNum(ctx context.Context) (uint64, error) {
	n, err := c.node.GetPeriodNum(ctx)
	if err != nil {
		return 0, err
	}
	return n + 1, nil
}

// LastMeetingNum is the most recently ticked meeting.
func (c *Client) LastMeetingNum(ctx context.Context) (uint64, error) {
	return c.node.GetPeriodNum(ctx)
}

// OnchainProposal is the chain's view of a proposal.
type OnchainProposal struct {
	ID         ortypes.PropID
	CreateTime time.Time
	YesWeight  *big.Int
	NoWeight   *big.Int
	Status     chain.ExecStatus
	Stage      chain.Stage
	VoteStatus chain.VoteStatus
}

// GetOnchainProposal reads the chain's state of id. It fails with
// *ortypes.ProposalNotFoundError when the chain has not created it.
func (c *Client) GetOnchainProposal(ctx context.Context, id ortypes.PropID) (OnchainProposal, error) {
	state, err := c.chain.ProposalState(ctx, id)
	if err != nil {
		return OnchainProposal{}, fmt.Errorf("proposal state %s: %w", id, err)
	}
	if !state.Created() {
		return OnchainProposal{}, &ortypes.ProposalNotFoundError{ID: id}
	}
	stage, err := c.chain.Stage(ctx, id)
	if err != nil {
		return OnchainProposal{}, fmt.Errorf("proposal stage %s: %w", id, err)
	}
	voteStatus, err := c.chain.VoteStatus(ctx, id)
	if err != nil {
		return OnchainProposal{}, fmt.Errorf("vote status %s: %w", id, err)
	}
	return OnchainProposal{
		ID:         id,
		CreateTime: state.CreateTime,
		YesWeight:  state.YesWeight,
		NoWeight:   state.NoWeight,
		Status:     state.Status,
		Stage:      stage,
		VoteStatus: voteStatus,
	}, nil
}
