package orclient

import (
	"context"
	"errors"

	"github.com/fractalrespect/orecx/pkg/ortypes"
)

// ErrNoBuilder is returned by the Propose* helpers of a client built
// without WithBuilder.
var ErrNoBuilder = errors.New("orclient: no proposal builder configured")

// The Propose* helpers build a proposal and Submit it. A nil vote means
// DefaultVote; pass a VoteRequest with chain.VoteNone to only propose.

// ProposeBreakout submits breakout results. A zero MeetingNum is filled
// with NextMeetingNum.
func (c *Client) ProposeBreakout(ctx context.Context, req RespectBreakoutRequest, vote *VoteRequest) (ortypes.Full, error) {
	if c.builder == nil {
		return ortypes.Full{}, ErrNoBuilder
	}
	if req.MeetingNum == 0 {
		n, err := c.NextMeetingNum(ctx)
		if err != nil {
			return ortypes.Full{}, err
		}
		req.MeetingNum = n
	}
	return c.propose(ctx, func() (ortypes.Full, error) { return c.builder.RespectBreakout(req) }, vote)
}

// ProposeRespectTo mints respect to a single account. A zero MeetingNum is
// filled with LastMeetingNum.
func (c *Client) ProposeRespectTo(ctx context.Context, req RespectAccountRequest, vote *VoteRequest) (ortypes.Full, error) {
	if c.builder == nil {
		return ortypes.Full{}, ErrNoBuilder
	}
	if req.MeetingNum == 0 {
		n, err := c.LastMeetingNum(ctx)
		if err != nil {
			return ortypes.Full{}, err
		}
		req.MeetingNum = n
	}
	return c.propose(ctx, func() (ortypes.Full, error) { return c.builder.RespectAccount(req) }, vote)
}

func (c *Client) ProposeBurnRespect(ctx context.Context, req BurnRespectRequest, vote *VoteRequest) (ortypes.Full, error) {
	return c.propose(ctx, func() (ortypes.Full, error) { return c.builder.BurnRespect(req) }, vote)
}

func (c *Client) ProposeCustomSignal(ctx context.Context, req CustomSignalRequest, vote *VoteRequest) (ortypes.Full, error) {
	return c.propose(ctx, func() (ortypes.Full, error) { return c.builder.CustomSignal(req) }, vote)
}

func (c *Client) ProposeTick(ctx context.Context, req TickRequest, vote *VoteRequest) (ortypes.Full, error) {
	return c.propose(ctx, func() (ortypes.Full, error) { return c.builder.Tick(req) }, vote)
}

func (c *Client) ProposeCustomCall(ctx context.Context, req CustomCallRequest, vote *VoteRequest) (ortypes.Full, error) {
	return c.propose(ctx, func() (ortypes.Full, error) { return c.builder.CustomCall(req) }, vote)
}

func (c *Client) propose(ctx context.Context, build func() (ortypes.Full, error), vote *VoteRequest) (ortypes.Full, error) {
	if c.builder == nil {
		return ortypes.Full{}, ErrNoBuilder
	}
	full, err := build()
	if err != nil {
		return ortypes.Full{}, err
	}
	if vote == nil {
		v := DefaultVote
		vote = &v
	}
	return c.Submit(ctx, full, vote)
}
