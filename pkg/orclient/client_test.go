package orclient

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fractalrespect/orecx/pkg/chain"
	"github.com/fractalrespect/orecx/pkg/chain/memchain"
	"github.com/fractalrespect/orecx/pkg/indexer"
	"github.com/fractalrespect/orecx/pkg/ortypes"
	"github.com/fractalrespect/orecx/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	orecAddr    = "0x5fc8a2626F6Caf00c4Af06436c12C831a2f61c66"
	respectAddr = "0x0B306BF915C4d645ff596e518fAf3F9669b97016"
)

// fakeNode answers PutProposal with the queued errors, then succeeds.
type fakeNode struct {
	mu      sync.Mutex
	errs    []error
	puts    []ortypes.Full
	props   map[ortypes.PropID]ortypes.Proposal
	period  uint64
	periodE error
}

func (n *fakeNode) PutProposal(_ context.Context, p ortypes.Full) (ortypes.PropStatus, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.puts = append(n.puts, p)
	if len(n.errs) > 0 {
		err := n.errs[0]
		n.errs = n.errs[1:]
		return "", err
	}
	return ortypes.PropStored, nil
}

func (n *fakeNode) GetProposal(_ context.Context, id ortypes.PropID) (ortypes.Proposal, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if p, ok := n.props[id]; ok {
		return p, nil
	}
	return nil, &ortypes.ProposalNotFoundError{ID: id}
}

func (n *fakeNode) GetProposals(context.Context, int, int) ([]ortypes.Proposal, error) {
	return nil, &ortypes.OutOfRangeError{Param: "from", Value: 0, Bound: "in [0, 0)"}
}

func (n *fakeNode) GetPeriodNum(context.Context) (uint64, error) {
	return n.period, n.periodE
}

func (n *fakeNode) putCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.puts)
}

func testBuilder(t *testing.T) *Builder {
	t.Helper()
	b, err := NewBuilder(orecAddr, respectAddr)
	require.NoError(t, err)
	return b
}

func tickProposal(t *testing.T) ortypes.Full {
	t.Helper()
	full, err := testBuilder(t).Tick(TickRequest{})
	require.NoError(t, err)
	return full
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ConfirmTimeout = time.Second
	cfg.PutTimeout = time.Second
	return cfg
}

func TestSubmitDecidesVoteOrPropose(t *testing.T) {
	tests := []struct {
		name    string
		vote    *VoteRequest
		wantYes int64
	}{
		{name: "no vote request", vote: nil, wantYes: 0},
		{name: "abstain", vote: &VoteRequest{Vote: chain.VoteNone}, wantYes: 0},
		{name: "yes vote", vote: &VoteRequest{Vote: chain.VoteYes, Memo: []byte("gm")}, wantYes: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			mc := memchain.New()
			node := &fakeNode{}
			c := New(mc, node, testConfig(), WithLogger(zaptest.NewLogger(t)))
			prop := tickProposal(t)

			got, err := c.Submit(ctx, prop, tt.vote)
			require.NoError(t, err)
			assert.Equal(t, prop, got)
			assert.Equal(t, []ortypes.Full{prop}, node.puts)

			state, err := mc.ProposalState(ctx, prop.ID)
			require.NoError(t, err)
			assert.True(t, state.Created())
			assert.Equal(t, tt.wantYes, state.YesWeight.Int64())
		})
	}
}

func TestSubmitTxFailed(t *testing.T) {
	mc := memchain.New()
	mc.FailNext(1)
	node := &fakeNode{}
	c := New(mc, node, testConfig(), WithLogger(zaptest.NewLogger(t)))

	_, err := c.Submit(context.Background(), tickProposal(t), nil)
	var txErr *TxFailedError
	require.ErrorAs(t, err, &txErr)
	require.NotNil(t, txErr.Receipt)
	assert.False(t, txErr.Receipt.Success)
	assert.NotEmpty(t, txErr.TxHash)
	assert.Zero(t, node.putCount())
}

func TestSubmitConfirmationTimeout(t *testing.T) {
	ctx := context.Background()
	mc := memchain.New(memchain.WithManualMining())
	node := &fakeNode{}
	cfg := testConfig()
	cfg.ConfirmTimeout = 20 * time.Millisecond
	c := New(mc, node, cfg, WithLogger(zaptest.NewLogger(t)))
	prop := tickProposal(t)

	_, err := c.Submit(ctx, prop, nil)
	var timeout *ConfirmationTimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.NotEmpty(t, timeout.TxHash)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, node.putCount())

	// The transaction was broadcast regardless.
	state, err := mc.ProposalState(ctx, prop.ID)
	require.NoError(t, err)
	assert.True(t, state.Created())
}

func TestSubmitPutFailureThenRetryPut(t *testing.T) {
	ctx := context.Background()
	mc := memchain.New()
	node := &fakeNode{errs: []error{errors.New("connection refused")}}
	c := New(mc, node, testConfig(), WithLogger(zaptest.NewLogger(t)))
	prop := tickProposal(t)

	_, err := c.Submit(ctx, prop, &VoteRequest{Vote: chain.VoteYes})
	var putErr *PutProposalFailure
	require.ErrorAs(t, err, &putErr)
	assert.Equal(t, prop, putErr.Proposal)
	head := mc.Head()

	status, err := c.RetryPut(ctx, putErr.Proposal)
	require.NoError(t, err)
	assert.Equal(t, ortypes.PropStored, status)
	assert.Equal(t, head, mc.Head(), "retry must not send transactions")
	assert.Equal(t, 2, node.putCount())
}

func TestSubmitRejectsInvalidBeforeBroadcast(t *testing.T) {
	mc := memchain.New()
	c := New(mc, &fakeNode{}, testConfig())
	prop := tickProposal(t)
	prop.Content.Memo = "0x00"

	_, err := c.Submit(context.Background(), prop, nil)
	assert.ErrorIs(t, err, ortypes.ErrProposalInvalid)
	assert.Zero(t, mc.Head())
}

func TestSubmitEndToEnd(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mc := memchain.New(memchain.WithManualMining())
	st := store.New(store.WithLogger(zaptest.NewLogger(t)))
	sub, err := mc.Subscribe(ctx)
	require.NoError(t, err)
	ixDone := make(chan error, 1)
	go func() { ixDone <- indexer.New(st).Run(ctx, sub) }()

	c := New(mc, st, testConfig(), WithLogger(zaptest.NewLogger(t)))
	prop := tickProposal(t)

	// Content pushed before the chain created the proposal is refused.
	_, err = c.RetryPut(ctx, prop)
	assert.ErrorIs(t, err, ortypes.ErrProposalNotCreated)

	type result struct {
		full ortypes.Full
		err  error
	}
	done := make(chan result, 1)
	go func() {
		full, err := c.Submit(ctx, prop, nil)
		done <- result{full, err}
	}()

	require.Eventually(t, func() bool {
		_, err := st.GetProposal(ctx, prop.ID)
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)
	mc.Mine(2)

	res := <-done
	require.NoError(t, res.err)
	got, err := st.GetProposal(ctx, prop.ID)
	require.NoError(t, err)
	assert.Equal(t, prop, got)

	status, err := c.RetryPut(ctx, prop)
	require.NoError(t, err)
	assert.Equal(t, ortypes.PropExists, status)

	cancel()
	assert.NoError(t, <-ixDone)
}

func TestExecute(t *testing.T) {
	ctx := context.Background()
	mc := memchain.New()
	prop := tickProposal(t)
	node := &fakeNode{props: map[ortypes.PropID]ortypes.Proposal{}}
	c := New(mc, node, testConfig())

	_, err := c.Execute(ctx, prop.ID)
	assert.ErrorIs(t, err, ortypes.ErrProposalNotFound)

	node.props[prop.ID] = ortypes.Stub{ID: prop.ID}
	_, err = c.Execute(ctx, prop.ID)
	assert.Error(t, err)

	_, err = c.Submit(ctx, prop, &DefaultVote)
	require.NoError(t, err)
	node.props[prop.ID] = prop

	receipt, err := c.Execute(ctx, prop.ID)
	require.NoError(t, err)
	assert.True(t, receipt.Success)

	onchain, err := c.GetOnchainProposal(ctx, prop.ID)
	require.NoError(t, err)
	assert.Equal(t, chain.ExecExecuted, onchain.Status)
}

func TestVote(t *testing.T) {
	ctx := context.Background()
	mc := memchain.New(memchain.WithVoteWeight(5))
	c := New(mc, &fakeNode{}, testConfig())
	prop := tickProposal(t)

	_, err := c.Vote(ctx, prop.ID, chain.VoteNone, nil)
	assert.Error(t, err)

	receipt, err := c.Vote(ctx, prop.ID, chain.VoteNo, nil)
	require.NoError(t, err)
	assert.True(t, receipt.Success)

	onchain, err := c.GetOnchainProposal(ctx, prop.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), onchain.NoWeight.Int64())
	assert.Equal(t, chain.StageVoting, onchain.Stage)
	assert.Equal(t, chain.VoteStatusFailing, onchain.VoteStatus)
}

func TestGetOnchainProposalUnknown(t *testing.T) {
	c := New(memchain.New(), &fakeNode{}, testConfig())
	_, err := c.GetOnchainProposal(context.Background(), tickProposal(t).ID)
	assert.ErrorIs(t, err, ortypes.ErrProposalNotFound)
}

func TestMeetingNumbers(t *testing.T) {
	ctx := context.Background()
	c := New(memchain.New(), &fakeNode{period: 4}, testConfig())

	next, err := c.NextMeetingNum(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), next)

	last, err := c.LastMeetingNum(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), last)

	failing := New(memchain.New(), &fakeNode{periodE: errors.New("down")}, testConfig())
	_, err = failing.NextMeetingNum(ctx)
	assert.Error(t, err)
}

func TestListProposalsPassesBoundsErrors(t *testing.T) {
	c := New(memchain.New(), &fakeNode{}, testConfig())
	_, err := c.ListProposals(context.Background(), 0, 0)
	assert.ErrorIs(t, err, ortypes.ErrOutOfRange)
}

func TestProposeHelpers(t *testing.T) {
	ctx := context.Background()
	mc := memchain.New()
	node := &fakeNode{period: 2}

	_, err := New(mc, node, testConfig()).ProposeTick(ctx, TickRequest{}, nil)
	assert.ErrorIs(t, err, ErrNoBuilder)

	c := New(mc, node, testConfig(), WithBuilder(testBuilder(t)))
	full, err := c.ProposeBreakout(ctx, RespectBreakoutRequest{
		GroupNum: 1,
		Rankings: []string{
			"0x1111111111111111111111111111111111111111",
			"0x2222222222222222222222222222222222222222",
			"0x3333333333333333333333333333333333333333",
		},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), full.Attachment.MeetingNum)

	state, err := mc.ProposalState(ctx, full.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), state.YesWeight.Int64(), "default vote is yes")
}

func TestPutRetryable(t *testing.T) {
	full := ortypes.Full{ID: "0x01"}
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"not created", &PutProposalFailure{Proposal: full, Err: &ortypes.ProposalNotCreatedError{Proposal: full}}, true},
		{"transport", &PutProposalFailure{Proposal: full, Err: errors.New("connection refused")}, true},
		{"invalid", &PutProposalFailure{Proposal: full, Err: &ortypes.ProposalInvalidError{Payload: full, Cause: errors.New("bad")}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PutRetryable(tt.err))
		})
	}
}
