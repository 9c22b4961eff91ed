package memchain

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/fractalrespect/orecx/pkg/chain"
	"github.com/fractalrespect/orecx/pkg/ortypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func propID(b string) ortypes.PropID {
	return ortypes.PropID("0x" + strings.Repeat(b, 32))
}

func nextEvent(t *testing.T, sub chain.Subscription) chain.Event {
	t.Helper()
	select {
	case ev := <-sub.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return chain.Event{}
	}
}

func TestProposeAndWait(t *testing.T) {
	c := New()
	ctx := context.Background()

	tx, err := c.Propose(ctx, propID("01"))
	require.NoError(t, err)

	receipt, err := tx.Wait(ctx, 3)
	require.NoError(t, err)
	assert.True(t, receipt.Success)
	assert.GreaterOrEqual(t, c.Head(), receipt.BlockNumber+2)

	state, err := c.ProposalState(ctx, propID("01"))
	require.NoError(t, err)
	assert.True(t, state.Created())
	assert.True(t, state.Weightless())

	// The contract rejects a second creation of the same id.
	tx, err = c.Propose(ctx, propID("01"))
	require.NoError(t, err)
	receipt, err = tx.Wait(ctx, 1)
	require.NoError(t, err)
	assert.False(t, receipt.Success)
}

func TestVote(t *testing.T) {
	c := New(WithVoteWeight(5))
	ctx := context.Background()

	tx, err := c.Vote(ctx, propID("02"), chain.VoteYes, nil)
	require.NoError(t, err)
	receipt, err := tx.Wait(ctx, 1)
	require.NoError(t, err)
	require.True(t, receipt.Success)

	state, err := c.ProposalState(ctx, propID("02"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), state.YesWeight.Int64())
	assert.False(t, state.Weightless())

	status, err := c.VoteStatus(ctx, propID("02"))
	require.NoError(t, err)
	assert.Equal(t, chain.VoteStatusPassing, status)

	tx, err = c.Vote(ctx, propID("02"), chain.VoteNone, nil)
	require.NoError(t, err)
	receipt, err = tx.Wait(ctx, 1)
	require.NoError(t, err)
	assert.False(t, receipt.Success)
}

func TestFailNext(t *testing.T) {
	c := New()
	ctx := context.Background()
	c.FailNext(1)

	tx, err := c.Propose(ctx, propID("03"))
	require.NoError(t, err)
	receipt, err := tx.Wait(ctx, 1)
	require.NoError(t, err)
	assert.False(t, receipt.Success)

	state, err := c.ProposalState(ctx, propID("03"))
	require.NoError(t, err)
	assert.False(t, state.Created())
}

func TestWaitManualMining(t *testing.T) {
	c := New(WithManualMining())

	tx, err := c.Propose(context.Background(), propID("04"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = tx.Wait(ctx, 2)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	done := make(chan *chain.Receipt, 1)
	go func() {
		r, _ := tx.Wait(context.Background(), 2)
		done <- r
	}()
	c.Mine(1)
	select {
	case r := <-done:
		require.NotNil(t, r)
		assert.True(t, r.Success)
	case <-time.After(2 * time.Second):
		t.Fatal("wait did not return after mining")
	}
}

func TestSubscription(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := New()
	ctx := context.Background()

	sub, err := c.Subscribe(ctx)
	require.NoError(t, err)

	_, err = c.Subscribe(ctx)
	assert.ErrorIs(t, err, chain.ErrAlreadySubscribed)

	_, err = c.Propose(ctx, propID("05"))
	require.NoError(t, err)
	c.EmitSignal(chain.SignalTick, []byte("t"))
	c.EmitProposalCreated(propID("06"))

	ev := nextEvent(t, sub)
	assert.Equal(t, chain.EventProposalCreated, ev.Kind)
	assert.Equal(t, propID("05"), ev.PropID)

	ev = nextEvent(t, sub)
	assert.Equal(t, chain.EventSignal, ev.Kind)
	assert.Equal(t, chain.SignalTick, ev.Signal.Type)

	ev = nextEvent(t, sub)
	assert.Equal(t, propID("06"), ev.PropID)

	sub.Unsubscribe()
	sub.Unsubscribe()

	// Released subscriptions free the slot.
	sub2, err := c.Subscribe(ctx)
	require.NoError(t, err)
	sub2.Unsubscribe()
}
