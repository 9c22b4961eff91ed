package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/fractalrespect/orecx/pkg/chain"
	"github.com/fractalrespect/orecx/pkg/chain/memchain"
	"github.com/fractalrespect/orecx/pkg/ortypes"
	"github.com/fractalrespect/orecx/pkg/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

const waitFor = 2 * time.Second

func propID(n int) ortypes.PropID {
	return ortypes.PropID(fmt.Sprintf("0x%064x", n))
}

// recordingSink logs every call in order.
type recordingSink struct {
	mu    sync.Mutex
	calls []string
	seen  map[ortypes.PropID]bool
	per   uint64
}

func (s *recordingSink) CreateStub(id ortypes.PropID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen == nil {
		s.seen = make(map[ortypes.PropID]bool)
	}
	if s.seen[id] {
		return &ortypes.DuplicateProposalError{ID: id}
	}
	s.seen[id] = true
	s.calls = append(s.calls, "create:"+string(id))
	return nil
}

func (s *recordingSink) IncrementPeriod() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.per++
	s.calls = append(s.calls, fmt.Sprintf("tick:%d", s.per))
	return s.per
}

func (s *recordingSink) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

type runResult struct{ err error }

func start(ctx context.Context, t *testing.T, ix *Indexer, mc *memchain.Chain) <-chan runResult {
	t.Helper()
	sub, err := mc.Subscribe(ctx)
	require.NoError(t, err)
	done := make(chan runResult, 1)
	go func() { done <- runResult{err: ix.Run(ctx, sub)} }()
	return done
}

func TestRunAppliesEventsInOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	mc := memchain.New()
	sink := &recordingSink{}
	var customs []string
	var mu sync.Mutex
	ix := New(sink,
		WithLogger(zaptest.NewLogger(t)),
		WithSignalHandler(func(_ context.Context, sig chain.Signal, _ chain.Event) error {
			mu.Lock()
			defer mu.Unlock()
			customs = append(customs, string(sig.Data))
			return nil
		}),
	)
	done := start(ctx, t, ix, mc)

	mc.EmitProposalCreated(propID(1))
	mc.EmitSignal(chain.SignalTick, nil)
	mc.EmitSignal(chain.SignalCustom, []byte("hello"))
	mc.EmitProposalCreated(propID(2))
	mc.EmitSignal(chain.SignalTick, nil)

	want := []string{"create:" + string(propID(1)), "tick:1", "create:" + string(propID(2)), "tick:2"}
	require.Eventually(t, func() bool { return len(sink.snapshot()) == len(want) }, waitFor, 5*time.Millisecond)
	assert.Equal(t, want, sink.snapshot())

	mu.Lock()
	assert.Equal(t, []string{"hello"}, customs)
	mu.Unlock()

	cancel()
	res := <-done
	assert.NoError(t, res.err)
}

func TestRunCountsTicksWithStore(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mc := memchain.New()
	st := store.New()
	done := start(ctx, t, New(st, WithLogger(zaptest.NewLogger(t))), mc)

	const ticks = 7
	for i := 0; i < ticks; i++ {
		mc.EmitSignal(chain.SignalTick, nil)
		mc.EmitSignal(chain.SignalCustom, []byte{byte(i)})
	}
	require.Eventually(t, func() bool {
		n, _ := st.GetPeriodNum(ctx)
		return n == ticks
	}, waitFor, 5*time.Millisecond)

	cancel()
	assert.NoError(t, (<-done).err)
}

func TestRunIgnoresUnknownSignals(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reg := prometheus.NewRegistry()
	mc := memchain.New()
	sink := &recordingSink{}
	ix := New(sink, WithLogger(zaptest.NewLogger(t)), WithMetrics(reg))
	done := start(ctx, t, ix, mc)

	mc.EmitSignal(chain.SignalType(7), []byte{1})
	mc.EmitSignal(chain.SignalTick, nil)

	require.Eventually(t, func() bool { return len(sink.snapshot()) == 1 }, waitFor, 5*time.Millisecond)
	assert.Equal(t, []string{"tick:1"}, sink.snapshot())
	assert.Equal(t, float64(1), testutil.ToFloat64(ix.metrics.ignored))
	assert.Equal(t, float64(1), testutil.ToFloat64(ix.metrics.events.WithLabelValues("tick")))

	cancel()
	assert.NoError(t, (<-done).err)
}

func TestRunStopsOnDuplicateCreate(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	mc := memchain.New()
	sink := &recordingSink{}
	done := start(ctx, t, New(sink, WithLogger(zaptest.NewLogger(t))), mc)

	mc.EmitProposalCreated(propID(3))
	mc.EmitProposalCreated(propID(3))

	select {
	case res := <-done:
		assert.ErrorIs(t, res.err, ortypes.ErrDuplicateProposal)
	case <-time.After(waitFor):
		t.Fatal("indexer did not stop on duplicate proposal")
	}
	assert.Equal(t, []string{"create:" + string(propID(3))}, sink.snapshot())

	// The subscription was released, so a new one can be opened.
	sub, err := mc.Subscribe(ctx)
	require.NoError(t, err)
	sub.Unsubscribe()
}

func TestRunReturnsSubscriptionError(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	mc := memchain.New()
	done := start(ctx, t, New(&recordingSink{}, WithLogger(zaptest.NewLogger(t))), mc)

	boom := errors.New("connection reset")
	require.NoError(t, mc.FailSubscription(boom))

	select {
	case res := <-done:
		assert.ErrorIs(t, res.err, boom)
	case <-time.After(waitFor):
		t.Fatal("indexer did not stop on subscription error")
	}
}

func TestCustomSignalHandlerErrorDoesNotStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	mc := memchain.New()
	sink := &recordingSink{}
	ix := New(sink,
		WithLogger(zaptest.NewLogger(t)),
		WithSignalHandler(func(context.Context, chain.Signal, chain.Event) error {
			return errors.New("handler failed")
		}),
	)
	done := start(ctx, t, ix, mc)

	mc.EmitSignal(chain.SignalCustom, nil)
	mc.EmitSignal(chain.SignalTick, nil)
	require.Eventually(t, func() bool { return len(sink.snapshot()) == 1 }, waitFor, 5*time.Millisecond)

	cancel()
	assert.NoError(t, (<-done).err)
}
