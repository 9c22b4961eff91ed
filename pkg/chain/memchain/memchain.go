// Package memchain is an in-memory OREC contract. It mines one block per
// transaction, emits the same events as the real contract and is used by
// tests and by the node's local development mode.
package memchain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/fractalrespect/orecx/pkg/chain"
	"github.com/fractalrespect/orecx/pkg/ortypes"
)

const defaultVoteLength = 48 * time.Hour

type record struct {
	state chain.ProposalState
	stage chain.Stage
}

// Chain implements chain.Gateway in memory.
type Chain struct {
	mu       sync.Mutex
	head     uint64
	txCount  uint64
	props    map[ortypes.PropID]*record
	sub      *subscription
	blockCh  chan struct{}
	failNext int

	autoMine   bool
	voteLength time.Duration
	voteWeight int64
	now        func() time.Time
}

// Option configures a Chain.
type Option func(*Chain)

// WithManualMining stops Wait from mining blocks on demand; blocks then only
// advance with transactions or Mine.
func WithManualMining() Option {
	return func(c *Chain) { c.autoMine = false }
}

// WithVoteLength sets the voting period reported by VoteLength.
func WithVoteLength(d time.Duration) Option {
	return func(c *Chain) { c.voteLength = d }
}

// WithVoteWeight sets the weight each vote adds.
func WithVoteWeight(w int64) Option {
	return func(c *Chain) { c.voteWeight = w }
}

// WithClock replaces time.Now for proposal creation times.
func WithClock(now func() time.Time) Option {
	return func(c *Chain) { c.now = now }
}

// New returns an empty chain.
func New(opts ...Option) *Chain {
	c := &Chain{
		props:      make(map[ortypes.PropID]*record),
		blockCh:    make(chan struct{}),
		autoMine:   true,
		voteLength: defaultVoteLength,
		voteWeight: 1,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FailNext makes the next n transactions revert.
func (c *Chain) FailNext(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failNext += n
}

// Mine appends n empty blocks.
func (c *Chain) Mine(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := 0; i < n; i++ {
		c.mineLocked()
	}
}

// Head returns the latest block number.
func (c *Chain) Head() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.head
}

// EmitSignal mines a block carrying a Signal event, as executing a signal
// proposal would.
func (c *Chain) EmitSignal(st chain.SignalType, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mineLocked()
	c.emitLocked(chain.Event{Kind: chain.EventSignal, Signal: chain.Signal{Type: st, Data: data}})
}

// EmitProposalCreated mines a block carrying a raw ProposalCreated event
// without touching contract state.
func (c *Chain) EmitProposalCreated(id ortypes.PropID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mineLocked()
	c.emitLocked(chain.Event{Kind: chain.EventProposalCreated, PropID: id})
}

func (c *Chain) Propose(_ context.Context, id ortypes.PropID) (chain.PendingTx, error) {
	if !id.Valid() {
		return nil, fmt.Errorf("propose: invalid proposal id %q", id)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	_, exists := c.props[id]
	return c.txLocked(!exists, func() {
		c.createLocked(id)
	}), nil
}

func (c *Chain) Vote(_ context.Context, id ortypes.PropID, vote chain.VoteType, _ []byte) (chain.PendingTx, error) {
	if !id.Valid() {
		return nil, fmt.Errorf("vote: invalid proposal id %q", id)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	ok := vote == chain.VoteYes || vote == chain.VoteNo
	if rec, exists := c.props[id]; exists && rec.stage != chain.StageVoting {
		ok = false
	}
	return c.txLocked(ok, func() {
		rec, exists := c.props[id]
		if !exists {
			rec = c.createLocked(id)
		}
		w := big.NewInt(c.voteWeight)
		if vote == chain.VoteYes {
			rec.state.YesWeight.Add(rec.state.YesWeight, w)
		} else {
			rec.state.NoWeight.Add(rec.state.NoWeight, w)
		}
	}), nil
}

func (c *Chain) Execute(_ context.Context, content ortypes.Content) (chain.PendingTx, error) {
	id, err := content.ID()
	if err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, exists := c.props[id]
	ok := exists && rec.state.Status == chain.ExecNotExecuted
	return c.txLocked(ok, func() {
		rec.state.Status = chain.ExecExecuted
		rec.stage = chain.StageExpired
	}), nil
}

// SetStage overrides the stage of a known proposal.
func (c *Chain) SetStage(id ortypes.PropID, stage chain.Stage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.props[id]
	if !ok {
		return fmt.Errorf("proposal %s not created", id)
	}
	rec.stage = stage
	return nil
}

func (c *Chain) ProposalState(_ context.Context, id ortypes.PropID) (chain.ProposalState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.props[id]
	if !ok {
		return chain.ProposalState{YesWeight: new(big.Int), NoWeight: new(big.Int)}, nil
	}
	return chain.ProposalState{
		CreateTime: rec.state.CreateTime,
		YesWeight:  new(big.Int).Set(rec.state.YesWeight),
		NoWeight:   new(big.Int).Set(rec.state.NoWeight),
		Status:     rec.state.Status,
	}, nil
}

func (c *Chain) Stage(_ context.Context, id ortypes.PropID) (chain.Stage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.props[id]
	if !ok {
		return 0, fmt.Errorf("proposal %s not created", id)
	}
	return rec.stage, nil
}

func (c *Chain) VoteStatus(_ context.Context, id ortypes.PropID) (chain.VoteStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.props[id]
	if !ok {
		return 0, fmt.Errorf("proposal %s not created", id)
	}
	passing := rec.state.YesWeight.Cmp(rec.state.NoWeight) > 0
	switch {
	case rec.stage == chain.StageVoting || rec.stage == chain.StageVeto:
		if passing {
			return chain.VoteStatusPassing, nil
		}
		return chain.VoteStatusFailing, nil
	case passing:
		return chain.VoteStatusPassed, nil
	default:
		return chain.VoteStatusFailed, nil
	}
}

func (c *Chain) VoteLength(context.Context) (time.Duration, error) {
	return c.voteLength, nil
}

// Subscribe starts delivering events emitted from now on.
func (c *Chain) Subscribe(context.Context) (chain.Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sub != nil {
		return nil, chain.ErrAlreadySubscribed
	}
	s := newSubscription(func(s *subscription) {
		c.mu.Lock()
		if c.sub == s {
			c.sub = nil
		}
		c.mu.Unlock()
	})
	c.sub = s
	return s, nil
}

func (c *Chain) createLocked(id ortypes.PropID) *record {
	rec := &record{
		state: chain.ProposalState{
			CreateTime: c.now(),
			YesWeight:  new(big.Int),
			NoWeight:   new(big.Int),
		},
		stage: chain.StageVoting,
	}
	c.props[id] = rec
	c.emitLocked(chain.Event{Kind: chain.EventProposalCreated, PropID: id})
	return rec
}

// txLocked mines a block for a transaction. apply runs only when the
// transaction succeeds.
func (c *Chain) txLocked(ok bool, apply func()) *pendingTx {
	c.txCount++
	c.mineLocked()
	if c.failNext > 0 {
		c.failNext--
		ok = false
	}
	if ok {
		apply()
	}
	return &pendingTx{
		chain: c,
		receipt: chain.Receipt{
			TxHash:      fmt.Sprintf("0x%064x", c.txCount),
			BlockNumber: c.head,
			Success:     ok,
		},
	}
}

func (c *Chain) mineLocked() {
	c.head++
	close(c.blockCh)
	c.blockCh = make(chan struct{})
}

func (c *Chain) emitLocked(ev chain.Event) {
	ev.BlockNumber = c.head
	if c.sub != nil {
		c.sub.push(ev)
	}
}

type pendingTx struct {
	chain   *Chain
	receipt chain.Receipt
}

func (p *pendingTx) Hash() string { return p.receipt.TxHash }

func (p *pendingTx) Wait(ctx context.Context, confirmations uint64) (*chain.Receipt, error) {
	if confirmations == 0 {
		confirmations = 1
	}
	target := p.receipt.BlockNumber + confirmations - 1
	for {
		p.chain.mu.Lock()
		if p.chain.head >= target {
			p.chain.mu.Unlock()
			r := p.receipt
			return &r, nil
		}
		if p.chain.autoMine {
			p.chain.mineLocked()
			p.chain.mu.Unlock()
			continue
		}
		next := p.chain.blockCh
		p.chain.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-next:
		}
	}
}

type subscription struct {
	mu      sync.Mutex
	queue   []chain.Event
	notify  chan struct{}
	events  chan chain.Event
	errs    chan error
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
	release func(*subscription)
}

func newSubscription(release func(*subscription)) *subscription {
	s := &subscription{
		notify:  make(chan struct{}, 1),
		events:  make(chan chain.Event),
		errs:    make(chan error, 1),
		done:    make(chan struct{}),
		release: release,
	}
	s.wg.Add(1)
	go s.pump()
	return s
}

func (s *subscription) Events() <-chan chain.Event { return s.events }
func (s *subscription) Err() <-chan error          { return s.errs }

// Fail delivers err on the error channel, as a dropped connection would.
func (s *subscription) Fail(err error) {
	select {
	case s.errs <- err:
	default:
	}
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
		s.release(s)
	})
}

func (s *subscription) push(ev chain.Event) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// pump forwards queued events in order so that emitting never blocks the chain.
func (s *subscription) pump() {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-s.done:
				return
			case <-s.notify:
				continue
			}
		}
		ev := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case <-s.done:
			return
		case s.events <- ev:
		}
	}
}

// FailSubscription injects err into the active subscription.
func (c *Chain) FailSubscription(err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sub == nil {
		return errors.New("no active subscription")
	}
	c.sub.Fail(err)
	return nil
}
