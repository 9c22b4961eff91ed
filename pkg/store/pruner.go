package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/fractalrespect/orecx/pkg/chain"
	"github.com/fractalrespect/orecx/pkg/ortypes"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	defaultPruneWorkers = 8
	pruneRunTimeout     = 5 * time.Minute
)

// ChainReader is the part of the chain gateway the pruner needs.
type ChainReader interface {
	ProposalState(ctx context.Context, id ortypes.PropID) (chain.ProposalState, error)
}

// Pruner removes stubs that outlived the aliveness window without
// collecting any yes weight on chain.
type Pruner struct {
	store     *Store
	chain     ChainReader
	aliveness time.Duration
	workers   int
	logger    *zap.Logger
	now       func() time.Time
}

// NewPruner returns a pruner for st. aliveness is usually the contract's
// vote length.
func NewPruner(st *Store, reader ChainReader, aliveness time.Duration, logger *zap.Logger) *Pruner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pruner{
		store:     st,
		chain:     reader,
		aliveness: aliveness,
		workers:   defaultPruneWorkers,
		logger:    logger,
		now:       time.Now,
	}
}

// Prune runs one pass and returns the number of removed stubs. A stub's
// age is measured from its creation time on chain; the time the node
// observed it is used only when the chain does not know the proposal.
// Stubs whose chain state could not be read are kept.
func (p *Pruner) Prune(ctx context.Context) (int, error) {
	cutoff := p.now().Add(-p.aliveness)
	stubs := p.store.Stubs()
	if len(stubs) == 0 {
		return 0, nil
	}

	pool := pond.NewPool(p.workers, pond.WithQueueSize(len(stubs)))
	defer pool.StopAndWait()
	group := pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	weightless := xsync.NewMap[ortypes.PropID, bool]()
	for _, stub := range stubs {
		group.SubmitErr(func() error {
			state, err := p.chain.ProposalState(groupCtx, stub.ID)
			if err != nil {
				return fmt.Errorf("proposal state %s: %w", stub.ID, err)
			}
			createdAt := stub.CreatedAt
			if state.Created() {
				createdAt = state.CreateTime
			}
			if createdAt.Before(cutoff) && state.Weightless() {
				weightless.Store(stub.ID, true)
			}
			return nil
		})
	}

	waitErr := group.Wait()
	if errors.Is(waitErr, pond.ErrGroupStopped) {
		waitErr = nil
	}

	removed := 0
	weightless.Range(func(id ortypes.PropID, _ bool) bool {
		if p.store.RemoveStub(id) {
			removed++
			p.logger.Info("Pruned weightless proposal stub", zap.String("propId", id.String()))
		}
		return true
	})
	return removed, waitErr
}

// Schedule runs Prune on a cron spec such as "@every 10m". The caller
// stops the returned cron.
func (p *Pruner) Schedule(spec string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), pruneRunTimeout)
		defer cancel()
		removed, err := p.Prune(ctx)
		if err != nil {
			p.logger.Warn("Prune pass incomplete", zap.Int("removed", removed), zap.Error(err))
			return
		}
		p.logger.Debug("Prune pass finished", zap.Int("removed", removed))
	})
	if err != nil {
		return nil, fmt.Errorf("invalid prune schedule %q: %w", spec, err)
	}
	c.Start()
	p.logger.Info("Stub pruner scheduled",
		zap.String("schedule", spec),
		zap.Duration("aliveness", p.aliveness))
	return c, nil
}
