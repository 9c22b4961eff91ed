// Package indexer applies OREC contract events to the proposal store in
// chain order.
package indexer

import (
	"context"
	"errors"
	"fmt"

	"github.com/fractalrespect/orecx/pkg/chain"
	"github.com/fractalrespect/orecx/pkg/ortypes"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Sink is the part of the store the indexer writes to.
type Sink interface {
	CreateStub(id ortypes.PropID) error
	IncrementPeriod() uint64
}

// SignalHandler receives custom signals. A returned error is logged and
// does not stop the indexer.
type SignalHandler func(ctx context.Context, sig chain.Signal, ev chain.Event) error

// Indexer consumes one subscription on a single goroutine.
type Indexer struct {
	sink    Sink
	custom  SignalHandler
	metrics *metrics
	logger  *zap.Logger
}

type Option func(*Indexer)

func WithLogger(l *zap.Logger) Option {
	return func(ix *Indexer) { ix.logger = l }
}

// WithSignalHandler replaces the default handler for custom signals.
func WithSignalHandler(h SignalHandler) Option {
	return func(ix *Indexer) { ix.custom = h }
}

// WithMetrics registers indexer metrics on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(ix *Indexer) { ix.metrics = newMetrics(reg) }
}

func New(sink Sink, opts ...Option) *Indexer {
	ix := &Indexer{sink: sink, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(ix)
	}
	if ix.custom == nil {
		ix.custom = ix.logCustomSignal
	}
	return ix
}

// Run applies events until ctx is done, the subscription fails or an
// event cannot be applied. Cancellation returns nil. The subscription is
// released before Run returns.
func (ix *Indexer) Run(ctx context.Context, sub chain.Subscription) error {
	defer sub.Unsubscribe()
	ix.logger.Info("Event indexer started")

	for {
		select {
		case <-ctx.Done():
			ix.logger.Info("Event indexer shutting down")
			return nil
		case err, ok := <-sub.Err():
			if !ok {
				return errors.New("subscription closed")
			}
			ix.logger.Error("Chain subscription failed", zap.Error(err))
			return fmt.Errorf("subscription: %w", err)
		case ev, ok := <-sub.Events():
			if !ok {
				return errors.New("subscription closed")
			}
			if err := ix.apply(ctx, ev); err != nil {
				ix.logger.Error("Stopping indexer",
					zap.Uint64("block", ev.BlockNumber),
					zap.Uint("logIndex", ev.LogIndex),
					zap.Error(err))
				return err
			}
		}
	}
}

func (ix *Indexer) apply(ctx context.Context, ev chain.Event) error {
	switch ev.Kind {
	case chain.EventProposalCreated:
		ix.observe("proposal_created")
		if err := ix.sink.CreateStub(ev.PropID); err != nil {
			return fmt.Errorf("create stub %s: %w", ev.PropID, err)
		}
		ix.logger.Info("Proposal created", zap.String("propId", ev.PropID.String()), zap.Uint64("block", ev.BlockNumber))
	case chain.EventSignal:
		ix.applySignal(ctx, ev)
	default:
		ix.logger.Warn("Ignoring unknown event kind", zap.Uint8("kind", uint8(ev.Kind)))
	}
	return nil
}

func (ix *Indexer) applySignal(ctx context.Context, ev chain.Event) {
	switch ev.Signal.Type {
	case chain.SignalTick:
		ix.observe("tick")
		period := ix.sink.IncrementPeriod()
		ix.logger.Info("Period advanced", zap.Uint64("periodNum", period), zap.Uint64("block", ev.BlockNumber))
	case chain.SignalCustom:
		ix.observe("custom_signal")
		if err := ix.custom(ctx, ev.Signal, ev); err != nil {
			ix.logger.Warn("Custom signal handler failed", zap.Error(err))
		}
	default:
		ix.observe("unknown_signal")
		if ix.metrics != nil {
			ix.metrics.ignored.Inc()
		}
		ix.logger.Warn("Ignoring unknown signal type",
			zap.Uint8("signalType", uint8(ev.Signal.Type)),
			zap.Uint64("block", ev.BlockNumber))
	}
}

func (ix *Indexer) logCustomSignal(_ context.Context, sig chain.Signal, ev chain.Event) error {
	ix.logger.Info("Custom signal", zap.Int("dataLen", len(sig.Data)), zap.Uint64("block", ev.BlockNumber))
	return nil
}

func (ix *Indexer) observe(kind string) {
	if ix.metrics != nil {
		ix.metrics.events.WithLabelValues(kind).Inc()
	}
}
