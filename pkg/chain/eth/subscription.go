package eth

import (
	"sync"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/fractalrespect/orecx/pkg/chain"
	"go.uber.org/zap"
)

type subscription struct {
	gateway *Gateway
	raw     event.Subscription
	logs    chan types.Log
	events  chan chain.Event
	errs    chan error
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

func newSubscription(g *Gateway, raw event.Subscription, logs chan types.Log) *subscription {
	s := &subscription{
		gateway: g,
		raw:     raw,
		logs:    logs,
		events:  make(chan chain.Event),
		errs:    make(chan error, 1),
		done:    make(chan struct{}),
	}
	s.wg.Add(1)
	go s.forward()
	return s
}

func (s *subscription) Events() <-chan chain.Event { return s.events }
func (s *subscription) Err() <-chan error          { return s.errs }

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		close(s.done)
		s.raw.Unsubscribe()
		s.wg.Wait()
		s.gateway.release()
	})
}

func (s *subscription) forward() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case err, ok := <-s.raw.Err():
			if ok && err != nil {
				s.errs <- err
			}
			return
		case l := <-s.logs:
			if l.Removed {
				// Reorged logs cannot be undone in the store.
				s.gateway.logger.Warn("Ignoring removed OREC log",
					zap.String("tx", l.TxHash.Hex()),
					zap.Uint64("block", l.BlockNumber))
				continue
			}
			ev, err := s.gateway.decodeLog(l)
			if err != nil {
				s.gateway.logger.Warn("Skipping undecodable OREC log",
					zap.String("tx", l.TxHash.Hex()),
					zap.Error(err))
				continue
			}
			select {
			case s.events <- ev:
			case <-s.done:
				return
			}
		}
	}
}
