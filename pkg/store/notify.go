package store

import (
	"context"
	"time"

	"github.com/fractalrespect/orecx/pkg/ortypes"
	"go.uber.org/zap"
)

// EventType names a committed store mutation.
type EventType string

const (
	EventProposalCreated EventType = "proposal.created"
	EventProposalStored  EventType = "proposal.stored"
	EventProposalPruned  EventType = "proposal.pruned"
	EventPeriodAdvanced  EventType = "period.advanced"
)

// Event describes a committed mutation.
type Event struct {
	Type      EventType      `json:"type"`
	PropID    ortypes.PropID `json:"propId,omitempty"`
	PeriodNum uint64         `json:"periodNum"`
	Time      time.Time      `json:"time"`
}

// Notifier receives events on the store's publisher goroutine, one at a
// time and in commit order. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, ev Event)

func (f NotifierFunc) Notify(ctx context.Context, ev Event) { f(ctx, ev) }

// notifyBuffer bounds the events queued behind a slow Notifier. Events
// beyond it are dropped.
const notifyBuffer = 1024

// enqueueLocked queues ev in commit order. s.mu must be held for writing.
func (s *Store) enqueueLocked(ev Event) {
	if s.events == nil || s.closed {
		return
	}
	ev.Time = s.now()
	select {
	case s.events <- ev:
	default:
		s.logger.Warn("Notification queue full, dropping event",
			zap.String("type", string(ev.Type)),
			zap.String("propId", ev.PropID.String()))
		if s.metrics != nil {
			s.metrics.eventsDropped.Inc()
		}
	}
}

func (s *Store) publish() {
	defer close(s.published)
	for ev := range s.events {
		s.notifier.Notify(context.Background(), ev)
	}
}

// Close stops accepting notifications and waits until the queued ones are
// delivered. The store stays readable and writable.
func (s *Store) Close() {
	s.mu.Lock()
	if s.events == nil || s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.events)
	s.mu.Unlock()
	<-s.published
}
