// Package store holds proposals in memory. The indexer creates stubs and
// advances the period; uploads attach validated content to existing stubs.
package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/fractalrespect/orecx/pkg/ortypes"
	"github.com/fractalrespect/orecx/pkg/validation"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Validator turns a candidate into a valid proposal or fails with
// *ortypes.ProposalInvalidError.
type Validator func(ortypes.Full) (ortypes.Full, error)

type entry struct {
	prop      ortypes.Proposal
	createdAt time.Time
}

// StubInfo describes a proposal still waiting for content.
type StubInfo struct {
	ID        ortypes.PropID
	CreatedAt time.Time
}

// Store is safe for concurrent use. Every mutation holds the write lock,
// so readers never see a half-applied change.
type Store struct {
	mu        sync.RWMutex
	props     map[ortypes.PropID]*entry
	index     []ortypes.PropID
	periodNum uint64

	validate Validator
	notifier Notifier
	// events is drained by the publisher goroutine in commit order.
	events    chan Event
	closed    bool
	published chan struct{}
	metrics   *metrics
	logger    *zap.Logger
	now       func() time.Time
}

var _ ortypes.Node = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

func WithValidator(v Validator) Option {
	return func(s *Store) { s.validate = v }
}

// WithNotifier publishes committed mutations to n.
func WithNotifier(n Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

// WithMetrics registers store metrics on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(s *Store) {
		s.metrics = &metrics{}
		s.metrics.init(reg)
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns an empty store validating uploads with validation.ValidateFull.
func New(opts ...Option) *Store {
	s := &Store{
		props:    make(map[ortypes.PropID]*entry),
		validate: validation.ValidateFull,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notifier != nil {
		s.events = make(chan Event, notifyBuffer)
		s.published = make(chan struct{})
		go s.publish()
	}
	return s
}

// CreateStub records a proposal created on chain. A second call for the
// same id returns *ortypes.DuplicateProposalError and changes nothing.
func (s *Store) CreateStub(id ortypes.PropID) error {
	s.mu.Lock()
	if _, ok := s.props[id]; ok {
		s.mu.Unlock()
		return &ortypes.DuplicateProposalError{ID: id}
	}
	s.props[id] = &entry{prop: ortypes.Stub{ID: id}, createdAt: s.now()}
	s.index = append(s.index, id)
	n := len(s.index)
	s.enqueueLocked(Event{Type: EventProposalCreated, PropID: id, PeriodNum: s.periodNum})
	s.mu.Unlock()

	s.logger.Debug("Stored new proposal stub", zap.String("propId", id.String()), zap.Int("index", n-1))
	if s.metrics != nil {
		s.metrics.stubs.Inc()
	}
	return nil
}

// IncrementPeriod advances the period number by one and returns the new value.
func (s *Store) IncrementPeriod() uint64 {
	s.mu.Lock()
	s.periodNum++
	period := s.periodNum
	s.enqueueLocked(Event{Type: EventPeriodAdvanced, PeriodNum: period})
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.periodNum.Set(float64(period))
	}
	return period
}

// PutProposal attaches content to a stub. Validation runs before the
// store is touched. Uploading to an id that already has content returns
// ortypes.PropExists without changing it.
func (s *Store) PutProposal(_ context.Context, candidate ortypes.Full) (ortypes.PropStatus, error) {
	full, err := s.validate(candidate)
	if err != nil {
		s.observePut("invalid")
		return "", err
	}

	s.mu.Lock()
	e, ok := s.props[full.ID]
	if !ok {
		s.mu.Unlock()
		s.observePut("not_created")
		return "", &ortypes.ProposalNotCreatedError{Proposal: full}
	}
	if _, isFull := e.prop.(ortypes.Full); isFull {
		s.mu.Unlock()
		s.observePut("exists")
		return ortypes.PropExists, nil
	}
	e.prop = full
	s.enqueueLocked(Event{Type: EventProposalStored, PropID: full.ID, PeriodNum: s.periodNum})
	s.mu.Unlock()

	s.logger.Debug("Stored proposal content",
		zap.String("propId", full.ID.String()),
		zap.String("propType", string(full.Attachment.PropType)))
	s.observePut("stored")
	if s.metrics != nil {
		s.metrics.stubs.Dec()
		s.metrics.full.Inc()
	}
	return ortypes.PropStored, nil
}

// GetProposal returns the current Stub or Full variant of id.
func (s *Store) GetProposal(_ context.Context, id ortypes.PropID) (ortypes.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.props[id]
	if !ok {
		return nil, &ortypes.ProposalNotFoundError{ID: id}
	}
	return e.prop, nil
}

// GetProposals walks the index from the newest entry. from must lie in
// [0, Len()) and limit must be positive. Stubs are included.
func (s *Store) GetProposals(_ context.Context, from, limit int) ([]ortypes.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.index)
	if from < 0 || from >= n {
		return nil, &ortypes.OutOfRangeError{Param: "from", Value: from, Bound: fmt.Sprintf("in [0, %d)", n)}
	}
	if limit <= 0 {
		return nil, &ortypes.OutOfRangeError{Param: "limit", Value: limit, Bound: "> 0"}
	}

	first := n - 1 - from
	out := make([]ortypes.Proposal, 0, min(limit, first+1))
	for i := first; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.props[s.index[i]].prop)
	}
	return out, nil
}

func (s *Store) GetPeriodNum(context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.periodNum, nil
}

// Len returns the number of indexed proposals.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.index)
}

// Stubs lists proposals without content, oldest first.
func (s *Store) Stubs() []StubInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []StubInfo
	for _, id := range s.index {
		e := s.props[id]
		if _, ok := e.prop.(ortypes.Stub); ok {
			out = append(out, StubInfo{ID: id, CreatedAt: e.createdAt})
		}
	}
	return out
}

// RemoveStub drops id if it is still a stub. Only the pruner calls this.
func (s *Store) RemoveStub(id ortypes.PropID) bool {
	s.mu.Lock()
	e, ok := s.props[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	if _, isStub := e.prop.(ortypes.Stub); !isStub {
		s.mu.Unlock()
		return false
	}
	delete(s.props, id)
	if i := slices.Index(s.index, id); i >= 0 {
		s.index = slices.Delete(s.index, i, i+1)
	}
	s.enqueueLocked(Event{Type: EventProposalPruned, PropID: id, PeriodNum: s.periodNum})
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.stubs.Dec()
		s.metrics.pruned.Inc()
	}
	return true
}

func (s *Store) observePut(result string) {
	if s.metrics != nil {
		s.metrics.puts.WithLabelValues(result).Inc()
	}
}
