package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/fractalrespect/orecx/pkg/ortypes"
)

// ErrAlreadySubscribed is returned by Subscribe while another subscription
// on the same gateway is still active.
var ErrAlreadySubscribed = errors.New("chain events already subscribed")

// VoteType is the choice cast by a vote transaction.
type VoteType uint8

const (
	VoteNone VoteType = iota
	VoteYes
	VoteNo
)

func (v VoteType) String() string {
	switch v {
	case VoteNone:
		return "none"
	case VoteYes:
		return "yes"
	case VoteNo:
		return "no"
	}
	return fmt.Sprintf("vote(%d)", uint8(v))
}

// ParseVoteType accepts "none", "yes" and "no".
func ParseVoteType(s string) (VoteType, error) {
	switch s {
	case "none", "":
		return VoteNone, nil
	case "yes":
		return VoteYes, nil
	case "no":
		return VoteNo, nil
	}
	return VoteNone, fmt.Errorf("unknown vote type %q", s)
}

// SignalType is the type code carried by a Signal event.
type SignalType uint8

const (
	// SignalTick advances the governance period counter.
	SignalTick SignalType = 0
	// SignalCustom carries application-defined data.
	SignalCustom SignalType = 1
)

// ExecStatus mirrors the contract's execution status of a proposal.
type ExecStatus uint8

const (
	ExecNotExecuted ExecStatus = iota
	ExecExecuted
	ExecFailed
)

// Stage mirrors the contract's proposal stage.
type Stage uint8

const (
	StageVoting Stage = iota
	StageVeto
	StageExecution
	StageExpired
)

// VoteStatus mirrors the contract's vote outcome so far.
type VoteStatus uint8

const (
	VoteStatusPassing VoteStatus = iota
	VoteStatusFailing
	VoteStatusPassed
	VoteStatusFailed
)

// ProposalState is the on-chain record of a proposal.
type ProposalState struct {
	CreateTime time.Time
	YesWeight  *big.Int
	NoWeight   *big.Int
	Status     ExecStatus
}

// Created reports whether the chain knows the proposal.
func (s ProposalState) Created() bool {
	return !s.CreateTime.IsZero()
}

// Weightless reports whether nobody has voted yes with non-zero weight.
func (s ProposalState) Weightless() bool {
	return s.YesWeight == nil || s.YesWeight.Sign() == 0
}

// Receipt is the outcome of a mined transaction.
type Receipt struct {
	TxHash      string `json:"txHash"`
	BlockNumber uint64 `json:"blockNumber"`
	Success     bool   `json:"success"`
}

// PendingTx is a broadcast transaction. Broadcast transactions cannot be
// recalled; Wait only bounds how long the caller watches for them.
type PendingTx interface {
	Hash() string
	// Wait blocks until the transaction has the given number of
	// confirmations or ctx is done.
	Wait(ctx context.Context, confirmations uint64) (*Receipt, error)
}

// EventKind distinguishes the two event classes the indexer consumes.
type EventKind uint8

const (
	EventProposalCreated EventKind = iota + 1
	EventSignal
)

func (k EventKind) String() string {
	switch k {
	case EventProposalCreated:
		return "proposal_created"
	case EventSignal:
		return "signal"
	}
	return "unknown"
}

// Signal is the payload of a Signal event.
type Signal struct {
	Type SignalType
	Data []byte
}

// Event is one decoded contract log.
type Event struct {
	Kind        EventKind
	PropID      ortypes.PropID
	Signal      Signal
	BlockNumber uint64
	LogIndex    uint
}

// Subscription delivers contract events in chain order on a single channel.
// Unsubscribe releases it and must be safe to call more than once.
type Subscription interface {
	Events() <-chan Event
	Err() <-chan error
	Unsubscribe()
}

// Gateway is the view of the OREC contract used by the node and client.
type Gateway interface {
	Propose(ctx context.Context, id ortypes.PropID) (PendingTx, error)
	Vote(ctx context.Context, id ortypes.PropID, vote VoteType, memo []byte) (PendingTx, error)
	Execute(ctx context.Context, content ortypes.Content) (PendingTx, error)

	ProposalState(ctx context.Context, id ortypes.PropID) (ProposalState, error)
	Stage(ctx context.Context, id ortypes.PropID) (Stage, error)
	VoteStatus(ctx context.Context, id ortypes.PropID) (VoteStatus, error)
	// VoteLength is the contract's voting period.
	VoteLength(ctx context.Context) (time.Duration, error)

	Subscribe(ctx context.Context) (Subscription, error)
}
