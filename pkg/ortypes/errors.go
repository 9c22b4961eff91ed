package ortypes

import (
	"errors"
	"fmt"
)

// ErrorType is the wire name of a proposal error, shared by the REST
// facade and its clients.
type ErrorType string

const (
	ErrTypeProposalNotFound   ErrorType = "ProposalNotFound"
	ErrTypeProposalNotCreated ErrorType = "ProposalNotCreated"
	ErrTypeProposalInvalid    ErrorType = "ProposalInvalid"
	ErrTypeOutOfRange         ErrorType = "OutOfRange"
	ErrTypeBadRequest         ErrorType = "BadRequest"
	ErrTypeInternal           ErrorType = "Internal"
)

var (
	ErrProposalNotFound   = errors.New("proposal not found")
	ErrProposalNotCreated = errors.New("proposal not created onchain")
	ErrProposalInvalid    = errors.New("proposal invalid")
	ErrOutOfRange         = errors.New("out of range")
	ErrDuplicateProposal  = errors.New("duplicate proposal")
)

// ProposalNotFoundError is returned for ids never observed on chain.
type ProposalNotFoundError struct {
	ID PropID
}

func (e *ProposalNotFoundError) Error() string {
	return fmt.Sprintf("proposal with id %s does not exist", e.ID)
}

func (e *ProposalNotFoundError) Is(target error) bool { return target == ErrProposalNotFound }

// ProposalNotCreatedError is returned when content arrives for an id the
// chain has not created yet.
type ProposalNotCreatedError struct {
	Proposal Full
}

func (e *ProposalNotCreatedError) Error() string {
	return fmt.Sprintf("proposal with id %s has not been created onchain yet", e.Proposal.ID)
}

func (e *ProposalNotCreatedError) Is(target error) bool { return target == ErrProposalNotCreated }

// ProposalInvalidError carries the rejected payload and the validation failure.
type ProposalInvalidError struct {
	Payload any
	Cause   error
}

func (e *ProposalInvalidError) Error() string {
	if e.Cause == nil {
		return "proposal invalid"
	}
	return fmt.Sprintf("proposal invalid: %v", e.Cause)
}

func (e *ProposalInvalidError) Is(target error) bool { return target == ErrProposalInvalid }
func (e *ProposalInvalidError) Unwrap() error        { return e.Cause }

// OutOfRangeError reports a pagination parameter outside its bounds.
type OutOfRangeError struct {
	Param string
	Value int
	Bound string
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("%s=%d out of range: must be %s", e.Param, e.Value, e.Bound)
}

func (e *OutOfRangeError) Is(target error) bool { return target == ErrOutOfRange }

// DuplicateProposalError means the chain reported the same proposal
// creation twice. It indicates indexer or chain misbehavior.
type DuplicateProposalError struct {
	ID PropID
}

func (e *DuplicateProposalError) Error() string {
	return fmt.Sprintf("proposal %s already indexed", e.ID)
}

func (e *DuplicateProposalError) Is(target error) bool { return target == ErrDuplicateProposal }

// TypeOf maps err to its wire ErrorType.
func TypeOf(err error) ErrorType {
	switch {
	case errors.Is(err, ErrProposalNotFound):
		return ErrTypeProposalNotFound
	case errors.Is(err, ErrProposalNotCreated):
		return ErrTypeProposalNotCreated
	case errors.Is(err, ErrProposalInvalid):
		return ErrTypeProposalInvalid
	case errors.Is(err, ErrOutOfRange):
		return ErrTypeOutOfRange
	default:
		return ErrTypeInternal
	}
}
