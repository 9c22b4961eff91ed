package orclient

import (
	"errors"
	"fmt"

	"github.com/fractalrespect/orecx/pkg/chain"
	"github.com/fractalrespect/orecx/pkg/ortypes"
)

// TxFailedError means the proposal transaction was mined but reverted.
// The submission is over; nothing was pushed to the node.
type TxFailedError struct {
	TxHash  string
	Receipt *chain.Receipt
}

func (e *TxFailedError) Error() string {
	return fmt.Sprintf("transaction %s failed onchain", e.TxHash)
}

// ConfirmationTimeoutError means the wait for confirmations ended first.
// The transaction was broadcast and may still be mined.
type ConfirmationTimeoutError struct {
	TxHash string
	Err    error
}

func (e *ConfirmationTimeoutError) Error() string {
	return fmt.Sprintf("transaction %s was broadcast but not confirmed in time: %v", e.TxHash, e.Err)
}

func (e *ConfirmationTimeoutError) Unwrap() error { return e.Err }

// PutProposalFailure means the proposal is on chain but its content did not
// reach the node. Pass Proposal to Client.RetryPut to finish the submission.
type PutProposalFailure struct {
	Proposal ortypes.Full
	Err      error
}

func (e *PutProposalFailure) Error() string {
	return fmt.Sprintf("proposal %s submitted onchain but not to ornode: %v", e.Proposal.ID, e.Err)
}

func (e *PutProposalFailure) Unwrap() error { return e.Err }

// PutRetryable reports whether a failed content push is worth retrying.
// Invalid content never becomes valid; a missing stub may still show up
// once the node indexes the proposal.
func PutRetryable(err error) bool {
	return !errors.Is(err, ortypes.ErrProposalInvalid)
}
