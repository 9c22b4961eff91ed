package ortypes

import "context"

// Node is the interface of an ornode, whether in-process or reached over HTTP.
type Node interface {
	// PutProposal uploads the content of a proposal already created on chain.
	// It fails with ProposalNotCreatedError if the chain has not created it.
	PutProposal(ctx context.Context, proposal Full) (PropStatus, error)
	// GetProposal returns only proposals that were created on chain.
	GetProposal(ctx context.Context, id PropID) (Proposal, error)
	// GetProposals returns up to limit proposals, newest first, starting
	// from offset from (0 is the newest). Stubs are included.
	GetProposals(ctx context.Context, from, limit int) ([]Proposal, error)
	GetPeriodNum(ctx context.Context) (uint64, error)
}
