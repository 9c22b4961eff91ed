package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/fractalrespect/orecx/pkg/ortypes"
)

// NodeClient reaches an ornode over HTTP and returns the same typed errors
// as an in-process store.
type NodeClient struct {
	http *HTTPClient
}

var _ ortypes.Node = (*NodeClient)(nil)

func NewNodeClient(o Opts) *NodeClient {
	return &NodeClient{http: NewHTTPWithOpts(o)}
}

func (c *NodeClient) PutProposal(ctx context.Context, proposal ortypes.Full) (ortypes.PropStatus, error) {
	raw, err := json.Marshal(proposal)
	if err != nil {
		return "", err
	}
	var resp PutProposalResponse
	err = c.http.doJSON(ctx, http.MethodPost, PutProposalPath, PutProposalRequest{Proposal: raw}, &resp)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			switch apiErr.Type {
			case ortypes.ErrTypeProposalNotCreated:
				return "", &ortypes.ProposalNotCreatedError{Proposal: proposal}
			case ortypes.ErrTypeProposalInvalid:
				return "", &ortypes.ProposalInvalidError{Payload: proposal, Cause: apiErr}
			}
		}
		return "", fmt.Errorf("put proposal %s: %w", proposal.ID, err)
	}
	return resp.PropStatus, nil
}

func (c *NodeClient) GetProposal(ctx context.Context, id ortypes.PropID) (ortypes.Proposal, error) {
	var raw json.RawMessage
	if err := c.http.doJSON(ctx, http.MethodPost, GetProposalPath, GetProposalRequest{PropID: string(id)}, &raw); err != nil {
		if errors.Is(err, ortypes.ErrProposalNotFound) {
			return nil, &ortypes.ProposalNotFoundError{ID: id}
		}
		return nil, fmt.Errorf("get proposal %s: %w", id, err)
	}
	return ortypes.DecodeProposal(raw)
}

func (c *NodeClient) GetProposals(ctx context.Context, from, limit int) ([]ortypes.Proposal, error) {
	var resp GetProposalsResponse
	if err := c.http.doJSON(ctx, http.MethodPost, GetProposalsPath, GetProposalsRequest{From: from, Limit: limit}, &resp); err != nil {
		return nil, fmt.Errorf("get proposals: %w", err)
	}
	return resp.Proposals, nil
}

func (c *NodeClient) GetPeriodNum(ctx context.Context) (uint64, error) {
	var resp PeriodNumResponse
	if err := c.http.doJSON(ctx, http.MethodGet, GetPeriodNumPath, nil, &resp); err != nil {
		return 0, fmt.Errorf("get period number: %w", err)
	}
	return resp.PeriodNum, nil
}

// Health returns the node's health report.
func (c *NodeClient) Health(ctx context.Context) (HealthResponse, error) {
	var resp HealthResponse
	err := c.http.doJSON(ctx, http.MethodGet, HealthPath, nil, &resp)
	return resp, err
}
