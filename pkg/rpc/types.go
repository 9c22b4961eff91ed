package rpc

import (
	"encoding/json"

	"github.com/fractalrespect/orecx/pkg/ortypes"
)

// Request and response bodies of the ornode REST API.

type PutProposalRequest struct {
	Proposal json.RawMessage `json:"proposal"`
}

type PutProposalResponse struct {
	PropStatus ortypes.PropStatus `json:"propStatus"`
}

type GetProposalRequest struct {
	PropID string `json:"propId"`
}

type GetProposalsRequest struct {
	From  int `json:"from"`
	Limit int `json:"limit"`
}

type GetProposalsResponse struct {
	Proposals ortypes.Proposals `json:"proposals"`
}

type PeriodNumResponse struct {
	PeriodNum uint64 `json:"periodNum"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Redis  string `json:"redis,omitempty"`
}

type ErrorBody struct {
	Type    ortypes.ErrorType `json:"type"`
	Message string            `json:"message"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}
