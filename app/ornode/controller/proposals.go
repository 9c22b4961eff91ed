package controller

import (
	"net/http"

	"github.com/fractalrespect/orecx/pkg/ortypes"
	"github.com/fractalrespect/orecx/pkg/rpc"
	"github.com/fractalrespect/orecx/pkg/validation"
	"go.uber.org/zap"
)

// PutProposal handles POST /v1/putProposal.
func (c *Controller) PutProposal(w http.ResponseWriter, r *http.Request) {
	var req rpc.PutProposalRequest
	if err := decodeBody(w, r, &req); err != nil {
		c.writeStoreError(w, "putProposal", err)
		return
	}
	if len(req.Proposal) == 0 {
		c.writeStoreError(w, "putProposal", &parseError{msg: "proposal is required"})
		return
	}

	full, err := validation.Validate(req.Proposal)
	if err != nil {
		c.writeStoreError(w, "putProposal", err)
		return
	}
	status, err := c.App.Store.PutProposal(r.Context(), full)
	if err != nil {
		c.writeStoreError(w, "putProposal", err)
		return
	}
	c.App.Logger.Debug("putProposal",
		zap.String("propId", full.ID.String()),
		zap.String("propStatus", string(status)))
	writeJSON(w, http.StatusOK, rpc.PutProposalResponse{PropStatus: status})
}

// GetProposal handles POST /v1/getProposal.
func (c *Controller) GetProposal(w http.ResponseWriter, r *http.Request) {
	var req rpc.GetProposalRequest
	if err := decodeBody(w, r, &req); err != nil {
		c.writeStoreError(w, "getProposal", err)
		return
	}
	id, err := ortypes.ParsePropID(req.PropID)
	if err != nil {
		c.writeStoreError(w, "getProposal", &parseError{msg: err.Error()})
		return
	}

	prop, err := c.App.Store.GetProposal(r.Context(), id)
	if err != nil {
		c.writeStoreError(w, "getProposal", err)
		return
	}
	writeJSON(w, http.StatusOK, prop)
}

// GetProposals handles POST /v1/getProposals.
func (c *Controller) GetProposals(w http.ResponseWriter, r *http.Request) {
	var req rpc.GetProposalsRequest
	if err := decodeBody(w, r, &req); err != nil {
		c.writeStoreError(w, "getProposals", err)
		return
	}

	props, err := c.App.Store.GetProposals(r.Context(), req.From, req.Limit)
	if err != nil {
		c.writeStoreError(w, "getProposals", err)
		return
	}
	writeJSON(w, http.StatusOK, rpc.GetProposalsResponse{Proposals: props})
}

// GetPeriodNum handles GET /v1/getPeriodNum.
func (c *Controller) GetPeriodNum(w http.ResponseWriter, r *http.Request) {
	n, err := c.App.Store.GetPeriodNum(r.Context())
	if err != nil {
		c.writeStoreError(w, "getPeriodNum", err)
		return
	}
	writeJSON(w, http.StatusOK, rpc.PeriodNumResponse{PeriodNum: n})
}
