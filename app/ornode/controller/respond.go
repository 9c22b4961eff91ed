package controller

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/fractalrespect/orecx/pkg/ortypes"
	"github.com/fractalrespect/orecx/pkg/rpc"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type parseError struct{ msg string }

func (e *parseError) Error() string { return e.msg }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, typ ortypes.ErrorType, msg string) {
	writeJSON(w, status, rpc.ErrorResponse{Error: rpc.ErrorBody{Type: typ, Message: msg}})
}

// decodeBody strictly decodes a JSON request body into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return &parseError{msg: "request body is empty"}
		}
		return &parseError{msg: "invalid request body: " + err.Error()}
	}
	if dec.More() {
		return &parseError{msg: "request body must contain a single JSON object"}
	}
	return nil
}

// statusOf maps a store error to its HTTP status.
func statusOf(typ ortypes.ErrorType) int {
	switch typ {
	case ortypes.ErrTypeProposalNotFound:
		return http.StatusNotFound
	case ortypes.ErrTypeProposalNotCreated:
		return http.StatusConflict
	case ortypes.ErrTypeProposalInvalid:
		return http.StatusUnprocessableEntity
	case ortypes.ErrTypeOutOfRange, ortypes.ErrTypeBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (c *Controller) writeStoreError(w http.ResponseWriter, op string, err error) {
	var pe *parseError
	if errors.As(err, &pe) {
		writeError(w, http.StatusBadRequest, ortypes.ErrTypeBadRequest, pe.msg)
		return
	}
	typ := ortypes.TypeOf(err)
	if typ == ortypes.ErrTypeInternal {
		c.App.Logger.Error("Request failed", zap.String("op", op), zap.Error(err))
		writeError(w, http.StatusInternalServerError, typ, "internal error")
		return
	}
	c.App.Logger.Debug("Request rejected", zap.String("op", op), zap.String("type", string(typ)), zap.Error(err))
	writeError(w, statusOf(typ), typ, err.Error())
}
