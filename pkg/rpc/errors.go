package rpc

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/fractalrespect/orecx/pkg/ortypes"
)

// APIError is a non-2xx answer from an ornode.
type APIError struct {
	Status  int
	Type    ortypes.ErrorType
	Message string
}

func (e *APIError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("http %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("http %d %s: %s", e.Status, e.Type, e.Message)
}

// Is matches the ortypes sentinel of the error type.
func (e *APIError) Is(target error) bool {
	switch e.Type {
	case ortypes.ErrTypeProposalNotFound:
		return target == ortypes.ErrProposalNotFound
	case ortypes.ErrTypeProposalNotCreated:
		return target == ortypes.ErrProposalNotCreated
	case ortypes.ErrTypeProposalInvalid:
		return target == ortypes.ErrProposalInvalid
	case ortypes.ErrTypeOutOfRange:
		return target == ortypes.ErrOutOfRange
	}
	return false
}

const maxErrorBody = 64 << 10

func decodeAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{Status: resp.StatusCode}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		apiErr.Message = err.Error()
		return apiErr
	}
	var body ErrorResponse
	if err := json.Unmarshal(raw, &body); err != nil || body.Error.Type == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
		return apiErr
	}
	apiErr.Type = body.Error.Type
	apiErr.Message = body.Error.Message
	return apiErr
}
