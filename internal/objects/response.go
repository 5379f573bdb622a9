package objects

import (
	"errors"
	"net/http"

	"github.com/looplj/auditflow/internal/pkg/xerrors"
)

type ErrorResponse struct {
	Error Error `json:"error"`
}

type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`

	// Failures lists per-target reasons of a rejected batch.
	Failures []xerrors.TargetFailure `json:"failures,omitempty"`
}

// NewErrorResponse renders err for API clients. Internal errors never leak their message.
func NewErrorResponse(err error) ErrorResponse {
	code := xerrors.CodeOf(err)
	if code == xerrors.CodeInternal {
		return ErrorResponse{Error: Error{Type: code, Message: http.StatusText(http.StatusInternalServerError)}}
	}

	resp := ErrorResponse{Error: Error{Type: code, Message: err.Error()}}

	var domainErr *xerrors.Error
	if errors.As(err, &domainErr) {
		resp.Error.Message = domainErr.Error()
	}

	if bulkErr, ok := xerrors.AsBulk(err); ok {
		resp.Error.Message = bulkErr.Operation + " rejected"
		resp.Error.Failures = bulkErr.Failures
	}

	return resp
}

// BulkResult is returned by batch operations that succeeded.
type BulkResult struct {
	IDs   []string `json:"ids"`
	Count int      `json:"count"`
}
