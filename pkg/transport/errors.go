package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rhuss/anreicher/pkg/api"
)

// StatusClientClosedRequest is the non-standard status reported for
// cancelled runs.
const StatusClientClosedRequest = 499

// HTTPStatusFromError maps an APIError type to the corresponding HTTP status
// code. Transport-level errors (body too large, unsupported content type)
// are handled separately by the HTTP adapter.
func HTTPStatusFromError(err *api.APIError) int {
	switch err.Type {
	case api.ErrorTypeInvalidRequest, api.ErrorTypeUnsupportedEngine:
		return http.StatusBadRequest
	case api.ErrorTypeNotFound, api.ErrorTypeTemplateNotFound:
		return http.StatusNotFound
	case api.ErrorTypeTooManyRequests:
		return http.StatusTooManyRequests
	case api.ErrorTypeBackend:
		return http.StatusBadGateway
	case api.ErrorTypeCancelled:
		return StatusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

// AsAPIError returns the APIError in err's chain, or wraps err in a server
// error.
func AsAPIError(err error) *api.APIError {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return api.NewServerError(err.Error()).WithCause(err)
}

// WriteErrorResponse writes a JSON error response using the ErrorResponse
// wrapper format from pkg/api.
func WriteErrorResponse(w http.ResponseWriter, apiErr *api.APIError, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(api.ErrorResponse{Error: apiErr})
}

// WriteError writes err as a JSON error response, deriving the HTTP
// status code from its type.
func WriteError(w http.ResponseWriter, err error) {
	apiErr := AsAPIError(err)
	WriteErrorResponse(w, apiErr, HTTPStatusFromError(apiErr))
}
