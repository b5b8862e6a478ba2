package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fundus-dev/fundus/pkg/api"
	"github.com/fundus-dev/fundus/pkg/storage"
)

// HTTPStatusFromError maps an APIError type to the corresponding HTTP
// status code. Transport-level conditions (body too large, unsupported
// content type) are handled directly by the handlers.
func HTTPStatusFromError(err *api.APIError) int {
	switch err.Type {
	case api.ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case api.ErrorTypeNotFound:
		return http.StatusNotFound
	case api.ErrorTypeTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// WriteErrorResponse writes a JSON error response using the ErrorResponse
// wrapper format from pkg/api. It sets the Content-Type header and writes
// the HTTP status code.
func WriteErrorResponse(w http.ResponseWriter, apiErr *api.APIError, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(api.ErrorResponse{Error: apiErr})
}

// WriteAPIError writes an APIError response, deriving the HTTP status
// code from the error type.
func WriteAPIError(w http.ResponseWriter, apiErr *api.APIError) {
	WriteErrorResponse(w, apiErr, HTTPStatusFromError(apiErr))
}

// WriteError converts any error into the API error format. Structured
// errors pass through; storage.ErrNotFound becomes a 404; everything
// else is reported as a server error without leaking internals.
func WriteError(w http.ResponseWriter, err error) {
	var apiErr *api.APIError
	switch {
	case errors.As(err, &apiErr):
		WriteAPIError(w, apiErr)
	case errors.Is(err, storage.ErrNotFound):
		WriteAPIError(w, api.NewNotFoundError(err.Error()))
	default:
		WriteAPIError(w, api.NewServerError("internal server error"))
	}
}
