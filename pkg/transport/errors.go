package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rhuss/chatrelay/pkg/account"
	"github.com/rhuss/chatrelay/pkg/api"
	"github.com/rhuss/chatrelay/pkg/relay"
	"github.com/rhuss/chatrelay/pkg/storage"
)

// upstreamFailureMessage is shown to clients for every relay failure other
// than invalid input. Upstream details stay in the server log.
const upstreamFailureMessage = "the assistant is temporarily unavailable, please try again later"

// HTTPStatusFromError maps an APIError type to the corresponding HTTP status
// code. Transport-level errors (body too large, unsupported content type)
// are handled separately by the HTTP adapter.
func HTTPStatusFromError(err *api.APIError) int {
	switch err.Type {
	case api.ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case api.ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case api.ErrorTypeNotFound:
		return http.StatusNotFound
	case api.ErrorTypeConflict:
		return http.StatusConflict
	case api.ErrorTypeUpstreamError:
		return http.StatusBadGateway
	case api.ErrorTypeServerError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// APIErrorFrom converts a domain error into the APIError shown to clients.
// Relay input errors keep their message; every other relay failure becomes
// a generic upstream error carrying only the failure kind as its code.
// Unknown errors become a generic server error.
func APIErrorFrom(err error) *api.APIError {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var relayErr *relay.Error
	if errors.As(err, &relayErr) {
		if relayErr.Kind == relay.KindInvalidInput {
			return api.NewInvalidRequestError("content", relayErr.Message)
		}
		return api.NewUpstreamError(string(relayErr.Kind), upstreamFailureMessage)
	}

	switch {
	case errors.Is(err, account.ErrAlreadyExists):
		return api.NewConflictError("username", "username already exists")
	case errors.Is(err, account.ErrInvalidCredentials):
		return api.NewUnauthorizedError("invalid username or password")
	case errors.Is(err, account.ErrSessionNotFound):
		return api.NewUnauthorizedError("authentication required")
	case errors.Is(err, account.ErrInvalidInput):
		return api.NewInvalidRequestError("", err.Error())
	case errors.Is(err, storage.ErrNotFound):
		return api.NewNotFoundError("not found")
	}
	return api.NewServerError("internal server error")
}

// WriteErrorResponse writes a JSON error response using the ErrorResponse
// wrapper format from pkg/api. It sets the Content-Type header and writes
// the HTTP status code.
func WriteErrorResponse(w http.ResponseWriter, apiErr *api.APIError, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(api.ErrorResponse{Error: apiErr})
}

// WriteAPIError writes an APIError response, deriving the HTTP status code
// from the error type.
func WriteAPIError(w http.ResponseWriter, apiErr *api.APIError) {
	WriteErrorResponse(w, apiErr, HTTPStatusFromError(apiErr))
}

// WriteJSON writes v as a JSON body with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
