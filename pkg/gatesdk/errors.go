package gatesdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/tabgate/pkg/httpx"
)

// Machine-readable error codes shared between the gateway, the auth
// service, and SDK consumers.
const (
	ErrorCodeInvalidRequest      = "invalid_request"
	ErrorCodeMissingSubject      = "missing_subject"
	ErrorCodeInvalidRefresh      = "invalid_refresh_token"
	ErrorCodeInvalidToken        = "invalid_token"
	ErrorCodeMissingCredential   = "missing_credential"
	ErrorCodeRouteNotFound       = "route_not_found"
	ErrorCodeUpstreamUnavailable = "upstream_unavailable"
	ErrorCodeServerError         = "server_error"
)

// APIError represents an error response from the gateway or auth service.
// It implements the error interface and is used both by the servers (to
// write HTTP responses) and by the SDK client (to represent errors).
type APIError struct {
	// StatusCode is the HTTP status code for this error
	StatusCode int `json:"-"`

	// Code is the machine-readable error code (e.g. "missing_subject")
	Code string `json:"error"`

	// Description is a human-readable description of the error
	Description string `json:"error_description"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// WriteError writes this APIError to an HTTP response writer.
func (e *APIError) WriteError(w http.ResponseWriter) {
	httpx.WriteJSON(w, e.StatusCode, map[string]string{
		"error":             e.Code,
		"error_description": e.Description,
	})
}

// AsAPIError unwraps err into an *APIError if there is one in the chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}

// Predefined errors written by the server-side handlers. These cover the
// full failure taxonomy of the gateway boundary.
var (
	ErrInvalidRequest = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "The request body is missing or malformed.",
	}

	ErrMissingSubject = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeMissingSubject,
		Description: "A non-empty subject identifier is required to log in.",
	}

	ErrInvalidRefresh = &APIError{
		StatusCode:  http.StatusForbidden,
		Code:        ErrorCodeInvalidRefresh,
		Description: "The refresh token is unknown, revoked, expired or malformed.",
	}

	ErrRouteNotFound = &APIError{
		StatusCode:  http.StatusNotFound,
		Code:        ErrorCodeRouteNotFound,
		Description: "No upstream is configured for the requested path.",
	}

	ErrUpstreamUnavailable = &APIError{
		StatusCode:  http.StatusBadGateway,
		Code:        ErrorCodeUpstreamUnavailable,
		Description: "The upstream service could not be reached.",
	}

	ErrServerError = &APIError{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "An internal error occurred. Please try again later.",
	}
)

// parseErrorResponse decodes an error body into an *APIError. Bodies that
// are not our error shape fall back to a generic error carrying the status.
func parseErrorResponse(statusCode int, body []byte) error {
	var er ErrorResponse
	if err := json.Unmarshal(body, &er); err != nil || er.Error == "" {
		return &APIError{
			StatusCode:  statusCode,
			Code:        ErrorCodeServerError,
			Description: fmt.Sprintf("unexpected response (status %d)", statusCode),
		}
	}

	return &APIError{
		StatusCode:  statusCode,
		Code:        er.Error,
		Description: er.ErrorDescription,
	}
}
