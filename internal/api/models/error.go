package models

import (
	"encoding/json"
	"net/http"
)

// Error messages shared by handlers and middleware. The trip client shows
// the error field verbatim, so these stay short and user-readable.
const (
	MessageMissingPlaces = "origin and destination are required"
	MessageNoRoutes      = "No routes found"
	MessageUnavailable   = "Routing provider unavailable, please try again later"
	MessageRateLimited   = "Rate limit exceeded. Please try again later."
	MessageInternal      = "an unexpected error occurred"
	MessageTLSRequired   = "This endpoint requires HTTPS"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

// NewError creates an ErrorResponse tagged with the request ID.
func NewError(message, requestID string) *ErrorResponse {
	return &ErrorResponse{Error: message, RequestID: requestID}
}

// Write writes the error as JSON with the given status.
func (e *ErrorResponse) Write(w http.ResponseWriter, status int) {
	if e.RequestID != "" {
		w.Header().Set("X-Request-Id", e.RequestID)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(e)
}
