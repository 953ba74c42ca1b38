package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"imaged/internal/manager"
	"imaged/internal/outputs"
	"imaged/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// statusForError maps service errors to HTTP status codes.
func statusForError(err error) int {
	var he HTTPError
	switch {
	case types.IsInvalidRequest(err):
		return http.StatusBadRequest
	case errors.Is(err, manager.ErrClosed):
		return http.StatusServiceUnavailable
	case manager.IsResourceUnavailable(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		// server base context ended while waiting
		return http.StatusServiceUnavailable
	case errors.Is(err, outputs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, outputs.ErrInvalidName):
		return http.StatusBadRequest
	case errors.As(err, &he):
		return he.StatusCode()
	default:
		return http.StatusInternalServerError
	}
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Detail: msg, Code: status})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger().Warn().Err(err).Msg("encode response")
	}
}
