package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/doomedramen/autopwn-sub005/internal/hashcat"
	"github.com/doomedramen/autopwn-sub005/internal/jobs"
	"github.com/doomedramen/autopwn-sub005/internal/results"
	"github.com/doomedramen/autopwn-sub005/pkg/debug"
)

// APIError represents a standardized API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// sendError sends a standardized error response
func sendError(w http.ResponseWriter, code, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(APIError{
		Code:    code,
		Message: message,
	})
}

// sendEngineError maps engine errors onto HTTP statuses
func sendEngineError(w http.ResponseWriter, r *http.Request, err error) {
	var startErr *hashcat.StartError

	switch {
	case errors.Is(err, jobs.ErrSessionNotFound):
		sendError(w, "SESSION_NOT_FOUND", "Session not found", http.StatusNotFound)
	case errors.Is(err, jobs.ErrSessionExists):
		sendError(w, "SESSION_EXISTS", err.Error(), http.StatusConflict)
	case errors.Is(err, hashcat.ErrInvalidJob):
		sendError(w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
	case errors.Is(err, hashcat.ErrToolNotFound):
		sendError(w, "TOOL_NOT_FOUND", "hashcat is not installed or not executable", http.StatusServiceUnavailable)
	case errors.Is(err, hashcat.ErrControlTimeout):
		sendError(w, "CONTROL_TIMEOUT", "hashcat did not answer the control request in time", http.StatusGatewayTimeout)
	case errors.Is(err, results.ErrResultStoreUnavailable):
		sendError(w, "RESULT_STORE_UNAVAILABLE", err.Error(), http.StatusServiceUnavailable)
	case errors.As(err, &startErr):
		debug.Error("[%s] Failed to start hashcat: %v", requestID(r.Context()), err)
		sendError(w, "START_FAILED", err.Error(), http.StatusInternalServerError)
	default:
		debug.Error("[%s] %s %s failed: %v", requestID(r.Context()), r.Method, r.URL.Path, err)
		sendError(w, "INTERNAL_ERROR", "Internal server error", http.StatusInternalServerError)
	}
}

func sendJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		debug.Warning("Failed to encode response: %v", err)
	}
}
