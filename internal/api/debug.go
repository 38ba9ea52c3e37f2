package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/doomedramen/autopwn-sub005/internal/logbuffer"
	"github.com/doomedramen/autopwn-sub005/pkg/debug"
)

// DebugToggleRequest changes logging at runtime. Omitted fields are left as
// they are.
type DebugToggleRequest struct {
	Enabled *bool  `json:"enabled,omitempty"`
	Level   string `json:"level,omitempty"`
}

// DebugLogsResponse is returned by GET /api/debug/logs
type DebugLogsResponse struct {
	Entries []logbuffer.LogEntry `json:"entries"`
	Count   int                  `json:"count"`
}

// GetDebugStatus returns the current logger configuration
// GET /api/debug
func (h *Handler) GetDebugStatus(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, debug.GetStatus())
}

// ToggleDebug applies logging changes immediately
// POST /api/debug
func (h *Handler) ToggleDebug(w http.ResponseWriter, r *http.Request) {
	var req DebugToggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, "VALIDATION_ERROR", "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Level != "" {
		level, ok := debug.ParseLevel(req.Level)
		if !ok {
			sendError(w, "VALIDATION_ERROR", "Unknown log level "+req.Level, http.StatusBadRequest)
			return
		}
		debug.SetLevel(level)
	}
	if req.Enabled != nil {
		debug.SetEnabled(*req.Enabled)
	}

	status := debug.GetStatus()
	debug.Info("[%s] Debug logging updated - Enabled: %v, Level: %s", requestID(r.Context()), status.Enabled, status.Level)
	sendJSON(w, http.StatusOK, status)
}

// GetDebugLogs returns buffered log entries, optionally only those after
// ?since=<RFC3339 time>
// GET /api/debug/logs
func (h *Handler) GetDebugLogs(w http.ResponseWriter, r *http.Request) {
	var entries []logbuffer.LogEntry

	if v := r.URL.Query().Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			sendError(w, "VALIDATION_ERROR", "since must be an RFC3339 timestamp", http.StatusBadRequest)
			return
		}
		entries = debug.GetBufferedLogs(since)
	} else {
		entries = debug.GetAllBufferedLogs()
	}

	if entries == nil {
		entries = []logbuffer.LogEntry{}
	}
	sendJSON(w, http.StatusOK, DebugLogsResponse{Entries: entries, Count: len(entries)})
}

// ClearDebugLogs empties the log buffer
// DELETE /api/debug/logs
func (h *Handler) ClearDebugLogs(w http.ResponseWriter, r *http.Request) {
	debug.ClearLogBuffer()
	w.WriteHeader(http.StatusNoContent)
}
