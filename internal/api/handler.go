// Package api exposes the session engine over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/doomedramen/autopwn-sub005/internal/hashcat"
	"github.com/doomedramen/autopwn-sub005/internal/hashcat/types"
	"github.com/doomedramen/autopwn-sub005/internal/jobs"
	"github.com/doomedramen/autopwn-sub005/internal/results"
	"github.com/doomedramen/autopwn-sub005/pkg/debug"
)

// SessionService is the session controller as seen by the API
type SessionService interface {
	Start(ctx context.Context, spec hashcat.JobSpec) (string, error)
	Query(id string) (jobs.Session, error)
	Sessions() []jobs.Session
	Pause(ctx context.Context, id string) error
	Resume(ctx context.Context, id string) error
	Stop(ctx context.Context, id string) error
	Cleanup() int
	Results(ctx context.Context, id string) ([]results.CrackedRecord, error)
	PotfileResults(ctx context.Context) ([]results.CrackedRecord, error)
}

// Catalog answers capability discovery requests
type Catalog interface {
	Devices(ctx context.Context) ([]types.Device, error)
	HashTypes(ctx context.Context) ([]types.HashType, error)
}

// ResultLister reads persisted results
type ResultLister interface {
	List(ctx context.Context, limit int) ([]results.CrackedRecord, error)
}

const (
	defaultStreamInterval = time.Second
	defaultResultLimit    = 500
)

// Handler serves the engine API
type Handler struct {
	sessions SessionService
	catalog  Catalog
	stored   ResultLister

	streamInterval time.Duration
}

// NewHandler creates a new API handler. stored may be nil when no database
// is configured.
func NewHandler(sessions SessionService, catalog Catalog, stored ResultLister) *Handler {
	return &Handler{
		sessions:       sessions,
		catalog:        catalog,
		stored:         stored,
		streamInterval: defaultStreamInterval,
	}
}

// StartSessionResponse is returned by POST /api/sessions
type StartSessionResponse struct {
	ID string `json:"id"`
}

// CleanupResponse is returned by POST /api/cleanup
type CleanupResponse struct {
	Removed int `json:"removed"`
}

// Router builds the route table
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(requestIDMiddleware, loggingMiddleware)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/sessions", h.StartSession).Methods(http.MethodPost)
	api.HandleFunc("/sessions", h.ListSessions).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", h.GetSession).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", h.StopSession).Methods(http.MethodDelete)
	api.HandleFunc("/sessions/{id}/pause", h.PauseSession).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/resume", h.ResumeSession).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/results", h.SessionResults).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/ws", h.StreamSession).Methods(http.MethodGet)
	api.HandleFunc("/results", h.ListResults).Methods(http.MethodGet)
	api.HandleFunc("/devices", h.ListDevices).Methods(http.MethodGet)
	api.HandleFunc("/hash-types", h.ListHashTypes).Methods(http.MethodGet)
	api.HandleFunc("/cleanup", h.Cleanup).Methods(http.MethodPost)
	api.HandleFunc("/debug", h.GetDebugStatus).Methods(http.MethodGet)
	api.HandleFunc("/debug", h.ToggleDebug).Methods(http.MethodPost)
	api.HandleFunc("/debug/logs", h.GetDebugLogs).Methods(http.MethodGet)
	api.HandleFunc("/debug/logs", h.ClearDebugLogs).Methods(http.MethodDelete)

	return r
}

// StartSession launches a job
// POST /api/sessions
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	var spec hashcat.JobSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		sendError(w, "VALIDATION_ERROR", "Invalid request body", http.StatusBadRequest)
		return
	}

	id, err := h.sessions.Start(r.Context(), spec)
	if err != nil {
		sendEngineError(w, r, err)
		return
	}

	debug.Info("[%s] Started session %s", requestID(r.Context()), id)
	sendJSON(w, http.StatusCreated, StartSessionResponse{ID: id})
}

// ListSessions returns every known snapshot
// GET /api/sessions
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.sessions.Sessions()
	if sessions == nil {
		sessions = []jobs.Session{}
	}
	sendJSON(w, http.StatusOK, sessions)
}

// GetSession returns the cached snapshot
// GET /api/sessions/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Query(mux.Vars(r)["id"])
	if err != nil {
		sendEngineError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, session)
}

// PauseSession POST /api/sessions/{id}/pause
func (h *Handler) PauseSession(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, h.sessions.Pause)
}

// ResumeSession POST /api/sessions/{id}/resume
func (h *Handler) ResumeSession(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, h.sessions.Resume)
}

func (h *Handler) control(w http.ResponseWriter, r *http.Request, fn func(context.Context, string) error) {
	id := mux.Vars(r)["id"]
	if err := fn(r.Context(), id); err != nil {
		sendEngineError(w, r, err)
		return
	}
	session, err := h.sessions.Query(id)
	if err != nil {
		sendEngineError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, session)
}

// StopSession DELETE /api/sessions/{id}
func (h *Handler) StopSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Stop(r.Context(), mux.Vars(r)["id"]); err != nil {
		sendEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SessionResults returns records cracked in the session's recent output
// GET /api/sessions/{id}/results
func (h *Handler) SessionResults(w http.ResponseWriter, r *http.Request) {
	records, err := h.sessions.Results(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		sendEngineError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, nonNil(records))
}

// ListResults returns potfile records, or persisted ones with ?source=db
// GET /api/results
func (h *Handler) ListResults(w http.ResponseWriter, r *http.Request) {
	var (
		records []results.CrackedRecord
		err     error
	)

	switch r.URL.Query().Get("source") {
	case "", "potfile":
		records, err = h.sessions.PotfileResults(r.Context())
	case "db":
		if h.stored == nil {
			sendError(w, "RESULT_STORE_UNAVAILABLE", "No database configured", http.StatusServiceUnavailable)
			return
		}
		limit := defaultResultLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, convErr := strconv.Atoi(v)
			if convErr != nil || n <= 0 {
				sendError(w, "VALIDATION_ERROR", "Invalid limit", http.StatusBadRequest)
				return
			}
			limit = n
		}
		records, err = h.stored.List(r.Context(), limit)
	default:
		sendError(w, "VALIDATION_ERROR", "Unknown result source", http.StatusBadRequest)
		return
	}

	if err != nil {
		sendEngineError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, nonNil(records))
}

// ListDevices GET /api/devices
func (h *Handler) ListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := h.catalog.Devices(r.Context())
	if err != nil {
		sendEngineError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, devices)
}

// ListHashTypes GET /api/hash-types
func (h *Handler) ListHashTypes(w http.ResponseWriter, r *http.Request) {
	hashTypes, err := h.catalog.HashTypes(r.Context())
	if err != nil {
		sendEngineError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, hashTypes)
}

// Cleanup removes finished sessions
// POST /api/cleanup
func (h *Handler) Cleanup(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, CleanupResponse{Removed: h.sessions.Cleanup()})
}

func nonNil(records []results.CrackedRecord) []results.CrackedRecord {
	if records == nil {
		return []results.CrackedRecord{}
	}
	return records
}
