package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doomedramen/autopwn-sub005/internal/hashcat"
	"github.com/doomedramen/autopwn-sub005/internal/hashcat/types"
	"github.com/doomedramen/autopwn-sub005/internal/jobs"
	"github.com/doomedramen/autopwn-sub005/internal/results"
)

type fakeSessions struct {
	mu       sync.Mutex
	sessions map[string]jobs.Session
	started  []hashcat.JobSpec
	startErr error
	ctrlErr  error
	potfile  []results.CrackedRecord
	potErr   error
	live     map[string][]results.CrackedRecord
	stopped  []string
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{
		sessions: make(map[string]jobs.Session),
		live:     make(map[string][]results.CrackedRecord),
	}
}

func (f *fakeSessions) Start(ctx context.Context, spec hashcat.JobSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return "", f.startErr
	}
	f.started = append(f.started, spec)
	id := spec.Name + "-1"
	f.sessions[id] = jobs.Session{ID: id, Status: jobs.StatusProcessing}
	return id, nil
}

func (f *fakeSessions) Query(id string) (jobs.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return jobs.Session{}, jobs.ErrSessionNotFound
	}
	return s, nil
}

func (f *fakeSessions) Sessions() []jobs.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []jobs.Session
	for _, s := range f.sessions {
		out = append(out, s)
	}
	return out
}

func (f *fakeSessions) setStatus(id string, status jobs.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ctrlErr != nil {
		return f.ctrlErr
	}
	s, ok := f.sessions[id]
	if !ok {
		return jobs.ErrSessionNotFound
	}
	s.Status = status
	f.sessions[id] = s
	return nil
}

func (f *fakeSessions) Pause(ctx context.Context, id string) error {
	return f.setStatus(id, jobs.StatusPaused)
}

func (f *fakeSessions) Resume(ctx context.Context, id string) error {
	return f.setStatus(id, jobs.StatusProcessing)
}

func (f *fakeSessions) Stop(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, id)
	f.stopped = append(f.stopped, id)
	return nil
}

func (f *fakeSessions) Cleanup() int { return 3 }

func (f *fakeSessions) Results(ctx context.Context, id string) ([]results.CrackedRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[id]; !ok {
		return nil, jobs.ErrSessionNotFound
	}
	return f.live[id], nil
}

func (f *fakeSessions) PotfileResults(ctx context.Context) ([]results.CrackedRecord, error) {
	return f.potfile, f.potErr
}

func (f *fakeSessions) remove(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, id)
}

type fakeCatalog struct {
	devices []types.Device
	err     error
}

func (c fakeCatalog) Devices(ctx context.Context) ([]types.Device, error) {
	return c.devices, c.err
}

func (c fakeCatalog) HashTypes(ctx context.Context) ([]types.HashType, error) {
	return []types.HashType{{Mode: 22000, Name: "WPA-PBKDF2-PMKID+EAPOL", Category: "Network Protocol"}}, c.err
}

type fakeLister struct {
	limit int
}

func (l *fakeLister) List(ctx context.Context, limit int) ([]results.CrackedRecord, error) {
	l.limit = limit
	return []results.CrackedRecord{{Hash: "abc", Plaintext: "stored"}}, nil
}

func newTestHandler(svc *fakeSessions) (*Handler, http.Handler) {
	h := NewHandler(svc, fakeCatalog{devices: []types.Device{{ID: 1, Name: "cpu", Type: "CPU"}}}, nil)
	return h, h.Router()
}

func do(t *testing.T, router http.Handler, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()
	var apiErr APIError
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&apiErr))
	return apiErr
}

func TestStartSession(t *testing.T) {
	svc := newFakeSessions()
	_, router := newTestHandler(svc)

	rec := do(t, router, http.MethodPost, "/api/sessions",
		`{"name":"office","hash_file":"/tmp/h.hc22000","dictionaries":["/tmp/rockyou.txt"],"hash_type":22000,"attack_mode":0}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp StartSessionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "office-1", resp.ID)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	require.Len(t, svc.started, 1)
	assert.Equal(t, []string{"/tmp/rockyou.txt"}, svc.started[0].Dictionaries)
	assert.Equal(t, 22000, svc.started[0].HashType)
}

func TestStartSessionErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
		code   string
	}{
		{"bad json", `{`, nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"invalid job", `{}`, fmt.Errorf("%w: hash file is required", hashcat.ErrInvalidJob), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"duplicate", `{}`, jobs.ErrSessionExists, http.StatusConflict, "SESSION_EXISTS"},
		{"missing tool", `{}`, hashcat.ErrToolNotFound, http.StatusServiceUnavailable, "TOOL_NOT_FOUND"},
		{"start failure", `{}`, &hashcat.StartError{Err: errors.New("permission denied")}, http.StatusInternalServerError, "START_FAILED"},
		{"other", `{}`, errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newFakeSessions()
			svc.startErr = tt.err
			_, router := newTestHandler(svc)

			rec := do(t, router, http.MethodPost, "/api/sessions", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Code)
		})
	}
}

func TestGetAndListSessions(t *testing.T) {
	svc := newFakeSessions()
	svc.sessions["alpha-1"] = jobs.Session{ID: "alpha-1", Status: jobs.StatusProcessing, Progress: 42.5}
	_, router := newTestHandler(svc)

	rec := do(t, router, http.MethodGet, "/api/sessions/alpha-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var session jobs.Session
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&session))
	assert.Equal(t, 42.5, session.Progress)
	assert.Equal(t, jobs.StatusProcessing, session.Status)

	rec = do(t, router, http.MethodGet, "/api/sessions/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "SESSION_NOT_FOUND", decodeError(t, rec).Code)

	rec = do(t, router, http.MethodGet, "/api/sessions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []jobs.Session
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Len(t, list, 1)
}

func TestListSessionsEmptyIsArray(t *testing.T) {
	_, router := newTestHandler(newFakeSessions())

	rec := do(t, router, http.MethodGet, "/api/sessions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestPauseResumeStop(t *testing.T) {
	svc := newFakeSessions()
	svc.sessions["alpha-1"] = jobs.Session{ID: "alpha-1", Status: jobs.StatusProcessing}
	_, router := newTestHandler(svc)

	rec := do(t, router, http.MethodPost, "/api/sessions/alpha-1/pause", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"paused"`)

	rec = do(t, router, http.MethodPost, "/api/sessions/alpha-1/resume", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"processing"`)

	rec = do(t, router, http.MethodDelete, "/api/sessions/alpha-1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"alpha-1"}, svc.stopped)

	rec = do(t, router, http.MethodPost, "/api/sessions/alpha-1/pause", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestControlTimeout(t *testing.T) {
	svc := newFakeSessions()
	svc.sessions["alpha-1"] = jobs.Session{ID: "alpha-1"}
	svc.ctrlErr = fmt.Errorf("pause: %w", hashcat.ErrControlTimeout)
	_, router := newTestHandler(svc)

	rec := do(t, router, http.MethodPost, "/api/sessions/alpha-1/pause", "")
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Equal(t, "CONTROL_TIMEOUT", decodeError(t, rec).Code)
}

func TestResults(t *testing.T) {
	svc := newFakeSessions()
	svc.sessions["alpha-1"] = jobs.Session{ID: "alpha-1"}
	svc.live["alpha-1"] = []results.CrackedRecord{{Hash: "2582a8281bf9d4308d6f5731d0e61c61", Plaintext: "password123"}}
	svc.potfile = []results.CrackedRecord{{Hash: "abc123", Plaintext: "password1"}}
	_, router := newTestHandler(svc)

	rec := do(t, router, http.MethodGet, "/api/sessions/alpha-1/results", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "password123")

	rec = do(t, router, http.MethodGet, "/api/results", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "password1")

	rec = do(t, router, http.MethodGet, "/api/results?source=db", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/results?source=tape", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResultsFromDatabase(t *testing.T) {
	lister := &fakeLister{}
	h := NewHandler(newFakeSessions(), fakeCatalog{}, lister)
	router := h.Router()

	rec := do(t, router, http.MethodGet, "/api/results?source=db&limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "stored")
	assert.Equal(t, 10, lister.limit)

	rec = do(t, router, http.MethodGet, "/api/results?source=db&limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPotfileUnavailable(t *testing.T) {
	svc := newFakeSessions()
	svc.potErr = fmt.Errorf("%w: open hashcat.potfile: no such file or directory", results.ErrResultStoreUnavailable)
	_, router := newTestHandler(svc)

	rec := do(t, router, http.MethodGet, "/api/results", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "RESULT_STORE_UNAVAILABLE", decodeError(t, rec).Code)
}

func TestCatalogAndCleanup(t *testing.T) {
	_, router := newTestHandler(newFakeSessions())

	rec := do(t, router, http.MethodGet, "/api/devices", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"device_type":"CPU"`)

	rec = do(t, router, http.MethodGet, "/api/hash-types", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "22000")

	rec = do(t, router, http.MethodPost, "/api/cleanup", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"removed":3}`, rec.Body.String())
}

func TestCatalogToolMissing(t *testing.T) {
	h := NewHandler(newFakeSessions(), fakeCatalog{err: hashcat.ErrToolNotFound}, nil)

	rec := do(t, h.Router(), http.MethodGet, "/api/devices", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequestIDPropagated(t *testing.T) {
	_, router := newTestHandler(newFakeSessions())

	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))
}

func TestStreamSession(t *testing.T) {
	svc := newFakeSessions()
	svc.sessions["alpha-1"] = jobs.Session{ID: "alpha-1", Status: jobs.StatusProcessing, Progress: 10}
	h, router := newTestHandler(svc)
	h.streamInterval = 20 * time.Millisecond

	server := httptest.NewServer(router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/sessions/alpha-1/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))

	var session jobs.Session
	require.NoError(t, conn.ReadJSON(&session))
	assert.Equal(t, "alpha-1", session.ID)
	assert.Equal(t, float64(10), session.Progress)

	svc.remove("alpha-1")

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, _, err = conn.ReadMessage()
		if err != nil {
			break
		}
	}
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
}

func TestStreamUnknownSession(t *testing.T) {
	_, router := newTestHandler(newFakeSessions())

	rec := do(t, router, http.MethodGet, "/api/sessions/missing/ws", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
