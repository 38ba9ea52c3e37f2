package jobs

import (
	"sort"
	"strings"
	"sync"

	"github.com/doomedramen/autopwn-sub005/internal/hashcat"
	"github.com/doomedramen/autopwn-sub005/internal/logbuffer"
)

// DefaultWindowLines is the number of output lines kept per session
const DefaultWindowLines = 100

// Store is the session registry: process handles, snapshots and output
// windows keyed by session ID, all guarded by one lock
type Store struct {
	mu          sync.RWMutex
	processes   map[string]*hashcat.Process
	sessions    map[string]Session
	windows     map[string]*logbuffer.RingBuffer[string]
	windowLines int
}

// NewStore creates an empty registry keeping windowLines lines per session
func NewStore(windowLines int) *Store {
	if windowLines <= 0 {
		windowLines = DefaultWindowLines
	}
	return &Store{
		processes:   make(map[string]*hashcat.Process),
		sessions:    make(map[string]Session),
		windows:     make(map[string]*logbuffer.RingBuffer[string]),
		windowLines: windowLines,
	}
}

// Register adds a session with an empty window and its initial snapshot
func (s *Store) Register(id string, proc *hashcat.Process, initial Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.processes[id]; exists {
		return ErrSessionExists
	}
	s.processes[id] = proc
	s.sessions[id] = initial
	s.windows[id] = logbuffer.New[string](s.windowLines)
	return nil
}

// Has reports whether id is registered
func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.processes[id]
	return ok
}

// Append adds the lines of chunk to the session window
func (s *Store) Append(id, chunk string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	window, ok := s.windows[id]
	if !ok {
		return false
	}
	window.Add(SplitLines(chunk)...)
	return true
}

// Apply appends chunk to the window and replaces the snapshot with
// update(window, previous) as one step. Nothing happens unless proc is
// still the registered handle for id, so events from a stopped or replaced
// process are dropped.
func (s *Store) Apply(id string, proc *hashcat.Process, chunk string, update func(window []string, prev Session) Session) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.processes[id]; !ok || current != proc {
		return Session{}, false
	}

	window := s.windows[id]
	if chunk != "" {
		window.Add(SplitLines(chunk)...)
	}
	next := update(window.GetAll(), s.sessions[id])
	s.sessions[id] = next
	return next, true
}

// ReplaceIfOwner stores snapshot if proc still owns id
func (s *Store) ReplaceIfOwner(id string, proc *hashcat.Process, snapshot Session) bool {
	_, ok := s.Apply(id, proc, "", func([]string, Session) Session { return snapshot })
	return ok
}

// Session returns the cached snapshot for id
func (s *Store) Session(id string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	return session, ok
}

// Sessions returns every snapshot ordered by ID
func (s *Store) Sessions() []Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		list = append(list, session)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// Process returns the process handle for id
func (s *Store) Process(id string) (*hashcat.Process, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	proc, ok := s.processes[id]
	return proc, ok
}

// Window returns a copy of the session's output window
func (s *Store) Window(id string) ([]string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	window, ok := s.windows[id]
	if !ok {
		return nil, false
	}
	return window.GetAll(), true
}

// IDs returns the registered session IDs in order
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.processes))
	for id := range s.processes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Remove deletes id from all three maps and returns its process handle
func (s *Store) Remove(id string) (*hashcat.Process, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	proc, ok := s.processes[id]
	if !ok {
		return nil, false
	}
	s.removeLocked(id)
	return proc, true
}

// RemoveFinished deletes every session whose process has exited and
// returns their IDs
func (s *Store) RemoveFinished() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	for id, proc := range s.processes {
		if proc == nil || !proc.Running() {
			s.removeLocked(id)
			removed = append(removed, id)
		}
	}
	sort.Strings(removed)
	return removed
}

func (s *Store) removeLocked(id string) {
	delete(s.processes, id)
	delete(s.sessions, id)
	delete(s.windows, id)
}

// SplitLines splits an output chunk into lines, accepting \n and \r\n and
// dropping the empty fragment after a trailing newline
func SplitLines(chunk string) []string {
	if chunk == "" {
		return nil
	}
	lines := strings.Split(strings.ReplaceAll(chunk, "\r\n", "\n"), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
