package jobs

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/doomedramen/autopwn-sub005/internal/hashcat"
	"github.com/doomedramen/autopwn-sub005/internal/results"
	"github.com/doomedramen/autopwn-sub005/pkg/debug"
)

// Launcher starts hashcat and runs out-of-band control commands
type Launcher interface {
	Launch(args []string) (*hashcat.Process, error)
	Control(ctx context.Context, sessionID, flag string) error
}

// DictionaryResolver prepares dictionary paths before launch
type DictionaryResolver interface {
	ResolveAll(paths []string) ([]string, error)
}

// Options tunes the manager
type Options struct {
	MaxWorkload int
	StopGrace   time.Duration
	PotfilePath string
}

const defaultStopGrace = 5 * time.Second

var unsafeIDChars = regexp.MustCompile(`[^a-z0-9_-]+`)

// Manager starts, tracks and controls hashcat sessions
type Manager struct {
	store    *Store
	launcher Launcher
	resolver DictionaryResolver
	opts     Options
	now      func() time.Time

	// event goroutines, waited for on shutdown
	watchers sync.WaitGroup
}

// NewManager creates a manager. resolver may be nil.
func NewManager(store *Store, launcher Launcher, resolver DictionaryResolver, opts Options) *Manager {
	if opts.StopGrace <= 0 {
		opts.StopGrace = defaultStopGrace
	}
	if opts.MaxWorkload <= 0 {
		opts.MaxWorkload = hashcat.WorkloadCeiling
	}
	return &Manager{
		store:    store,
		launcher: launcher,
		resolver: resolver,
		opts:     opts,
		now:      time.Now,
	}
}

// Start launches a session for spec and returns its ID without waiting for
// the job
func (m *Manager) Start(ctx context.Context, spec hashcat.JobSpec) (string, error) {
	if err := spec.Validate(); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := spec.Name
	if strings.TrimSpace(name) == "" {
		name = "job-" + uuid.NewString()[:8]
	}
	started := m.now()
	id := SessionID(name, started)
	if m.store.Has(id) {
		return "", fmt.Errorf("%w: %s", ErrSessionExists, id)
	}

	launchSpec := spec
	launchSpec.Name = name
	if m.resolver != nil && len(spec.Dictionaries) > 0 {
		resolved, err := m.resolver.ResolveAll(spec.Dictionaries)
		if err != nil {
			return "", fmt.Errorf("%w: %v", hashcat.ErrInvalidJob, err)
		}
		launchSpec.Dictionaries = resolved
	}

	args := hashcat.BuildArgs(launchSpec, id, m.opts.MaxWorkload)
	proc, err := m.launcher.Launch(args)
	if err != nil {
		debug.Error("Failed to launch session %s: %v", id, err)
		return "", err
	}

	initial := Session{
		ID:         id,
		Status:     StatusProcessing,
		TotalCount: spec.TotalCandidates,
		UpdatedAt:  started,
	}
	if err := m.store.Register(id, proc, initial); err != nil {
		debug.Error("Session %s registered concurrently, stopping duplicate process %d", id, proc.Pid())
		m.discard(proc)
		return "", fmt.Errorf("%w: %s", err, id)
	}

	m.watchers.Add(1)
	go m.watch(id, proc)

	debug.Info("Session %s started (PID %d, hash type %d, attack mode %d)", id, proc.Pid(), spec.HashType, spec.AttackMode)
	return id, nil
}

// SessionID derives a session identifier from a job name and start time
func SessionID(name string, started time.Time) string {
	base := strings.Trim(unsafeIDChars.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if base == "" {
		base = "job"
	}
	return base + "-" + strconv.FormatInt(started.UnixMilli(), 10)
}

// watch is the single consumer of a process's events. It runs until the
// event stream closes, even after the session has been removed.
func (m *Manager) watch(id string, proc *hashcat.Process) {
	defer m.watchers.Done()

	for ev := range proc.Events() {
		if ev.Exited {
			m.finish(id, proc, ev.Exit)
			continue
		}
		if ev.Stream == hashcat.Stderr && strings.TrimSpace(ev.Line) != "" {
			debug.Debug("Session %s stderr: %s", id, ev.Line)
		}
		m.store.Apply(id, proc, ev.Line, reparse(id))
	}
}

// reparse rebuilds the snapshot from the window. Terminal states stick and
// a total learned earlier is kept when the window no longer shows one.
func reparse(id string) func([]string, Session) Session {
	return func(window []string, prev Session) Session {
		next := ParseStatus(window, id)
		if next.TotalCount == 0 && prev.TotalCount > 0 {
			next.TotalCount = prev.TotalCount
			// counters are gone, so any cracked count came from cracked lines
			if next.CrackedCount > 0 {
				next.Progress = clampPercent(float64(next.CrackedCount) / float64(next.TotalCount) * 100)
			}
		}
		if prev.Status.IsTerminal() {
			next.Status = prev.Status
			next.Error = prev.Error
		}
		next.UpdatedAt = time.Now()
		return next
	}
}

func (m *Manager) finish(id string, proc *hashcat.Process, exit hashcat.ExitStatus) {
	session, ok := m.store.Apply(id, proc, "", func(_ []string, prev Session) Session {
		next := prev
		next.UpdatedAt = time.Now()
		if prev.Status.IsTerminal() {
			return next
		}
		if exit.Code == 0 {
			next.Status = StatusCompleted
			return next
		}
		next.Status = StatusStopped
		next.Error = fmt.Sprintf("hashcat exited with code %d", exit.Code)
		if exit.Err != nil {
			next.Error += ": " + exit.Err.Error()
		}
		return next
	})
	if !ok {
		debug.Debug("Process for session %s exited after removal (code %d)", id, exit.Code)
		return
	}
	debug.Info("Session %s process exited with code %d, status %s", id, exit.Code, session.Status)
}

// Query returns the cached snapshot without touching the process
func (m *Manager) Query(id string) (Session, error) {
	session, ok := m.store.Session(id)
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return session, nil
}

// Sessions returns all snapshots
func (m *Manager) Sessions() []Session {
	return m.store.Sessions()
}

// Pause asks hashcat to pause the session
func (m *Manager) Pause(ctx context.Context, id string) error {
	return m.control(ctx, id, hashcat.ControlPause, PauseMarker)
}

// Resume asks hashcat to resume a paused session
func (m *Manager) Resume(ctx context.Context, id string) error {
	return m.control(ctx, id, hashcat.ControlResume, ResumeMarker)
}

func (m *Manager) control(ctx context.Context, id, flag, marker string) error {
	proc, ok := m.store.Process(id)
	if !ok {
		return ErrSessionNotFound
	}

	if err := m.launcher.Control(ctx, id, flag); err != nil {
		if errors.Is(err, hashcat.ErrControlTimeout) || errors.Is(err, hashcat.ErrToolNotFound) {
			debug.Error("Control %s for session %s failed: %v", flag, id, err)
			return err
		}
		debug.Warning("Control %s for session %s returned: %v", flag, id, err)
	}

	if _, ok := m.store.Apply(id, proc, marker, reparse(id)); !ok {
		return ErrSessionNotFound
	}
	debug.Info("Session %s: %s applied", id, strings.TrimPrefix(flag, "--"))
	return nil
}

// Stop terminates the session's process group, escalating to SIGKILL after
// the grace period, and removes the session. The out-of-band quit runs
// alongside and its failure is only logged. Stopping an unknown session is
// not an error.
func (m *Manager) Stop(ctx context.Context, id string) error {
	proc, ok := m.store.Remove(id)
	if !ok {
		debug.Debug("Stop for unknown session %s ignored", id)
		return nil
	}

	debug.Info("Stopping session %s (PID %d)", id, proc.Pid())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return proc.Stop(gctx, m.opts.StopGrace)
	})
	g.Go(func() error {
		if err := m.launcher.Control(gctx, id, hashcat.ControlQuit); err != nil {
			debug.Warning("Quit for session %s returned: %v", id, err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to stop session %s: %w", id, err)
	}
	debug.Info("Session %s stopped", id)
	return nil
}

// discard kills a process that never became a session
func (m *Manager) discard(proc *hashcat.Process) {
	m.watchers.Add(1)
	go func() {
		defer m.watchers.Done()
		for range proc.Events() {
		}
	}()
	_ = proc.Stop(context.Background(), m.opts.StopGrace)
}

// Cleanup removes sessions whose process has exited and returns how many
func (m *Manager) Cleanup() int {
	removed := m.store.RemoveFinished()
	if len(removed) > 0 {
		debug.Info("Cleaned up %d finished sessions: %s", len(removed), strings.Join(removed, ", "))
	}
	return len(removed)
}

// Results returns the cracked records visible in the session's output window
func (m *Manager) Results(ctx context.Context, id string) ([]results.CrackedRecord, error) {
	window, ok := m.store.Window(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return results.ExtractLive(window), nil
}

// PotfileResults returns every record in hashcat's potfile
func (m *Manager) PotfileResults(ctx context.Context) ([]results.CrackedRecord, error) {
	if m.opts.PotfilePath == "" {
		return nil, fmt.Errorf("%w: no potfile configured", results.ErrResultStoreUnavailable)
	}
	return results.ReadPotfile(m.opts.PotfilePath)
}

// Shutdown stops every session and waits for their event goroutines
func (m *Manager) Shutdown(ctx context.Context) error {
	ids := m.store.IDs()
	debug.Info("Shutting down %d sessions", len(ids))

	g, gctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			return m.Stop(gctx, id)
		})
	}
	err := g.Wait()

	done := make(chan struct{})
	go func() {
		m.watchers.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}
