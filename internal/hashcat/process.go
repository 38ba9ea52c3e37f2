package hashcat

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/doomedramen/autopwn-sub005/pkg/debug"
)

// Stream identifies where an output line came from
type Stream int

const (
	Stdout Stream = iota
	Stderr
)

// String returns the stream name
func (s Stream) String() string {
	if s == Stderr {
		return "stderr"
	}
	return "stdout"
}

// Event is one item of a process's ordered event stream: either an output
// line or, as the final event, the exit
type Event struct {
	Line   string
	Stream Stream
	Exited bool
	Exit   ExitStatus
}

// ExitStatus describes how the process ended
type ExitStatus struct {
	Code int   // -1 when terminated by a signal
	Err  error // nil on a clean exit
}

const (
	eventBuffer   = 256
	maxLineLength = 1024 * 1024
)

// Process is a running hashcat instance started by Executor.Launch
type Process struct {
	cmd    *exec.Cmd
	pid    int
	events chan Event
	done   chan struct{}

	mu   sync.RWMutex
	exit ExitStatus
}

func newProcess(cmd *exec.Cmd, stdout, stderr io.Reader) *Process {
	p := &Process{
		cmd:    cmd,
		pid:    cmd.Process.Pid,
		events: make(chan Event, eventBuffer),
		done:   make(chan struct{}),
	}

	var readers sync.WaitGroup
	readers.Add(2)
	go p.scan(stdout, Stdout, &readers)
	go p.scan(stderr, Stderr, &readers)

	go func() {
		// Wait must not run before the pipes are drained
		readers.Wait()
		status := exitStatus(cmd.Wait())

		p.mu.Lock()
		p.exit = status
		p.mu.Unlock()
		close(p.done)

		p.events <- Event{Exited: true, Exit: status}
		close(p.events)
	}()

	return p
}

func (p *Process) scan(r io.Reader, stream Stream, wg *sync.WaitGroup) {
	defer wg.Done()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineLength)
	for scanner.Scan() {
		p.events <- Event{Line: scanner.Text(), Stream: stream}
	}
	if err := scanner.Err(); err != nil {
		debug.Warning("Error reading %s of process %d: %v", stream, p.pid, err)
		// keep the pipe drained so the child never blocks on a full buffer
		_, _ = io.Copy(io.Discard, r)
	}
}

func exitStatus(err error) ExitStatus {
	if err == nil {
		return ExitStatus{Code: 0}
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return ExitStatus{Code: exitErr.ExitCode(), Err: err}
	}
	return ExitStatus{Code: -1, Err: err}
}

// Pid returns the OS process id, which is also the process group id
func (p *Process) Pid() int {
	return p.pid
}

// Events returns the ordered event stream. It must be drained until closed.
func (p *Process) Events() <-chan Event {
	return p.events
}

// Running reports whether the process is still alive
func (p *Process) Running() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// ExitStatus returns the exit status; only meaningful once Done is closed
func (p *Process) ExitStatus() ExitStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.exit
}

// Terminate sends SIGTERM to the process group
func (p *Process) Terminate() error {
	if !p.Running() {
		return nil
	}
	return terminateGroup(p.cmd)
}

// Kill sends SIGKILL to the process group
func (p *Process) Kill() error {
	if !p.Running() {
		return nil
	}
	return killGroup(p.cmd)
}

// Stop terminates the process and kills it if it is still alive after grace.
// It returns once the process has exited or ctx is done.
func (p *Process) Stop(ctx context.Context, grace time.Duration) error {
	if !p.Running() {
		return nil
	}

	if err := p.Terminate(); err != nil {
		debug.Warning("Failed to send SIGTERM to process group %d: %v", p.pid, err)
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-p.done:
		return nil
	case <-timer.C:
		debug.Warning("Process %d still running after %v, sending SIGKILL", p.pid, grace)
		if err := p.Kill(); err != nil {
			debug.Error("Failed to kill process group %d: %v", p.pid, err)
		}
	case <-ctx.Done():
		_ = p.Kill()
		return ctx.Err()
	}

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
