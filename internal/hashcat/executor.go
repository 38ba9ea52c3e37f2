package hashcat

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/doomedramen/autopwn-sub005/pkg/debug"
)

var (
	// ErrToolNotFound is returned when the hashcat binary cannot be located
	ErrToolNotFound = errors.New("hashcat binary not found")
	// ErrControlTimeout is returned when a control invocation outlives its timeout
	ErrControlTimeout = errors.New("hashcat control command timed out")
)

// StartError reports a failure to start hashcat for any reason other than a
// missing binary
type StartError struct {
	Err error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("failed to start hashcat: %v", e.Err)
}

func (e *StartError) Unwrap() error {
	return e.Err
}

// Control flags for out-of-band invocations against a running session
const (
	ControlPause  = "--pause"
	ControlResume = "--resume"
	ControlQuit   = "--quit"
)

// controlWaitDelay bounds how long a control command's pipes may stay open
// after it has been killed
const controlWaitDelay = time.Second

// Executor starts hashcat processes from a fixed binary
type Executor struct {
	binaryPath     string
	workDir        string
	controlTimeout time.Duration
}

// NewExecutor creates an executor for binaryPath. workDir may be empty.
func NewExecutor(binaryPath, workDir string, controlTimeout time.Duration) *Executor {
	return &Executor{
		binaryPath:     binaryPath,
		workDir:        workDir,
		controlTimeout: controlTimeout,
	}
}

// Launch starts hashcat with args in its own process group and returns
// immediately
func (e *Executor) Launch(args []string) (*Process, error) {
	if e.workDir != "" {
		info, err := os.Stat(e.workDir)
		if err != nil {
			return nil, &StartError{Err: fmt.Errorf("working directory unavailable: %w", err)}
		}
		if !info.IsDir() {
			return nil, &StartError{Err: fmt.Errorf("working directory %s is not a directory", e.workDir)}
		}
	}

	cmd := exec.Command(e.binaryPath, args...)
	cmd.Dir = e.workDir
	setProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &StartError{Err: fmt.Errorf("failed to create stdout pipe: %w", err)}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &StartError{Err: fmt.Errorf("failed to create stderr pipe: %w", err)}
	}

	debug.Info("Starting hashcat: %s %s", e.binaryPath, strings.Join(args, " "))
	if err := cmd.Start(); err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrToolNotFound, e.binaryPath)
		}
		return nil, &StartError{Err: err}
	}

	debug.Info("hashcat started with PID %d", cmd.Process.Pid)
	return newProcess(cmd, stdout, stderr), nil
}

// Control runs `hashcat --session <id> <flag>` and waits for it, bounded by
// the control timeout. A non-zero exit is reported as a plain error.
func (e *Executor) Control(ctx context.Context, sessionID, flag string) error {
	ctx, cancel := context.WithTimeout(ctx, e.controlTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.binaryPath, "--session", sessionID, flag)
	cmd.Dir = e.workDir
	cmd.WaitDelay = controlWaitDelay

	output, err := cmd.CombinedOutput()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s %s after %v", ErrControlTimeout, flag, sessionID, e.controlTimeout)
	}
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%w: %s", ErrToolNotFound, e.binaryPath)
		}
		return fmt.Errorf("hashcat %s for session %s failed: %w (output: %s)", flag, sessionID, err, strings.TrimSpace(string(output)))
	}

	debug.Debug("hashcat %s for session %s succeeded", flag, sessionID)
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}
