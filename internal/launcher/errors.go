package launcher

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
)

var (
	// ErrCommandNotFound means the executable could not be located.
	// It wraps exec.ErrNotFound.
	ErrCommandNotFound = fmt.Errorf("command not found: %w", exec.ErrNotFound)

	// ErrInterpreterNotFound means neither python3 nor python is on PATH.
	ErrInterpreterNotFound = errors.New("python interpreter not found on PATH")

	// ErrInterrupted marks a run that ended because the user interrupted it.
	ErrInterrupted = errors.New("interrupted")
)

// CommandError describes a child process that ran and failed
type CommandError struct {
	Name     string
	Args     []string
	ExitCode int            // -1 when the process was killed by a signal
	Signal   syscall.Signal // 0 unless killed by a signal
	Err      error
}

func (e *CommandError) Error() string {
	cmdline := strings.TrimSpace(e.Name + " " + strings.Join(e.Args, " "))
	if e.Signal != 0 {
		return fmt.Sprintf("%s: killed by %s", cmdline, SignalName(e.Signal))
	}
	if e.ExitCode >= 0 {
		return fmt.Sprintf("%s: exit status %d", cmdline, e.ExitCode)
	}
	return fmt.Sprintf("%s: %v", cmdline, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Status returns the exit status a shell would report for this failure
func (e *CommandError) Status() int {
	if e.Signal != 0 {
		return 128 + int(e.Signal)
	}
	if e.ExitCode > 0 {
		return e.ExitCode
	}
	return 1
}

// ExitCode maps the error returned by a command to a process exit status.
// nil and interrupts are 0, a failed child mirrors its own status,
// anything else is 1.
func ExitCode(err error) int {
	if err == nil || errors.Is(err, ErrInterrupted) {
		return 0
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Status()
	}
	return 1
}

// IsNotFound reports whether err is an executable lookup failure
func IsNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound)
}
