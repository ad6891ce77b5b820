package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// Command describes one child process invocation
type Command struct {
	Name string
	Args []string

	// DiscardStdout drops the child's stdout; stderr is always inherited
	DiscardStdout bool
}

func (c Command) String() string {
	return fmt.Sprintf("%s %v", c.Name, c.Args)
}

// Runner runs a command in the foreground and blocks until it exits.
// Implementations return ErrCommandNotFound when the executable cannot
// be located and *CommandError when it ran and failed.
type Runner interface {
	Run(ctx context.Context, c Command) error
}

// DefaultGracePeriod is how long a cancelled child may take to exit
// before it is killed.
const DefaultGracePeriod = 10 * time.Second

// ExecRunner runs commands as local OS processes with inherited stdio
type ExecRunner struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// GracePeriod bounds the wait after ctx is done; zero means DefaultGracePeriod
	GracePeriod time.Duration
}

// Run starts c and waits for it. When ctx is done the child is asked to
// stop with SIGTERM and killed if it outlives the grace period. The child
// stays in the launcher's process group so a terminal Ctrl+C reaches it
// directly.
func (r ExecRunner) Run(ctx context.Context, c Command) error {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Stdin = r.stdin()
	cmd.Stdout = r.stdout(c.DiscardStdout)
	cmd.Stderr = r.stderr()
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = r.GracePeriod
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = DefaultGracePeriod
	}

	if err := cmd.Start(); err != nil {
		if IsNotFound(err) {
			return fmt.Errorf("%s: %w", c.Name, ErrCommandNotFound)
		}
		return fmt.Errorf("failed to start %s: %w", c.Name, err)
	}

	return classifyWait(c, cmd.Wait())
}

func classifyWait(c Command, err error) error {
	if err == nil {
		return nil
	}

	cmdErr := &CommandError{Name: c.Name, Args: c.Args, ExitCode: -1, Err: err}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		cmdErr.ExitCode = exitErr.ExitCode()
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			cmdErr.Signal = status.Signal()
		}
	}
	return cmdErr
}

func (r ExecRunner) stdin() io.Reader {
	if r.Stdin != nil {
		return r.Stdin
	}
	return os.Stdin
}

func (r ExecRunner) stdout(discard bool) io.Writer {
	if discard {
		return io.Discard
	}
	if r.Stdout != nil {
		return r.Stdout
	}
	return os.Stdout
}

func (r ExecRunner) stderr() io.Writer {
	if r.Stderr != nil {
		return r.Stderr
	}
	return os.Stderr
}
