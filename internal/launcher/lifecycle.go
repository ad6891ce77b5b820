package launcher

import (
	"errors"
	"fmt"
	"syscall"
)

// Mode says which invocation started the service
type Mode string

const (
	ModeNone     Mode = "none"
	ModePrimary  Mode = "primary"  // chroma run ...
	ModeFallback Mode = "fallback" // <python> -m chroma run ...
)

// ExitReason describes why a launcher run ended
type ExitReason string

const (
	ExitReasonSuccess     ExitReason = "success"     // service exited 0
	ExitReasonInterrupted ExitReason = "interrupted" // user pressed Ctrl+C or sent SIGTERM
	ExitReasonError       ExitReason = "error"       // service exited non-zero
	ExitReasonSignal      ExitReason = "signal"      // service killed by a foreign signal
	ExitReasonFailed      ExitReason = "failed"      // launcher failed before or while starting the service
)

// interruptExitCode is what shells and most servers report after SIGINT
const interruptExitCode = 128 + int(syscall.SIGINT)

// DetermineExitReason classifies the error returned by the service run
func DetermineExitReason(err error, interrupted bool) ExitReason {
	if interrupted || errors.Is(err, ErrInterrupted) {
		return ExitReasonInterrupted
	}
	if err == nil {
		return ExitReasonSuccess
	}

	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		return ExitReasonFailed
	}
	if cmdErr.Signal != 0 {
		return ExitReasonSignal
	}
	return ExitReasonError
}

// exitedOnInterrupt reports whether the child died from the terminal's
// SIGINT, which can race ahead of our own signal notification.
func exitedOnInterrupt(err error) bool {
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		return false
	}
	return cmdErr.Signal == syscall.SIGINT || cmdErr.ExitCode == interruptExitCode
}

// SignalName returns the signal name for a signal number
func SignalName(sig syscall.Signal) string {
	switch sig {
	case syscall.SIGKILL:
		return "SIGKILL"
	case syscall.SIGTERM:
		return "SIGTERM"
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGHUP:
		return "SIGHUP"
	case syscall.SIGQUIT:
		return "SIGQUIT"
	case syscall.SIGABRT:
		return "SIGABRT"
	case syscall.SIGSEGV:
		return "SIGSEGV"
	case syscall.SIGPIPE:
		return "SIGPIPE"
	default:
		return fmt.Sprintf("SIG%d", int(sig))
	}
}
