//go:build !windows

package launcher

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"syscall"
	"testing"
	"time"
)

func TestExecRunnerSuccess(t *testing.T) {
	var stdout bytes.Buffer
	r := ExecRunner{Stdout: &stdout}

	if err := r.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "echo ready"}}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if strings.TrimSpace(stdout.String()) != "ready" {
		t.Errorf("expected child stdout to be forwarded, got %q", stdout.String())
	}
}

func TestExecRunnerDiscardStdout(t *testing.T) {
	var stdout bytes.Buffer
	r := ExecRunner{Stdout: &stdout}

	cmd := Command{Name: "sh", Args: []string{"-c", "echo noisy"}, DiscardStdout: true}
	if err := r.Run(context.Background(), cmd); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if stdout.Len() != 0 {
		t.Errorf("expected stdout to be discarded, got %q", stdout.String())
	}
}

func TestExecRunnerExitCode(t *testing.T) {
	r := ExecRunner{Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}}

	err := r.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "exit 3"}})
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("expected CommandError, got %v", err)
	}
	if cmdErr.ExitCode != 3 || cmdErr.Signal != 0 {
		t.Errorf("unexpected failure: %+v", cmdErr)
	}
}

func TestExecRunnerNotFound(t *testing.T) {
	r := ExecRunner{}

	err := r.Run(context.Background(), Command{Name: "chromactl-definitely-missing-binary"})
	if !errors.Is(err, ErrCommandNotFound) {
		t.Fatalf("expected ErrCommandNotFound, got %v", err)
	}
	if !IsNotFound(err) {
		t.Error("IsNotFound should recognise the lookup failure")
	}
}

func TestExecRunnerCancelTerminatesChild(t *testing.T) {
	r := ExecRunner{Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}, GracePeriod: 2 * time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	err := r.Run(ctx, Command{Name: "sleep", Args: []string{"30"}})
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Fatalf("child was not stopped promptly (%v)", elapsed)
	}

	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("expected CommandError, got %v", err)
	}
	if cmdErr.Signal != syscall.SIGTERM {
		t.Errorf("expected child to be stopped with SIGTERM, got %+v", cmdErr)
	}
	if cmdErr.Status() != 128+int(syscall.SIGTERM) {
		t.Errorf("unexpected status %d", cmdErr.Status())
	}
}
