// Package launcher makes sure the chromadb Python package is installed
// and runs the ChromaDB server in the foreground until it exits or the
// user interrupts it.
//
// The service address and storage path are fixed. Nothing here reads
// flags, environment variables or config files.
package launcher

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/google/uuid"

	"github.com/psantana5/chromactl/internal/observe"
	"github.com/psantana5/chromactl/internal/report"
	"github.com/psantana5/chromactl/pkg/logging"
)

const (
	Host        = "localhost"
	Port        = 8000
	DataPath    = "./chroma_data"
	PackageName = "chromadb"

	// ServiceCommand is the console entry point installed by the package
	ServiceCommand = "chroma"
	// ServiceModule is what `<python> -m` runs when the entry point is missing
	ServiceModule = "chroma"
)

// ServiceArgs returns the arguments shared by both invocations
func ServiceArgs() []string {
	return []string{"run", "--host", Host, "--port", strconv.Itoa(Port), "--path", DataPath}
}

// ServiceURL is where the service listens once started
func ServiceURL() string {
	return fmt.Sprintf("http://%s:%d", Host, Port)
}

// PrimaryCommand is `chroma run --host localhost --port 8000 --path ./chroma_data`
func PrimaryCommand() Command {
	return Command{Name: ServiceCommand, Args: ServiceArgs()}
}

// FallbackCommand is `<python> -m chroma run ...` with identical arguments
func FallbackCommand(python string) Command {
	return Command{Name: python, Args: append([]string{"-m", ServiceModule}, ServiceArgs()...)}
}

// NotifyFunc returns a context that is cancelled when the run should stop
type NotifyFunc func(ctx context.Context) (context.Context, context.CancelFunc)

// NotifyInterrupt cancels on SIGINT or SIGTERM
func NotifyInterrupt(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

// Options configures a Launcher. Zero values pick the real implementations.
type Options struct {
	Runner   Runner
	Stdout   io.Writer // phase messages for the user
	Logger   *logging.Logger
	Metrics  *report.Metrics
	LookPath func(string) (string, error)
	Notify   NotifyFunc
	RunID    string
}

// Launcher runs the install-then-serve flow. One Launcher owns at most
// one service child at a time.
type Launcher struct {
	runner   Runner
	stdout   io.Writer
	logger   *logging.Logger
	metrics  *report.Metrics
	lookPath func(string) (string, error)
	notify   NotifyFunc
	runID    string
}

// New creates a launcher
func New(opts Options) *Launcher {
	l := &Launcher{
		runner:   opts.Runner,
		stdout:   opts.Stdout,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		lookPath: opts.LookPath,
		notify:   opts.Notify,
		runID:    opts.RunID,
	}
	if l.runner == nil {
		l.runner = ExecRunner{}
	}
	if l.stdout == nil {
		l.stdout = os.Stdout
	}
	if l.logger == nil {
		l.logger = logging.Discard()
	}
	if l.lookPath == nil {
		l.lookPath = exec.LookPath
	}
	if l.notify == nil {
		l.notify = NotifyInterrupt
	}
	if l.runID == "" {
		l.runID = uuid.NewString()
	}
	l.logger = l.logger.WithField("run_id", l.runID)
	return l
}

// Run checks the dependency, installs it if needed and runs the service
// until it exits. An interrupt while the service runs is a clean stop and
// returns a nil error. Every other failure is returned; ExitCode maps it
// to the process status.
func (l *Launcher) Run(ctx context.Context) (*report.Result, error) {
	timing := observe.NewTiming()
	result := report.NewResult(l.runID, timing.StartedAt)
	mode := ModeNone

	finish := func(err error, interrupted bool) (*report.Result, error) {
		reason := DetermineExitReason(err, interrupted)
		if mode == ModeNone && err != nil {
			reason = ExitReasonFailed
		}
		code := ExitCode(err)
		if interrupted {
			code, err = 0, nil
		}
		result.Complete(string(mode), code, string(reason), timing.Complete())
		l.metrics.RecordResult(result)
		result.LogSummary(l.logger)
		return result, err
	}

	l.say("🚀 Starting ChromaDB...")

	python, err := ResolveInterpreter(l.lookPath)
	if err != nil {
		return finish(err, false)
	}
	l.logger.Debug("resolved interpreter", logging.Fields{"interpreter": python})

	present, err := l.Probe(ctx, python)
	if err != nil {
		return finish(err, false)
	}
	if present {
		l.say("✅ ChromaDB is installed")
	} else {
		l.say("📦 Installing ChromaDB...")
		if err := l.Install(ctx, python); err != nil {
			return finish(err, false)
		}
		result.Installed = true
		l.say("✅ ChromaDB installed")
	}

	l.say("🌐 Starting ChromaDB service...")
	l.say("   URL: " + ServiceURL())
	l.say("   Data path: " + DataPath)
	l.say("\n⚠️  Press Ctrl+C to stop the service\n")

	runCtx, stop := l.notify(ctx)
	defer stop()

	mode, err = l.startService(runCtx, python)
	if runCtx.Err() != nil || exitedOnInterrupt(err) {
		l.say("\n✅ ChromaDB service stopped")
		return finish(err, true)
	}
	return finish(err, false)
}

// startService runs the primary command and falls back to module
// execution only when the entry point is not on PATH.
func (l *Launcher) startService(ctx context.Context, python string) (Mode, error) {
	primary := PrimaryCommand()
	l.logger.Info("starting service", logging.Fields{"mode": ModePrimary, "command": primary.String()})
	l.metrics.RecordServiceStart(string(ModePrimary))

	err := l.runner.Run(ctx, primary)
	if err == nil || !IsNotFound(err) {
		return ModePrimary, wrapService(err)
	}

	fallback := FallbackCommand(python)
	l.logger.Warn("service command not on PATH, using module execution",
		logging.Fields{"mode": ModeFallback, "command": fallback.String()})
	l.metrics.RecordServiceStart(string(ModeFallback))

	return ModeFallback, wrapService(l.runner.Run(ctx, fallback))
}

func wrapService(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("chroma service: %w", err)
}

func (l *Launcher) say(msg string) {
	fmt.Fprintln(l.stdout, msg)
}
