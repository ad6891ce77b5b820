package launcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/psantana5/chromactl/pkg/logging"
)

// probeMissingExitCode is returned by the probe script when the import
// raises ImportError. Any other non-zero status is a broken install.
const probeMissingExitCode = 3

// probeScript imports the package and exits with probeMissingExitCode on
// ImportError, letting every other exception surface with its traceback.
var probeScript = fmt.Sprintf(
	"import sys\ntry:\n    import %s\nexcept ImportError:\n    sys.exit(%d)\n",
	PackageName, probeMissingExitCode,
)

// interpreterCandidates are tried in order on PATH
var interpreterCandidates = []string{"python3", "python"}

// ResolveInterpreter returns the first Python interpreter found on PATH
func ResolveInterpreter(lookPath func(string) (string, error)) (string, error) {
	for _, name := range interpreterCandidates {
		path, err := lookPath(name)
		if err == nil {
			return path, nil
		}
		if !IsNotFound(err) {
			return "", fmt.Errorf("resolve %s: %w", name, err)
		}
	}
	return "", ErrInterpreterNotFound
}

// ProbeCommand builds the in-interpreter import check
func ProbeCommand(python string) Command {
	return Command{Name: python, Args: []string{"-c", probeScript}, DiscardStdout: true}
}

// InstallCommand builds `<python> -m pip install chromadb`
func InstallCommand(python string) Command {
	return Command{Name: python, Args: []string{"-m", "pip", "install", PackageName}}
}

// Probe reports whether the dependency can be imported. Only an
// ImportError counts as "absent"; every other failure is returned.
func (l *Launcher) Probe(ctx context.Context, python string) (bool, error) {
	cmd := ProbeCommand(python)
	l.logger.Debug("probing dependency", logging.Fields{"package": PackageName, "interpreter": python})

	err := l.runner.Run(ctx, cmd)
	if err == nil {
		return true, nil
	}

	var cmdErr *CommandError
	if errors.As(err, &cmdErr) && cmdErr.Signal == 0 && cmdErr.ExitCode == probeMissingExitCode {
		return false, nil
	}
	return false, fmt.Errorf("dependency check failed: %w", err)
}

// Install runs pip in the foreground. A non-zero exit is fatal.
func (l *Launcher) Install(ctx context.Context, python string) error {
	cmd := InstallCommand(python)
	l.logger.Info("installing dependency", logging.Fields{"package": PackageName, "command": cmd.String()})

	if err := l.runner.Run(ctx, cmd); err != nil {
		return fmt.Errorf("install %s: %w", PackageName, err)
	}
	l.metrics.RecordInstall()
	return nil
}
