package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/psantana5/chromactl/internal/launcher"
	"github.com/psantana5/chromactl/internal/report"
	"github.com/psantana5/chromactl/pkg/logging"
	"github.com/psantana5/chromactl/pkg/shutdown"
)

func newStartCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Install chromadb if needed and run the server in the foreground",
		Long: `Start checks that the chromadb Python package can be imported, installs it
with pip when it cannot, and then runs:

  chroma run --host localhost --port 8000 --path ./chroma_data

If the chroma entry point is not on PATH the same arguments are passed to
"python -m chroma". Press Ctrl+C to stop the server.

Example:
  chromactl start
  chromactl start --metrics-file /var/lib/node_exporter/chromactl.prom`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd, o)
		},
	}
}

func runStart(cmd *cobra.Command, o *rootOptions) error {
	logger := o.logger(cmd)
	metrics := report.NewMetrics()

	cleanup := shutdown.New(5*time.Second, logger)
	if path := o.v.GetString("metrics_file"); path != "" {
		cleanup.Register("metrics textfile", func(ctx context.Context) error {
			return metrics.WriteTextfile(path)
		})
	}

	l := launcher.New(launcher.Options{
		Runner:   o.runner,
		Stdout:   cmd.OutOrStdout(),
		Logger:   logger,
		Metrics:  metrics,
		LookPath: o.lookPath,
		Notify:   o.notify,
	})

	_, err := l.Run(cmd.Context())

	if serr := cleanup.Shutdown(); serr != nil {
		logger.Warn("cleanup failed", logging.Fields{"error": serr.Error()})
	}
	return err
}
