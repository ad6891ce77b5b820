package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/psantana5/chromactl/internal/chroma"
	"github.com/psantana5/chromactl/internal/launcher"
	"github.com/psantana5/chromactl/internal/observe"
	"github.com/psantana5/chromactl/pkg/logging"
)

// rootOptions holds global flags, loaded config and the collaborators
// subcommands share. Tests replace the collaborators.
type rootOptions struct {
	cfgFile      string
	outputFormat string
	v            *viper.Viper

	runner   launcher.Runner
	lookPath func(string) (string, error)
	notify   launcher.NotifyFunc

	hostStats     func(ctx context.Context) (observe.HostStats, error)
	findProcesses func(ctx context.Context) ([]observe.ServiceProcess, error)
	copyPause     time.Duration
}

func newRootOptions() *rootOptions {
	return &rootOptions{
		v: viper.New(),
		hostStats: func(ctx context.Context) (observe.HostStats, error) {
			return observe.CollectHostStats(ctx, 200*time.Millisecond)
		},
		findProcesses: observe.FindServiceProcesses,
	}
}

// NewRootCmd builds the chromactl command tree
func NewRootCmd() *cobra.Command {
	return newRootCmd(newRootOptions())
}

func newRootCmd(o *rootOptions) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "chromactl",
		Short: "Install and run a local ChromaDB server",
		Long: `chromactl makes sure the chromadb Python package is installed and runs the
ChromaDB server on http://localhost:8000 with its data in ./chroma_data.

Running chromactl without a subcommand is the same as "chromactl start".`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd, o)
		},
	}

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&o.cfgFile, "config", "", "config file (default is $HOME/.chromactl/config.yaml)")
	flags.StringVar(&o.outputFormat, "output", "table", "output format: table, json, yaml or prometheus")
	flags.String("url", launcher.ServiceURL(), "ChromaDB server URL for status and collections")
	flags.String("log-level", "info", "log level: debug, info, warn or error")
	flags.String("log-format", "text", "log format: text or json")
	flags.String("metrics-file", "", "write launcher metrics to this file on exit")
	flags.String("tenant", chroma.DefaultTenant, "ChromaDB tenant")
	flags.String("database", chroma.DefaultDatabase, "ChromaDB database")

	for key, flag := range map[string]string{
		"url":          "url",
		"log_level":    "log-level",
		"log_format":   "log-format",
		"metrics_file": "metrics-file",
		"tenant":       "tenant",
		"database":     "database",
	} {
		_ = o.v.BindPFlag(key, flags.Lookup(flag))
	}

	rootCmd.AddCommand(newStartCmd(o))
	rootCmd.AddCommand(newStatusCmd(o))
	rootCmd.AddCommand(newCollectionsCmd(o))

	return rootCmd
}

// Execute runs the command tree against os.Args
func Execute() error {
	return NewRootCmd().ExecuteContext(context.Background())
}

// initConfig reads in config file and ENV variables if set
func (o *rootOptions) initConfig() error {
	o.v.SetEnvPrefix("CHROMACTL")
	o.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	o.v.AutomaticEnv()

	if o.cfgFile != "" {
		// Use config file from the flag; it must exist
		o.v.SetConfigFile(o.cfgFile)
		if err := o.v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config %s: %w", o.cfgFile, err)
		}
		return nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		// No home directory, flags and env only
		return nil
	}
	o.v.AddConfigPath(filepath.Join(home, ".chromactl"))
	o.v.SetConfigName("config")
	o.v.SetConfigType("yaml")

	if err := o.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

// logger builds a logger from config writing to the command's stderr
func (o *rootOptions) logger(cmd *cobra.Command) *logging.Logger {
	logger := logging.NewLogger(
		logging.ParseLevel(o.v.GetString("log_level")),
		strings.EqualFold(o.v.GetString("log_format"), "json"),
	)
	logger.SetOutput(cmd.ErrOrStderr())
	return logger
}

// client builds a Chroma client from config
func (o *rootOptions) client() *chroma.Client {
	return chroma.NewClient(o.v.GetString("url"),
		chroma.WithTenant(o.v.GetString("tenant"), o.v.GetString("database")))
}

// checkOutput rejects output formats the command cannot render
func (o *rootOptions) checkOutput(allowed ...string) error {
	for _, format := range allowed {
		if o.outputFormat == format {
			return nil
		}
	}
	return fmt.Errorf("unsupported output format %q (want %s)", o.outputFormat, strings.Join(allowed, ", "))
}
