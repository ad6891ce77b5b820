package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/psantana5/chromactl/internal/observe"
	"github.com/psantana5/chromactl/pkg/logging"
	"github.com/psantana5/chromactl/pkg/retry"
)

var errServiceDown = errors.New("chroma service is not reachable")

type statusReport struct {
	URL         string                   `json:"url" yaml:"url"`
	Up          bool                     `json:"up" yaml:"up"`
	HeartbeatNs int64                    `json:"heartbeat_ns,omitempty" yaml:"heartbeat_ns,omitempty"`
	Version     string                   `json:"version,omitempty" yaml:"version,omitempty"`
	Error       string                   `json:"error,omitempty" yaml:"error,omitempty"`
	Host        *observe.HostStats       `json:"host,omitempty" yaml:"host,omitempty"`
	Processes   []observe.ServiceProcess `json:"processes" yaml:"processes"`
}

func newStatusCmd(o *rootOptions) *cobra.Command {
	var wait time.Duration

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Check the ChromaDB server and the host it runs on",
		Long: `Status calls the server heartbeat and version endpoints and reports host
CPU and memory usage plus every running "chroma run" process.

With --wait the heartbeat is retried with exponential backoff until it
succeeds or the duration passes, which is handy in scripts that start the
server in the background.

Example:
  chromactl status
  chromactl status --wait 30s
  chromactl status --output prometheus`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, o, wait)
		},
	}
	statusCmd.Flags().DurationVar(&wait, "wait", 0, "keep retrying the heartbeat for up to this long")

	return statusCmd
}

func runStatus(cmd *cobra.Command, o *rootOptions, wait time.Duration) error {
	if err := o.checkOutput("table", "json", "yaml", "prometheus"); err != nil {
		return err
	}
	logger := o.logger(cmd)
	ctx := cmd.Context()
	client := o.client()

	st := statusReport{URL: client.BaseURL(), Processes: []observe.ServiceProcess{}}

	err := waitForHeartbeat(ctx, wait, func(ctx context.Context) error {
		ns, err := client.Heartbeat(ctx)
		if err != nil {
			return err
		}
		st.HeartbeatNs = ns
		return nil
	}, func(attempt int, err error) {
		logger.Debug("heartbeat failed, retrying", logging.Fields{"attempt": attempt, "error": err.Error()})
	})
	if err != nil {
		st.Error = err.Error()
	} else {
		st.Up = true
		if version, err := client.Version(ctx); err == nil {
			st.Version = version
		} else {
			logger.Warn("version lookup failed", logging.Fields{"error": err.Error()})
		}
	}

	if host, err := o.hostStats(ctx); err == nil {
		st.Host = &host
	} else {
		logger.Warn("host stats unavailable", logging.Fields{"error": err.Error()})
	}
	if procs, err := o.findProcesses(ctx); err == nil && procs != nil {
		st.Processes = procs
	} else if err != nil {
		logger.Warn("process scan failed", logging.Fields{"error": err.Error()})
	}

	if err := writeStatus(cmd.OutOrStdout(), o.outputFormat, &st); err != nil {
		return err
	}
	if !st.Up {
		return fmt.Errorf("%w at %s", errServiceDown, st.URL)
	}
	return nil
}

// waitForHeartbeat makes one attempt when wait is zero, otherwise retries
// until the heartbeat succeeds or wait elapses.
func waitForHeartbeat(ctx context.Context, wait time.Duration, beat func(context.Context) error, onRetry func(int, error)) error {
	if wait <= 0 {
		return beat(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	return retry.Do(ctx, retry.UntilDeadline(), func() error {
		return beat(ctx)
	}, onRetry)
}

func writeStatus(w io.Writer, format string, st *statusReport) error {
	switch format {
	case "json":
		output, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Fprintln(w, string(output))
		return nil
	case "yaml":
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		defer encoder.Close()
		return encoder.Encode(st)
	case "prometheus":
		return writeStatusMetrics(w, st)
	default:
		return writeStatusTable(w, st)
	}
}

func writeStatusTable(w io.Writer, st *statusReport) error {
	table := tablewriter.NewWriter(w)
	table.Header("Property", "Value")

	table.Append([]string{"URL", st.URL})
	if st.Up {
		table.Append([]string{"Status", "✅ up"})
		table.Append([]string{"Version", st.Version})
		table.Append([]string{"Heartbeat", time.Unix(0, st.HeartbeatNs).UTC().Format(time.RFC3339Nano)})
	} else {
		table.Append([]string{"Status", "❌ down"})
		table.Append([]string{"Error", st.Error})
	}

	if st.Host != nil {
		table.Append([]string{"Host CPU", fmt.Sprintf("%.1f%% of %d threads", st.Host.CPUPercent, st.Host.CPUThreads)})
		table.Append([]string{"Host RAM", fmt.Sprintf("%s / %s (%.1f%%)",
			formatBytes(st.Host.MemUsedBytes), formatBytes(st.Host.MemTotalBytes), st.Host.MemUsedPercent)})
	}
	if err := table.Render(); err != nil {
		return err
	}

	if len(st.Processes) == 0 {
		fmt.Fprintln(w, "\nNo chroma processes running on this host")
		return nil
	}

	fmt.Fprintln(w)
	procs := tablewriter.NewWriter(w)
	procs.Header("PID", "RSS", "CPU", "Started", "Command")
	for _, p := range st.Processes {
		procs.Append(
			strconv.Itoa(int(p.PID)),
			formatBytes(p.RSSBytes),
			fmt.Sprintf("%.1f%%", p.CPUPercent),
			p.StartedAt.Format(time.DateTime),
			p.Cmdline,
		)
	}
	return procs.Render()
}

// writeStatusMetrics renders the report as gauges in the text exposition format
func writeStatusMetrics(w io.Writer, st *statusReport) error {
	registry := prometheus.NewRegistry()

	up := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "chroma_up",
		Help:        "Whether the ChromaDB heartbeat succeeded",
		ConstLabels: prometheus.Labels{"url": st.URL},
	})
	if st.Up {
		up.Set(1)
	}
	registry.MustRegister(up)

	if st.Host != nil {
		cpuPercent := prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chromactl_host_cpu_percent",
			Help: "Host CPU utilisation",
		})
		cpuPercent.Set(st.Host.CPUPercent)
		memUsed := prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chromactl_host_memory_used_bytes",
			Help: "Host memory in use",
		})
		memUsed.Set(float64(st.Host.MemUsedBytes))
		registry.MustRegister(cpuPercent, memUsed)
	}

	procCount := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chromactl_service_processes",
		Help: "Running chroma server processes",
	})
	procCount.Set(float64(len(st.Processes)))
	rss := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "chromactl_service_resident_bytes",
		Help: "Resident memory of each chroma server process",
	}, []string{"pid"})
	for _, p := range st.Processes {
		rss.WithLabelValues(strconv.Itoa(int(p.PID))).Set(float64(p.RSSBytes))
	}
	registry.MustRegister(procCount, rss)

	families, err := registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	var buf bytes.Buffer
	encoder := expfmt.NewEncoder(&buf, expfmt.FmtText)
	for _, mf := range families {
		if err := encoder.Encode(mf); err != nil {
			return fmt.Errorf("failed to encode metric %s: %w", mf.GetName(), err)
		}
	}
	_, err = w.Write(buf.Bytes())
	return err
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
