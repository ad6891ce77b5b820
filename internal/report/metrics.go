package report

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds counters for launcher runs. They live in a private
// registry and are written to a node_exporter textfile on exit.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	installs     prometheus.Counter
	serviceRuns  *prometheus.CounterVec
	serviceExits *prometheus.CounterVec
	runSeconds   prometheus.Gauge
}

// NewMetrics creates and registers the launcher counters
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		installs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chromactl_installs_total",
			Help: "Number of times the chromadb package was installed by the launcher",
		}),
		serviceRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chromactl_service_runs_total",
			Help: "Service starts by invocation mode",
		}, []string{"mode"}),
		serviceExits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chromactl_service_exits_total",
			Help: "Launcher runs by exit reason",
		}, []string{"reason"}),
		runSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chromactl_last_run_duration_seconds",
			Help: "Wall time of the last launcher run",
		}),
	}

	m.registry.MustRegister(m.installs, m.serviceRuns, m.serviceExits, m.runSeconds)
	return m
}

// RecordInstall counts one dependency install
func (m *Metrics) RecordInstall() {
	if m == nil {
		return
	}
	m.installs.Inc()
}

// RecordServiceStart counts one service start attempt in the given mode
func (m *Metrics) RecordServiceStart(mode string) {
	if m == nil {
		return
	}
	m.serviceRuns.WithLabelValues(mode).Inc()
}

// RecordResult updates exit counters from a completed result
func (m *Metrics) RecordResult(r *Result) {
	if m == nil || r == nil {
		return
	}
	m.serviceExits.WithLabelValues(r.Reason).Inc()
	m.runSeconds.Set(r.Duration.Seconds())
}

// Gatherer exposes the private registry
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteTextfile writes all counters in the text exposition format
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
