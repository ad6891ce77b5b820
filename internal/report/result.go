package report

import (
	"time"

	"github.com/psantana5/chromactl/pkg/logging"
)

// Result is the record of one launcher run. Filled once by Complete.
type Result struct {
	RunID string `json:"run_id"`
	Mode  string `json:"mode"` // "primary", "fallback" or "none"

	// Installed is true when the run had to pip-install the dependency
	Installed bool `json:"installed"`

	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration_ns"`

	ExitCode int    `json:"exit_code"`
	Reason   string `json:"reason"`
}

// NewResult opens a result for a run that starts now
func NewResult(runID string, start time.Time) *Result {
	return &Result{
		RunID:     runID,
		Mode:      "none",
		StartTime: start,
	}
}

// Complete freezes the outcome
func (r *Result) Complete(mode string, exitCode int, reason string, end time.Time) {
	r.Mode = mode
	r.ExitCode = exitCode
	r.Reason = reason
	r.EndTime = end
	r.Duration = end.Sub(r.StartTime)
}

// LogSummary writes a one-line summary of the run
func (r *Result) LogSummary(logger *logging.Logger) {
	fields := logging.Fields{
		"run_id":    r.RunID,
		"mode":      r.Mode,
		"installed": r.Installed,
		"exit_code": r.ExitCode,
		"reason":    r.Reason,
		"runtime":   r.Duration.Round(time.Millisecond).String(),
	}
	if r.ExitCode != 0 {
		logger.Error("launcher run finished", fields)
		return
	}
	logger.Info("launcher run finished", fields)
}
