package observe

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// ServiceProcess is a running ChromaDB server found on this host
type ServiceProcess struct {
	PID        int32     `json:"pid" yaml:"pid"`
	Cmdline    string    `json:"cmdline" yaml:"cmdline"`
	RSSBytes   uint64    `json:"rss_bytes" yaml:"rss_bytes"`
	CPUPercent float64   `json:"cpu_percent" yaml:"cpu_percent"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
}

// HostStats is a point-in-time view of host load
type HostStats struct {
	CPUThreads     int     `json:"cpu_threads" yaml:"cpu_threads"`
	CPUPercent     float64 `json:"cpu_percent" yaml:"cpu_percent"`
	MemTotalBytes  uint64  `json:"mem_total_bytes" yaml:"mem_total_bytes"`
	MemUsedBytes   uint64  `json:"mem_used_bytes" yaml:"mem_used_bytes"`
	MemUsedPercent float64 `json:"mem_used_percent" yaml:"mem_used_percent"`
}

// IsServiceCmdline reports whether argv runs the chroma server, either
// as `chroma run ...` or as `<python> -m chroma run ...`.
func IsServiceCmdline(argv []string) bool {
	for i, arg := range argv {
		isEntry := filepath.Base(arg) == "chroma"
		if arg == "chroma" && i > 0 && argv[i-1] == "-m" {
			isEntry = true
		}
		if isEntry && i+1 < len(argv) && argv[i+1] == "run" {
			return true
		}
	}
	return false
}

// FindServiceProcesses lists running chroma servers. Processes that
// vanish or deny access while being inspected are skipped.
func FindServiceProcesses(ctx context.Context) ([]ServiceProcess, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	var found []ServiceProcess
	for _, p := range procs {
		argv, err := p.CmdlineSliceWithContext(ctx)
		if err != nil || !IsServiceCmdline(argv) {
			continue
		}

		sp := ServiceProcess{PID: p.Pid, Cmdline: strings.Join(argv, " ")}
		if info, err := p.MemoryInfoWithContext(ctx); err == nil && info != nil {
			sp.RSSBytes = info.RSS
		}
		if pct, err := p.CPUPercentWithContext(ctx); err == nil {
			sp.CPUPercent = pct
		}
		if ms, err := p.CreateTimeWithContext(ctx); err == nil {
			sp.StartedAt = time.UnixMilli(ms)
		}
		found = append(found, sp)
	}

	sort.Slice(found, func(i, j int) bool { return found[i].PID < found[j].PID })
	return found, nil
}

// CollectHostStats samples CPU over interval and reads memory usage
func CollectHostStats(ctx context.Context, interval time.Duration) (HostStats, error) {
	var stats HostStats

	threads, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return stats, err
	}
	stats.CPUThreads = threads

	percents, err := cpu.PercentWithContext(ctx, interval, false)
	if err != nil {
		return stats, err
	}
	if len(percents) > 0 {
		stats.CPUPercent = percents[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return stats, err
	}
	stats.MemTotalBytes = vm.Total
	stats.MemUsedBytes = vm.Used
	stats.MemUsedPercent = vm.UsedPercent

	return stats, nil
}
