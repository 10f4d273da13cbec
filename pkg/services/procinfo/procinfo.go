// Package procinfo reports the exporter's own process resource usage.
// It uses gopsutil for cross-platform process telemetry.
package procinfo

import (
	"os"

	"github.com/brilliant-almazov/railway-exporter/pkg/models/api"
	"github.com/shirou/gopsutil/v4/process"
)

// Provider reads pid, memory, and CPU usage of the current process.
type Provider struct {
	pid  int32
	proc *process.Process
}

func NewProvider() *Provider {
	pid := int32(os.Getpid())
	// A lookup failure leaves proc nil; Status degrades to zero values
	// rather than failing metric availability.
	proc, _ := process.NewProcess(pid)
	return &Provider{pid: pid, proc: proc}
}

// PID returns the process ID.
func (p *Provider) PID() int32 {
	return p.pid
}

// Status returns the current process stats. Errors degrade to zero values.
func (p *Provider) Status() api.ProcessStatus {
	status := api.ProcessStatus{PID: p.pid}
	if p.proc == nil {
		return status
	}

	if mi, err := p.proc.MemoryInfo(); err == nil && mi != nil {
		status.MemoryMB = float64(mi.RSS) / 1024 / 1024
	}
	if pct, err := p.proc.CPUPercent(); err == nil {
		status.CPUPercent = pct
	}
	return status
}

// MemoryBytes returns resident memory in bytes for the process gauges.
func (p *Provider) MemoryBytes() float64 {
	if p.proc == nil {
		return 0
	}
	mi, err := p.proc.MemoryInfo()
	if err != nil || mi == nil {
		return 0
	}
	return float64(mi.RSS)
}
