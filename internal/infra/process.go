// Package infra implements infrastructure concerns (process, filesystem, registry, stats storage).
package infra

import (
	"os"
	"syscall"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/charon-kb/charon/internal/domain"
)

// ProcessManagerImpl implements domain.ProcessManager using gopsutil.
type ProcessManagerImpl struct{}

// NewProcessManager creates a new process manager.
func NewProcessManager() domain.ProcessManager {
	return &ProcessManagerImpl{}
}

// IsRunning checks if a PID exists and is running.
func (pm *ProcessManagerImpl) IsRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	// On Unix, FindProcess always succeeds
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// Send signal 0 to check if process exists
	err = proc.Signal(syscall.Signal(0))
	return err == nil
}

// Terminate sends SIGTERM so the daemon can shut its actors down.
func (pm *ProcessManagerImpl) Terminate(pid int) error {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return err
	}
	return p.Terminate()
}

// Usage returns resident memory and CPU percent since the process started.
func (pm *ProcessManagerImpl) Usage(pid int) (domain.ProcessUsage, error) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return domain.ProcessUsage{}, err
	}

	var usage domain.ProcessUsage
	mem, err := p.MemoryInfo()
	if err != nil {
		return domain.ProcessUsage{}, err
	}
	usage.RSSBytes = mem.RSS

	cpu, err := p.CPUPercent()
	if err != nil {
		return domain.ProcessUsage{}, err
	}
	usage.CPUPercent = cpu

	return usage, nil
}

// GetCurrentPID returns the current process PID.
func (pm *ProcessManagerImpl) GetCurrentPID() int {
	return os.Getpid()
}

// Ensure ProcessManagerImpl implements domain.ProcessManager.
var _ domain.ProcessManager = (*ProcessManagerImpl)(nil)
