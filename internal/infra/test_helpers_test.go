package infra

import (
	"fmt"
	"os"

	"github.com/charon-kb/charon/internal/domain"
)

// mockProcessManager is a test double for ProcessManager
type mockProcessManager struct {
	runningPIDs    map[int]bool
	terminatedPIDs []int
}

func newMockProcessManager() *mockProcessManager {
	return &mockProcessManager{
		runningPIDs: make(map[int]bool),
	}
}

func (m *mockProcessManager) IsRunning(pid int) bool {
	return m.runningPIDs[pid]
}

func (m *mockProcessManager) Terminate(pid int) error {
	if !m.runningPIDs[pid] {
		return fmt.Errorf("process %d not found", pid)
	}
	m.terminatedPIDs = append(m.terminatedPIDs, pid)
	delete(m.runningPIDs, pid)
	return nil
}

func (m *mockProcessManager) Usage(pid int) (domain.ProcessUsage, error) {
	return domain.ProcessUsage{RSSBytes: 1 << 20, CPUPercent: 1.5}, nil
}

func (m *mockProcessManager) GetCurrentPID() int {
	return os.Getpid()
}

func (m *mockProcessManager) SetRunning(pid int, running bool) {
	m.runningPIDs[pid] = running
}

// Ensure mockProcessManager implements domain.ProcessManager
var _ domain.ProcessManager = (*mockProcessManager)(nil)
