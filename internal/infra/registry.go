package infra

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/charon-kb/charon/internal/domain"
)

// RegistryVersion is the current registry file format.
const RegistryVersion = 1

// FileRegistry implements domain.DaemonRegistry using a JSON file in the
// runtime directory.
type FileRegistry struct {
	path           string
	processManager domain.ProcessManager
}

// NewFileRegistry creates a registry at paths.RegistryPath().
func NewFileRegistry(paths *Paths, pm domain.ProcessManager) domain.DaemonRegistry {
	return NewFileRegistryWithPath(paths.RegistryPath(), pm)
}

// NewFileRegistryWithPath creates a registry at a specific path (for testing).
func NewFileRegistryWithPath(path string, pm domain.ProcessManager) domain.DaemonRegistry {
	return &FileRegistry{
		path:           path,
		processManager: pm,
	}
}

// GetRegistryPath returns the registry file path.
func (r *FileRegistry) GetRegistryPath() string {
	return r.path
}

// Register saves the running daemon's record.
func (r *FileRegistry) Register(record domain.DaemonRecord) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0700); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}

	// Use file lock so a second daemon starting concurrently cannot interleave
	lockPath := r.path + ".lock"
	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}
	defer lockFile.Close()

	if err := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() { _ = syscall.Flock(int(lockFile.Fd()), syscall.LOCK_UN) }()

	existing, _ := r.Get()
	if existing != nil && existing.PID != record.PID && r.processManager.IsRunning(existing.PID) {
		return fmt.Errorf("daemon already running with PID %d", existing.PID)
	}

	record.Version = RegistryVersion
	if record.Mode == "" {
		if os.Geteuid() == 0 {
			record.Mode = string(ExecModeSystem)
		} else {
			record.Mode = string(ExecModeUser)
		}
	}

	return r.atomicWrite(&record)
}

// Get returns the registered daemon, or nil if none is registered.
func (r *FileRegistry) Get() (*domain.DaemonRecord, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var record domain.DaemonRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}

	return &record, nil
}

// IsAlive checks if the registered daemon is running via PID.
func (r *FileRegistry) IsAlive() (bool, error) {
	record, err := r.Get()
	if err != nil {
		return false, err
	}
	if record == nil {
		return false, nil
	}
	return r.processManager.IsRunning(record.PID), nil
}

// Clear removes the registry file. A missing file is not an error.
func (r *FileRegistry) Clear() error {
	if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// atomicWrite writes registry to file atomically (write + rename).
func (r *FileRegistry) atomicWrite(record *domain.DaemonRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	// Write to temp file first (unique per process to avoid race)
	tmpPath := fmt.Sprintf("%s.%d.tmp", r.path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, r.path); err != nil {
		os.Remove(tmpPath) // Clean up on failure
		return err
	}
	return nil
}

// Ensure FileRegistry implements domain.DaemonRegistry.
var _ domain.DaemonRegistry = (*FileRegistry)(nil)
