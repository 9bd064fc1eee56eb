package domain

// ProcessManager handles OS process operations.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// Terminate asks a process to exit (SIGTERM).
	Terminate(pid int) error

	// Usage returns memory and CPU usage of a process.
	Usage(pid int) (ProcessUsage, error)

	// GetCurrentPID returns the current process PID.
	GetCurrentPID() int
}

// DaemonRegistry lets the CLI find the running daemon.
// Implementation: JSON file in the runtime directory.
type DaemonRegistry interface {
	// Register saves the daemon's PID and socket path.
	Register(record DaemonRecord) error

	// Get returns the registered daemon, or nil if none.
	Get() (*DaemonRecord, error)

	// IsAlive checks whether the registered daemon is running.
	IsAlive() (bool, error)

	// Clear removes the registration.
	Clear() error

	// GetRegistryPath returns the registry file path (for tests).
	GetRegistryPath() string
}

// StatsStore persists daily typing totals.
type StatsStore interface {
	// Add accumulates delta into the total for delta.Day.
	Add(delta DailyTotal) error

	// Get returns the total for day, or a zero total.
	Get(day string) (DailyTotal, error)

	// Recent returns up to n most recent days, newest first.
	Recent(n int) ([]DailyTotal, error)

	// Close releases resources (e.g., database connection).
	Close() error
}

// KeyProvider abstracts the source of encryption keys.
type KeyProvider interface {
	// GetKey returns the encryption key bytes.
	GetKey() ([]byte, error)

	// StoreKey persists a new encryption key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been generated.
	KeyExists() bool
}

// FileSystem handles filesystem operations for text input.
type FileSystem interface {
	// ReadText reads a whole file.
	ReadText(path string) (string, error)

	// Remove deletes a file.
	Remove(path string) error

	// ExpandHome expands ~ to the user's home directory.
	ExpandHome(path string) string
}
