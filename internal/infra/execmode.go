package infra

import (
	"os"
	"os/user"
	"path/filepath"
)

// ExecMode represents the execution mode of the application.
type ExecMode string

const (
	// ExecModeUser runs the daemon for the logged-in user.
	ExecModeUser ExecMode = "user"
	// ExecModeSystem runs the daemon as root (system service).
	ExecModeSystem ExecMode = "system"
)

// Paths holds the directories the daemon and client use, based on execution mode.
type Paths struct {
	Mode       ExecMode
	RuntimeDir string // Socket and daemon registry
	StateDir   string // Log file and stats database
	ConfigPath string // Default config file
	IsRoot     bool
}

// DetectPaths determines the execution mode based on effective UID.
func DetectPaths() *Paths {
	if os.Geteuid() == 0 {
		return SystemPaths()
	}
	return UserPaths()
}

// SystemPaths returns the root layout.
func SystemPaths() *Paths {
	return &Paths{
		Mode:       ExecModeSystem,
		RuntimeDir: "/run/charon",
		StateDir:   "/var/lib/charon",
		ConfigPath: "/etc/charon/config.yaml",
		IsRoot:     true,
	}
}

// UserPaths returns the user layout regardless of current euid.
// When running under sudo, uses SUDO_USER to get the invoking user's home directory.
func UserPaths() *Paths {
	home := GetRealUserHome()

	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		runtimeDir = filepath.Join(os.TempDir(), "charon-"+currentUsername())
	} else {
		runtimeDir = filepath.Join(runtimeDir, "charon")
	}

	stateHome := os.Getenv("XDG_STATE_HOME")
	if stateHome == "" {
		stateHome = filepath.Join(home, ".local", "state")
	}

	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		configHome = filepath.Join(home, ".config")
	}

	return &Paths{
		Mode:       ExecModeUser,
		RuntimeDir: runtimeDir,
		StateDir:   filepath.Join(stateHome, "charon"),
		ConfigPath: filepath.Join(configHome, "charon", "config.yaml"),
		IsRoot:     os.Geteuid() == 0, // Still track actual root status for permission operations
	}
}

// RegistryPath is the daemon registry file.
func (p *Paths) RegistryPath() string {
	return filepath.Join(p.RuntimeDir, "daemon.json")
}

// SocketPath is the default client socket.
func (p *Paths) SocketPath() string {
	return filepath.Join(p.RuntimeDir, "charon.sock")
}

// Ensure creates the runtime and state directories.
func (p *Paths) Ensure() error {
	if err := os.MkdirAll(p.RuntimeDir, 0700); err != nil {
		return err
	}
	return os.MkdirAll(p.StateDir, 0700)
}

// String returns a human-readable description of the mode.
func (m ExecMode) String() string {
	switch m {
	case ExecModeSystem:
		return "system (root)"
	case ExecModeUser:
		return "user (non-root)"
	default:
		return "unknown"
	}
}

// GetRealUserHome returns the real user's home directory, even when running under sudo.
// Under sudo, os.UserHomeDir() returns /root, so we use SUDO_USER to find the real user.
func GetRealUserHome() string {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		if u, err := user.Lookup(sudoUser); err == nil {
			return u.HomeDir
		}
	}
	home, _ := os.UserHomeDir()
	return home
}

func currentUsername() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return "unknown"
}
