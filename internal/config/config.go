// Package config loads CharonConfig from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override (e.g. CHARON_HID_DEVICE).
const EnvPrefix = "CHARON_"

// CharonConfig is consumed once by the daemon at startup and cloned per actor.
type CharonConfig struct {
	// Keyboards maps a keyboard name to its evdev device path.
	Keyboards map[string]string `yaml:"keyboards" env:"KEYBOARDS" validate:"dive,required"`
	// GrabKeyboards takes exclusive access to the scanned devices.
	GrabKeyboards bool `yaml:"grab_keyboards" env:"GRAB_KEYBOARDS"`
	// HidDevice is the HID gadget the daemon writes reports to.
	HidDevice string `yaml:"hid_device" env:"HID_DEVICE" validate:"required"`
	// SocketPath is where the client bridge listens. Empty means the runtime dir.
	SocketPath string `yaml:"socket_path" env:"SOCKET_PATH"`

	ModeToggle string            `yaml:"mode_toggle" env:"MODE_TOGGLE" validate:"required"`
	KeyRemap   map[string]string `yaml:"key_remap" env:"KEY_REMAP"`

	IdleTimeout   time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT" validate:"gte=0"`
	StatsInterval time.Duration `yaml:"stats_interval" env:"STATS_INTERVAL" validate:"gt=0"`
	TypingDelay   time.Duration `yaml:"typing_delay" env:"TYPING_DELAY" validate:"gte=0"`
	// StatsDB is the encrypted stats database directory. Empty disables persistence.
	StatsDB string `yaml:"stats_db" env:"STATS_DB"`

	ChannelCapacity      int           `yaml:"channel_capacity" env:"CHANNEL_CAPACITY" validate:"gte=1,lte=65536"`
	BacklogWarnThreshold int           `yaml:"backlog_warn_threshold" env:"BACKLOG_WARN_THRESHOLD" validate:"gte=1"`
	ShutdownTimeout      time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" validate:"gt=0"`

	LogFile  string `yaml:"log_file" env:"LOG_FILE"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" validate:"oneof=debug info warn error"`

	// Keyboard is the keyboard this copy was cloned for (see PerKeyboard).
	Keyboard string `yaml:"-"`
}

// Default returns the built-in configuration.
func Default() CharonConfig {
	return CharonConfig{
		Keyboards:            map[string]string{},
		HidDevice:            "/dev/hidg0",
		ModeToggle:           "ctrl+alt+space",
		KeyRemap:             map[string]string{},
		IdleTimeout:          5 * time.Minute,
		StatsInterval:        5 * time.Second,
		TypingDelay:          10 * time.Millisecond,
		ChannelCapacity:      128,
		BacklogWarnThreshold: 1024,
		ShutdownTimeout:      5 * time.Second,
		LogLevel:             "info",
	}
}

// Load reads path, applies environment overrides and validates the result.
// A missing file is not an error: defaults are used instead.
func Load(path string) (CharonConfig, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// defaults
		case err != nil:
			return CharonConfig{}, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return CharonConfig{}, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return CharonConfig{}, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return CharonConfig{}, err
	}
	return cfg, nil
}

// ResolvePaths fills path fields left empty from the runtime and state dirs.
func (c *CharonConfig) ResolvePaths(runtimeDir, stateDir string) {
	if c.SocketPath == "" {
		c.SocketPath = filepath.Join(runtimeDir, "charon.sock")
	}
	if c.LogFile == "" {
		c.LogFile = filepath.Join(stateDir, "charon.log")
	}
	if c.StatsDB == "" {
		c.StatsDB = stateDir
	}
}

// Clone returns a deep copy.
func (c CharonConfig) Clone() CharonConfig {
	out := c
	out.Keyboards = cloneMap(c.Keyboards)
	out.KeyRemap = cloneMap(c.KeyRemap)
	return out
}

// KeyboardConfig is one keyboard to scan together with its config copy.
type KeyboardConfig struct {
	Name   string
	Device string
	Config CharonConfig
}

// PerKeyboard returns one entry per configured keyboard, sorted by name.
func (c CharonConfig) PerKeyboard() []KeyboardConfig {
	names := make([]string, 0, len(c.Keyboards))
	for name := range c.Keyboards {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]KeyboardConfig, 0, len(names))
	for _, name := range names {
		cfg := c.Clone()
		cfg.Keyboard = name
		out = append(out, KeyboardConfig{Name: name, Device: c.Keyboards[name], Config: cfg})
	}
	return out
}

func cloneMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
