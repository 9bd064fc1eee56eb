package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charon-kb/charon/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 128, cfg.ChannelCapacity)
	assert.Equal(t, "ctrl+alt+space", cfg.ModeToggle)
	assert.NotZero(t, cfg.StatsInterval)
	assert.NotZero(t, cfg.ShutdownTimeout)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().HidDevice, cfg.HidDevice)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
keyboards:
  main: /dev/input/event3
  numpad: /dev/input/event7
hid_device: /dev/hidg1
mode_toggle: meta+escape
key_remap:
  capslock: escape
idle_timeout: 90s
channel_capacity: 16
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/dev/hidg1", cfg.HidDevice)
	assert.Equal(t, 90*time.Second, cfg.IdleTimeout)
	assert.Equal(t, 16, cfg.ChannelCapacity)
	assert.Len(t, cfg.Keyboards, 2)
	// untouched fields keep defaults
	assert.Equal(t, 5*time.Second, cfg.StatsInterval)

	remaps, err := cfg.Remaps()
	require.NoError(t, err)
	assert.Equal(t, domain.KeyEscape, remaps[domain.KeyCapsLock])

	toggle, err := cfg.Toggle()
	require.NoError(t, err)
	assert.Equal(t, domain.KeyEscape, toggle.Key)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "hid_device: /dev/hidg1\n")
	t.Setenv("CHARON_HID_DEVICE", "/dev/hidg9")
	t.Setenv("CHARON_IDLE_TIMEOUT", "0s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/dev/hidg9", cfg.HidDevice)
	assert.Zero(t, cfg.IdleTimeout)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad yaml", "keyboards: [unterminated"},
		{"bad log level", "log_level: loud\n"},
		{"zero capacity", "channel_capacity: 0\n"},
		{"bad shortcut", "mode_toggle: ctrl+banana\n"},
		{"bad remap", "key_remap:\n  capslock: banana\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestValidate_ReportsFields(t *testing.T) {
	cfg := Default()
	cfg.HidDevice = ""
	cfg.ChannelCapacity = 0

	err := cfg.Validate()
	require.Error(t, err)

	var verrs *ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Len(t, verrs.Errors, 2)
	assert.Contains(t, err.Error(), "HidDevice")
}

func TestPerKeyboard_SortedClones(t *testing.T) {
	cfg := Default()
	cfg.Keyboards = map[string]string{"zeta": "/dev/input/event9", "alpha": "/dev/input/event1"}

	per := cfg.PerKeyboard()
	require.Len(t, per, 2)
	assert.Equal(t, "alpha", per[0].Name)
	assert.Equal(t, "/dev/input/event1", per[0].Device)
	assert.Equal(t, "alpha", per[0].Config.Keyboard)

	// Clones are independent of the source.
	per[0].Config.Keyboards["alpha"] = "/dev/null"
	assert.Equal(t, "/dev/input/event1", cfg.Keyboards["alpha"])
}

func TestResolvePaths(t *testing.T) {
	cfg := Default()
	cfg.ResolvePaths("/run/charon", "/var/lib/charon")

	assert.Equal(t, "/run/charon/charon.sock", cfg.SocketPath)
	assert.Equal(t, "/var/lib/charon/charon.log", cfg.LogFile)
	assert.Equal(t, "/var/lib/charon", cfg.StatsDB)

	cfg.SocketPath = "/tmp/x.sock"
	cfg.ResolvePaths("/run/other", "/var/lib/other")
	assert.Equal(t, "/tmp/x.sock", cfg.SocketPath)
}
