package domain

import (
	"fmt"
	"sync"
)

// Mode is the runtime state gating actor and UI behavior.
type Mode uint8

const (
	// ModePassThrough forwards keys to the host.
	ModePassThrough Mode = iota
	// ModeInApp routes keys to the client UI instead of the host.
	ModeInApp
)

func (m Mode) String() string {
	switch m {
	case ModePassThrough:
		return "PassThrough"
	case ModeInApp:
		return "InApp"
	default:
		return "Unknown"
	}
}

// Toggle returns the other mode.
func (m Mode) Toggle() Mode {
	if m == ModeInApp {
		return ModePassThrough
	}
	return ModeInApp
}

// MarshalText encodes the mode by name.
func (m Mode) MarshalText() ([]byte, error) {
	switch m {
	case ModePassThrough, ModeInApp:
		return []byte(m.String()), nil
	default:
		return nil, fmt.Errorf("unknown mode %d", m)
	}
}

// UnmarshalText decodes a mode name.
func (m *Mode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "PassThrough":
		*m = ModePassThrough
	case "InApp":
		*m = ModeInApp
	default:
		return fmt.Errorf("unknown mode %q", text)
	}
	return nil
}

// ModeHandle is the shared, lock-guarded Mode. It is passed by pointer to
// the broker and every actor; the value itself is never copied out.
type ModeHandle struct {
	mu   sync.RWMutex
	mode Mode
}

// NewModeHandle creates a handle holding initial.
func NewModeHandle(initial Mode) *ModeHandle {
	return &ModeHandle{mode: initial}
}

// Get returns the current mode.
func (h *ModeHandle) Get() Mode {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.mode
}

// Set stores mode and reports whether it changed.
func (h *ModeHandle) Set(mode Mode) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	changed := h.mode != mode
	h.mode = mode
	return changed
}

// Is reports whether the current mode equals mode.
func (h *ModeHandle) Is(mode Mode) bool {
	return h.Get() == mode
}
