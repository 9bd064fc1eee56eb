package client

import (
	"io"
	"sort"

	"go.uber.org/zap"

	"github.com/charon-kb/charon/internal/domain"
)

// App is one screen of the client.
type App interface {
	// Update handles msg and returns the commands it triggers.
	Update(msg Msg) []Command
	Render(w io.Writer)
}

// AppManager owns the apps and routes messages to the active one. Mode
// changes pick the app for the mode; Sleep and WakeUp pause and resume
// everything.
type AppManager struct {
	apps   map[string]App
	active string
	awake  bool
	logger *zap.Logger
}

// NewAppManager creates a manager with active as the initial app.
func NewAppManager(apps map[string]App, active string, logger *zap.Logger) *AppManager {
	return &AppManager{
		apps:   apps,
		active: active,
		awake:  true,
		logger: logger,
	}
}

// Active returns the id of the active app.
func (m *AppManager) Active() string { return m.active }

// Awake reports whether the client is rendering.
func (m *AppManager) Awake() bool { return m.awake }

// HasApp reports whether id is registered.
func (m *AppManager) HasApp(id string) bool {
	_, ok := m.apps[id]
	return ok
}

// Apps returns the registered app ids, sorted.
func (m *AppManager) Apps() []string {
	ids := make([]string, 0, len(m.apps))
	for id := range m.apps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SetActive makes id the active app. Unknown ids are logged and ignored.
func (m *AppManager) SetActive(id string) bool {
	if !m.HasApp(id) {
		m.logger.Error("app not found", zap.String("app", id))
		return false
	}
	m.logger.Info("activating app", zap.String("app", id))
	m.active = id
	return true
}

// Render draws the active app. Nothing is drawn while asleep.
func (m *AppManager) Render(w io.Writer) {
	if !m.awake {
		return
	}
	if app, ok := m.apps[m.active]; ok {
		app.Render(w)
	}
}

// Update routes msg and returns the resulting commands.
func (m *AppManager) Update(msg Msg) []Command {
	if b, ok := msg.(Backend); ok {
		switch p := b.Payload.(type) {
		case domain.ModeChange:
			id := ModeApp(p.Mode)
			if id == m.active {
				return []Command{Render{}}
			}
			return []Command{RunApp{ID: id}}
		case domain.Sleep:
			m.awake = false
			return []Command{SuspendTUI{}}
		case domain.WakeUp:
			m.awake = true
			return []Command{ResumeTUI{}}
		case domain.Exit:
			return []Command{Exit{}}
		}
	}

	if !m.awake {
		return nil
	}
	if app, ok := m.apps[m.active]; ok {
		return app.Update(msg)
	}
	return nil
}

// ModeApp returns the app shown for mode.
func ModeApp(mode domain.Mode) string {
	if mode == domain.ModeInApp {
		return AppMenu
	}
	return AppCharonSay
}
