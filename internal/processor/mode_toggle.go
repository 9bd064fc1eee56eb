package processor

import (
	"context"

	"go.uber.org/zap"

	"github.com/charon-kb/charon/internal/domain"
)

// ModeToggle turns the configured shortcut into a ModeChange to the
// opposite mode. The shortcut key press and its release are swallowed.
type ModeToggle struct {
	state    State
	shortcut domain.KeyShortcut
	enabled  bool
	held     map[domain.HidKeyCode]bool
}

// NewModeToggle is the Factory for ModeToggle.
func NewModeToggle(state State) Processor {
	p := &ModeToggle{
		state: state,
		held:  make(map[domain.HidKeyCode]bool),
	}
	sc, err := state.Config.Toggle()
	if err != nil {
		state.Logger.Warn("mode toggle disabled", zap.Error(err))
		return p
	}
	p.shortcut = sc
	p.enabled = true
	return p
}

func (p *ModeToggle) Process(_ context.Context, ev domain.Event) []domain.Event {
	if !p.enabled {
		return pass(ev)
	}

	switch e := ev.Payload.(type) {
	case domain.KeyPress:
		if !p.shortcut.Matches(e.Key, e.Modifiers) {
			return pass(ev)
		}
		p.held[e.Key] = true
		next := p.state.Mode.Get().Toggle()
		p.state.Logger.Debug("mode toggle pressed", zap.Stringer("next", next))
		return []domain.Event{p.state.Emit(domain.ModeChange{Mode: next})}

	case domain.KeyRelease:
		if p.held[e.Key] {
			delete(p.held, e.Key)
			return nil
		}
	}
	return pass(ev)
}
