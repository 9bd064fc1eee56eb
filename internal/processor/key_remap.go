package processor

import (
	"context"

	"go.uber.org/zap"

	"github.com/charon-kb/charon/internal/domain"
)

// KeyRemap rewrites key codes through the configured remap table.
type KeyRemap struct {
	table map[domain.HidKeyCode]domain.HidKeyCode
}

// NewKeyRemap is the Factory for KeyRemap.
func NewKeyRemap(state State) Processor {
	table, err := state.Config.Remaps()
	if err != nil {
		state.Logger.Warn("key remap disabled", zap.Error(err))
		table = nil
	}
	return &KeyRemap{table: table}
}

func (p *KeyRemap) Process(_ context.Context, ev domain.Event) []domain.Event {
	if len(p.table) == 0 {
		return pass(ev)
	}

	switch e := ev.Payload.(type) {
	case domain.KeyPress:
		if to, ok := p.table[e.Key]; ok {
			e.Modifiers = remapModifiers(e.Modifiers, e.Key, to)
			e.Key = to
			ev.Payload = e
		}
	case domain.KeyRelease:
		if to, ok := p.table[e.Key]; ok {
			e.Modifiers = remapModifiers(e.Modifiers, e.Key, to)
			e.Key = to
			ev.Payload = e
		}
	}
	return pass(ev)
}

// remapModifiers keeps the modifier byte consistent when a modifier key is
// remapped to another key or the other way round.
func remapModifiers(mods domain.Modifiers, from, to domain.HidKeyCode) domain.Modifiers {
	mods &^= from.Modifier()
	return mods | to.Modifier()
}
