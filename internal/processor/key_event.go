package processor

import (
	"context"

	"github.com/charon-kb/charon/internal/domain"
)

// maxRolloverKeys is the boot keyboard report limit.
const maxRolloverKeys = 6

// KeyEventProcessor builds HID reports from key events. It is the last step
// of the key pipeline: key events become reports, System events release any
// held keys and pass on, everything else stops here.
type KeyEventProcessor struct {
	state   State
	mods    domain.Modifiers
	pressed []domain.HidKeyCode
}

// NewKeyEventProcessor is the Factory for KeyEventProcessor.
func NewKeyEventProcessor(state State) Processor {
	return &KeyEventProcessor{state: state}
}

func (p *KeyEventProcessor) Process(_ context.Context, ev domain.Event) []domain.Event {
	switch e := ev.Payload.(type) {
	case domain.KeyPress:
		if e.Key.IsModifier() {
			p.mods |= e.Key.Modifier()
		} else if !p.isPressed(e.Key) && len(p.pressed) < maxRolloverKeys {
			p.pressed = append(p.pressed, e.Key)
		}
		return []domain.Event{p.report()}

	case domain.KeyRelease:
		if e.Key.IsModifier() {
			p.mods &^= e.Key.Modifier()
		} else {
			p.release(e.Key)
		}
		return []domain.Event{p.report()}

	case domain.ModeChange, domain.Sleep:
		if p.mods == 0 && len(p.pressed) == 0 {
			return pass(ev)
		}
		p.mods = 0
		p.pressed = p.pressed[:0]
		return []domain.Event{p.report(), ev}

	case domain.WakeUp:
		return pass(ev)
	}
	return nil
}

func (p *KeyEventProcessor) report() domain.Event {
	return p.state.Emit(domain.NewHidReport(p.mods, p.pressed...))
}

func (p *KeyEventProcessor) isPressed(k domain.HidKeyCode) bool {
	for _, pk := range p.pressed {
		if pk == k {
			return true
		}
	}
	return false
}

func (p *KeyEventProcessor) release(k domain.HidKeyCode) {
	for i, pk := range p.pressed {
		if pk == k {
			p.pressed = append(p.pressed[:i], p.pressed[i+1:]...)
			return
		}
	}
}
