package processor

import (
	"context"

	"github.com/charon-kb/charon/internal/domain"
)

// InAppGate keeps key input away from the host while the client UI owns the
// keyboard. The client bridge forwards the same keys to the UI.
type InAppGate struct {
	mode *domain.ModeHandle
}

// NewInAppGate is the Factory for InAppGate.
func NewInAppGate(state State) Processor {
	return &InAppGate{mode: state.Mode}
}

func (p *InAppGate) Process(_ context.Context, ev domain.Event) []domain.Event {
	if ev.Topic() == domain.TopicKeyInput && p.mode.Is(domain.ModeInApp) {
		return nil
	}
	return pass(ev)
}
