package processor

import (
	"context"

	"go.uber.org/zap"

	"github.com/charon-kb/charon/internal/domain"
)

// Telemetry logs every event at debug level and passes it on unchanged.
type Telemetry struct {
	logger *zap.Logger
}

// NewTelemetry is the Factory for Telemetry.
func NewTelemetry(state State) Processor {
	return &Telemetry{logger: state.Logger}
}

func (p *Telemetry) Process(_ context.Context, ev domain.Event) []domain.Event {
	if ce := p.logger.Check(zap.DebugLevel, "event"); ce != nil {
		ce.Write(
			zap.String("kind", ev.Payload.Kind()),
			zap.String("source", ev.Source),
			zap.Stringer("topic", ev.Topic()),
		)
	}
	return pass(ev)
}
