// Package processor implements the event transformations run inside a
// pipeline actor.
package processor

import (
	"context"

	"go.uber.org/zap"

	"github.com/charon-kb/charon/internal/config"
	"github.com/charon-kb/charon/internal/domain"
)

// Processor transforms one event into zero or more events. An empty result
// stops the event from reaching the processors after it.
type Processor interface {
	Process(ctx context.Context, ev domain.Event) []domain.Event
}

// Factory builds a processor for the actor described by state.
type Factory func(state State) Processor

// State is the snapshot a processor is built from. Mode is shared with the
// broker, so processors observe mode changes without receiving them.
type State struct {
	Name   string
	Mode   *domain.ModeHandle
	Config config.CharonConfig
	Logger *zap.Logger
}

// NewState returns a processor state with a named child logger.
func NewState(name string, mode *domain.ModeHandle, cfg config.CharonConfig, logger *zap.Logger) State {
	return State{
		Name:   name,
		Mode:   mode,
		Config: cfg,
		Logger: logger.Named(name),
	}
}

// Emit wraps payload into an event sourced from the owning actor.
func (s State) Emit(payload domain.DomainEvent) domain.Event {
	return domain.NewEvent(s.Name, payload)
}

// Func adapts an ordinary function to Processor.
type Func func(ctx context.Context, ev domain.Event) []domain.Event

func (f Func) Process(ctx context.Context, ev domain.Event) []domain.Event {
	return f(ctx, ev)
}

// Chain runs ev through processors in order. Every output of processor i is
// fed to processor i+1 before the next output of processor i; outputs that
// leave the last processor are returned in that order.
func Chain(ctx context.Context, processors []Processor, ev domain.Event) []domain.Event {
	batch := []domain.Event{ev}
	for _, p := range processors {
		var next []domain.Event
		for _, in := range batch {
			next = append(next, p.Process(ctx, in)...)
		}
		if len(next) == 0 {
			return nil
		}
		batch = next
	}
	return batch
}

// Build constructs one processor per factory, in order.
func Build(state State, factories ...Factory) []Processor {
	out := make([]Processor, 0, len(factories))
	for _, f := range factories {
		out = append(out, f(state))
	}
	return out
}

func pass(ev domain.Event) []domain.Event {
	return []domain.Event{ev}
}
