package actor

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/charon-kb/charon/internal/domain"
	"github.com/charon-kb/charon/internal/processor"
)

// Pipeline is an actor that runs every inbound event through its processor
// chain and publishes what comes out. The first output identical to the
// inbound event is not published when the pipeline subscribes to its topic:
// the broker would route it straight back.
type Pipeline struct{}

// HostsChain implements ChainHost.
func (Pipeline) HostsChain() {}

// Name implements Kind.
func (Pipeline) Name() string { return "Pipeline" }

// Spawn implements Kind.
func (Pipeline) Spawn(ctx context.Context, state *State, _ struct{}) (*Task, error) {
	if len(state.Processors) == 0 {
		state.Logger.Warn("pipeline has no processors")
	}
	return Go(state.Name, func() error {
		return runPipeline(ctx, state)
	}), nil
}

func runPipeline(ctx context.Context, state *State) error {
	for {
		var (
			ev domain.Event
			ok bool
		)
		select {
		case <-ctx.Done():
			return nil
		case ev, ok = <-state.In:
		}
		if ev, ok = Accept(ev, ok); !ok {
			state.Logger.Debug("pipeline stopped")
			return nil
		}

		echo := state.Topics.Has(ev.Topic())
		for _, out := range processor.Chain(ctx, state.Processors, ev) {
			if echo && out == ev {
				echo = false
				continue
			}
			if err := state.Out.Send(out); err != nil {
				if errors.Is(err, ErrBrokerStopped) {
					return nil
				}
				state.Logger.Error("failed to publish", zap.Error(err))
			}
		}
	}
}

var (
	_ Kind[struct{}] = Pipeline{}
	_ ChainHost      = Pipeline{}
)
