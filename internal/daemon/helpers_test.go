package daemon

import (
	"context"
	"errors"

	"github.com/charon-kb/charon/internal/actor"
	"github.com/charon-kb/charon/internal/domain"
	"github.com/charon-kb/charon/internal/processor"
)

// recorder copies every event it receives to seen.
type recorder struct {
	name string
	seen chan domain.Event
}

func newRecorder(name string) recorder {
	return recorder{name: name, seen: make(chan domain.Event, 64)}
}

func (r recorder) Name() string { return r.name }

func (r recorder) Spawn(_ context.Context, state *actor.State, _ struct{}) (*actor.Task, error) {
	return actor.Go(state.Name, func() error {
		for {
			ev, ok := state.Receive()
			if !ok {
				return nil
			}
			r.seen <- ev
		}
	}), nil
}

// emitter publishes its payloads once started.
type emitter struct {
	payloads []domain.DomainEvent
}

func (emitter) Name() string { return "Emitter" }

func (e emitter) Spawn(_ context.Context, state *actor.State, _ struct{}) (*actor.Task, error) {
	return actor.Go(state.Name, func() error {
		for _, p := range e.payloads {
			if err := state.Emit(p); err != nil {
				return nil
			}
		}
		for {
			if _, ok := state.Receive(); !ok {
				return nil
			}
		}
	}), nil
}

type failing struct{}

func (failing) Name() string { return "HidWriter" }

func (failing) Spawn(context.Context, *actor.State, struct{}) (*actor.Task, error) {
	return nil, errors.New("open /dev/hidg0: no such file or directory")
}

// panicky panics on the first event it receives.
type panicky struct{}

func (panicky) Name() string { return "Panicky" }

func (panicky) Spawn(_ context.Context, state *actor.State, _ struct{}) (*actor.Task, error) {
	return actor.Go(state.Name, func() error {
		state.Receive()
		panic("boom")
	}), nil
}

// stubborn ignores Exit and only stops when its context is canceled.
type stubborn struct{}

func (stubborn) Name() string { return "Stubborn" }

func (stubborn) Spawn(ctx context.Context, state *actor.State, _ struct{}) (*actor.Task, error) {
	return actor.Go(state.Name, func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-state.In:
			}
		}
	}), nil
}

// initRecorder remembers the init payload of every spawn.
type initRecorder struct {
	inits chan string
}

func (initRecorder) Name() string { return "Probe" }

func (r initRecorder) Spawn(_ context.Context, state *actor.State, device string) (*actor.Task, error) {
	r.inits <- state.Name + "=" + device + "@" + state.Config.Keyboard
	return actor.Go(state.Name, func() error {
		for {
			if _, ok := state.Receive(); !ok {
				return nil
			}
		}
	}), nil
}

// chainActor runs its processors on every inbound event and publishes every
// output.
type chainActor struct{}

func (chainActor) Name() string { return "Chain" }

func (chainActor) HostsChain() {}

func (chainActor) Spawn(ctx context.Context, state *actor.State, _ struct{}) (*actor.Task, error) {
	return actor.Go(state.Name, func() error {
		for {
			ev, ok := state.Receive()
			if !ok {
				return nil
			}
			for _, out := range processor.Chain(ctx, state.Processors, ev) {
				if err := state.Out.Send(out); err != nil {
					return nil
				}
			}
		}
	}), nil
}

// pressToReport turns every KeyPress into a single-key HidReport.
func pressToReport(state processor.State) processor.Processor {
	return processor.Func(func(_ context.Context, ev domain.Event) []domain.Event {
		if kp, ok := ev.Payload.(domain.KeyPress); ok {
			return []domain.Event{state.Emit(domain.NewHidReport(0, kp.Key))}
		}
		return nil
	})
}
