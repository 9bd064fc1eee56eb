package actors

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/charon-kb/charon/internal/actor"
	"github.com/charon-kb/charon/internal/domain"
)

// PowerManager emits Sleep after the idle timeout passes without key input
// and WakeUp on the next key event. A zero timeout disables sleeping.
type PowerManager struct{}

// Name implements actor.Kind.
func (PowerManager) Name() string { return "PowerManager" }

// Spawn implements actor.Kind.
func (PowerManager) Spawn(ctx context.Context, state *actor.State, _ struct{}) (*actor.Task, error) {
	idle := state.Config.IdleTimeout
	if idle <= 0 {
		state.Logger.Info("idle sleep disabled")
		return actor.Go(state.Name, func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case ev, ok := <-state.In:
					if _, ok = actor.Accept(ev, ok); !ok {
						return nil
					}
				}
			}
		}), nil
	}

	return actor.Go(state.Name, func() error {
		timer := time.NewTimer(idle)
		defer timer.Stop()
		asleep := false

		for {
			select {
			case <-ctx.Done():
				return nil

			case ev, ok := <-state.In:
				if ev, ok = actor.Accept(ev, ok); !ok {
					return nil
				}
				if ev.Topic() != domain.TopicKeyInput {
					continue
				}
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(idle)
				if asleep {
					asleep = false
					state.Logger.Debug("waking up")
					if err := state.Emit(domain.WakeUp{}); errors.Is(err, actor.ErrBrokerStopped) {
						return nil
					}
				}

			case <-timer.C:
				if asleep {
					continue
				}
				asleep = true
				state.Logger.Debug("keyboard idle", zap.Duration("after", idle))
				if err := state.Emit(domain.Sleep{}); errors.Is(err, actor.ErrBrokerStopped) {
					return nil
				}
			}
		}
	}), nil
}

var _ actor.Kind[struct{}] = PowerManager{}
