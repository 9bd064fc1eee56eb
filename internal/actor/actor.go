// Package actor is the runtime every daemon actor is built on: the state an
// actor owns after spawn, its sender into the broker and its task handle.
package actor

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/charon-kb/charon/internal/config"
	"github.com/charon-kb/charon/internal/domain"
	"github.com/charon-kb/charon/internal/processor"
)

// ErrBrokerStopped is returned by Sender.Send once the broker has stopped.
var ErrBrokerStopped = errors.New("broker stopped")

// Kind is a type of actor. I is the payload the actor is started with, for
// example a device path for keyboard scanners or struct{} for most actors.
type Kind[I any] interface {
	// Name is the default registration name.
	Name() string
	// Spawn starts the actor loop and returns its task. It must not block.
	Spawn(ctx context.Context, state *State, init I) (*Task, error)
}

// ChainHost is implemented by kinds that run State.Processors on their
// inbound events. Processors attached to any other kind never run.
type ChainHost interface {
	HostsChain()
}

// SpawnError reports that an actor could not be started.
type SpawnError struct {
	Actor string
	Err   error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn actor %s: %v", e.Actor, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// Sender publishes events to the broker inbound channel.
type Sender struct {
	ch      chan<- domain.Event
	stopped <-chan struct{}
}

// NewSender returns a sender into ch that gives up once stopped is closed.
func NewSender(ch chan<- domain.Event, stopped <-chan struct{}) Sender {
	return Sender{ch: ch, stopped: stopped}
}

// Send blocks until the broker accepts ev or has stopped.
func (s Sender) Send(ev domain.Event) error {
	select {
	case <-s.stopped:
		return ErrBrokerStopped
	default:
	}
	select {
	case s.ch <- ev:
		return nil
	case <-s.stopped:
		return ErrBrokerStopped
	}
}

// State is owned by the actor goroutine after spawn.
type State struct {
	Name       string
	Mode       *domain.ModeHandle
	Out        Sender
	In         <-chan domain.Event
	Topics     domain.TopicSet
	Config     config.CharonConfig
	Processors []processor.Processor
	Logger     *zap.Logger
}

// Emit publishes payload with the actor's name as source.
func (s *State) Emit(payload domain.DomainEvent) error {
	return s.Out.Send(domain.NewEvent(s.Name, payload))
}

// Receive waits for the next event. It returns false when the inbound
// channel is closed or an Exit arrives; the actor should then return.
func (s *State) Receive() (domain.Event, bool) {
	ev, ok := <-s.In
	return Accept(ev, ok)
}

// Accept applies the Receive termination rule to a value read directly
// from State.In, for actors that select on other channels as well.
func Accept(ev domain.Event, ok bool) (domain.Event, bool) {
	if !ok || ev.IsExit() {
		return domain.Event{}, false
	}
	return ev, true
}

// ProcessorState returns the processor view of this actor state.
func (s *State) ProcessorState() processor.State {
	return processor.State{
		Name:   s.Name,
		Mode:   s.Mode,
		Config: s.Config,
		Logger: s.Logger,
	}
}
