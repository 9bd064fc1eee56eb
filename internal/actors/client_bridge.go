package actors

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/charon-kb/charon/internal/actor"
	"github.com/charon-kb/charon/internal/domain"
	"github.com/charon-kb/charon/internal/ipc"
)

// ClientSource is the source set on every event received from a client.
const ClientSource = "client"

// ClientBridge connects terminal clients to the broker over the IPC socket.
type ClientBridge struct{}

// Name implements actor.Kind.
func (ClientBridge) Name() string { return "ClientBridge" }

// Spawn implements actor.Kind.
func (ClientBridge) Spawn(ctx context.Context, state *actor.State, _ struct{}) (*actor.Task, error) {
	if state.Config.SocketPath == "" {
		return nil, errors.New("no socket path configured")
	}

	bridgeCtx, cancel := context.WithCancel(ctx)

	srv := ipc.NewServer(ipc.DefaultServerConfig(state.Config.SocketPath), func(peer *ipc.Peer, ev domain.Event) {
		ev.Source = ClientSource
		state.Logger.Debug("client event", zap.String("client", peer.ID), zap.Stringer("event", ev))
		if err := state.Out.Send(ev); err != nil {
			state.Logger.Debug("dropping client event", zap.Error(err))
		}
	}, state.Logger)
	srv.OnConnect(func(peer *ipc.Peer) {
		peer.Send(domain.NewEvent(state.Name, domain.ModeChange{Mode: state.Mode.Get()}))
	})

	if err := srv.Start(bridgeCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("start client socket: %w", err)
	}

	return actor.Go(state.Name, func() error {
		defer cancel()
		defer srv.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil

			case ev, ok := <-state.In:
				if !ok {
					return nil
				}
				if ev.IsExit() {
					srv.Broadcast(ev)
					return nil
				}
				if forwardToClients(ev, state.Mode.Get()) {
					srv.Broadcast(ev)
				}
			}
		}
	}), nil
}

func forwardToClients(ev domain.Event, mode domain.Mode) bool {
	switch ev.Topic() {
	case domain.TopicSystem, domain.TopicStats:
		return true
	case domain.TopicKeyInput:
		return mode == domain.ModeInApp
	default:
		return false
	}
}

var _ actor.Kind[struct{}] = ClientBridge{}
