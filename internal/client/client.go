package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/charon-kb/charon/internal/domain"
	"github.com/charon-kb/charon/internal/ipc"
)

// TickInterval is the client timer period.
const TickInterval = 500 * time.Millisecond

// Source is set on every event the client sends.
const Source = "client"

// Stream is the client's connection to the daemon.
type Stream interface {
	ReadEvent() (domain.Event, error)
	WriteEvent(ev domain.Event) error
	Close() error
}

// Client runs the terminal UI against a daemon connection.
type Client struct {
	stream Stream
	apps   *AppManager
	term   Terminal
	logger *zap.Logger
	tick   time.Duration

	queue []Command
	quit  bool
}

// Option configures a Client.
type Option func(*Client)

// WithTickInterval overrides TickInterval.
func WithTickInterval(d time.Duration) Option {
	return func(c *Client) { c.tick = d }
}

// New creates a client. The stream is closed when Run returns.
func New(stream Stream, apps *AppManager, term Terminal, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		stream: stream,
		apps:   apps,
		term:   term,
		logger: logger,
		tick:   TickInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type readResult struct {
	ev  domain.Event
	err error
}

// Run processes daemon events and timer ticks, whichever comes first, until
// an Exit command, the daemon closing the connection, or ctx cancel.
func (c *Client) Run(ctx context.Context) error {
	c.logger.Info("client started")
	defer c.logger.Info("client quitting")

	reads := make(chan readResult)
	stop := make(chan struct{})
	defer func() {
		close(stop)
		c.stream.Close()
	}()

	go func() {
		for {
			ev, err := c.stream.ReadEvent()
			select {
			case reads <- readResult{ev: ev, err: err}:
			case <-stop:
				return
			}
			var perr *ipc.ParseError
			if err != nil && !errors.As(err, &perr) {
				return
			}
		}
	}()

	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	c.redraw()

	for !c.quit {
		select {
		case <-ctx.Done():
			return nil

		case r := <-reads:
			if r.err != nil {
				var perr *ipc.ParseError
				switch {
				case errors.As(r.err, &perr):
					c.logger.Error("failed to parse event", zap.Error(r.err))
					continue
				case errors.Is(r.err, io.EOF), errors.Is(r.err, net.ErrClosed):
					c.logger.Warn("connection closed by daemon")
					return nil
				default:
					return fmt.Errorf("read from daemon: %w", r.err)
				}
			}
			c.Dispatch(Backend{Payload: r.ev.Payload})

		case <-ticker.C:
			c.Dispatch(Tick{Elapsed: c.tick})
		}
	}
	return nil
}

// Dispatch sends msg to the app manager and runs the resulting commands and
// everything they trigger, in order.
func (c *Client) Dispatch(msg Msg) {
	c.queue = append(c.queue, c.apps.Update(msg)...)
	for len(c.queue) > 0 && !c.quit {
		cmd := c.queue[0]
		c.queue = c.queue[1:]
		if err := c.handle(cmd); err != nil {
			c.logger.Error("command failed", zap.String("command", fmt.Sprintf("%T", cmd)), zap.Error(err))
		}
	}
	c.queue = c.queue[:0]
}

// Quit reports whether the client has been asked to exit.
func (c *Client) Quit() bool { return c.quit }

func (c *Client) handle(cmd Command) error {
	switch cmd := cmd.(type) {
	case Render:
		return c.term.Draw(c.apps.Render)
	case SendEvent:
		return c.stream.WriteEvent(domain.NewEvent(Source, cmd.Payload))
	case SuspendTUI:
		return c.term.Suspend()
	case ResumeTUI:
		if err := c.term.Resume(); err != nil {
			return err
		}
		return c.term.Draw(c.apps.Render)
	case RunApp:
		if !c.apps.HasApp(cmd.ID) {
			return fmt.Errorf("app not found: %s", cmd.ID)
		}
		c.queue = append(c.queue, c.apps.Update(Deactivate{})...)
		c.apps.SetActive(cmd.ID)
		c.queue = append(c.queue, c.apps.Update(Activate{})...)
		c.queue = append(c.queue, Render{})
		return nil
	case Exit:
		c.quit = true
		return nil
	default:
		return fmt.Errorf("unhandled command %T", cmd)
	}
}

func (c *Client) redraw() {
	if err := c.term.Draw(c.apps.Render); err != nil {
		c.logger.Error("draw failed", zap.Error(err))
	}
}
