// Package daemon wires actors to the event broker and runs them until
// shutdown.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/charon-kb/charon/internal/actor"
	"github.com/charon-kb/charon/internal/broker"
	"github.com/charon-kb/charon/internal/config"
	"github.com/charon-kb/charon/internal/domain"
	"github.com/charon-kb/charon/internal/processor"
)

// Source is set on events the daemon itself publishes.
const Source = "orchestrator"

// Daemon owns the broker, the shared mode and every spawned actor.
type Daemon struct {
	cfg    config.CharonConfig
	logger *zap.Logger

	mode    *domain.ModeHandle
	inbound chan domain.Event
	broker  *broker.EventBroker

	// actors run under ctx; it is canceled only when shutdown times out
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	tasks  []*actor.Task
	exited bool
}

// New creates a daemon in pass-through mode.
func New(cfg config.CharonConfig, logger *zap.Logger) *Daemon {
	capacity := cfg.ChannelCapacity
	if capacity < 1 {
		capacity = config.Default().ChannelCapacity
	}
	warn := cfg.BacklogWarnThreshold
	if warn < 1 {
		warn = broker.DefaultBacklogWarnThreshold
	}

	mode := domain.NewModeHandle(domain.ModePassThrough)
	inbound := make(chan domain.Event, capacity)
	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		cfg:     cfg,
		logger:  logger,
		mode:    mode,
		inbound: inbound,
		broker:  broker.New(inbound, mode, logger.Named("broker"), broker.WithBacklogWarnThreshold(warn)),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// WithConfig replaces the config used for actors added after this call.
func (d *Daemon) WithConfig(cfg config.CharonConfig) *Daemon {
	d.cfg = cfg
	return d
}

// UpdateConfig edits the config used for actors added after this call.
func (d *Daemon) UpdateConfig(update func(cfg *config.CharonConfig)) *Daemon {
	update(&d.cfg)
	return d
}

// Config returns a copy of the current config.
func (d *Daemon) Config() config.CharonConfig {
	return d.cfg.Clone()
}

// Mode returns the shared mode handle.
func (d *Daemon) Mode() *domain.ModeHandle {
	return d.mode
}

// Tasks returns the tasks of every actor that started.
func (d *Daemon) Tasks() []*actor.Task {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*actor.Task, len(d.tasks))
	copy(out, d.tasks)
	return out
}

// Subscribers returns the broker subscriptions, including those of actors
// that failed to start.
func (d *Daemon) Subscribers() []*broker.Subscription {
	return d.broker.Subscribers()
}

// Register subscribes a new actor of kind to topics and spawns it with
// init. A spawn failure is logged and returned; the daemon carries on
// without that actor.
func Register[I any](d *Daemon, kind actor.Kind[I], name string, init I, topics []domain.Topic, cfg config.CharonConfig, factories ...processor.Factory) (*actor.Task, error) {
	capacity := cfg.ChannelCapacity
	if capacity < 1 {
		capacity = config.Default().ChannelCapacity
	}
	in := make(chan domain.Event, capacity)
	sub := d.broker.AddSubscriber(name, in, topics)

	state := &actor.State{
		Name:   name,
		Mode:   d.mode,
		Out:    actor.NewSender(d.inbound, d.broker.Done()),
		In:     in,
		Topics: sub.Topics(),
		Config: cfg.Clone(),
		Logger: d.logger.Named(name),
	}
	if len(factories) > 0 {
		if _, ok := any(kind).(actor.ChainHost); !ok {
			d.logger.Warn("processors ignored: actor does not run a processor chain",
				zap.String("actor", name),
				zap.Int("processors", len(factories)))
		}
	}
	state.Processors = processor.Build(state.ProcessorState(), factories...)

	task, err := kind.Spawn(d.ctx, state, init)
	if err != nil {
		sub.Gone()
		serr := &actor.SpawnError{Actor: name, Err: err}
		d.logger.Error("failed to spawn actor", zap.Error(serr))
		return nil, serr
	}

	go func() {
		<-task.Done()
		sub.Gone()
	}()

	d.mu.Lock()
	d.tasks = append(d.tasks, task)
	d.mu.Unlock()

	d.logger.Info("actor spawned",
		zap.String("actor", name),
		zap.Stringer("topics", sub.Topics()))
	return task, nil
}

// AddActorWithInit registers kind under its own name with init.
func AddActorWithInit[I any](d *Daemon, kind actor.Kind[I], init I, topics ...domain.Topic) *Daemon {
	Register(d, kind, kind.Name(), init, topics, d.cfg)
	return d
}

// AddActor registers kind under its own name.
func (d *Daemon) AddActor(kind actor.Kind[struct{}], topics ...domain.Topic) *Daemon {
	return AddActorWithInit(d, kind, struct{}{}, topics...)
}

// AddActorConditionally registers kind only when ok is set.
func (d *Daemon) AddActorConditionally(ok bool, kind actor.Kind[struct{}], topics ...domain.Topic) *Daemon {
	if !ok {
		d.logger.Info("actor disabled", zap.String("actor", kind.Name()))
		return d
	}
	return d.AddActor(kind, topics...)
}

// AddActorWithProcessors registers kind with a processor chain built from
// factories. Only kinds implementing actor.ChainHost run the chain; for any
// other kind the processors are built but never used, and a warning is
// logged.
func (d *Daemon) AddActorWithProcessors(kind actor.Kind[struct{}], topics []domain.Topic, factories ...processor.Factory) *Daemon {
	Register(d, kind, kind.Name(), struct{}{}, topics, d.cfg, factories...)
	return d
}

// AddPipeline registers a pipeline actor called name.
func (d *Daemon) AddPipeline(name string, topics []domain.Topic, factories ...processor.Factory) *Daemon {
	Register[struct{}](d, actor.Pipeline{}, name, struct{}{}, topics, d.cfg, factories...)
	return d
}

// AddScanners registers one kind actor per configured keyboard, named
// "<kind>-<keyboard>" and started with the keyboard's device path.
func (d *Daemon) AddScanners(kind actor.Kind[string], topics ...domain.Topic) *Daemon {
	keyboards := d.cfg.PerKeyboard()
	if len(keyboards) == 0 {
		d.logger.Warn("no keyboards configured")
	}
	for _, kb := range keyboards {
		Register(d, kind, kind.Name()+"-"+kb.Name, kb.Device, topics, kb.Config)
	}
	return d
}

// Run drives the broker until an Exit event arrives or ctx is canceled.
func (d *Daemon) Run(ctx context.Context) error {
	d.logger.Info("daemon running", zap.Int("actors", len(d.Tasks())))

	err := d.broker.Run(ctx)
	switch {
	case err == nil:
		d.mu.Lock()
		d.exited = true
		d.mu.Unlock()
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		d.logger.Info("daemon interrupted")
		return nil
	default:
		return err
	}
}

// Stop asks the daemon to exit. While the broker runs, the Exit goes
// through it so Run returns; afterwards it is broadcast directly.
func (d *Daemon) Stop(ctx context.Context) error {
	ev := domain.NewEvent(Source, domain.Exit{})
	select {
	case d.inbound <- ev:
		return nil
	case <-d.broker.Done():
		d.broker.Broadcast(ev, true)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown makes sure every actor received Exit and waits for them, at most
// ShutdownTimeout. Task failures are logged, not returned. The error is
// non-nil only when some actors were still running at the deadline.
func (d *Daemon) Shutdown(ctx context.Context) error {
	defer d.broker.Close()

	d.mu.Lock()
	exited := d.exited
	d.exited = true
	d.mu.Unlock()
	if !exited {
		d.broker.Broadcast(domain.NewEvent(Source, domain.Exit{}), true)
	}

	timeout := d.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = config.Default().ShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stuck []string
	for _, task := range d.Tasks() {
		select {
		case <-task.Done():
		case <-ctx.Done():
		}
		select {
		case <-task.Done():
			d.logJoin(task)
		default:
			stuck = append(stuck, task.Name())
		}
	}

	// Anything still running gets its context canceled.
	d.cancel()

	if len(stuck) > 0 {
		d.logger.Warn("actors did not stop in time",
			zap.Strings("actors", stuck),
			zap.Duration("timeout", timeout))
		return fmt.Errorf("shutdown timed out after %s: %d actors still running", timeout.Round(time.Millisecond), len(stuck))
	}
	d.logger.Info("daemon stopped")
	return nil
}

func (d *Daemon) logJoin(task *actor.Task) {
	err := task.Wait()
	if err == nil {
		return
	}
	var jerr *actor.JoinError
	if errors.As(err, &jerr) && jerr.Panic != nil {
		d.logger.Error("actor panicked",
			zap.String("actor", task.Name()),
			zap.Error(err),
			zap.ByteString("stack", jerr.Stack))
		return
	}
	d.logger.Error("actor failed", zap.String("actor", task.Name()), zap.Error(err))
}
