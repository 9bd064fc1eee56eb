// Package broker routes domain events between actors by topic.
package broker

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/charon-kb/charon/internal/domain"
)

// DefaultBacklogWarnThreshold is used when the config does not set one.
const DefaultBacklogWarnThreshold = 1024

// SendError reports that a subscriber could not receive an event because
// its actor has finished.
type SendError struct {
	Subscriber string
	Event      string
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send %s to subscriber %q: receiver gone", e.Event, e.Subscriber)
}

// Subscription is the broker's record of one subscriber. Its topic set is
// fixed at registration.
type Subscription struct {
	name   string
	topics domain.TopicSet
	box    *mailbox
}

// Name returns the subscriber name.
func (s *Subscription) Name() string { return s.name }

// Topics returns the subscribed topic set.
func (s *Subscription) Topics() domain.TopicSet { return s.topics }

// Pending returns the number of events waiting in the subscriber's backlog.
func (s *Subscription) Pending() int { return s.box.pending() }

// Gone marks the subscriber as finished. Later deliveries are dropped and
// reported once as a SendError.
func (s *Subscription) Gone() { s.box.markGone() }

// EventBroker receives events from every actor on one inbound channel and
// forwards each to the subscribers of its topic.
type EventBroker struct {
	inbound <-chan domain.Event
	mode    *domain.ModeHandle
	logger  *zap.Logger

	warnThreshold int

	mu          sync.RWMutex
	subscribers []*Subscription

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	runOnce  sync.Once
}

// Option configures an EventBroker.
type Option func(*EventBroker)

// WithBacklogWarnThreshold sets the backlog size that triggers a warning.
func WithBacklogWarnThreshold(n int) Option {
	return func(b *EventBroker) { b.warnThreshold = n }
}

// New creates a broker reading from inbound. ModeChange events passing
// through the broker update mode before they are forwarded.
func New(inbound <-chan domain.Event, mode *domain.ModeHandle, logger *zap.Logger, opts ...Option) *EventBroker {
	b := &EventBroker{
		inbound:       inbound,
		mode:          mode,
		logger:        logger,
		warnThreshold: DefaultBacklogWarnThreshold,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// AddSubscriber registers mailbox for topics. Duplicate names are allowed:
// routing is by topic set, not by name.
func (b *EventBroker) AddSubscriber(name string, mailbox chan<- domain.Event, topics []domain.Topic) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, s := range b.subscribers {
		if s.name == name {
			b.logger.Warn("duplicate subscriber name", zap.String("subscriber", name))
			break
		}
	}

	sub := &Subscription{
		name:   name,
		topics: domain.NewTopicSet(topics...),
		box:    newMailbox(name, mailbox, b.warnThreshold, b.stop, b.logger),
	}
	b.subscribers = append(b.subscribers, sub)

	b.logger.Debug("subscriber registered",
		zap.String("subscriber", name),
		zap.Stringer("topics", sub.topics))
	return sub
}

// Subscribers returns a snapshot of the registered subscribers.
func (b *EventBroker) Subscribers() []*Subscription {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*Subscription, len(b.subscribers))
	copy(out, b.subscribers)
	return out
}

// Run consumes the inbound channel in arrival order until it is closed, an
// Exit event arrives, or ctx is canceled. Done is closed when Run returns.
func (b *EventBroker) Run(ctx context.Context) error {
	started := false
	b.runOnce.Do(func() { started = true })
	if !started {
		return fmt.Errorf("broker already running")
	}
	defer close(b.done)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-b.inbound:
			if !ok {
				b.logger.Info("broker inbound channel closed")
				return nil
			}
			if ev.IsExit() {
				b.logger.Info("exit requested", zap.String("source", ev.Source))
				b.Broadcast(ev, true)
				return nil
			}
			b.route(ev)
		}
	}
}

// Done is closed once Run has returned.
func (b *EventBroker) Done() <-chan struct{} {
	return b.done
}

// Broadcast delivers ev. With force every subscriber receives it regardless
// of its topics; without force it is routed by topic like any other event.
// Either way a ModeChange updates the mode first.
func (b *EventBroker) Broadcast(ev domain.Event, force bool) {
	if !force {
		b.route(ev)
		return
	}
	b.applyMode(ev)
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subscribers {
		s.box.push(ev)
	}
}

// Close stops every forwarder. Events still in backlogs are discarded.
func (b *EventBroker) Close() {
	b.stopOnce.Do(func() { close(b.stop) })
}

func (b *EventBroker) applyMode(ev domain.Event) {
	mc, ok := ev.Payload.(domain.ModeChange)
	if !ok || b.mode == nil {
		return
	}
	if b.mode.Set(mc.Mode) {
		b.logger.Info("mode changed",
			zap.Stringer("mode", mc.Mode),
			zap.String("source", ev.Source))
	}
}

func (b *EventBroker) route(ev domain.Event) {
	b.applyMode(ev)

	topic := ev.Topic()
	matched := 0

	b.mu.RLock()
	for _, s := range b.subscribers {
		if s.topics.Has(topic) {
			s.box.push(ev)
			matched++
		}
	}
	b.mu.RUnlock()

	if matched == 0 {
		b.logger.Debug("no subscribers for event",
			zap.Stringer("event", ev),
			zap.Stringer("topic", topic))
	}
}
