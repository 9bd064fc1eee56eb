package broker

import (
	"sync"

	"go.uber.org/zap"

	"github.com/charon-kb/charon/internal/domain"
)

// mailbox decouples the broker from one subscriber. The broker appends to
// the backlog and never blocks; the forwarder goroutine drains the backlog in
// order with a blocking send into the subscriber's bounded inbound channel.
type mailbox struct {
	name   string
	out    chan<- domain.Event
	logger *zap.Logger

	mu      sync.Mutex
	backlog []domain.Event
	warnAt  int
	step    int

	wake     chan struct{}
	gone     chan struct{}
	goneOnce sync.Once
	stop     <-chan struct{}
	errOnce  sync.Once
	done     chan struct{}
}

func newMailbox(name string, out chan<- domain.Event, warnThreshold int, stop <-chan struct{}, logger *zap.Logger) *mailbox {
	if warnThreshold < 1 {
		warnThreshold = 1
	}
	m := &mailbox{
		name:   name,
		out:    out,
		logger: logger,
		warnAt: warnThreshold,
		step:   warnThreshold,
		wake:   make(chan struct{}, 1),
		gone:   make(chan struct{}),
		stop:   stop,
		done:   make(chan struct{}),
	}
	go m.forward()
	return m
}

// push appends ev to the backlog. It never blocks.
func (m *mailbox) push(ev domain.Event) {
	select {
	case <-m.gone:
		m.reportGone(ev)
		return
	default:
	}

	m.mu.Lock()
	m.backlog = append(m.backlog, ev)
	n := len(m.backlog)
	if n >= m.warnAt {
		m.logger.Warn("subscriber is falling behind",
			zap.String("subscriber", m.name),
			zap.Int("backlog", n))
		m.warnAt += m.step
	}
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *mailbox) pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.backlog)
}

func (m *mailbox) markGone() {
	m.goneOnce.Do(func() { close(m.gone) })
}

func (m *mailbox) reportGone(ev domain.Event) {
	m.errOnce.Do(func() {
		m.logger.Warn("dropping events for finished subscriber",
			zap.Error(&SendError{Subscriber: m.name, Event: ev.String()}))
	})
}

func (m *mailbox) forward() {
	defer close(m.done)
	for {
		ev, ok := m.next()
		if !ok {
			select {
			case <-m.wake:
				continue
			case <-m.gone:
				return
			case <-m.stop:
				return
			}
		}

		select {
		case m.out <- ev:
		case <-m.gone:
			m.reportGone(ev)
			m.mu.Lock()
			m.backlog = nil
			m.mu.Unlock()
			return
		case <-m.stop:
			return
		}
	}
}

func (m *mailbox) next() (domain.Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.backlog) == 0 {
		return domain.Event{}, false
	}
	ev := m.backlog[0]
	m.backlog[0] = domain.Event{}
	m.backlog = m.backlog[1:]
	if len(m.backlog) < m.warnAt-m.step {
		m.warnAt = max(m.step, m.warnAt-m.step)
	}
	return ev, true
}
