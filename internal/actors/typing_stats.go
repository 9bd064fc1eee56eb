package actors

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/charon-kb/charon/internal/actor"
	"github.com/charon-kb/charon/internal/config"
	"github.com/charon-kb/charon/internal/domain"
	"github.com/charon-kb/charon/internal/infra"
)

// wpmWindow is the sliding window words per minute are computed over.
const wpmWindow = time.Minute

// charsPerWord is the conventional word length for WPM.
const charsPerWord = 5

// TypingStats counts key presses, reports and typed texts, publishes a
// CurrentStats snapshot every stats interval and persists daily totals.
type TypingStats struct {
	// Store may be nil, in which case nothing is persisted.
	Store   domain.StatsStore
	Process domain.ProcessManager
	Now     func() time.Time
}

// NewTypingStats returns a stats actor backed by store and pm.
func NewTypingStats(store domain.StatsStore, pm domain.ProcessManager) TypingStats {
	return TypingStats{Store: store, Process: pm, Now: time.Now}
}

// Name implements actor.Kind.
func (TypingStats) Name() string { return "TypingStats" }

// Spawn implements actor.Kind.
func (s TypingStats) Spawn(ctx context.Context, state *actor.State, _ struct{}) (*actor.Task, error) {
	now := s.Now
	if now == nil {
		now = time.Now
	}
	interval := state.Config.StatsInterval
	if interval <= 0 {
		interval = config.Default().StatsInterval
	}
	tracker := newStatsTracker(now())

	return actor.Go(state.Name, func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		defer func() { s.persist(state, tracker, now()) }()

		for {
			select {
			case <-ctx.Done():
				return nil

			case ev, ok := <-state.In:
				if ev, ok = actor.Accept(ev, ok); !ok {
					return nil
				}
				tracker.observe(ev, now())

			case <-ticker.C:
				snapshot := tracker.snapshot(now())
				if s.Process != nil {
					if usage, err := s.Process.Usage(s.Process.GetCurrentPID()); err == nil {
						snapshot.RSSBytes = usage.RSSBytes
						snapshot.CPUPercent = usage.CPUPercent
					}
				}
				if err := state.Emit(domain.CurrentStats{Stats: snapshot}); errors.Is(err, actor.ErrBrokerStopped) {
					return nil
				}
				s.persist(state, tracker, now())
			}
		}
	}), nil
}

func (s TypingStats) persist(state *actor.State, t *statsTracker, now time.Time) {
	if s.Store == nil {
		return
	}
	delta := t.flush(now)
	if delta.KeyPresses == 0 && delta.ReportsSent == 0 && delta.TextsSent == 0 && delta.MaxWpm == 0 {
		return
	}
	if err := s.Store.Add(delta); err != nil {
		state.Logger.Warn("failed to persist stats", zap.Error(err))
	}
}

// statsTracker holds the running counters. It is owned by one goroutine.
type statsTracker struct {
	stats   domain.Stats
	presses []time.Time
	flushed domain.Stats
}

func newStatsTracker(since time.Time) *statsTracker {
	return &statsTracker{stats: domain.Stats{Since: since}}
}

func (t *statsTracker) observe(ev domain.Event, now time.Time) {
	switch ev.Payload.(type) {
	case domain.KeyPress:
		t.stats.KeyPresses++
		t.presses = append(t.presses, now)
	case domain.ReportSent:
		t.stats.ReportsSent++
	case domain.TextSent:
		t.stats.TextsSent++
	}
}

func (t *statsTracker) wpm(now time.Time) uint32 {
	cutoff := now.Add(-wpmWindow)
	i := 0
	for i < len(t.presses) && t.presses[i].Before(cutoff) {
		i++
	}
	t.presses = t.presses[i:]
	return uint32(len(t.presses) / charsPerWord)
}

func (t *statsTracker) snapshot(now time.Time) domain.Stats {
	t.stats.Wpm = t.wpm(now)
	t.stats.MaxWpm = max(t.stats.MaxWpm, t.stats.Wpm)
	return t.stats
}

// flush returns the counters accumulated since the previous flush.
func (t *statsTracker) flush(now time.Time) domain.DailyTotal {
	cur := t.snapshot(now)
	delta := domain.DailyTotal{
		Day:         now.Format(infra.DayFormat),
		KeyPresses:  cur.KeyPresses - t.flushed.KeyPresses,
		ReportsSent: cur.ReportsSent - t.flushed.ReportsSent,
		TextsSent:   cur.TextsSent - t.flushed.TextsSent,
	}
	if cur.MaxWpm > t.flushed.MaxWpm {
		delta.MaxWpm = cur.MaxWpm
	}
	t.flushed = cur
	return delta
}

var _ actor.Kind[struct{}] = TypingStats{}
