package actors

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/charon-kb/charon/internal/actor"
	"github.com/charon-kb/charon/internal/domain"
)

// Typist types SendText and SendFile requests as HID reports and emits
// TextSent when a request is done.
type Typist struct {
	FS domain.FileSystem
}

// NewTypist returns a typist reading files through fs.
func NewTypist(fs domain.FileSystem) Typist {
	return Typist{FS: fs}
}

// Name implements actor.Kind.
func (Typist) Name() string { return "Typist" }

// Spawn implements actor.Kind.
func (t Typist) Spawn(ctx context.Context, state *actor.State, _ struct{}) (*actor.Task, error) {
	run := &typistRun{
		fs:    t.FS,
		state: state,
		delay: state.Config.TypingDelay,
	}
	return actor.Go(state.Name, func() error {
		return run.loop(ctx)
	}), nil
}

type typistRun struct {
	fs    domain.FileSystem
	state *actor.State
	delay time.Duration

	// events that arrived while typing
	pending []domain.Event
	stopped bool
}

func (r *typistRun) next(ctx context.Context) (domain.Event, bool) {
	if len(r.pending) > 0 {
		ev := r.pending[0]
		r.pending = r.pending[1:]
		return ev, true
	}
	select {
	case <-ctx.Done():
		return domain.Event{}, false
	case ev, ok := <-r.state.In:
		return actor.Accept(ev, ok)
	}
}

func (r *typistRun) loop(ctx context.Context) error {
	for !r.stopped {
		ev, ok := r.next(ctx)
		if !ok {
			return nil
		}

		var text string
		switch e := ev.Payload.(type) {
		case domain.SendText:
			text = e.Text
		case domain.SendFile:
			content, err := r.fs.ReadText(e.Path)
			if err != nil {
				r.state.Logger.Error("failed to read file", zap.String("path", e.Path), zap.Error(err))
				continue
			}
			text = content
			if e.Remove {
				if err := r.fs.Remove(e.Path); err != nil {
					r.state.Logger.Warn("failed to remove file", zap.String("path", e.Path), zap.Error(err))
				}
			}
		default:
			continue
		}

		if err := r.typeText(ctx, text); err != nil {
			if errors.Is(err, actor.ErrBrokerStopped) {
				return nil
			}
			return err
		}
		if r.stopped {
			return nil
		}
		if err := r.state.Emit(domain.TextSent{}); errors.Is(err, actor.ErrBrokerStopped) {
			return nil
		}
	}
	return nil
}

func (r *typistRun) typeText(ctx context.Context, text string) error {
	skipped := 0
	for _, ch := range text {
		key, mods, ok := domain.KeyForRune(ch)
		if !ok {
			skipped++
			continue
		}
		if err := r.state.Emit(domain.NewHidReport(mods, key)); err != nil {
			return err
		}
		if err := r.state.Emit(domain.HidReport{}); err != nil {
			return err
		}
		if !r.pause(ctx) {
			return nil
		}
	}
	if skipped > 0 {
		r.state.Logger.Debug("skipped characters without a key", zap.Int("count", skipped))
	}
	return nil
}

// pause waits for the typing delay while still watching for Exit. Other
// events are queued for later. It returns false when typing must stop.
func (r *typistRun) pause(ctx context.Context) bool {
	if r.delay <= 0 {
		select {
		case <-ctx.Done():
			r.stopped = true
			return false
		case ev, ok := <-r.state.In:
			return r.queue(ev, ok)
		default:
			return true
		}
	}

	timer := time.NewTimer(r.delay)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			r.stopped = true
			return false
		case ev, ok := <-r.state.In:
			if !r.queue(ev, ok) {
				return false
			}
		case <-timer.C:
			return true
		}
	}
}

func (r *typistRun) queue(ev domain.Event, ok bool) bool {
	if ev, ok = actor.Accept(ev, ok); !ok {
		r.stopped = true
		return false
	}
	r.pending = append(r.pending, ev)
	return true
}

var _ actor.Kind[struct{}] = Typist{}
