package actors

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/charon-kb/charon/internal/actor"
	"github.com/charon-kb/charon/internal/config"
	"github.com/charon-kb/charon/internal/domain"
)

const waitFor = 2 * time.Second

type harness struct {
	state   *actor.State
	in      chan domain.Event
	out     chan domain.Event
	stopped chan struct{}
	ctx     context.Context
}

func newHarness(t *testing.T, name string, cfg config.CharonConfig) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{
		in:      make(chan domain.Event, 16),
		out:     make(chan domain.Event, 64),
		stopped: make(chan struct{}),
		ctx:     ctx,
	}
	h.state = &actor.State{
		Name:   name,
		Mode:   domain.NewModeHandle(domain.ModePassThrough),
		Out:    actor.NewSender(h.out, h.stopped),
		In:     h.in,
		Config: cfg,
		Logger: zap.NewNop(),
	}
	t.Cleanup(func() {
		close(h.stopped)
		cancel()
	})
	return h
}

func (h *harness) send(payload domain.DomainEvent) {
	h.in <- domain.NewEvent("test", payload)
}

func (h *harness) exit() {
	h.send(domain.Exit{})
}

// next returns the next emitted event, skipping payloads of the given kinds.
func (h *harness) next(t *testing.T, skip ...string) domain.Event {
	t.Helper()
	deadline := time.After(waitFor)
	for {
		select {
		case ev := <-h.out:
			if contains(skip, ev.Payload.Kind()) {
				continue
			}
			return ev
		case <-deadline:
			t.Fatal("timed out waiting for event")
			return domain.Event{}
		}
	}
}

func (h *harness) assertQuiet(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case ev := <-h.out:
		t.Fatalf("unexpected event %s", ev)
	case <-time.After(d):
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func waitTask(t *testing.T, task *actor.Task) error {
	t.Helper()
	select {
	case <-task.Done():
		return task.Wait()
	case <-time.After(waitFor):
		t.Fatalf("task %s did not finish", task.Name())
		return nil
	}
}

func mustSpawn[I any](t *testing.T, kind actor.Kind[I], h *harness, init I) *actor.Task {
	t.Helper()
	task, err := kind.Spawn(h.ctx, h.state, init)
	require.NoError(t, err)
	return task
}

// recordingWriter collects everything written to it.
type recordingWriter struct {
	mu     sync.Mutex
	writes [][]byte
	closed bool
	fail   error
}

func (w *recordingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail != nil {
		return 0, w.fail
	}
	w.writes = append(w.writes, append([]byte(nil), p...))
	return len(p), nil
}

func (w *recordingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *recordingWriter) snapshot() ([][]byte, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([][]byte, len(w.writes))
	copy(out, w.writes)
	return out, w.closed
}

var _ io.WriteCloser = (*recordingWriter)(nil)

// memFS is an in-memory domain.FileSystem.
type memFS struct {
	mu      sync.Mutex
	files   map[string]string
	removed []string
}

func newMemFS(files map[string]string) *memFS {
	return &memFS{files: files}
}

func (f *memFS) ReadText(path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	content, ok := f.files[path]
	if !ok {
		return "", errors.New("file not found")
	}
	return content, nil
}

func (f *memFS) Remove(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, path)
	f.removed = append(f.removed, path)
	return nil
}

func (f *memFS) ExpandHome(path string) string { return path }

func (f *memFS) removedPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.removed...)
}

var _ domain.FileSystem = (*memFS)(nil)

// memStats is an in-memory domain.StatsStore.
type memStats struct {
	mu     sync.Mutex
	totals map[string]domain.DailyTotal
}

func newMemStats() *memStats {
	return &memStats{totals: make(map[string]domain.DailyTotal)}
}

func (s *memStats) Add(d domain.DailyTotal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.totals[d.Day]
	cur.Day = d.Day
	cur.KeyPresses += d.KeyPresses
	cur.ReportsSent += d.ReportsSent
	cur.TextsSent += d.TextsSent
	cur.MaxWpm = max(cur.MaxWpm, d.MaxWpm)
	s.totals[d.Day] = cur
	return nil
}

func (s *memStats) Get(day string) (domain.DailyTotal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totals[day], nil
}

func (s *memStats) Recent(int) ([]domain.DailyTotal, error) { return nil, nil }

func (s *memStats) Close() error { return nil }

var _ domain.StatsStore = (*memStats)(nil)

type fakeProcess struct{}

func (fakeProcess) IsRunning(int) bool  { return true }
func (fakeProcess) Terminate(int) error { return nil }
func (fakeProcess) GetCurrentPID() int  { return 42 }
func (fakeProcess) Usage(int) (domain.ProcessUsage, error) {
	return domain.ProcessUsage{RSSBytes: 4096, CPUPercent: 2.5}, nil
}

var _ domain.ProcessManager = fakeProcess{}
