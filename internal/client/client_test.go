package client

import (
	"bytes"
	"context"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/charon-kb/charon/internal/domain"
	"github.com/charon-kb/charon/internal/ipc"
)

type fakeTerminal struct {
	mu        sync.Mutex
	frames    []string
	suspended bool
}

func (t *fakeTerminal) Draw(render func(io.Writer)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.suspended {
		return nil
	}
	var buf bytes.Buffer
	render(&buf)
	t.frames = append(t.frames, buf.String())
	return nil
}

func (t *fakeTerminal) Suspend() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.suspended = true
	return nil
}

func (t *fakeTerminal) Resume() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.suspended = false
	return nil
}

func (t *fakeTerminal) last() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.frames) == 0 {
		return ""
	}
	return t.frames[len(t.frames)-1]
}

type fakeStream struct {
	sent []domain.Event
}

func (s *fakeStream) ReadEvent() (domain.Event, error) { return domain.Event{}, io.EOF }

func (s *fakeStream) WriteEvent(ev domain.Event) error {
	s.sent = append(s.sent, ev)
	return nil
}

func (s *fakeStream) Close() error { return nil }

func newTestClient(stream Stream) (*Client, *AppManager, *fakeTerminal) {
	apps := NewAppManager(DefaultApps("hello"), AppCharonSay, zap.NewNop())
	term := &fakeTerminal{}
	return New(stream, apps, term, zap.NewNop(), WithTickInterval(10*time.Millisecond)), apps, term
}

func runClient(t *testing.T, c *Client) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()
	return done
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("client did not stop")
		return nil
	}
}

func TestRun_MalformedLineIsSkipped(t *testing.T) {
	clientSide, daemonSide := net.Pipe()
	daemon := ipc.NewConn(daemonSide)
	c, apps, term := newTestClient(ipc.NewConn(clientSide))
	done := runClient(t, c)

	require.NoError(t, daemon.WriteLine([]byte(`{"source":"d","payload":{"type":"warp_drive"}}`)))
	require.NoError(t, daemon.WriteLine([]byte("not json at all")))
	require.NoError(t, daemon.WriteEvent(domain.NewEvent("ClientBridge", domain.ModeChange{Mode: domain.ModeInApp})))
	daemon.Close()

	assert.NoError(t, waitDone(t, done))
	assert.Equal(t, AppMenu, apps.Active())
	assert.Contains(t, term.last(), "> Stats")
}

func TestRun_DaemonExit(t *testing.T) {
	clientSide, daemonSide := net.Pipe()
	daemon := ipc.NewConn(daemonSide)
	defer daemon.Close()
	c, _, _ := newTestClient(ipc.NewConn(clientSide))
	done := runClient(t, c)

	require.NoError(t, daemon.WriteEvent(domain.NewEvent("orchestrator", domain.Exit{})))

	assert.NoError(t, waitDone(t, done))
	assert.True(t, c.Quit())
}

func TestRun_SendsMenuActions(t *testing.T) {
	clientSide, daemonSide := net.Pipe()
	daemon := ipc.NewConn(daemonSide)
	defer daemon.Close()
	c, _, _ := newTestClient(ipc.NewConn(clientSide))
	done := runClient(t, c)

	require.NoError(t, daemon.WriteEvent(domain.NewEvent("d", domain.ModeChange{Mode: domain.ModeInApp})))
	require.NoError(t, daemon.WriteEvent(domain.NewEvent("d", domain.KeyPress{Key: domain.KeyEscape})))

	ev, err := daemon.ReadEvent()
	require.NoError(t, err)
	assert.Equal(t, Source, ev.Source)
	assert.Equal(t, domain.ModeChange{Mode: domain.ModePassThrough}, ev.Payload)

	require.NoError(t, daemon.WriteEvent(domain.NewEvent("d", domain.Exit{})))
	assert.NoError(t, waitDone(t, done))
}

func TestDispatch_ModeSwitch(t *testing.T) {
	c, apps, term := newTestClient(&fakeStream{})

	c.Dispatch(Backend{Payload: domain.ModeChange{Mode: domain.ModeInApp}})
	assert.Equal(t, AppMenu, apps.Active())
	assert.Contains(t, term.last(), "Quit client")

	c.Dispatch(Backend{Payload: domain.ModeChange{Mode: domain.ModePassThrough}})
	assert.Equal(t, AppCharonSay, apps.Active())
	assert.Contains(t, term.last(), "charon")
}

func TestDispatch_SleepAndWake(t *testing.T) {
	c, apps, term := newTestClient(&fakeStream{})

	c.Dispatch(Backend{Payload: domain.Sleep{}})
	assert.False(t, apps.Awake())
	assert.True(t, term.suspended)

	frames := len(term.frames)
	c.Dispatch(Backend{Payload: domain.CurrentStats{Stats: domain.Stats{KeyPresses: 7}}})
	assert.Len(t, term.frames, frames, "no drawing while asleep")

	c.Dispatch(Backend{Payload: domain.WakeUp{}})
	assert.True(t, apps.Awake())
	assert.False(t, term.suspended)
	assert.Greater(t, len(term.frames), frames)
}

func TestDispatch_MenuNavigation(t *testing.T) {
	stream := &fakeStream{}
	c, apps, term := newTestClient(stream)
	press := func(k domain.HidKeyCode) {
		c.Dispatch(Backend{Payload: domain.KeyPress{Key: k}})
	}

	c.Dispatch(Backend{Payload: domain.ModeChange{Mode: domain.ModeInApp}})

	// Stats screen and back.
	press(domain.KeyEnter)
	assert.Equal(t, AppStats, apps.Active())
	c.Dispatch(Backend{Payload: domain.CurrentStats{Stats: domain.Stats{KeyPresses: 12, Wpm: 40, MaxWpm: 55}}})
	assert.Contains(t, term.last(), "key presses   12")
	press(domain.KeyEscape)
	assert.Equal(t, AppMenu, apps.Active())

	// Selection wraps around and resets on activation.
	press(domain.KeyUp)
	assert.Contains(t, term.last(), "> Quit client")
	press(domain.KeyDown)
	press(domain.KeyDown)
	press(domain.KeyEnter)
	require.Len(t, stream.sent, 1)
	assert.Equal(t, domain.SendText{Text: "hello"}, stream.sent[0].Payload)
	assert.Equal(t, Source, stream.sent[0].Source)

	press(keyK)
	press(keyK)
	press(domain.KeyEnter)
	assert.True(t, c.Quit())
}

func TestAppManager_UnknownApp(t *testing.T) {
	c, apps, _ := newTestClient(&fakeStream{})

	assert.False(t, apps.SetActive("nope"))
	assert.Equal(t, AppCharonSay, apps.Active())
	assert.Error(t, c.handle(RunApp{ID: "nope"}))
	assert.Equal(t, []string{AppCharonSay, AppMenu, AppStats}, apps.Apps())
}

func TestCharonSay_ShowsStats(t *testing.T) {
	say := &CharonSay{}
	cmds := say.Update(Backend{Payload: domain.CurrentStats{Stats: domain.Stats{KeyPresses: 3, Wpm: 20, MaxWpm: 30}}})
	assert.Equal(t, []Command{Render{}}, cmds)
	assert.Nil(t, say.Update(Tick{Elapsed: time.Second}))

	var buf bytes.Buffer
	say.Render(&buf)
	assert.Contains(t, buf.String(), "3 keys  20 wpm (max 30)")
}

func TestPlainTerminal(t *testing.T) {
	var out bytes.Buffer
	term := NewPlainTerminal(&out)

	require.NoError(t, term.Draw(func(w io.Writer) { io.WriteString(w, "frame one") }))
	assert.True(t, strings.HasPrefix(out.String(), clearScreen))
	assert.Contains(t, out.String(), "frame one")

	require.NoError(t, term.Suspend())
	out.Reset()
	require.NoError(t, term.Draw(func(w io.Writer) { io.WriteString(w, "hidden") }))
	assert.Empty(t, out.String())

	require.NoError(t, term.Resume())
	require.NoError(t, term.Draw(func(w io.Writer) { io.WriteString(w, "back") }))
	assert.Contains(t, out.String(), "back")
}
