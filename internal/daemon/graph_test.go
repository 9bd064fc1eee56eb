package daemon

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/charon-kb/charon/internal/actors"
	"github.com/charon-kb/charon/internal/config"
	"github.com/charon-kb/charon/internal/domain"
	"github.com/charon-kb/charon/internal/infra"
	"github.com/charon-kb/charon/internal/ipc"
)

// gadget records the HID reports written by the daemon.
type gadget struct {
	mu      sync.Mutex
	reports [][]byte
}

func (g *gadget) Write(p []byte) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reports = append(g.reports, append([]byte(nil), p...))
	return len(p), nil
}

func (g *gadget) Close() error { return nil }

func (g *gadget) Reports() [][]byte {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([][]byte(nil), g.reports...)
}

func keyEvent(code uint16, down bool) []byte {
	buf := make([]byte, 24)
	binary.LittleEndian.PutUint16(buf[16:18], 1)
	binary.LittleEndian.PutUint16(buf[18:20], code)
	if down {
		binary.LittleEndian.PutUint32(buf[20:24], 1)
	}
	return buf
}

func reportFor(mods domain.Modifiers, keys ...domain.HidKeyCode) []byte {
	r := domain.NewHidReport(mods, keys...)
	return r.Report[:]
}

var _ = Describe("Default actor graph", func() {
	var (
		d        *Daemon
		cfg      config.CharonConfig
		keyboard *io.PipeWriter
		hid      *gadget
		deps     Deps
		runErr   chan error
		tmpDir   string
	)

	tap := func(code uint16) {
		_, err := keyboard.Write(keyEvent(code, true))
		Expect(err).NotTo(HaveOccurred())
		_, err = keyboard.Write(keyEvent(code, false))
		Expect(err).NotTo(HaveOccurred())
	}

	hasReport := func(want []byte) func() bool {
		return func() bool {
			for _, r := range hid.Reports() {
				if bytes.Equal(r, want) {
					return true
				}
			}
			return false
		}
	}

	start := func() {
		d = New(cfg, zap.NewNop())
		Expect(d.AddDefaultGraph(deps)).To(Succeed())
		runErr = make(chan error, 1)
		go func() { runErr <- d.Run(context.Background()) }()
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "charon")
		Expect(err).NotTo(HaveOccurred())

		cfg = config.Default()
		cfg.Keyboards = map[string]string{"main": "/dev/input/event3"}
		cfg.SocketPath = filepath.Join(tmpDir, "c.sock")
		cfg.IdleTimeout = 0
		cfg.TypingDelay = 0
		cfg.StatsInterval = 50 * time.Millisecond
		cfg.ShutdownTimeout = time.Second

		var reader *io.PipeReader
		reader, keyboard = io.Pipe()
		hid = &gadget{}

		deps = DefaultDeps(nil, infra.NewProcessManager(), infra.NewFileSystem())
		deps.Scanner = actors.KeyScanner{Open: func(string) (io.ReadCloser, error) { return reader, nil }}
		deps.Writer = actors.HidWriter{Open: func(string) (io.WriteCloser, error) { return hid, nil }}
	})

	AfterEach(func() {
		Expect(d.Stop(context.Background())).To(Succeed())
		Eventually(runErr, 2*time.Second).Should(Receive(BeNil()))
		Expect(d.Shutdown(context.Background())).To(Succeed())
		keyboard.Close()
		os.RemoveAll(tmpDir)
	})

	Context("in pass-through mode", func() {
		It("turns key presses into HID reports", func() {
			start()
			tap(30)

			Eventually(hasReport(reportFor(0, domain.KeyA)), 2*time.Second).Should(BeTrue())
			Eventually(func() []byte {
				reports := hid.Reports()
				if len(reports) == 0 {
					return nil
				}
				return reports[len(reports)-1]
			}, 2*time.Second).Should(Equal(make([]byte, 8)))
		})

		It("applies the configured remap", func() {
			cfg.KeyRemap = map[string]string{"capslock": "escape"}
			start()
			tap(58)

			Eventually(hasReport(reportFor(0, domain.KeyEscape)), 2*time.Second).Should(BeTrue())
			Expect(hasReport(reportFor(0, domain.KeyCapsLock))()).To(BeFalse())
		})

		It("types text sent by a client", func() {
			start()
			conn, err := ipc.Dial(context.Background(), cfg.SocketPath)
			Expect(err).NotTo(HaveOccurred())
			defer conn.Close()

			Expect(conn.WriteEvent(domain.NewEvent("client", domain.SendText{Text: "ok"}))).To(Succeed())

			Eventually(hasReport(reportFor(0, domain.KeyA+'o'-'a')), 2*time.Second).Should(BeTrue())
			Eventually(hasReport(reportFor(0, domain.KeyA+'k'-'a')), 2*time.Second).Should(BeTrue())
		})
	})

	Context("when the mode toggle shortcut is pressed", func() {
		It("switches to in-app mode and routes keys to the client", func() {
			start()
			conn, err := ipc.Dial(context.Background(), cfg.SocketPath)
			Expect(err).NotTo(HaveOccurred())
			defer conn.Close()

			greeting, err := conn.ReadEvent()
			Expect(err).NotTo(HaveOccurred())
			Expect(greeting.Payload).To(Equal(domain.ModeChange{Mode: domain.ModePassThrough}))

			// ctrl+alt+space
			for _, code := range []uint16{29, 56, 57} {
				_, err := keyboard.Write(keyEvent(code, true))
				Expect(err).NotTo(HaveOccurred())
			}
			for _, code := range []uint16{57, 56, 29} {
				_, err := keyboard.Write(keyEvent(code, false))
				Expect(err).NotTo(HaveOccurred())
			}
			Eventually(d.Mode().Get, 2*time.Second).Should(Equal(domain.ModeInApp))

			tap(30)

			Eventually(func() domain.DomainEvent {
				ev, err := conn.ReadEvent()
				if err != nil {
					return nil
				}
				return ev.Payload
			}, 2*time.Second).Should(Equal(domain.KeyPress{Key: domain.KeyA}))
			Consistently(hasReport(reportFor(0, domain.KeyA)), 200*time.Millisecond).Should(BeFalse())
		})
	})

	Context("when the HID gadget is missing", func() {
		It("runs every other actor", func() {
			deps.Writer = actors.HidWriter{Open: func(string) (io.WriteCloser, error) {
				return nil, errors.New("no such device")
			}}
			start()

			names := make([]string, 0)
			for _, task := range d.Tasks() {
				names = append(names, task.Name())
			}
			Expect(names).NotTo(ContainElement("HidWriter"))
			Expect(names).To(ContainElements("KeyScanner-main", KeyPipelineName, "Typist", "TypingStats", "ClientBridge"))

			conn, err := ipc.Dial(context.Background(), cfg.SocketPath)
			Expect(err).NotTo(HaveOccurred())
			defer conn.Close()

			Eventually(func() bool {
				ev, err := conn.ReadEvent()
				if err != nil {
					return false
				}
				_, ok := ev.Payload.(domain.CurrentStats)
				return ok
			}, 2*time.Second).Should(BeTrue())
		})
	})
})
