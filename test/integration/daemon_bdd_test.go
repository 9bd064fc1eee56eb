//go:build integration

package integration

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/charon-kb/charon/internal/actors"
	"github.com/charon-kb/charon/internal/config"
	"github.com/charon-kb/charon/internal/daemon"
	"github.com/charon-kb/charon/internal/domain"
	"github.com/charon-kb/charon/internal/infra"
	"github.com/charon-kb/charon/internal/ipc"
)

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
func (discard) Close() error                { return nil }

var _ = Describe("Charon daemon", func() {
	var (
		tmpDir   string
		paths    *infra.Paths
		cfg      config.CharonConfig
		pm       domain.ProcessManager
		registry domain.DaemonRegistry
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "charon-it-*")
		Expect(err).NotTo(HaveOccurred())

		paths = &infra.Paths{
			Mode:       infra.ExecModeUser,
			RuntimeDir: filepath.Join(tmpDir, "run"),
			StateDir:   filepath.Join(tmpDir, "state"),
		}
		Expect(paths.Ensure()).To(Succeed())

		cfg = config.Default()
		cfg.StatsInterval = 50 * time.Millisecond
		cfg.TypingDelay = 0
		cfg.IdleTimeout = 0
		cfg.ResolvePaths(paths.RuntimeDir, paths.StateDir)

		pm = infra.NewProcessManager()
		registry = infra.NewFileRegistry(paths, pm)
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	Describe("registration", func() {
		It("is visible while running and cleared afterwards", func() {
			record := domain.DaemonRecord{
				PID:        pm.GetCurrentPID(),
				SocketPath: cfg.SocketPath,
				AppVersion: "test",
				StartedAt:  time.Now().Unix(),
			}
			Expect(registry.Register(record)).To(Succeed())

			alive, err := registry.IsAlive()
			Expect(err).NotTo(HaveOccurred())
			Expect(alive).To(BeTrue())

			Expect(registry.Clear()).To(Succeed())
			got, err := registry.Get()
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeNil())
		})
	})

	Describe("typing text from a client", func() {
		Context("with an encrypted stats store", func() {
			It("persists the typed text in today's totals", func() {
				store, err := infra.OpenStatsStore(cfg.StatsDB)
				Expect(err).NotTo(HaveOccurred())

				deps := daemon.DefaultDeps(store, pm, infra.NewFileSystem())
				deps.Scanner = actors.KeyScanner{Open: func(string) (io.ReadCloser, error) {
					r, _ := io.Pipe()
					return r, nil
				}}
				deps.Writer = actors.HidWriter{Open: func(string) (io.WriteCloser, error) { return discard{}, nil }}

				d := daemon.New(cfg, zap.NewNop())
				Expect(d.AddDefaultGraph(deps)).To(Succeed())
				done := make(chan error, 1)
				go func() { done <- d.Run(context.Background()) }()

				conn, err := ipc.Dial(context.Background(), cfg.SocketPath)
				Expect(err).NotTo(HaveOccurred())
				Expect(conn.WriteEvent(domain.NewEvent("client", domain.SendText{Text: "hello"}))).To(Succeed())

				Eventually(func() [2]uint64 {
					ev, err := conn.ReadEvent()
					if err != nil {
						return [2]uint64{}
					}
					if cs, ok := ev.Payload.(domain.CurrentStats); ok {
						return [2]uint64{cs.Stats.TextsSent, cs.Stats.ReportsSent}
					}
					return [2]uint64{}
				}, 3*time.Second).Should(Equal([2]uint64{1, 10}))
				conn.Close()

				Expect(d.Stop(context.Background())).To(Succeed())
				Eventually(done, 2*time.Second).Should(Receive(BeNil()))
				Expect(d.Shutdown(context.Background())).To(Succeed())
				Expect(store.Close()).To(Succeed())

				reopened, err := infra.OpenStatsStore(cfg.StatsDB)
				Expect(err).NotTo(HaveOccurred())
				defer reopened.Close()

				total, err := reopened.Get(time.Now().Format(infra.DayFormat))
				Expect(err).NotTo(HaveOccurred())
				Expect(total.TextsSent).To(Equal(uint64(1)))
				Expect(total.ReportsSent).To(Equal(uint64(10)))
			})
		})
	})
})
