package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/charon-kb/charon/internal/daemon"
	"github.com/charon-kb/charon/internal/domain"
	"github.com/charon-kb/charon/internal/infra"
	"github.com/charon-kb/charon/internal/ipc"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the daemon in the foreground",
	RunE:  runDaemon,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the daemon in the background",
	RunE:  runStart,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running daemon",
	RunE:  runStop,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the daemon is running",
	RunE:  runStatus,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show daily typing totals",
	RunE:  runStats,
}

var statsDays int

func init() {
	statsCmd.Flags().IntVar(&statsDays, "days", 7, "Number of days to show")

	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(statsCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	paths := infra.DetectPaths()
	if err := paths.Ensure(); err != nil {
		return fmt.Errorf("failed to create runtime directories: %w", err)
	}
	cfg, err := loadConfig(paths)
	if err != nil {
		return err
	}

	logger := createLogger(cfg.LogFile, cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	pm := infra.NewProcessManager()
	registry := infra.NewFileRegistry(paths, pm)

	// Claim the registry before any actor binds the socket, so a second
	// daemon fails here instead of taking over the first one's socket.
	record := domain.DaemonRecord{
		PID:        pm.GetCurrentPID(),
		SocketPath: cfg.SocketPath,
		AppVersion: Version,
		StartedAt:  time.Now().Unix(),
	}
	if err := registry.Register(record); err != nil {
		logger.Error("failed to register daemon", zap.Error(err))
		return err
	}
	defer func() {
		if err := registry.Clear(); err != nil {
			logger.Warn("failed to clear registry", zap.Error(err))
		}
	}()

	var stats domain.StatsStore
	if cfg.StatsDB != "" {
		store, err := infra.OpenStatsStore(cfg.StatsDB)
		if err != nil {
			logger.Warn("stats persistence disabled", zap.Error(err))
		} else {
			defer store.Close()
			stats = store
		}
	}

	d := daemon.New(cfg, logger)
	if err := d.AddDefaultGraph(daemon.DefaultDeps(stats, pm, infra.NewFileSystem())); err != nil {
		_ = d.Shutdown(context.Background())
		return err
	}

	// Set up graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("charon daemon started",
		zap.Int("pid", record.PID),
		zap.String("socket", cfg.SocketPath),
		zap.String("version", Version))

	runErr := d.Run(ctx)
	if err := d.Shutdown(context.Background()); err != nil {
		logger.Warn("unclean shutdown", zap.Error(err))
	}
	return runErr
}

func runStart(cmd *cobra.Command, args []string) error {
	paths := infra.DetectPaths()
	registry := infra.NewFileRegistry(paths, infra.NewProcessManager())

	if alive, _ := registry.IsAlive(); alive {
		fmt.Println("charon is already running")
		return nil
	}

	pid, err := daemon.StartDetached(configPath, debug)
	if err != nil {
		return err
	}

	// Wait a moment for the daemon to register
	for i := 0; i < 20; i++ {
		if alive, _ := registry.IsAlive(); alive {
			fmt.Printf("charon started (pid %d)\n", pid)
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	fmt.Printf("charon spawned (pid %d) but has not registered yet; see the log file\n", pid)
	return nil
}

func runStop(cmd *cobra.Command, args []string) error {
	paths := infra.DetectPaths()
	pm := infra.NewProcessManager()
	registry := infra.NewFileRegistry(paths, pm)

	record, err := registry.Get()
	if err != nil {
		return err
	}
	if record == nil || !pm.IsRunning(record.PID) {
		fmt.Println("charon is not running")
		return registry.Clear()
	}

	// Ask politely over the socket first.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if conn, err := ipc.Dial(ctx, record.SocketPath); err == nil {
		err = conn.WriteEvent(domain.NewEvent("cli", domain.Exit{}))
		conn.Close()
		if err == nil && waitExit(pm, record.PID, 5*time.Second) {
			fmt.Println("charon stopped")
			return nil
		}
	}

	if err := pm.Terminate(record.PID); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}
	if !waitExit(pm, record.PID, 5*time.Second) {
		return fmt.Errorf("daemon (pid %d) did not exit", record.PID)
	}
	fmt.Println("charon stopped")
	return nil
}

func waitExit(pm domain.ProcessManager, pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !pm.IsRunning(pid) {
			return true
		}
		time.Sleep(100 * time.Millisecond)
	}
	return false
}

func runStatus(cmd *cobra.Command, args []string) error {
	paths := infra.DetectPaths()
	pm := infra.NewProcessManager()
	registry := infra.NewFileRegistry(paths, pm)

	fmt.Println("\n=== charon Status ===")
	fmt.Printf("Execution mode: %s\n", paths.Mode)

	record, err := registry.Get()
	if err != nil || record == nil || !pm.IsRunning(record.PID) {
		fmt.Println("Status: NOT RUNNING")
		fmt.Println("\nRun 'charon start' to start the daemon.")
		return nil
	}

	fmt.Println("Status: RUNNING")
	fmt.Printf("Version: %s\n", record.AppVersion)
	fmt.Printf("Socket: %s\n", record.SocketPath)
	if record.StartedAt > 0 {
		fmt.Printf("Uptime: %s\n", time.Since(time.Unix(record.StartedAt, 0)).Round(time.Second))
	}
	if usage, err := pm.Usage(record.PID); err == nil {
		fmt.Printf("Memory: %.1f MiB\n", float64(usage.RSSBytes)/(1<<20))
		fmt.Printf("CPU: %.1f%%\n", usage.CPUPercent)
	}
	if !ipc.IsSocketListening(record.SocketPath) {
		fmt.Println("Client socket: not listening")
	}
	fmt.Println("=====================")
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	paths := infra.DetectPaths()
	cfg, err := loadConfig(paths)
	if err != nil {
		return err
	}
	if cfg.StatsDB == "" {
		return errors.New("stats persistence is disabled")
	}
	if _, err := os.Stat(cfg.StatsDB); err != nil {
		fmt.Println("No stats recorded yet.")
		return nil
	}

	store, err := infra.OpenStatsStore(cfg.StatsDB)
	if err != nil {
		return err
	}
	defer store.Close()

	totals, err := store.Recent(statsDays)
	if err != nil {
		return err
	}
	if len(totals) == 0 {
		fmt.Println("No stats recorded yet.")
		return nil
	}

	fmt.Printf("%-10s  %10s  %8s  %7s  %7s\n", "day", "keys", "reports", "texts", "max wpm")
	for _, t := range totals {
		fmt.Printf("%-10s  %10d  %8d  %7d  %7d\n", t.Day, t.KeyPresses, t.ReportsSent, t.TextsSent, t.MaxWpm)
	}
	return nil
}
