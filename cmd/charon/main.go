// Package main is the CLI entry point for charon.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/charon-kb/charon/internal/config"
	"github.com/charon-kb/charon/internal/infra"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "charon",
	Short: "Keyboard remapping daemon with a terminal client",
	Long: `charon reads your physical keyboards, remaps keys and replays them to
a host through a USB HID gadget. Press the mode toggle shortcut to send keys
to the charon client instead of the host.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var (
	configPath string
	debug      bool
	jsonOutput bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default depends on execution mode)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the config for the current execution mode and fills in
// the mode's default paths.
func loadConfig(paths *infra.Paths) (config.CharonConfig, error) {
	path := configPath
	if path == "" {
		path = paths.ConfigPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.CharonConfig{}, err
	}
	cfg.ResolvePaths(paths.RuntimeDir, paths.StateDir)
	return cfg, nil
}

func createLogger(logFile, level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0700); err == nil {
			cfg.OutputPaths = []string{logFile}
			cfg.ErrorOutputPaths = []string{logFile}
		}
	}
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		// Fallback to stdout if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("charon %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
