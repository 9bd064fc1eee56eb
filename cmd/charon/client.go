package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/charon-kb/charon/internal/client"
	"github.com/charon-kb/charon/internal/domain"
	"github.com/charon-kb/charon/internal/infra"
	"github.com/charon-kb/charon/internal/ipc"
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Open the terminal client",
	RunE:  runClient,
}

var sendTextCmd = &cobra.Command{
	Use:   "send-text [text...]",
	Short: "Type text on the host through the daemon",
	Long: `Types the given text on the host. With --file the contents of a file
are typed instead; --remove deletes the file afterwards.`,
	RunE: runSendText,
}

var (
	snippet    string
	sendFile   string
	removeFile bool
)

func init() {
	clientCmd.Flags().StringVar(&snippet, "snippet", "", "Text typed by the menu's snippet item")
	sendTextCmd.Flags().StringVar(&sendFile, "file", "", "Type the contents of this file")
	sendTextCmd.Flags().BoolVar(&removeFile, "remove", false, "Delete --file once typed")

	rootCmd.AddCommand(clientCmd)
	rootCmd.AddCommand(sendTextCmd)
}

// dialDaemon connects to the socket of the configured daemon.
func dialDaemon(ctx context.Context) (*ipc.Conn, error) {
	paths := infra.DetectPaths()
	cfg, err := loadConfig(paths)
	if err != nil {
		return nil, err
	}
	conn, err := ipc.Dial(ctx, cfg.SocketPath)
	if errors.Is(err, ipc.ErrDaemonNotRunning) {
		return nil, fmt.Errorf("%w (run 'charon start')", err)
	}
	return conn, err
}

func runClient(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := dialDaemon(ctx)
	if err != nil {
		return err
	}

	paths := infra.DetectPaths()
	logger := createLogger(filepath.Join(paths.StateDir, "client.log"), "info")
	defer func() { _ = logger.Sync() }()

	apps := client.NewAppManager(client.DefaultApps(snippet), client.AppCharonSay, logger)
	c := client.New(conn, apps, client.NewPlainTerminal(os.Stdout), logger)
	return c.Run(ctx)
}

func runSendText(cmd *cobra.Command, args []string) error {
	var payload domain.DomainEvent
	switch {
	case sendFile != "" && len(args) > 0:
		return errors.New("give either text or --file, not both")
	case sendFile != "":
		path := infra.NewFileSystem().ExpandHome(sendFile)
		payload = domain.SendFile{Path: path, Remove: removeFile}
	case len(args) > 0:
		payload = domain.SendText{Text: strings.Join(args, " ")}
	default:
		return errors.New("nothing to send")
	}

	conn, err := dialDaemon(cmd.Context())
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.WriteEvent(domain.NewEvent(client.Source, payload)); err != nil {
		return fmt.Errorf("failed to send: %w", err)
	}
	return nil
}
