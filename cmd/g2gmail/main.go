package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"g2gmail/internal/config"
	"g2gmail/internal/controller"
	"g2gmail/internal/tui"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "g2gmail",
		Short:        "Read Gmail on a minimal glasses display",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(cmd)
		},
	}
	config.RegisterFlags(rootCmd)

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Start the display simulator and the controller (default)",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runClient(cmd)
			},
		},
		&cobra.Command{
			Use:   "login",
			Short: "Store credentials for the configured source",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runLogin(cmd)
			},
		},
		&cobra.Command{
			Use:   "logout",
			Short: "Delete stored credentials for the configured source",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runLogout(cmd)
			},
		},
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads the configuration and installs the file logger.
func setup(cmd *cobra.Command) (*config.Config, *slog.Logger, func() error, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path, cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	logger, cleanup, err := setupLogger(cfg.Log)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("set up logging: %w", err)
	}
	slog.SetDefault(logger)
	return cfg, logger, cleanup, nil
}

func runClient(cmd *cobra.Command) error {
	cfg, logger, cleanup, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = cleanup() }()
	logger.Info("starting g2gmail", "source", cfg.Source, "width", cfg.Display.Width, "native_list", cfg.Display.NativeList)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = b.close() }()

	dev := tui.NewDevice(tui.Options{
		Width:          cfg.Display.Width,
		Rows:           max(cfg.Display.LinesPerPage, cfg.Display.ListRows),
		NativeList:     cfg.Display.NativeList,
		Logger:         logger.With("component", "device"),
		ProgramOptions: []tea.ProgramOption{tea.WithAltScreen()},
	})
	ctl := controller.New(dev, b.mailbox, b.auth, dev, controller.Options{
		Width:          cfg.Display.Width,
		LinesPerPage:   cfg.Display.LinesPerPage,
		ListRows:       cfg.Display.ListRows,
		NativeList:     cfg.Display.NativeList,
		PageSize:       cfg.Controller.PageSize,
		ScrollCooldown: cfg.Controller.ScrollCooldown,
		RetryDelay:     cfg.Controller.RetryDelay,
		FetchTimeout:   cfg.Controller.FetchTimeout,
		ErrorMaxLen:    cfg.Controller.ErrorMaxLen,
		Logger:         logger.With("component", "controller"),
	})
	unfollow := dev.Follow(ctl.Status())
	defer unfollow()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Quitting the simulator ends the session.
		defer cancel()
		return dev.Run(gctx)
	})
	g.Go(func() error {
		return ctl.Run(gctx)
	})
	err = g.Wait()
	logger.Info("g2gmail stopped", "err", err)
	return err
}

func setupLogger(cfg config.LogConfig) (*slog.Logger, func() error, error) {
	level := new(slog.LevelVar)
	switch cfg.Level {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}
	opts := &slog.HandlerOptions{Level: level}
	cleanup := func() error { return nil }

	if cfg.Dir == "" {
		return slog.New(slog.NewTextHandler(io.Discard, opts)), cleanup, nil
	}
	if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
		return nil, cleanup, err
	}
	logFilePath := filepath.Join(cfg.Dir, fmt.Sprintf("g2gmail-%s.log", time.Now().Format("20060102T150405")))
	file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, cleanup, err
	}
	return slog.New(slog.NewTextHandler(file, opts)), file.Close, nil
}
