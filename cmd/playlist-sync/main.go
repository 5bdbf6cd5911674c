package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/legandy/playlistsync/internal/config"
	"github.com/legandy/playlistsync/internal/logging"
	"github.com/legandy/playlistsync/internal/playlist"
	"github.com/legandy/playlistsync/internal/schedule"
	"github.com/legandy/playlistsync/internal/state"
	"github.com/legandy/playlistsync/internal/sync"
	"github.com/legandy/playlistsync/internal/watch"
)

var Version = "dev"

func main() {
	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := os.MkdirAll(cfg.LogsDir(), 0o755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}

	logger := logging.New(cfg.Environment, cfg.LogsDir(), cfg.MaxLogFiles)
	logger.Info("playlist-sync starting",
		slog.String("version", Version),
		slog.String("pc", cfg.PCDir),
		slog.String("smartphone", cfg.PhoneDir),
	)

	interval, err := schedule.ParseInterval(cfg.ScheduleInterval)
	if err != nil {
		return err
	}

	history, err := state.Open(cfg.StatePath())
	if err != nil {
		return fmt.Errorf("opening history store: %w", err)
	}
	defer history.Close()

	backups, err := sync.NewBackupStore(cfg.BackupsDir(), cfg.PhoneDir, cfg.MaxBackups, logger)
	if err != nil {
		return fmt.Errorf("creating backup store: %w", err)
	}

	engine, err := sync.New(sync.Options{
		PCDir:         cfg.PCDir,
		PhoneDir:      cfg.PhoneDir,
		ConversionDir: cfg.ConversionDir(),
		ProcessDelay:  cfg.ProcessDelay(),
		BlockDuration: cfg.BlockDuration(),
		Codec:         playlist.Codec{AllowEscapes: cfg.AllowEscapingPaths},
		Backups:       backups,
		History:       history,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("creating sync engine: %w", err)
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Reconcile everything once before live watching begins so both
	// sides and the conversion stage start out mutually consistent.
	if err := engine.RunFullSync(ctx); err != nil {
		return fmt.Errorf("initial reconciliation: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return watch.New(cfg.PCDir, sync.SidePC, engine, logger).Watch(gctx)
	})

	g.Go(func() error {
		return watch.New(cfg.PhoneDir, sync.SidePhone, engine, logger).Watch(gctx)
	})

	if interval > 0 {
		g.Go(func() error {
			return schedule.Run(gctx, engine, interval, logger)
		})
	}

	err = g.Wait()

	logger.Info("playlist-sync stopped")

	return err
}
