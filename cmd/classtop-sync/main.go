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

	"github.com/classtop/classtop-sync/internal/config"
	"github.com/classtop/classtop-sync/internal/logging"
	"github.com/classtop/classtop-sync/internal/store"
	"github.com/classtop/classtop-sync/internal/syncer"
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

	logger := logging.NewLogger(cfg.Environment, cfg.LogLevel)
	logger.Info("classtop-sync starting",
		slog.String("version", Version),
		slog.String("store", cfg.StorePath),
	)

	st, err := store.Open(cfg.StorePath)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := cfg.SeedSettings(st); err != nil {
		return err
	}

	engine := syncer.New(st, nil, logger, syncer.LogEvents{Logger: logger})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Subcommands run one operation and exit.
	if len(os.Args) > 1 {
		return runCommand(ctx, os.Args[1], engine, st, logger)
	}

	// Registration is best-effort at startup: the server may be down,
	// and the loop retries every operation on its own cadence anyway.
	if err := engine.Register(ctx); err != nil {
		logger.Warn("initial registration failed", slog.Any("error", err))
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return engine.RunLoop(gctx)
	})

	return g.Wait()
}

// runCommand dispatches the one-shot subcommands.
func runCommand(ctx context.Context, command string, engine *syncer.Engine, st *store.Store, logger *slog.Logger) error {
	switch command {
	case "register":
		return engine.Register(ctx)

	case "check":
		status := engine.TestConnection(ctx)
		if !status.OK {
			return fmt.Errorf("health check: %s", status.Message)
		}

		logger.Info("server reachable", slog.Any("data", status.Data))

		return nil

	case "sync":
		strategy := syncer.Strategy(st.Setting(syncer.SettingStrategy, string(syncer.DefaultStrategy)))

		result, err := engine.BidirectionalSync(ctx, strategy)
		if err != nil {
			return err
		}

		logger.Info("sync finished",
			slog.Int("courses", result.CoursesUpdated),
			slog.Int("entries", result.EntriesUpdated),
			slog.Int("conflicts", result.ConflictsFound))

		return nil

	case "upload":
		_, err := engine.Upload(ctx)
		return err

	case "download":
		_, err := engine.DownloadAndApply(ctx)
		return err

	case "history":
		records, err := engine.History(20)
		if err != nil {
			return err
		}

		for _, rec := range records {
			fmt.Printf("%s  %-13s  %-8s  %s\n",
				rec.Timestamp.Format("2006-01-02 15:04:05"),
				rec.Direction, rec.Status, rec.Message)
		}

		return nil

	default:
		return fmt.Errorf("unknown command %q (expected register, check, sync, upload, download, or history)", command)
	}
}
