// Command letterpress drafts, packages, and reviews newsletter issues.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yangwenmai/letterpress/internal/config"
	"github.com/yangwenmai/letterpress/internal/engine"
	"github.com/yangwenmai/letterpress/internal/ingest"
	"github.com/yangwenmai/letterpress/internal/logging"
	"github.com/yangwenmai/letterpress/internal/publish"
	"github.com/yangwenmai/letterpress/internal/runlock"
	"github.com/yangwenmai/letterpress/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "letterpress",
		Short:         "Newsletter issue pipeline: research, draft, package, review",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newServeCmd())
	return root
}

// app is everything a command needs, built once from configuration.
type app struct {
	cfg   config.Config
	store *store.Store
	orch  *engine.Orchestrator
	close func()
}

func setup(ctx context.Context, isolate bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	gen, err := engine.NewGeneratorFromConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	db, err := store.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	st, err := store.New(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init store: %w", err)
	}
	closers := []func(){func() { db.Close() }}

	opts := []engine.OrchestratorOption{
		engine.WithLedger(st),
		engine.WithRunRecorder(st),
		engine.WithGatherer(ingest.NewGatherer(cfg.ContentDir, cfg.TrendingFeeds)),
	}

	if cfg.RedisURL != "" {
		locker, err := runlock.NewRedisFromURL(ctx, cfg.RedisURL, runlock.DefaultTTL)
		if err != nil {
			db.Close()
			return nil, err
		}
		closers = append(closers, func() { locker.Close() })
		opts = append(opts, engine.WithLocker(locker))
		slog.Info("using redis run lock")
	} else {
		opts = append(opts, engine.WithLocker(runlock.NewLocal()))
	}

	if cfg.S3Bucket != "" {
		pub, err := publish.NewS3(ctx, cfg.S3Bucket, cfg.S3Prefix, cfg.AWSRegion)
		if err != nil {
			for _, c := range closers {
				c()
			}
			return nil, err
		}
		opts = append(opts, engine.WithPublisher(pub))
		slog.Info("publishing archives to s3", "bucket", cfg.S3Bucket, "prefix", cfg.S3Prefix)
	}

	layout := engine.Layout{OutputDir: cfg.OutputDir, PackageDir: cfg.PackageDir, Isolate: isolate}
	return &app{
		cfg:   cfg,
		store: st,
		orch:  engine.NewOrchestrator(gen, layout, opts...),
		close: func() {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		},
	}, nil
}
