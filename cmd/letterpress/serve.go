package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/yangwenmai/letterpress/internal/api"
	"github.com/yangwenmai/letterpress/internal/worker"
)

func newServeCmd() *cobra.Command {
	var isolate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the background worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx, isolate)
			if err != nil {
				return err
			}
			defer a.close()

			// Runs left RUNNING by a previous process go back to the queue.
			if n, err := a.store.ResetStaleRunning(ctx); err != nil {
				slog.Warn("reset stale runs", "error", err)
			} else if n > 0 {
				slog.Info("requeued stale runs", "count", n)
			}

			go worker.New(a.store, a.orch, a.cfg.WorkerInterval).Start(ctx)

			srv := api.New(a.store, a.orch, api.Options{
				CORSOrigins: strings.Split(a.cfg.CORSOrigin, ","),
				PackageDir:  a.cfg.PackageDir,
			})
			httpServer := &http.Server{
				Addr:              ":" + a.cfg.Port,
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			go func() {
				<-ctx.Done()
				slog.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				httpServer.Shutdown(shutdownCtx)
			}()

			slog.Info("letterpress server listening", "addr", "http://localhost:"+a.cfg.Port)
			if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&isolate, "isolate", true, "give each run its own artifact directory")
	return cmd
}
