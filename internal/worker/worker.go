package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/yangwenmai/letterpress/internal/engine"
	"github.com/yangwenmai/letterpress/internal/model"
)

// Executor runs a claimed run and records its outcome.
type Executor interface {
	Execute(ctx context.Context, run model.Run) (*engine.Result, error)
}

// RunClaimer hands out QUEUED runs one at a time.
type RunClaimer interface {
	ClaimNextQueued(ctx context.Context) (*model.Run, error)
}

// Worker polls for QUEUED runs and executes them.
type Worker struct {
	claimer  RunClaimer
	executor Executor
	interval time.Duration
}

// New creates a new Worker.
func New(claimer RunClaimer, executor Executor, interval time.Duration) *Worker {
	return &Worker{claimer: claimer, executor: executor, interval: interval}
}

// Start begins the polling loop. It blocks until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	slog.Info("worker started", "interval", w.interval.String())
	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped")
			return
		default:
		}

		if !w.runOnce(ctx) {
			w.sleep(ctx)
		}
	}
}

// runOnce claims and executes at most one run. It reports whether a run was claimed.
func (w *Worker) runOnce(ctx context.Context) bool {
	run, err := w.claimer.ClaimNextQueued(ctx)
	if err != nil {
		slog.Error("worker claim error", "error", err)
		return false
	}
	if run == nil {
		return false
	}

	slog.Info("executing run", "run_id", run.ID, "title", run.Request.Title)
	res, err := w.executor.Execute(ctx, *run)
	if err != nil {
		slog.Error("run failed", "run_id", run.ID, "kind", model.KindOf(err), "error", err)
		return true
	}
	slog.Info("run succeeded", "run_id", run.ID, "archive", res.ArchivePath)
	return true
}

func (w *Worker) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(w.interval):
	}
}
