package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/yangwenmai/letterpress/internal/model"
	"github.com/yangwenmai/letterpress/internal/outline"
)

// Step is one stage of a run.
type Step interface {
	Name() string
	Run(ctx context.Context, sc *StepContext) error
}

type stepFunc struct {
	name string
	fn   func(ctx context.Context, sc *StepContext) error
}

func (s stepFunc) Name() string                                   { return s.name }
func (s stepFunc) Run(ctx context.Context, sc *StepContext) error { return s.fn(ctx, sc) }

// NewStep adapts a function to Step.
func NewStep(name string, fn func(ctx context.Context, sc *StepContext) error) Step {
	return stepFunc{name: name, fn: fn}
}

// RunDirs are the on-disk roots of one run.
type RunDirs struct {
	Artifacts string
	Packages  string
}

// StepContext carries a run's inputs and every stage output forward.
type StepContext struct {
	RunID   string
	Request model.RunRequest
	Dirs    RunDirs

	Archive   []string
	Headlines []string

	Records      []model.MetricsRecord
	Research     string
	Outlines     string
	Outline      outline.Result
	Draft        string
	Revision     Revision
	Visuals      string
	Forecast     string
	ArchivePath  string
	PublishedURI string
	Analysis     string

	// Artifacts maps artifact type to the file it was written to.
	Artifacts map[string]string
}

// Pipeline runs steps strictly in order and stops at the first failure.
type Pipeline struct {
	steps []Step
}

// NewPipeline creates a pipeline over steps.
func NewPipeline(steps ...Step) *Pipeline {
	return &Pipeline{steps: steps}
}

// Steps returns the stage names in execution order.
func (p *Pipeline) Steps() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.Name()
	}
	return names
}

// Run executes every step. On failure it returns a *StepError naming the
// failed step; the step's own error stays reachable through Unwrap.
func (p *Pipeline) Run(ctx context.Context, sc *StepContext) error {
	for _, s := range p.steps {
		start := time.Now()
		slog.Info("stage started", "run_id", sc.RunID, "stage", s.Name())
		if err := s.Run(ctx, sc); err != nil {
			slog.Error("stage failed", "run_id", sc.RunID, "stage", s.Name(), "error", err)
			return &StepError{Step: s.Name(), Err: err}
		}
		slog.Info("stage finished", "run_id", sc.RunID, "stage", s.Name(), "duration", time.Since(start).String())
	}
	return nil
}

// StepError wraps an error with the step name that failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return e.Step + ": " + e.Err.Error()
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// StepName reports the failed step.
func (e *StepError) StepName() string {
	return e.Step
}
