package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/yangwenmai/letterpress/internal/ingest"
	"github.com/yangwenmai/letterpress/internal/model"
	"github.com/yangwenmai/letterpress/internal/packager"
)

// visualExcerptRunes is how much of the polished draft the visuals stage sees.
const visualExcerptRunes = 500

// Stage names, in execution order.
const (
	StageGather   = "gather"
	StageMetrics  = "metrics"
	StageResearch = "research"
	StageOutlines = "outlines"
	StageParse    = "parse_outline"
	StageDraft    = "draft"
	StageEdit     = "edit"
	StageVisuals  = "visuals"
	StageForecast = "forecast"
	StagePackage  = "package"
	StageAnalysis = "analysis"
)

// ContentGatherer collects optional background material for research.
type ContentGatherer interface {
	Gather(ctx context.Context, query string) (*ingest.Bundle, error)
}

// ArtifactRecorder records persisted artifacts in the run ledger.
type ArtifactRecorder interface {
	UpsertArtifact(ctx context.Context, a model.Artifact) error
}

// RunRecorder tracks run status transitions.
type RunRecorder interface {
	UpdateRunStatus(ctx context.Context, id, status string, errorInfo *string) error
	SetRunArchive(ctx context.Context, id, path string) error
}

// RunLocker serializes runs that share an artifact root.
type RunLocker interface {
	Lock(ctx context.Context, key string) (unlock func(context.Context) error, err error)
}

// Publisher uploads a finished archive and returns where it landed.
type Publisher interface {
	Publish(ctx context.Context, runID, archivePath string) (string, error)
}

// Layout decides where a run writes. Isolated runs get their own roots under
// OutputDir/runs/<id>; shared runs write straight into OutputDir and PackageDir.
type Layout struct {
	OutputDir  string
	PackageDir string
	Isolate    bool
}

// Dirs returns the roots for runID.
func (l Layout) Dirs(runID string) RunDirs {
	if !l.Isolate {
		return RunDirs{Artifacts: l.OutputDir, Packages: l.PackageDir}
	}
	root := filepath.Join(l.OutputDir, "runs", runID)
	return RunDirs{Artifacts: root, Packages: filepath.Join(root, "package")}
}

// Result is a successful run's outcome.
type Result struct {
	RunID        string            `json:"run_id"`
	ArchivePath  string            `json:"package_zip_path"`
	PublishedURI string            `json:"published_uri,omitempty"`
	SubjectLines []string          `json:"subject_lines"`
	Artifacts    map[string]string `json:"artifacts"`
}

// Orchestrator sequences the stages of one issue run.
type Orchestrator struct {
	gen       *Generator
	layout    Layout
	gatherer  ContentGatherer
	ledger    ArtifactRecorder
	runs      RunRecorder
	locker    RunLocker
	publisher Publisher
	packOpts  []packager.Option
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithGatherer enables the best-effort content step.
func WithGatherer(g ContentGatherer) OrchestratorOption {
	return func(o *Orchestrator) { o.gatherer = g }
}

// WithLedger records every artifact.
func WithLedger(l ArtifactRecorder) OrchestratorOption {
	return func(o *Orchestrator) { o.ledger = l }
}

// WithRunRecorder lets Execute record status transitions.
func WithRunRecorder(r RunRecorder) OrchestratorOption {
	return func(o *Orchestrator) { o.runs = r }
}

// WithLocker serializes runs over the same artifact root.
func WithLocker(l RunLocker) OrchestratorOption {
	return func(o *Orchestrator) { o.locker = l }
}

// WithPublisher uploads archives after packaging.
func WithPublisher(p Publisher) OrchestratorOption {
	return func(o *Orchestrator) { o.publisher = p }
}

// WithPackagerOptions passes options to every packager the orchestrator builds.
func WithPackagerOptions(opts ...packager.Option) OrchestratorOption {
	return func(o *Orchestrator) { o.packOpts = append(o.packOpts, opts...) }
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(gen *Generator, layout Layout, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{gen: gen, layout: layout}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Generator returns the generator used for every stage.
func (o *Orchestrator) Generator() *Generator {
	return o.gen
}

// Run executes every stage for req. Files written before a failure stay on
// disk; the failing stage's error is returned wrapped in a *StepError.
func (o *Orchestrator) Run(ctx context.Context, runID string, req model.RunRequest) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if runID == "" {
		runID = uuid.New().String()
	}

	sc := &StepContext{
		RunID:     runID,
		Request:   req,
		Dirs:      o.layout.Dirs(runID),
		Artifacts: map[string]string{},
	}

	if o.locker != nil {
		unlock, err := o.locker.Lock(ctx, lockKey(sc.Dirs.Artifacts))
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				slog.Warn("release run lock", "run_id", runID, "error", err)
			}
		}()
	}

	start := time.Now()
	if err := o.pipeline().Run(ctx, sc); err != nil {
		return nil, err
	}
	slog.Info("run complete", "run_id", runID, "archive", sc.ArchivePath, "duration", time.Since(start).String())

	return &Result{
		RunID:        runID,
		ArchivePath:  sc.ArchivePath,
		PublishedURI: sc.PublishedURI,
		SubjectLines: sc.Outline.SubjectLines,
		Artifacts:    sc.Artifacts,
	}, nil
}

// Execute runs a recorded run and records its final status.
func (o *Orchestrator) Execute(ctx context.Context, run model.Run) (*Result, error) {
	res, err := o.Run(ctx, run.ID, run.Request)
	if o.runs == nil {
		return res, err
	}
	// Status writes must land even when ctx was cancelled mid-run.
	bg := context.WithoutCancel(ctx)
	if err != nil {
		info := NewErrorInfo(err, time.Now()).ToJSON()
		if sErr := o.runs.UpdateRunStatus(bg, run.ID, model.StatusFailed, &info); sErr != nil {
			slog.Error("failed to set FAILED status", "run_id", run.ID, "error", sErr)
		}
		return nil, err
	}
	if sErr := o.runs.SetRunArchive(bg, run.ID, res.ArchivePath); sErr != nil {
		slog.Error("failed to record archive path", "run_id", run.ID, "error", sErr)
	}
	if sErr := o.runs.UpdateRunStatus(bg, run.ID, model.StatusSucceeded, nil); sErr != nil {
		slog.Error("failed to set SUCCEEDED status", "run_id", run.ID, "error", sErr)
	}
	return res, nil
}

// lockKey identifies an artifact root across processes.
func lockKey(dir string) string {
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return filepath.Clean(dir)
}

// stepNamer is implemented by errors that carry a pipeline step name.
type stepNamer interface {
	StepName() string
}

// NewErrorInfo describes err for the run ledger.
func NewErrorInfo(err error, at time.Time) model.ErrorInfo {
	step := "request"
	var sn stepNamer
	if errors.As(err, &sn) {
		step = sn.StepName()
	}
	return model.ErrorInfo{
		FailedStep: step,
		Message:    err.Error(),
		Kind:       model.KindOf(err),
		FailedAt:   at.UTC().Format(time.RFC3339),
	}
}

func (o *Orchestrator) pipeline() *Pipeline {
	return NewPipeline(
		NewStep(StageGather, o.gather),
		NewStep(StageMetrics, o.loadMetrics),
		NewStep(StageResearch, o.research),
		NewStep(StageOutlines, o.outlines),
		NewStep(StageParse, o.parseOutline),
		NewStep(StageDraft, o.draft),
		NewStep(StageEdit, o.edit),
		NewStep(StageVisuals, o.visuals),
		NewStep(StageForecast, o.forecast),
		NewStep(StagePackage, o.pack),
		NewStep(StageAnalysis, o.analyze),
	)
}

// Stages returns the stage names in execution order.
func (o *Orchestrator) Stages() []string {
	return o.pipeline().Steps()
}

// persist writes content to the artifact's stage-named file and records it.
func (o *Orchestrator) persist(ctx context.Context, sc *StepContext, kind, content string) error {
	name, ok := model.ArtifactFiles[kind]
	if !ok {
		return model.E(model.KindInternal, "persist", "no file name for artifact %q", kind)
	}
	if err := os.MkdirAll(sc.Dirs.Artifacts, 0o755); err != nil {
		return model.Wrap(model.KindInternal, "persist "+kind, err)
	}
	path := filepath.Join(sc.Dirs.Artifacts, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return model.Wrap(model.KindInternal, "persist "+kind, err)
	}
	sc.Artifacts[kind] = path
	slog.Debug("artifact written", "run_id", sc.RunID, "artifact", kind, "path", path)
	return o.record(ctx, sc, kind, path, content)
}

func (o *Orchestrator) record(ctx context.Context, sc *StepContext, kind, path, payload string) error {
	if o.ledger == nil {
		return nil
	}
	a := model.NewArtifact(uuid.New().String(), sc.RunID, kind, path, payload)
	if err := o.ledger.UpsertArtifact(ctx, a); err != nil {
		return model.Wrap(model.KindInternal, "record "+kind, fmt.Errorf("ledger: %w", err))
	}
	return nil
}
