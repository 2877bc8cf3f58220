package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/yangwenmai/letterpress/internal/metrics"
	"github.com/yangwenmai/letterpress/internal/model"
	"github.com/yangwenmai/letterpress/internal/outline"
	"github.com/yangwenmai/letterpress/internal/packager"
)

// ---------------------------------------------------------------------------
// Step 0: Gather (best-effort)
// ---------------------------------------------------------------------------

// gather is best-effort: its error is logged and dropped, never returned.
func (o *Orchestrator) gather(ctx context.Context, sc *StepContext) error {
	if o.gatherer == nil {
		return nil
	}
	bundle, err := o.gatherer.Gather(ctx, sc.Request.ResearchQuery)
	if err != nil {
		slog.Warn("content gathering failed, continuing without it", "run_id", sc.RunID, "error", err)
	}
	if bundle == nil {
		return nil
	}
	for _, d := range bundle.Documents {
		sc.Archive = append(sc.Archive, d.Title)
	}
	for _, h := range bundle.Headlines {
		line := h.Title
		if h.Source != "" {
			line += " (" + h.Source + ")"
		}
		sc.Headlines = append(sc.Headlines, line)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Step 1: Metrics
// ---------------------------------------------------------------------------

func (o *Orchestrator) loadMetrics(_ context.Context, sc *StepContext) error {
	records, err := metrics.Load(sc.Request.MetricsCSV)
	if err != nil {
		return err
	}
	sc.Records = records
	return nil
}

// ---------------------------------------------------------------------------
// Step 2: Research
// ---------------------------------------------------------------------------

func (o *Orchestrator) research(ctx context.Context, sc *StepContext) error {
	out, err := o.gen.Research(ctx, ResearchInput{
		Records:   sc.Records,
		Query:     sc.Request.ResearchQuery,
		Archive:   sc.Archive,
		Headlines: sc.Headlines,
	})
	if err != nil {
		return err
	}
	sc.Research = out
	return o.persist(ctx, sc, model.ArtifactResearch, out)
}

// ---------------------------------------------------------------------------
// Step 3: Outlines
// ---------------------------------------------------------------------------

func (o *Orchestrator) outlines(ctx context.Context, sc *StepContext) error {
	out, err := o.gen.Outlines(ctx, sc.Research, sc.Request.IssueBrief)
	if err != nil {
		return err
	}
	sc.Outlines = out
	return o.persist(ctx, sc, model.ArtifactOutlines, out)
}

// ---------------------------------------------------------------------------
// Step 4: Parse outline
// ---------------------------------------------------------------------------

func (o *Orchestrator) parseOutline(ctx context.Context, sc *StepContext) error {
	sc.Outline = outline.Parse(sc.Outlines)
	if len(sc.Outline.SubjectLines) == 0 {
		slog.Warn("no subject line candidates found", "run_id", sc.RunID)
	}
	return o.persist(ctx, sc, model.ArtifactSubjectLines, strings.Join(sc.Outline.SubjectLines, "\n"))
}

// ---------------------------------------------------------------------------
// Step 5: Draft
// ---------------------------------------------------------------------------

func (o *Orchestrator) draft(ctx context.Context, sc *StepContext) error {
	out, err := o.gen.Draft(ctx, sc.Outline.Option1)
	if err != nil {
		return err
	}
	sc.Draft = out
	return o.persist(ctx, sc, model.ArtifactDraft, out)
}

// ---------------------------------------------------------------------------
// Step 6: Edit
// ---------------------------------------------------------------------------

func (o *Orchestrator) edit(ctx context.Context, sc *StepContext) error {
	rev, err := o.gen.Edit(ctx, sc.Draft)
	if err != nil {
		return err
	}
	sc.Revision = rev
	if err := o.persist(ctx, sc, model.ArtifactPolished, rev.Polished); err != nil {
		return err
	}
	return o.persist(ctx, sc, model.ArtifactRevisionSummary, rev.Summary)
}

// ---------------------------------------------------------------------------
// Step 7: Visuals
// ---------------------------------------------------------------------------

func (o *Orchestrator) visuals(ctx context.Context, sc *StepContext) error {
	excerpt := []rune(sc.Revision.Polished)
	if len(excerpt) > visualExcerptRunes {
		excerpt = excerpt[:visualExcerptRunes]
	}
	out, err := o.gen.Visuals(ctx, string(excerpt))
	if err != nil {
		return err
	}
	sc.Visuals = out
	return o.persist(ctx, sc, model.ArtifactVisuals, out)
}

// ---------------------------------------------------------------------------
// Step 8: Forecast
// ---------------------------------------------------------------------------

func (o *Orchestrator) forecast(ctx context.Context, sc *StepContext) error {
	history, err := metrics.Load(sc.Request.MetricsCSV, metrics.ForecastColumns...)
	if err != nil {
		return err
	}
	out, err := o.gen.Forecast(ctx, history, sc.Outline.SubjectLines)
	if err != nil {
		return err
	}
	sc.Forecast = out
	return o.persist(ctx, sc, model.ArtifactForecast, out)
}

// ---------------------------------------------------------------------------
// Step 9: Package
// ---------------------------------------------------------------------------

func (o *Orchestrator) pack(ctx context.Context, sc *StepContext) error {
	req := sc.Request
	zipPath, err := packager.NewOS(sc.Dirs.Packages, o.packOpts...).Build(ctx, packager.Input{
		DraftPath: sc.Artifacts[model.ArtifactPolished],
		CoverPath: req.CoverImage,
		Descriptor: model.PackageDescriptor{
			Title:       req.Title,
			Slug:        req.Slug,
			Tags:        req.Tags,
			PublishDate: req.PublishDate,
		},
	})
	if err != nil {
		return err
	}
	sc.ArchivePath = zipPath
	sc.Artifacts[model.ArtifactPackage] = zipPath

	if o.publisher != nil {
		uri, err := o.publisher.Publish(ctx, sc.RunID, zipPath)
		if err != nil {
			return model.Wrap(model.KindPackaging, "publish", err)
		}
		sc.PublishedURI = uri
		slog.Info("archive published", "run_id", sc.RunID, "uri", uri)
	}

	payload, _ := json.Marshal(map[string]string{"archive": zipPath, "published_uri": sc.PublishedURI})
	return o.record(ctx, sc, model.ArtifactPackage, zipPath, string(payload))
}

// ---------------------------------------------------------------------------
// Step 10: Analysis
// ---------------------------------------------------------------------------

func (o *Orchestrator) analyze(ctx context.Context, sc *StepContext) error {
	actuals, err := metrics.Load(sc.Request.MetricsCSV, metrics.AnalysisColumns...)
	if err != nil {
		return err
	}
	out, err := o.gen.Analyze(ctx, sc.Forecast, actuals)
	if err != nil {
		return err
	}
	sc.Analysis = out
	return o.persist(ctx, sc, model.ArtifactAnalysis, out)
}
