package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/yangwenmai/letterpress/internal/metrics"
	"github.com/yangwenmai/letterpress/internal/model"
)

const (
	// PainPointsHeading marks the section the research step guarantees.
	PainPointsHeading = "## Pain Points"
	// RevisionSummaryHeading splits the edit step's response.
	RevisionSummaryHeading = "## Revision Summary"

	painPointCount        = 3
	researchIssueCount    = 3
	historyIssueCount     = 5
	minForecastHistory    = 3
	maxVisualExcerpt      = 1500
	stubPredictedOpenRate = "~15%"
)

// Generator runs the generative variants. Each variant validates its text
// inputs, then makes exactly one model call.
type Generator struct {
	client ModelClient
	models map[Task]string
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithTaskModels selects a model per task. Tasks without an entry use the
// client's default model.
func WithTaskModels(models map[Task]string) GeneratorOption {
	return func(g *Generator) {
		for k, v := range models {
			g.models[k] = v
		}
	}
}

// NewGenerator creates a Generator over client.
func NewGenerator(client ModelClient, opts ...GeneratorOption) *Generator {
	g := &Generator{client: client, models: map[Task]string{}}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// TaskModels converts a task-name keyed map into Task keys.
func TaskModels(m map[string]string) map[Task]string {
	out := make(map[Task]string, len(m))
	for k, v := range m {
		out[Task(k)] = v
	}
	return out
}

func (g *Generator) complete(ctx context.Context, p *promptTemplate, bindings map[string]any) (string, error) {
	prompt, err := p.render(bindings)
	if err != nil {
		return "", model.Wrap(model.KindInternal, string(p.task), err)
	}
	start := time.Now()
	out, err := g.client.Complete(ctx, CompletionRequest{
		Task:   p.task,
		Model:  g.models[p.task],
		System: p.system,
		Prompt: prompt,
	})
	if err != nil {
		return "", model.Wrap(model.KindUpstream, string(p.task), err)
	}
	slog.Debug("completion finished", "task", p.task, "duration", time.Since(start).String(), "chars", len(out))
	return out, nil
}

// requireText fails with InvalidInput when any named value is blank.
func requireText(task Task, pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			return model.E(model.KindInvalidInput, string(task), "%s must not be empty", pairs[i])
		}
	}
	return nil
}

// ResearchInput feeds the research variant.
type ResearchInput struct {
	Records []model.MetricsRecord
	Query   string
	// Archive and Headlines are optional background lines.
	Archive   []string
	Headlines []string
}

// Research writes the research brief. A response without a pain-points
// section gets one computed from the records prepended.
func (g *Generator) Research(ctx context.Context, in ResearchInput) (string, error) {
	if err := requireText(TaskResearch, "query", in.Query); err != nil {
		return "", err
	}
	out, err := g.complete(ctx, researchPrompt, map[string]any{
		"query":     strings.TrimSpace(in.Query),
		"issues":    issueBindings(metrics.Recent(in.Records, researchIssueCount)),
		"archive":   nonNil(in.Archive),
		"headlines": nonNil(in.Headlines),
	})
	if err != nil {
		return "", err
	}
	if !strings.Contains(out, PainPointsHeading) {
		out = PainPointsSection(in.Records, painPointCount) + "\n\n" + out
	}
	return out, nil
}

// PainPoints returns one bullet per issue for the topN issues with the fewest
// replies per thousand subscribers, lowest first. Ties keep input order.
func PainPoints(records []model.MetricsRecord, topN int) []string {
	ranked := append([]model.MetricsRecord(nil), records...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].RepliesPerThousand() < ranked[j].RepliesPerThousand()
	})
	if topN < len(ranked) {
		ranked = ranked[:max(topN, 0)]
	}
	bullets := make([]string, 0, len(ranked))
	for _, r := range ranked {
		ratio := math.Round(r.RepliesPerThousand()*100) / 100
		bullets = append(bullets, fmt.Sprintf("- **%s**: only %s replies per 1k subscribers (ReplyCount=%d, Subscribers=%d)",
			r.IssueDate.Format("2006-01-02"), formatNumber(ratio), r.ReplyCount, r.Subscribers))
	}
	return bullets
}

// PainPointsSection renders PainPoints under its heading.
func PainPointsSection(records []model.MetricsRecord, topN int) string {
	return PainPointsHeading + "\n" + strings.Join(PainPoints(records, topN), "\n")
}

// Outlines proposes three outline options for the issue.
func (g *Generator) Outlines(ctx context.Context, research, brief string) (string, error) {
	if err := requireText(TaskOutlines, "research brief", research, "issue brief", brief); err != nil {
		return "", err
	}
	return g.complete(ctx, outlinesPrompt, map[string]any{"research": research, "brief": brief})
}

// Draft expands one outline into prose.
func (g *Generator) Draft(ctx context.Context, outline string) (string, error) {
	if err := requireText(TaskDraft, "outline", outline); err != nil {
		return "", err
	}
	return g.complete(ctx, draftPrompt, map[string]any{"outline": outline})
}

// Revision is the edit variant's split response.
type Revision struct {
	Polished string `json:"polished_markdown"`
	Summary  string `json:"revision_summary"`
}

// Edit polishes a draft and returns the body and the revision summary.
func (g *Generator) Edit(ctx context.Context, draft string) (Revision, error) {
	if err := requireText(TaskEdit, "draft", draft); err != nil {
		return Revision{}, err
	}
	out, err := g.complete(ctx, editPrompt, map[string]any{"draft": draft})
	if err != nil {
		return Revision{}, err
	}
	return SplitRevision(out), nil
}

var revisionMarker = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(RevisionSummaryHeading))

// SplitRevision splits at the first case-insensitive revision-summary
// heading; the summary keeps the heading as written. Without one, the whole
// text is the polished body.
func SplitRevision(text string) Revision {
	loc := revisionMarker.FindStringIndex(text)
	if loc == nil {
		return Revision{Polished: text}
	}
	return Revision{
		Polished: strings.TrimRightFunc(text[:loc[0]], unicode.IsSpace),
		Summary:  strings.TrimSpace(text[loc[0]:]),
	}
}

// Visuals suggests cover-art prompts. Excerpts longer than 1500 runes are cut
// and marked with an ellipsis.
func (g *Generator) Visuals(ctx context.Context, excerpt string) (string, error) {
	if err := requireText(TaskVisuals, "draft excerpt", excerpt); err != nil {
		return "", err
	}
	excerpt = strings.TrimSpace(excerpt)
	if utf8.RuneCountInString(excerpt) > maxVisualExcerpt {
		excerpt = string([]rune(excerpt)[:maxVisualExcerpt]) + "…"
	}
	return g.complete(ctx, visualsPrompt, map[string]any{"excerpt": excerpt})
}

// Forecast predicts subject-line performance from the five most recent
// issues. With fewer than three issues it returns StubForecast without
// calling the model.
func (g *Generator) Forecast(ctx context.Context, records []model.MetricsRecord, subjects []string) (string, error) {
	history := metrics.Recent(records, historyIssueCount)
	if len(history) < minForecastHistory {
		slog.Info("sparse history, using stub forecast", "issues", len(history))
		return StubForecast(subjects), nil
	}
	return g.complete(ctx, forecastPrompt, map[string]any{
		"history":  issueBindings(history),
		"subjects": nonNil(subjects),
	})
}

// StubForecast is the deterministic report used when history is too sparse.
func StubForecast(subjects []string) string {
	var sb strings.Builder
	sb.WriteString("## Stub Forecast\n")
	sb.WriteString("Insufficient historical data (fewer than 3 issues). Using generic benchmark:\n\n")
	sb.WriteString("- Subject Lines to test:\n")
	for _, s := range subjects {
		fmt.Fprintf(&sb, "  - \"%s\": Predicted open rate = %s\n", s, stubPredictedOpenRate)
	}
	sb.WriteString("\n- Recommended send date/time: Next weekday at 09:00 UTC+3\n")
	sb.WriteString("- Suggested segmentation: Top 20% most engaged subscribers as a test group.\n")
	return sb.String()
}

// Analyze compares a forecast with the five most recent actual results.
func (g *Generator) Analyze(ctx context.Context, forecast string, actuals []model.MetricsRecord) (string, error) {
	if err := requireText(TaskAnalysis, "forecast", forecast); err != nil {
		return "", err
	}
	return g.complete(ctx, analysisPrompt, map[string]any{
		"forecast": forecast,
		"actuals":  issueBindings(metrics.Recent(actuals, historyIssueCount)),
	})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
