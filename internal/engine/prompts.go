package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/osteele/liquid"

	"github.com/yangwenmai/letterpress/internal/model"
)

var promptEngine = liquid.NewEngine()

// promptTemplate pairs a system instruction with a liquid user template.
type promptTemplate struct {
	task   Task
	system string
	tpl    *liquid.Template
}

func mustPrompt(task Task, system, src string) *promptTemplate {
	tpl, err := promptEngine.ParseString(src)
	if err != nil {
		panic(fmt.Sprintf("prompt %s: %v", task, err))
	}
	return &promptTemplate{task: task, system: system, tpl: tpl}
}

func (p *promptTemplate) render(bindings map[string]any) (string, error) {
	out, err := p.tpl.RenderString(bindings)
	if err != nil {
		return "", fmt.Errorf("render %s prompt: %w", p.task, err)
	}
	return out, nil
}

var researchPrompt = mustPrompt(TaskResearch, "You are an expert research assistant.", `You are preparing the research brief for the next issue of a newsletter.

Research query: {{ query }}

Most recent issues:
{% for issue in issues %}- {{ issue.date }} "{{ issue.subject }}": open rate {{ issue.open_rate }}%, click rate {{ issue.click_rate }}%, {{ issue.replies }} replies from {{ issue.subscribers }} subscribers
{% endfor %}{% if archive.size > 0 %}
Related pieces from our archive:
{% for doc in archive %}- {{ doc }}
{% endfor %}{% endif %}{% if headlines.size > 0 %}
Trending headlines:
{% for h in headlines %}- {{ h }}
{% endfor %}{% endif %}
Write a markdown research brief with these sections:
## Key Trends
## Pain Points
## Opportunities
## Sources
`)

var outlinesPrompt = mustPrompt(TaskOutlines, "You are a newsletter outline expert.", `Research brief:
{{ research }}

Issue brief:
{{ brief }}

Propose three alternative outlines for this issue. Format every option exactly like this:

# Outline Option N
## Sections
- Section title: one-line summary
## Subject Line Candidates
- "A candidate subject line"
`)

var draftPrompt = mustPrompt(TaskDraft, "You are a skilled newsletter writer.", `Expand the outline below into a complete newsletter issue in markdown.
Keep the section order, write in a warm and direct voice, and end with a call to reply.

{{ outline }}
`)

var editPrompt = mustPrompt(TaskEdit, "You are an expert editor.", `Edit the newsletter draft below for clarity, tone, and concision.
Return the full polished draft, then a section headed "## Revision Summary" listing the changes you made.

{{ draft }}
`)

var visualsPrompt = mustPrompt(TaskVisuals, "You are a creative director.", `Suggest three distinct cover image prompts for a newsletter issue that opens with the excerpt below.
Return one prompt per line.

{{ excerpt }}
`)

var forecastPrompt = mustPrompt(TaskForecast, "You are a forecasting expert.", `Historical issues (most recent first):
{% for issue in history %}- {{ issue.date }} "{{ issue.subject }}": open rate {{ issue.open_rate }}%
{% endfor %}
Candidate subject lines:
{% for s in subjects %}- "{{ s }}"
{% endfor %}{% if subjects.size == 0 %}(none supplied; forecast for the issue as a whole)
{% endif %}
For each candidate, predict the open rate and explain briefly. Then recommend a send date/time and a segmentation strategy. Answer in markdown.
`)

var analysisPrompt = mustPrompt(TaskAnalysis, "You are a data-driven performance analyst.", `Forecast:
{{ forecast }}

Actual results:
{% for issue in actuals %}- {{ issue.date }}: OpenRate={{ issue.open_rate }}%, ClickRate={{ issue.click_rate }}%
{% endfor %}
Compare the forecast with the actual results. Explain the gaps and list concrete lessons for the next issue in markdown.
`)

// issueBindings flattens records into template-friendly maps.
func issueBindings(records []model.MetricsRecord) []map[string]any {
	out := make([]map[string]any, 0, len(records))
	for _, r := range records {
		out = append(out, map[string]any{
			"date":        r.IssueDate.Format("2006-01-02"),
			"subject":     r.SubjectLine,
			"open_rate":   formatNumber(r.OpenRate),
			"click_rate":  formatNumber(r.ClickRate),
			"replies":     strconv.Itoa(r.ReplyCount),
			"subscribers": strconv.Itoa(r.Subscribers),
		})
	}
	return out
}

// formatNumber prints the shortest decimal form, always with a fractional
// part ("2.0", "3.33").
func formatNumber(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}
