package engine

import (
	"context"
	"fmt"
)

// StubModelClient returns canned markdown per task (for development/testing).
// Its research brief omits the pain-points section, so the local fallback runs.
type StubModelClient struct{}

func (m *StubModelClient) Complete(_ context.Context, req CompletionRequest) (string, error) {
	switch req.Task {
	case TaskResearch:
		return "## Key Trends\n- Readers reward practical, short issues.\n\n## Opportunities\n- Ask one direct question per issue to invite replies.\n\n## Sources\n- Internal metrics history", nil
	case TaskOutlines:
		return stubOutlines, nil
	case TaskDraft:
		return "# This Week\n\nReplies are the clearest signal that an issue landed. Here is what we learned.\n\n## What changed\n\nShorter sections and one clear question.\n\nHit reply and tell us what you want next.", nil
	case TaskEdit:
		return "# This Week\n\nReplies are the clearest signal an issue landed. Here is what we learned.\n\n## What changed\n\nShorter sections, one clear question.\n\nHit reply and tell us what you want next.\n\n## Revision Summary\n- Tightened the opening.\n- Removed filler words.", nil
	case TaskVisuals:
		return "A hand-drawn envelope overflowing with reply notes, warm paper texture\nMinimal line chart rising toward a speech bubble, pastel palette\nA desk at sunrise with a laptop showing an inbox, soft light", nil
	case TaskForecast:
		return "## Forecast\n- Predicted open rate: ~41%\n- Recommended send date/time: Tuesday 09:00\n- Suggested segmentation: engaged readers first.", nil
	case TaskAnalysis:
		return "## Analysis\n- Open rate landed within two points of the forecast.\n- Lesson: keep subject lines under 45 characters.", nil
	}
	return "", fmt.Errorf("stub: no canned response for task %q", req.Task)
}

const stubOutlines = `# Outline Option 1
## Sections
- Hook: the reply-rate dip
- Lessons: what readers answered
## Subject Line Candidates
- "Why you stopped replying"
- "Three questions for you"
- "The quiet inbox problem"

# Outline Option 2
## Sections
- Case study: one reader's story
## Subject Line Candidates
- "A reader wrote back"

# Outline Option 3
## Sections
- Quick tips
## Subject Line Candidates
- "Five fixes in five minutes"
`
