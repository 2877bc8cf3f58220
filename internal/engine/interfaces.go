package engine

import "context"

// Task names the generative variant a completion serves. Clients use it only
// for logging and per-task model selection; the stub client keys its canned
// responses on it.
type Task string

const (
	TaskResearch Task = "research"
	TaskOutlines Task = "outlines"
	TaskDraft    Task = "draft"
	TaskEdit     Task = "edit"
	TaskVisuals  Task = "visuals"
	TaskForecast Task = "forecast"
	TaskAnalysis Task = "analysis"
)

// CompletionRequest is one system+user exchange with a text-generation service.
type CompletionRequest struct {
	Task   Task
	Model  string // empty selects the client default
	System string
	Prompt string
}

// ModelClient abstracts LLM calls. Complete makes exactly one call and never retries.
type ModelClient interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// ModelClientFunc adapts a function to ModelClient.
type ModelClientFunc func(ctx context.Context, req CompletionRequest) (string, error)

func (f ModelClientFunc) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	return f(ctx, req)
}
