package engine

import (
	"context"
	"errors"
	"fmt"
)

// OllamaClient implements ModelClient using a local Ollama server.
type OllamaClient struct {
	opts clientOptions
}

// NewOllamaClient creates a new Ollama client. An empty baseURL means localhost.
func NewOllamaClient(baseURL string, opts ...Option) *OllamaClient {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	opts = append([]Option{WithBaseURL(baseURL)}, opts...)
	return &OllamaClient{opts: buildOptions("llama3", baseURL, opts)}
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	System  string        `json:"system,omitempty"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// Complete calls /api/generate without streaming.
func (c *OllamaClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	var resp ollamaResponse
	err := postJSON(ctx, c.opts.httpClient, c.opts.baseURL+"/api/generate", nil,
		ollamaRequest{
			Model:   c.opts.modelFor(req),
			System:  req.System,
			Prompt:  req.Prompt,
			Options: ollamaOptions{Temperature: 0.7},
		},
		&resp)
	if err != nil {
		return "", fmt.Errorf("ollama: %w", err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("ollama: %s", resp.Error)
	}
	if resp.Response == "" {
		return "", errors.New("ollama: empty response")
	}
	return resp.Response, nil
}
