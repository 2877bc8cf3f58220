package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ClaudeClient implements ModelClient using the Anthropic Messages API.
type ClaudeClient struct {
	apiKey string
	opts   clientOptions
}

// NewClaudeClient creates a new Anthropic client.
func NewClaudeClient(apiKey string, opts ...Option) *ClaudeClient {
	return &ClaudeClient{
		apiKey: apiKey,
		opts:   buildOptions("claude-sonnet-4-20250514", "https://api.anthropic.com/v1", opts),
	}
}

type claudeRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
	System      string          `json:"system,omitempty"`
	Messages    []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete returns the concatenated text blocks of the reply.
func (c *ClaudeClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	var resp claudeResponse
	err := postJSON(ctx, c.opts.httpClient, c.opts.baseURL+"/messages",
		map[string]string{"x-api-key": c.apiKey, "anthropic-version": "2023-06-01"},
		claudeRequest{
			Model:       c.opts.modelFor(req),
			MaxTokens:   4096,
			Temperature: 0.7,
			System:      req.System,
			Messages:    []claudeMessage{{Role: "user", Content: req.Prompt}},
		},
		&resp)
	if err != nil {
		return "", fmt.Errorf("claude: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("claude: api error: %s", resp.Error.Message)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("claude: no text content in response")
	}
	return sb.String(), nil
}
