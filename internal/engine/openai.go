package engine

import (
	"context"
	"errors"
	"fmt"
)

// GroqBaseURL is Groq's OpenAI-compatible endpoint.
const GroqBaseURL = "https://api.groq.com/openai/v1"

// OpenAIClient implements ModelClient using the Chat Completions API.
// Any OpenAI-compatible service (Groq included) works by setting a base URL.
type OpenAIClient struct {
	apiKey string
	opts   clientOptions
}

// NewOpenAIClient creates an OpenAI-compatible client (default model gpt-4o-mini).
func NewOpenAIClient(apiKey string, opts ...Option) *OpenAIClient {
	return &OpenAIClient{
		apiKey: apiKey,
		opts:   buildOptions("gpt-4o-mini", "https://api.openai.com/v1", opts),
	}
}

// NewGroqClient is an OpenAIClient pointed at Groq.
func NewGroqClient(apiKey string, opts ...Option) *OpenAIClient {
	opts = append([]Option{WithBaseURL(GroqBaseURL), WithModel("llama-3.3-70b-versatile")}, opts...)
	return NewOpenAIClient(apiKey, opts...)
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends the system and user messages and returns the first choice.
func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	var resp chatResponse
	err := postJSON(ctx, c.opts.httpClient, c.opts.baseURL+"/chat/completions",
		map[string]string{"Authorization": "Bearer " + c.apiKey},
		chatRequest{Model: c.opts.modelFor(req), Messages: messages, Temperature: 0.7},
		&resp)
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("openai: api error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}
