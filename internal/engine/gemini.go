package engine

import (
	"context"
	"errors"
	"fmt"
)

// GeminiClient implements ModelClient using the Google Generative AI REST API.
type GeminiClient struct {
	apiKey string
	opts   clientOptions
}

// NewGeminiClient creates a new Gemini client.
func NewGeminiClient(apiKey string, opts ...Option) *GeminiClient {
	return &GeminiClient{
		apiKey: apiKey,
		opts:   buildOptions("gemini-2.0-flash", "https://generativelanguage.googleapis.com/v1beta", opts),
	}
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  geminiGenConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete returns the first candidate's first text part.
func (c *GeminiClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	payload := geminiRequest{
		Contents:         []geminiContent{{Role: "user", Parts: []geminiPart{{Text: req.Prompt}}}},
		GenerationConfig: geminiGenConfig{Temperature: 0.7, MaxOutputTokens: 4096},
	}
	if req.System != "" {
		payload.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.opts.baseURL, c.opts.modelFor(req))
	var resp geminiResponse
	if err := postJSON(ctx, c.opts.httpClient, url, map[string]string{"x-goog-api-key": c.apiKey}, payload, &resp); err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("gemini: api error: %s", resp.Error.Message)
	}
	if len(resp.Candidates) > 0 && len(resp.Candidates[0].Content.Parts) > 0 {
		return resp.Candidates[0].Content.Parts[0].Text, nil
	}
	return "", errors.New("gemini: no content in response")
}
