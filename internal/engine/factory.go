package engine

import (
	"context"
	"log/slog"

	"github.com/yangwenmai/letterpress/internal/config"
)

// NewModelClient builds the client for the configured provider. A missing
// credential fails here, before any stage runs.
func NewModelClient(ctx context.Context, cfg config.Config) (ModelClient, error) {
	if err := cfg.CheckCredentials(); err != nil {
		return nil, err
	}
	timeout := WithTimeout(cfg.HTTPTimeout)

	var client ModelClient
	switch cfg.LLMProvider {
	case config.ProviderGroq:
		client = NewGroqClient(cfg.GroqKey, WithModel(cfg.GroqModel), timeout)
	case config.ProviderOpenAI:
		client = NewOpenAIClient(cfg.OpenAIKey, WithBaseURL(cfg.OpenAIBaseURL), WithModel(cfg.OpenAIModel), timeout)
	case config.ProviderClaude:
		client = NewClaudeClient(cfg.AnthropicKey, WithModel(cfg.AnthropicModel), timeout)
	case config.ProviderGemini:
		client = NewGeminiClient(cfg.GeminiKey, WithModel(cfg.GeminiModel), timeout)
	case config.ProviderOllama:
		client = NewOllamaClient(cfg.OllamaURL, WithModel(cfg.OllamaModel), timeout)
	case config.ProviderBedrock:
		bc, err := NewBedrockClient(ctx, cfg.AWSRegion, cfg.BedrockModelID)
		if err != nil {
			return nil, err
		}
		client = bc
	case config.ProviderStub:
		slog.Warn("using stub model client; responses are canned")
		client = &StubModelClient{}
	}
	slog.Info("model client ready", "provider", cfg.LLMProvider)
	return client, nil
}

// NewGeneratorFromConfig builds the client and a Generator with per-task models.
func NewGeneratorFromConfig(ctx context.Context, cfg config.Config) (*Generator, error) {
	client, err := NewModelClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewGenerator(client, WithTaskModels(TaskModels(cfg.TaskModels()))), nil
}
