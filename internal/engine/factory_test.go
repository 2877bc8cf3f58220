package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yangwenmai/letterpress/internal/config"
	"github.com/yangwenmai/letterpress/internal/model"
)

func TestNewModelClient_MissingKey(t *testing.T) {
	cfg := config.Defaults()
	cfg.LLMProvider = config.ProviderGroq
	cfg.GroqKey = ""

	_, err := NewModelClient(context.Background(), cfg)
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindInvalidConfig))
	assert.Contains(t, err.Error(), "GROQ_API_KEY")
}

func TestNewModelClient_UnknownProvider(t *testing.T) {
	cfg := config.Defaults()
	cfg.LLMProvider = "mystery"

	_, err := NewModelClient(context.Background(), cfg)
	assert.True(t, model.IsKind(err, model.KindInvalidConfig))
}

func TestNewModelClient_Providers(t *testing.T) {
	cases := []struct {
		provider string
		mutate   func(*config.Config)
		want     any
	}{
		{config.ProviderGroq, func(c *config.Config) { c.GroqKey = "g" }, &OpenAIClient{}},
		{config.ProviderOpenAI, func(c *config.Config) { c.OpenAIKey = "o" }, &OpenAIClient{}},
		{config.ProviderClaude, func(c *config.Config) { c.AnthropicKey = "a" }, &ClaudeClient{}},
		{config.ProviderGemini, func(c *config.Config) { c.GeminiKey = "g" }, &GeminiClient{}},
		{config.ProviderOllama, func(*config.Config) {}, &OllamaClient{}},
		{config.ProviderStub, func(*config.Config) {}, &StubModelClient{}},
	}
	for _, tc := range cases {
		t.Run(tc.provider, func(t *testing.T) {
			cfg := config.Defaults()
			cfg.LLMProvider = tc.provider
			tc.mutate(&cfg)

			client, err := NewModelClient(context.Background(), cfg)
			require.NoError(t, err)
			assert.IsType(t, tc.want, client)
		})
	}
}

func TestNewGeneratorFromConfig_GroqTaskModels(t *testing.T) {
	cfg := config.Defaults()
	cfg.GroqKey = "g"

	g, err := NewGeneratorFromConfig(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "compound-beta", g.models[TaskResearch])
	assert.Equal(t, "llama-3.1-8b-instant", g.models[TaskEdit])
}
