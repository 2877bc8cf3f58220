// Package config provides centralized configuration for letterpress.
// Values come from defaults, an optional YAML file named by LETTERPRESS_CONFIG,
// and environment variables, in increasing precedence. A .env.local file is
// loaded into the environment first without overriding variables already set.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/yangwenmai/letterpress/internal/model"
)

// Provider names accepted in LLM_PROVIDER.
const (
	ProviderGroq    = "groq"
	ProviderOpenAI  = "openai"
	ProviderClaude  = "claude"
	ProviderGemini  = "gemini"
	ProviderOllama  = "ollama"
	ProviderBedrock = "bedrock"
	ProviderStub    = "stub"
)

// Config holds all configuration values.
type Config struct {
	// Port is the HTTP server listen port.
	Port string `yaml:"port"`

	// DBPath is the path to the SQLite run ledger.
	DBPath string `yaml:"db_path"`

	// OutputDir receives stage artifacts; PackageDir receives packages.
	OutputDir  string `yaml:"output_dir"`
	PackageDir string `yaml:"package_dir"`

	// ContentDir holds auxiliary markdown/HTML documents for research.
	ContentDir string `yaml:"content_dir"`

	// TrendingFeeds are RSS/Atom URLs whose headlines enrich research.
	TrendingFeeds []string `yaml:"trending_feeds"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// LLMProvider selects the text-generation backend.
	LLMProvider string `yaml:"llm_provider"`

	GroqKey        string `yaml:"groq_api_key"`
	GroqModel      string `yaml:"groq_model"`
	OpenAIKey      string `yaml:"openai_api_key"`
	OpenAIBaseURL  string `yaml:"openai_base_url"`
	OpenAIModel    string `yaml:"openai_model"`
	AnthropicKey   string `yaml:"anthropic_api_key"`
	AnthropicModel string `yaml:"anthropic_model"`
	GeminiKey      string `yaml:"gemini_api_key"`
	GeminiModel    string `yaml:"gemini_model"`
	OllamaURL      string `yaml:"ollama_url"`
	OllamaModel    string `yaml:"ollama_model"`
	BedrockModelID string `yaml:"bedrock_model_id"`
	AWSRegion      string `yaml:"aws_region"`

	// Models overrides the model per generative task (research, outlines, ...).
	Models map[string]string `yaml:"models"`

	// HTTPTimeout bounds outgoing model calls. Zero means no client timeout.
	HTTPTimeout time.Duration `yaml:"http_timeout"`

	// WorkerInterval is the polling interval for the background worker.
	WorkerInterval time.Duration `yaml:"worker_interval"`

	// CORSOrigin is the allowed CORS origin.
	CORSOrigin string `yaml:"cors_origin"`

	// RedisURL enables the cross-process run lock when set.
	RedisURL string `yaml:"redis_url"`

	// S3Bucket enables archive publication when set.
	S3Bucket string `yaml:"s3_bucket"`
	S3Prefix string `yaml:"s3_prefix"`
}

// groqTaskModels are the per-task defaults for the groq provider.
var groqTaskModels = map[string]string{
	"research": "compound-beta",
	"outlines": "llama-3.3-70b-versatile",
	"draft":    "llama-3.3-70b-versatile",
	"edit":     "llama-3.1-8b-instant",
	"visuals":  "compound-beta-mini",
	"forecast": "llama-3.1-8b-instant",
	"analysis": "llama-3.3-70b-versatile",
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Port:           "8080",
		DBPath:         "letterpress.db",
		OutputDir:      "output",
		PackageDir:     "package",
		ContentDir:     "data/content",
		LogLevel:       "info",
		LogFormat:      "text",
		LLMProvider:    ProviderGroq,
		GroqModel:      "llama-3.3-70b-versatile",
		OpenAIBaseURL:  "https://api.openai.com/v1",
		OpenAIModel:    "gpt-4o-mini",
		AnthropicModel: "claude-sonnet-4-20250514",
		GeminiModel:    "gemini-2.0-flash",
		OllamaURL:      "http://localhost:11434",
		OllamaModel:    "llama3",
		AWSRegion:      "us-east-1",
		WorkerInterval: 3 * time.Second,
		CORSOrigin:     "*",
	}
}

// Load reads configuration from .env.local, the optional YAML file, and the environment.
func Load() (Config, error) {
	loadEnvFile(".env.local")

	cfg := Defaults()
	if path := os.Getenv("LETTERPRESS_CONFIG"); path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return cfg, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// loadEnvFile loads KEY=VALUE pairs into the environment. Variables that are
// already set win. A missing file is ignored.
func loadEnvFile(path string) {
	_ = godotenv.Load(path)
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Wrap(model.KindInvalidConfig, "config", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return model.Wrap(model.KindInvalidConfig, "config", fmt.Errorf("parse %s: %w", path, err))
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = envOr("PORT", c.Port)
	c.DBPath = envOr("DB_PATH", c.DBPath)
	c.OutputDir = envOr("OUTPUT_DIR", c.OutputDir)
	c.PackageDir = envOr("PACKAGE_DIR", c.PackageDir)
	c.ContentDir = envOr("CONTENT_DIR", c.ContentDir)
	c.LogLevel = envOr("LOG_LEVEL", c.LogLevel)
	c.LogFormat = envOr("LOG_FORMAT", c.LogFormat)
	c.LLMProvider = strings.ToLower(envOr("LLM_PROVIDER", c.LLMProvider))
	c.GroqKey = envOr("GROQ_API_KEY", c.GroqKey)
	c.GroqModel = envOr("GROQ_MODEL", c.GroqModel)
	c.OpenAIKey = envOr("OPENAI_API_KEY", c.OpenAIKey)
	c.OpenAIBaseURL = envOr("OPENAI_BASE_URL", c.OpenAIBaseURL)
	c.OpenAIModel = envOr("OPENAI_MODEL", c.OpenAIModel)
	c.AnthropicKey = envOr("ANTHROPIC_API_KEY", c.AnthropicKey)
	c.AnthropicModel = envOr("ANTHROPIC_MODEL", c.AnthropicModel)
	c.GeminiKey = envOr("GEMINI_API_KEY", c.GeminiKey)
	c.GeminiModel = envOr("GEMINI_MODEL", c.GeminiModel)
	c.OllamaURL = envOr("OLLAMA_URL", c.OllamaURL)
	c.OllamaModel = envOr("OLLAMA_MODEL", c.OllamaModel)
	c.BedrockModelID = envOr("BEDROCK_MODEL_ID", c.BedrockModelID)
	c.AWSRegion = envOr("AWS_REGION", c.AWSRegion)
	c.HTTPTimeout = envDuration("HTTP_TIMEOUT", c.HTTPTimeout)
	c.WorkerInterval = envDuration("WORKER_INTERVAL", c.WorkerInterval)
	c.CORSOrigin = envOr("CORS_ORIGIN", c.CORSOrigin)
	c.RedisURL = envOr("REDIS_URL", c.RedisURL)
	c.S3Bucket = envOr("S3_BUCKET", c.S3Bucket)
	c.S3Prefix = envOr("S3_PREFIX", c.S3Prefix)
	if v := os.Getenv("TRENDING_FEEDS"); v != "" {
		c.TrendingFeeds = splitList(v)
	}
}

// CheckCredentials fails when the selected provider needs an API key that is absent.
func (c Config) CheckCredentials() error {
	var key, name string
	switch c.LLMProvider {
	case ProviderGroq:
		key, name = c.GroqKey, "GROQ_API_KEY"
	case ProviderOpenAI:
		key, name = c.OpenAIKey, "OPENAI_API_KEY"
	case ProviderClaude:
		key, name = c.AnthropicKey, "ANTHROPIC_API_KEY"
	case ProviderGemini:
		key, name = c.GeminiKey, "GEMINI_API_KEY"
	case ProviderOllama, ProviderBedrock, ProviderStub:
		return nil
	default:
		return model.E(model.KindInvalidConfig, "config", "unknown LLM_PROVIDER %q", c.LLMProvider)
	}
	if key == "" {
		return model.E(model.KindInvalidConfig, "config", "%s is not set for provider %s", name, c.LLMProvider)
	}
	return nil
}

// TaskModels returns the model to use per generative task for the selected provider.
func (c Config) TaskModels() map[string]string {
	out := make(map[string]string, len(groqTaskModels))
	if c.LLMProvider == ProviderGroq {
		for k, v := range groqTaskModels {
			out[k] = v
		}
	}
	for k, v := range c.Models {
		out[k] = v
	}
	return out
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		// Bare integers are seconds.
		if n, nerr := strconv.Atoi(v); nerr == nil {
			return time.Duration(n) * time.Second
		}
		return fallback
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
