package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/joho/godotenv"
)

func TestNewOpenAIClient_Defaults(t *testing.T) {
	c := NewOpenAIClient("sk-test")

	if c.apiKey != "sk-test" {
		t.Errorf("apiKey = %q, want %q", c.apiKey, "sk-test")
	}
	if c.opts.model != "gpt-4o-mini" {
		t.Errorf("model = %q, want %q", c.opts.model, "gpt-4o-mini")
	}
	if c.opts.baseURL != "https://api.openai.com/v1" {
		t.Errorf("baseURL = %q, want default OpenAI URL", c.opts.baseURL)
	}
}

func TestNewGroqClient_Defaults(t *testing.T) {
	c := NewGroqClient("gsk-test")
	if c.opts.baseURL != GroqBaseURL {
		t.Errorf("baseURL = %q, want %q", c.opts.baseURL, GroqBaseURL)
	}
	if c.opts.model != "llama-3.3-70b-versatile" {
		t.Errorf("model = %q", c.opts.model)
	}

	c = NewGroqClient("gsk-test", WithModel("llama-3.1-8b-instant"))
	if c.opts.model != "llama-3.1-8b-instant" {
		t.Errorf("model override = %q", c.opts.model)
	}
}

func TestWithBaseURL_TrimsTrailingSlash(t *testing.T) {
	c := NewOpenAIClient("sk-test", WithBaseURL("https://proxy.example.com/v1/"))
	if c.opts.baseURL != "https://proxy.example.com/v1" {
		t.Errorf("baseURL = %q, trailing slash should be trimmed", c.opts.baseURL)
	}
}

func chatReply(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(chatResponse{
		Choices: []chatChoice{{Message: chatMessage{Role: "assistant", Content: content}}},
	})
}

func TestOpenAIComplete_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-mock" {
			t.Errorf("Authorization = %q, want %q", got, "Bearer sk-mock")
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "test-model" {
			t.Errorf("request model = %q, want %q", req.Model, "test-model")
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
			t.Errorf("messages = %+v, want system then user", req.Messages)
		}
		if req.Messages[1].Content != "hi" {
			t.Errorf("user content = %q", req.Messages[1].Content)
		}
		chatReply(w, "Hello from mock!")
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-mock", WithModel("test-model"), WithBaseURL(srv.URL))
	got, err := c.Complete(context.Background(), CompletionRequest{System: "be brief", Prompt: "hi"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "Hello from mock!" {
		t.Errorf("Complete = %q, want %q", got, "Hello from mock!")
	}
}

func TestOpenAIComplete_RequestModelOverrides(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "compound-beta" {
			t.Errorf("request model = %q, want per-task override", req.Model)
		}
		chatReply(w, "ok")
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk", WithModel("default"), WithBaseURL(srv.URL))
	if _, err := c.Complete(context.Background(), CompletionRequest{Model: "compound-beta", Prompt: "x"}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
}

func TestOpenAIComplete_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("bad-key", WithBaseURL(srv.URL))
	_, err := c.Complete(context.Background(), CompletionRequest{Prompt: "hi"})
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
}

func TestOpenAIComplete_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatResponse{})
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", WithBaseURL(srv.URL))
	_, err := c.Complete(context.Background(), CompletionRequest{Prompt: "hi"})
	if err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestOpenAIComplete_NoRetryOnServerError(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("server error"))
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", WithBaseURL(srv.URL))
	_, err := c.Complete(context.Background(), CompletionRequest{Prompt: "hi"})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want exactly 1", attempts)
	}
}

// TestIntegration_OpenAI makes a real API call using .env.local config.
// Run explicitly:  go test ./internal/engine/ -run TestIntegration -v
func TestIntegration_OpenAI(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if err := godotenv.Load("../../.env.local"); err != nil {
		t.Skip("skipping: ../../.env.local not found")
	}

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("skipping: OPENAI_API_KEY not set")
	}
	baseURL := os.Getenv("OPENAI_BASE_URL")
	model := os.Getenv("OPENAI_MODEL")
	t.Logf("base_url=%s  model=%s", baseURL, model)

	c := NewOpenAIClient(apiKey, WithBaseURL(baseURL), WithModel(model))
	got, err := c.Complete(context.Background(), CompletionRequest{Prompt: "Say hello in one short sentence."})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	t.Logf("Response: %s", got)
	if len(got) == 0 {
		t.Error("expected non-empty response")
	}
}
