package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// clientOptions holds settings shared by every HTTP-backed model client.
type clientOptions struct {
	model      string
	baseURL    string
	httpClient *http.Client
}

// Option configures a model client.
type Option func(*clientOptions)

// WithModel sets the default model name.
func WithModel(model string) Option {
	return func(o *clientOptions) {
		if model != "" {
			o.model = model
		}
	}
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(url string) Option {
	return func(o *clientOptions) {
		if url != "" {
			o.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithTimeout bounds each request. Zero leaves the transport default (no timeout).
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) { o.httpClient = &http.Client{Timeout: d} }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = c }
}

func buildOptions(model, baseURL string, opts []Option) clientOptions {
	o := clientOptions{model: model, baseURL: baseURL, httpClient: &http.Client{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o clientOptions) modelFor(req CompletionRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return o.model
}

// apiError is a non-200 response from a model API.
type apiError struct {
	StatusCode int
	Body       string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// postJSON sends payload as JSON and decodes a 200 response into out.
func postJSON(ctx context.Context, c *http.Client, url string, headers map[string]string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &apiError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
