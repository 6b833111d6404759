package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dshills/valet/internal/config"
	"github.com/dshills/valet/internal/retry"
)

// Ollama talks to a local Ollama daemon over its non-streaming generate
// endpoint.
type Ollama struct {
	endpoint string
	model    string
	timeout  time.Duration
	http     *http.Client
	retry    retry.Config
}

// OllamaOption configures an Ollama client.
type OllamaOption func(*Ollama)

// WithHTTPClient replaces the transport, mainly for tests.
func WithHTTPClient(hc *http.Client) OllamaOption {
	return func(o *Ollama) { o.http = hc }
}

// WithRetry replaces the retry policy.
func WithRetry(cfg retry.Config) OllamaOption {
	return func(o *Ollama) { o.retry = cfg }
}

// NewOllama builds a client for the configured endpoint and model.
func NewOllama(cfg config.ModelConfig, opts ...OllamaOption) *Ollama {
	o := &Ollama{
		endpoint: cfg.Endpoint,
		model:    cfg.ID,
		timeout:  cfg.Timeout(),
		http:     &http.Client{},
		retry: retry.Config{
			MaxAttempts:       2,
			InitialDelay:      200 * time.Millisecond,
			MaxDelay:          time.Second,
			BackoffMultiplier: 2.0,
			Retryable:         func(err error) bool { return errors.Is(err, ErrUnavailable) },
		},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Name implements Client.
func (o *Ollama) Name() string { return "ollama/" + o.model }

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}

// Generate implements Client.
func (o *Ollama) Generate(ctx context.Context, prompt string) (string, error) {
	return retry.Do(ctx, o.retry, func() (string, error) {
		return o.generateOnce(ctx, prompt)
	})
}

func (o *Ollama) generateOnce(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	body, err := json.Marshal(ollamaRequest{
		Model:  o.model,
		Prompt: systemPrompt + "\n\nUser request: " + prompt,
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("llm: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llm: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Ollama reports problems as {"error": "..."} with a non-200.
		var failure ollamaResponse
		if data, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096)); readErr == nil {
			_ = json.Unmarshal(data, &failure)
		}
		if failure.Error != "" {
			return "", fmt.Errorf("%w: %s: %s", ErrUnavailable, resp.Status, failure.Error)
		}
		return "", fmt.Errorf("%w: %s", ErrUnavailable, resp.Status)
	}

	var out ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}

	answer := strings.TrimSpace(out.Response)
	if answer == "" {
		return "", ErrEmptyResponse
	}
	return answer, nil
}
