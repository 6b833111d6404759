package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/dshills/valet/internal/config"
	"github.com/dshills/valet/internal/llm"
	"github.com/dshills/valet/internal/retry"
)

func ollamaConfig(endpoint string) config.ModelConfig {
	return config.ModelConfig{
		Provider:       config.ProviderOllama,
		Endpoint:       endpoint,
		ID:             "llama3.2",
		TimeoutSeconds: 10,
	}
}

func singleAttempt() llm.OllamaOption {
	return llm.WithRetry(retry.Config{MaxAttempts: 1})
}

func TestOllamaGenerate(t *testing.T) {
	var gotBody struct {
		Model  string `json:"model"`
		Prompt string `json:"prompt"`
		Stream bool   `json:"stream"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected JSON content type, got %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{"response": " The sky is blue. ", "done": true})
	}))
	defer srv.Close()

	client := llm.NewOllama(ollamaConfig(srv.URL), singleAttempt())

	answer, err := client.Generate(context.Background(), "why is the sky blue?")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if answer != "The sky is blue." {
		t.Errorf("expected trimmed response, got %q", answer)
	}

	if gotBody.Model != "llama3.2" {
		t.Errorf("request model = %q", gotBody.Model)
	}
	if gotBody.Stream {
		t.Error("request must disable streaming")
	}
	if !strings.Contains(gotBody.Prompt, "why is the sky blue?") {
		t.Errorf("prompt lost the user request: %q", gotBody.Prompt)
	}
	if !strings.Contains(gotBody.Prompt, "User request:") {
		t.Errorf("prompt lost the preamble: %q", gotBody.Prompt)
	}
}

func TestOllamaUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing is listening anymore

	client := llm.NewOllama(ollamaConfig(srv.URL), singleAttempt())

	_, err := client.Generate(context.Background(), "hello?")
	if !errors.Is(err, llm.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestOllamaServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "model not found"})
	}))
	defer srv.Close()

	client := llm.NewOllama(ollamaConfig(srv.URL), singleAttempt())

	_, err := client.Generate(context.Background(), "hello?")
	if !errors.Is(err, llm.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "model not found") {
		t.Errorf("expected daemon error text, got %q", err)
	}
}

func TestOllamaEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"response": "   ", "done": true})
	}))
	defer srv.Close()

	client := llm.NewOllama(ollamaConfig(srv.URL), singleAttempt())

	_, err := client.Generate(context.Background(), "hello?")
	if !errors.Is(err, llm.ErrEmptyResponse) {
		t.Errorf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestOllamaRetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"response": "second try", "done": true})
	}))
	defer srv.Close()

	client := llm.NewOllama(ollamaConfig(srv.URL), llm.WithRetry(retry.Config{
		MaxAttempts:       2,
		InitialDelay:      1,
		BackoffMultiplier: 1,
		Retryable:         func(err error) bool { return errors.Is(err, llm.ErrUnavailable) },
	}))

	answer, err := client.Generate(context.Background(), "hello?")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if answer != "second try" {
		t.Errorf("got %q", answer)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", calls.Load())
	}
}

func TestOllamaName(t *testing.T) {
	client := llm.NewOllama(ollamaConfig("http://localhost:11434/api/generate"))
	if client.Name() != "ollama/llama3.2" {
		t.Errorf("Name() = %q", client.Name())
	}
}
