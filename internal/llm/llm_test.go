package llm_test

import (
	"errors"
	"testing"

	"github.com/dshills/valet/internal/config"
	"github.com/dshills/valet/internal/llm"
)

func TestNewSelectsOllama(t *testing.T) {
	client, err := llm.New(config.ModelConfig{
		Provider: config.ProviderOllama,
		Endpoint: "http://localhost:11434/api/generate",
		ID:       "llama3.2",
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, ok := client.(*llm.Ollama); !ok {
		t.Fatalf("expected *Ollama, got %T", client)
	}
	if client.Name() != "ollama/llama3.2" {
		t.Errorf("Name() = %q", client.Name())
	}
}

func TestNewProviderNone(t *testing.T) {
	client, err := llm.New(config.ModelConfig{Provider: config.ProviderNone})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if client != nil {
		t.Errorf("expected nil client for %q, got %T", config.ProviderNone, client)
	}
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := llm.New(config.ModelConfig{Provider: "skynet"})
	if !errors.Is(err, config.ErrUnknownProvider) {
		t.Errorf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestNewHostedProvidersNeedKeys(t *testing.T) {
	tests := []struct {
		provider string
		envVar   string
	}{
		{config.ProviderOpenAI, "OPENAI_API_KEY"},
		{config.ProviderAnthropic, "ANTHROPIC_API_KEY"},
		{config.ProviderGemini, "GEMINI_API_KEY"},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			t.Setenv(tt.envVar, "")
			_, err := llm.New(config.ModelConfig{Provider: tt.provider, ID: "some-model"})
			if !errors.Is(err, llm.ErrNoAPIKey) {
				t.Errorf("expected ErrNoAPIKey without %s, got %v", tt.envVar, err)
			}
		})
	}
}

func TestNewOpenAIWithKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	client, err := llm.New(config.ModelConfig{Provider: config.ProviderOpenAI, ID: "gpt-4o-mini"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if client.Name() != "openai/gpt-4o-mini" {
		t.Errorf("Name() = %q", client.Name())
	}
}

func TestNewAnthropicWithKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
	client, err := llm.New(config.ModelConfig{Provider: config.ProviderAnthropic, ID: "claude-sonnet-4-5"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if client.Name() != "anthropic/claude-sonnet-4-5" {
		t.Errorf("Name() = %q", client.Name())
	}
}
