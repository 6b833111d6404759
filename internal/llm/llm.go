// Package llm answers commands no plugin claims, through one of several
// language model providers selected by configuration.
package llm

import (
	"context"
	"fmt"

	"github.com/dshills/valet/internal/config"
)

// systemPrompt frames every fallback request. Responses may be spoken
// aloud, so the model is asked to keep them short and plain.
const systemPrompt = "You are a helpful desktop assistant. Answer briefly in plain text; the reply may be read aloud."

// Client generates a free-form response to a user request.
type Client interface {
	// Generate answers the prompt. Implementations own their own
	// timeouts. Errors wrap ErrUnavailable when the provider cannot
	// be reached.
	Generate(ctx context.Context, prompt string) (string, error)

	// Name identifies the provider and model for logs.
	Name() string
}

// New builds the client for the configured provider. ProviderNone
// returns nil with no error; the router then answers unmatched commands
// with its fixed apology.
func New(cfg config.ModelConfig) (Client, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		return NewOllama(cfg), nil
	case config.ProviderOpenAI:
		return NewOpenAI(cfg)
	case config.ProviderAnthropic:
		return NewAnthropic(cfg)
	case config.ProviderGemini:
		return NewGemini(cfg)
	case config.ProviderNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownProvider, cfg.Provider)
	}
}
