package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/dshills/valet/internal/config"
)

// anthropicMaxTokens caps fallback replies; answers are meant to be a
// sentence or two, often spoken.
const anthropicMaxTokens = 1024

// Anthropic answers through the Anthropic messages API.
type Anthropic struct {
	client anthropic.Client
	model  string
}

// NewAnthropic builds a client from ANTHROPIC_API_KEY.
func NewAnthropic(cfg config.ModelConfig) (*Anthropic, error) {
	key := os.Getenv("ANTHROPIC_API_KEY")
	if key == "" {
		return nil, fmt.Errorf("%w: ANTHROPIC_API_KEY is not set", ErrNoAPIKey)
	}
	return &Anthropic{
		client: anthropic.NewClient(option.WithAPIKey(key)),
		model:  cfg.ID,
	}, nil
}

// Name implements Client.
func (a *Anthropic) Name() string { return "anthropic/" + a.model }

// Generate implements Client.
func (a *Anthropic) Generate(ctx context.Context, prompt string) (string, error) {
	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: anthropicMaxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return sb.String(), nil
}
