package vision

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
)

const anthropicMaxTokens = 4000

// Anthropic implements Model with Claude through langchaingo.
type Anthropic struct {
	llm llms.Model
}

// NewAnthropic creates a Claude model client.
func NewAnthropic(apiKey string, modelName string) (*Anthropic, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	if modelName == "" {
		modelName = "claude-3-opus-20240229"
	}

	llm, err := anthropic.New(anthropic.WithModel(modelName), anthropic.WithToken(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating anthropic client: %w", err)
	}
	return NewAnthropicWithModel(llm), nil
}

// NewAnthropicWithModel wraps an existing langchaingo model.
func NewAnthropicWithModel(llm llms.Model) *Anthropic {
	return &Anthropic{llm: llm}
}

func (a *Anthropic) Complete(ctx context.Context, prompt string, img Image) (string, error) {
	messages := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(SystemPrompt)},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(prompt),
				llms.BinaryPart(img.MediaType, img.Data),
			},
		},
	}

	resp, err := a.llm.GenerateContent(ctx, messages,
		llms.WithMaxTokens(anthropicMaxTokens),
		llms.WithTemperature(0),
	)
	if err != nil {
		return "", fmt.Errorf("generating content: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from anthropic")
	}
	return resp.Choices[0].Content, nil
}

// Close is a no-op.
func (a *Anthropic) Close() error {
	return nil
}
