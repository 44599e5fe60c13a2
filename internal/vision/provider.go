package vision

import (
	"context"
	"fmt"
	"os"
)

// Providers accepted by New.
const (
	ProviderGemini    = "gemini"
	ProviderOllama    = "ollama"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Config selects and configures a model provider.
type Config struct {
	Provider string

	GeminiKey   string
	GeminiModel string

	OllamaURL   string
	OllamaModel string

	AnthropicKey   string
	AnthropicModel string

	OpenAIKey   string
	OpenAIModel string
	OpenAIURL   string
}

// New creates the model for cfg.Provider. Empty API keys fall back to
// GEMINI_API_KEY, ANTHROPIC_API_KEY and OPENAI_API_KEY.
func New(ctx context.Context, cfg Config) (Model, error) {
	switch cfg.Provider {
	case ProviderGemini:
		m, err := NewGemini(ctx, keyOrEnv(cfg.GeminiKey, "GEMINI_API_KEY"), cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		return m, nil
	case ProviderOllama:
		return NewOllama(cfg.OllamaURL, cfg.OllamaModel), nil
	case ProviderAnthropic:
		m, err := NewAnthropic(keyOrEnv(cfg.AnthropicKey, "ANTHROPIC_API_KEY"), cfg.AnthropicModel)
		if err != nil {
			return nil, err
		}
		return m, nil
	case ProviderOpenAI:
		m, err := NewOpenAI(keyOrEnv(cfg.OpenAIKey, "OPENAI_API_KEY"), cfg.OpenAIModel, cfg.OpenAIURL)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown model provider %q (valid: gemini, ollama, anthropic, openai)", cfg.Provider)
	}
}

func keyOrEnv(key, env string) string {
	if key != "" {
		return key
	}
	return os.Getenv(env)
}
