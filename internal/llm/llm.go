package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/bhaskar9298/ai-bi-dashboard/internal/config"
)

// Completer is the text-generation collaborator: one synchronous call, a
// prompt in and a completion out. No streaming, no semantic contract on the
// response beyond "text that may contain a structured payload".
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// New builds a Completer from configuration. Two providers are supported:
// any OpenAI-compatible chat-completions endpoint, and the Gemini
// generateContent API.
func New(cfg config.LLMConfig) (Completer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "openai":
		return NewOpenAIClient(OpenAIConfig{
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		})
	case "gemini":
		return NewGeminiClient(GeminiConfig{
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		})
	default:
		return nil, fmt.Errorf("unsupported llm provider: %q", cfg.Provider)
	}
}
