package services

import (
	"context"
	"fmt"
	"log/slog"
)

// Completer sends one system + user prompt pair to a language model and
// returns the raw text of its reply. Implementations request JSON output.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// NewCompleter builds the configured model client. It returns nil, nil when
// no provider has credentials; callers answer ErrNotConfigured in that case.
func NewCompleter(ctx context.Context, cfg AIConfig) (Completer, error) {
	switch cfg.Provider {
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			slog.Warn("Gemini selected but GEMINI_API_KEY is empty")
			return nil, nil
		}
		gemini, err := NewGeminiService(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		return gemini, nil
	case "openai", "":
		if cfg.OpenAIAPIKey == "" {
			slog.Warn("OPENAI_API_KEY is empty, AI tools are disabled")
			return nil, nil
		}
		return NewOpenAIService(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
}
