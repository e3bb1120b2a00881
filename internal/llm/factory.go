package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/agenthands/anatomy-eval/internal/config"
)

// Default endpoints and models for the OpenAI-compatible providers.
var compatible = map[string]struct{ baseURL, model string }{
	"openai":   {"", openaiDefaultModel},
	"deepseek": {"https://api.deepseek.com/v1", "deepseek-chat"},
	"moonshot": {"https://api.moonshot.cn/v1", "moonshot-v1-8k"},
	"ollama":   {"http://localhost:11434/v1", "llama3"},
}

const (
	openaiDefaultModel = "gpt-4o-mini"
	claudeDefaultModel = "claude-3-5-sonnet-20241022"
	geminiDefaultModel = "gemini-1.5-flash"
)

// NewClient builds the client for one configured model API. system is sent
// as the system prompt of every request.
func NewClient(ctx context.Context, cfg config.LLMConfig, system string) (LLMClient, error) {
	provider := strings.ToLower(cfg.Provider)

	switch provider {
	case "openai", "deepseek", "moonshot", "ollama":
		defaults := compatible[provider]
		baseURL := orDefault(cfg.BaseURL, defaults.baseURL)
		apiKey := cfg.APIKey

		if provider == "ollama" {
			if !strings.HasSuffix(baseURL, "/v1") {
				baseURL = fmt.Sprintf("%s/v1", strings.TrimRight(baseURL, "/"))
			}
			// ignored by Ollama but required by the client config
			if apiKey == "" {
				apiKey = "ollama"
			}
		} else if apiKey == "" {
			return nil, fmt.Errorf("missing api key for %s (%s)", cfg.Name, provider)
		}

		return NewOpenAIClient(apiKey, orDefault(cfg.Model, defaults.model), baseURL, system, cfg.MaxTokens), nil

	case "gemini":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("missing api key for %s (%s)", cfg.Name, provider)
		}
		return NewGeminiClient(ctx, cfg.APIKey, orDefault(cfg.Model, geminiDefaultModel), system, cfg.MaxTokens)

	case "claude":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("missing api key for %s (%s)", cfg.Name, provider)
		}
		return NewClaudeClient(cfg.APIKey, orDefault(cfg.Model, claudeDefaultModel), cfg.BaseURL, system, cfg.MaxTokens), nil

	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", provider)
	}
}

// NewClients builds every configured API. A model that cannot be
// initialised is skipped with a warning so one missing key does not stop a
// run; an error is returned only when nothing could be built.
func NewClients(ctx context.Context, cfgs []config.LLMConfig, system string, logger *slog.Logger) ([]NamedClient, error) {
	if logger == nil {
		logger = slog.Default()
	}

	clients := make([]NamedClient, 0, len(cfgs))
	for _, cfg := range cfgs {
		c, err := NewClient(ctx, cfg, system)
		if err != nil {
			logger.Warn("skipping model api", "name", cfg.Name, "provider", cfg.Provider, "error", err)
			continue
		}
		logger.Info("model api ready", "name", cfg.Name, "provider", cfg.Provider)
		clients = append(clients, NamedClient{Name: cfg.Name, Client: c})
	}

	if len(clients) == 0 {
		return nil, fmt.Errorf("no model api could be initialised out of %d configured", len(cfgs))
	}
	return clients, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
