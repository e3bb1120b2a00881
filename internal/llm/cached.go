package llm

import (
	"context"
	"log/slog"
	"strings"
)

// ResponseStore persists raw replies per API and prompt.
type ResponseStore interface {
	Lookup(api, prompt string) (string, bool, error)
	Save(api, prompt, response string) error
}

// CachedClient replays stored replies and records new ones. Failed or empty
// replies are never stored, so a quota error is retried on the next run.
type CachedClient struct {
	name   string
	inner  LLMClient
	store  ResponseStore
	logger *slog.Logger
}

func NewCachedClient(name string, inner LLMClient, store ResponseStore, logger *slog.Logger) *CachedClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedClient{name: name, inner: inner, store: store, logger: logger}
}

func (c *CachedClient) Generate(ctx context.Context, prompt string) (string, error) {
	if resp, ok, err := c.store.Lookup(c.name, prompt); err != nil {
		c.logger.Warn("response cache lookup failed", "api", c.name, "error", err)
	} else if ok {
		return resp, nil
	}

	resp, err := c.inner.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(resp) != "" {
		if err := c.store.Save(c.name, prompt, resp); err != nil {
			c.logger.Warn("response cache save failed", "api", c.name, "error", err)
		}
	}
	return resp, nil
}

// WithResponseCache wraps every client in a CachedClient sharing store.
func WithResponseCache(clients []NamedClient, store ResponseStore, logger *slog.Logger) []NamedClient {
	out := make([]NamedClient, len(clients))
	for i, c := range clients {
		out[i] = NamedClient{Name: c.Name, Client: NewCachedClient(c.Name, c.Client, store, logger)}
	}
	return out
}
