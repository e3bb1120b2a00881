package llm

import (
	"context"
)

// LLMClient sends one prompt and returns the raw text of the reply.
type LLMClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// RerankerClient orders documents by relevance to a query.
type RerankerClient interface {
	Rank(ctx context.Context, query string, documents []string) ([]int, error)
}

// NamedClient is one configured model API taking part in a comparison run.
type NamedClient struct {
	Name   string
	Client LLMClient
}

const defaultMaxTokens = 1000
