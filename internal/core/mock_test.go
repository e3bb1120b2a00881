package core

import (
	"context"
	"strings"
	"sync"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/agenthands/anatomy-eval/internal/core/model"
)

type MockDriver struct {
	mu      sync.Mutex
	Queries []string
	Err     error
}

func (m *MockDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Queries = append(m.Queries, query)
	if m.Err != nil {
		return neo4j.EagerResult{}, m.Err
	}
	return neo4j.EagerResult{}, nil
}

func (m *MockDriver) BuildIndices(ctx context.Context) error {
	return nil
}

func (m *MockDriver) Close(ctx context.Context) error {
	return nil
}

// MockLLM answers baseline and augmented prompts differently. Augmented
// prompts are recognised by their decision-strategy line.
type MockLLM struct {
	Baseline  string
	Augmented string
	Err       error

	mu    sync.Mutex
	Calls int
}

func (m *MockLLM) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	if strings.Contains(prompt, "Decision strategy") {
		return m.Augmented, nil
	}
	return m.Baseline, nil
}

// MockRetriever returns Units for every symptom except those listed in Fail.
type MockRetriever struct {
	Units []model.EvidenceUnit
	Fail  map[string]error
}

func (m *MockRetriever) Retrieve(ctx context.Context, s model.Symptom) ([]model.EvidenceUnit, error) {
	if err, ok := m.Fail[s.ID]; ok {
		return nil, err
	}
	return m.Units, nil
}
