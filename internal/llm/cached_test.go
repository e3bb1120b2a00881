package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	data map[string]string
}

func (m *memoryStore) Lookup(api, prompt string) (string, bool, error) {
	v, ok := m.data[api+"|"+prompt]
	return v, ok, nil
}

func (m *memoryStore) Save(api, prompt, response string) error {
	m.data[api+"|"+prompt] = response
	return nil
}

func TestCachedClient(t *testing.T) {
	ctx := context.Background()
	store := &memoryStore{data: map[string]string{}}
	inner := &MockLLM{Response: `{"organ":"Liver"}`}
	c := NewCachedClient("gpt", inner, store, nil)

	first, err := c.Generate(ctx, "p")
	require.NoError(t, err)
	second, err := c.Generate(ctx, "p")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, inner.Prompts, 1)
	assert.Equal(t, `{"organ":"Liver"}`, store.data["gpt|p"])
}

func TestCachedClient_DoesNotStoreFailures(t *testing.T) {
	ctx := context.Background()
	store := &memoryStore{data: map[string]string{}}

	_, err := NewCachedClient("gpt", &MockLLM{Err: errors.New("quota")}, store, nil).Generate(ctx, "p")
	assert.Error(t, err)

	_, err = NewCachedClient("gpt", &MockLLM{Response: "  "}, store, nil).Generate(ctx, "p")
	assert.NoError(t, err)

	assert.Empty(t, store.data)
}

func TestWithResponseCache(t *testing.T) {
	store := &memoryStore{data: map[string]string{}}
	wrapped := WithResponseCache([]NamedClient{{Name: "a", Client: &MockLLM{}}, {Name: "b", Client: &MockLLM{}}}, store, nil)

	require.Len(t, wrapped, 2)
	assert.Equal(t, "b", wrapped[1].Name)
	assert.IsType(t, &CachedClient{}, wrapped[1].Client)
}
