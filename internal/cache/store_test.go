package cache

import (
	"testing"

	"github.com/agenthands/anatomy-eval/internal/config"
	"github.com/agenthands/anatomy-eval/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(InMemoryConfig())
	require.NoError(t, err)
	s := NewStore(db)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestEvidenceCache(t *testing.T) {
	c := NewEvidenceCache(newTestStore(t))

	_, ok, err := c.Get("chest pain")
	require.NoError(t, err)
	assert.False(t, ok)

	units := []model.EvidenceUnit{
		{Text: "aortic stenosis", Organ: &model.Organ{Name: "Heart (Cor)", Locations: []string{"Aortic Valve"}}},
		{Text: "no organ"},
	}
	require.NoError(t, c.Put("chest pain", units))

	got, ok, err := c.Get("  chest pain ")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, units, got)

	n, err := c.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestEvidenceCache_EmptyResultIsAHit(t *testing.T) {
	c := NewEvidenceCache(newTestStore(t))

	require.NoError(t, c.Put("rare symptom", nil))

	got, ok, err := c.Get("rare symptom")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestResponseCache(t *testing.T) {
	s := newTestStore(t)
	c := NewResponseCache(s)

	require.NoError(t, c.Save("gpt", "prompt", `{"organ":"Liver"}`))

	got, ok, err := c.Lookup("gpt", "prompt")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"organ":"Liver"}`, got)

	_, ok, err = c.Lookup("claude", "prompt")
	require.NoError(t, err)
	assert.False(t, ok)

	// both caches share the store without colliding
	require.NoError(t, NewEvidenceCache(s).Put("prompt", nil))
	n, err := c.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestOpen_PersistentRequiresPath(t *testing.T) {
	_, err := Open(DefaultConfig())
	assert.Error(t, err)
}

func TestOpen_Persistent(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Path = dir

	db, err := Open(cfg)
	require.NoError(t, err)
	c := NewResponseCache(NewStore(db))
	require.NoError(t, c.Save("gpt", "p", "r"))
	require.NoError(t, db.Close())

	db, err = Open(cfg)
	require.NoError(t, err)
	defer db.Close()
	got, ok, err := NewResponseCache(NewStore(db)).Lookup("gpt", "p")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "r", got)
}

func TestFromConfig(t *testing.T) {
	assert.True(t, FromConfig(config.CacheConfig{InMemory: true}, nil).InMemory)
	assert.True(t, FromConfig(config.CacheConfig{}, nil).InMemory)

	c := FromConfig(config.CacheConfig{Path: "/tmp/x"}, nil)
	assert.False(t, c.InMemory)
	assert.Equal(t, "/tmp/x", c.Path)
	assert.True(t, c.SyncWrites)
}
