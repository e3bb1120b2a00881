package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/anatomy-eval/internal/config"
	"github.com/agenthands/anatomy-eval/internal/core/model"
	"github.com/agenthands/anatomy-eval/internal/retrieval"
)

const ragLine = `{"query": "chest pain on exertion", "s": {"rag_s_1_id": {"units": [{"u_unit": {"d_diagnosis": "aortic stenosis", "o_organ": {"organName": "Heart (Cor)", "anatomicalLocations": ["Aortic Valve"]}}}]}}}` + "\n"

func TestLoadConfig(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("DATA_DIR", "reports")

	cfg, err := LoadConfig(discard())
	require.NoError(t, err)
	assert.Equal(t, "reports", cfg.Dataset.Dir)

	t.Setenv("CONFIG_PATH", "missing.toml")
	_, err = LoadConfig(discard())
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[dataset]\nstart_id = 9\nend_id = 3\n"), 0o644))
	t.Setenv("CONFIG_PATH", path)
	_, err = LoadConfig(discard())
	assert.ErrorContains(t, err, "start_id")
}

func TestBuild_Offline(t *testing.T) {
	cfg := config.Default()
	cfg.Retrieval.Source = "none"

	a, err := Build(context.Background(), cfg, discard())
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Pipeline.Retriever)
	assert.Empty(t, a.Pipeline.Clients)
	assert.Nil(t, a.Graph)
	assert.NotNil(t, a.Pipeline.Metrics)
}

func TestBuild_FileRetrieverIsCached(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "r.jsonl"), []byte(ragLine), 0o644))

	cfg := config.Default()
	cfg.Retrieval.Files = filepath.Join(dir, "*.jsonl")

	a, err := Build(context.Background(), cfg, discard())
	require.NoError(t, err)
	defer a.Close()

	cached, ok := a.Pipeline.Retriever.(*retrieval.CachedRetriever)
	require.True(t, ok)
	assert.IsType(t, &retrieval.FileRetriever{}, cached.Inner)

	units, err := a.Pipeline.Retriever.Retrieve(context.Background(), model.Symptom{Text: "chest pain on exertion"})
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, "Heart (Cor)", units[0].OrganName())
}

func TestBuild_MissingEvidenceFiles(t *testing.T) {
	cfg := config.Default()
	cfg.Retrieval.Files = filepath.Join(t.TempDir(), "*.jsonl")

	_, err := Build(context.Background(), cfg, discard())
	assert.ErrorContains(t, err, "no evidence files")
}

func TestBuild_UnusableModels(t *testing.T) {
	cfg := config.Default()
	cfg.Retrieval.Source = "none"
	cfg.Models = []config.LLMConfig{{Name: "gpt", Provider: "openai"}}

	_, err := Build(context.Background(), cfg, discard())
	assert.ErrorContains(t, err, "no model api")
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
