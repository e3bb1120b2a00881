package retrieval

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/agenthands/anatomy-eval/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ragLines = `{"query": "chest pain on exertion", "s": {"rag_s_10_id": {"units": [{"u_unit": {"d_diagnosis": "late block", "o_organ": {"organName": "Lung", "anatomicalLocations": []}}}]}, "rag_s_2_id": {"units": [{"u_unit": {"d_diagnosis": "aortic stenosis", "o_organ": {"organName": "Heart (Cor)", "anatomicalLocations": ["Aortic Valve"]}}}, {"u_unit": {"d_diagnosis": "no organ", "o_organ": {}}}]}}}

{"query": "", "s": {}}
{"query": "jaundice", "s": {}}
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestFileRetriever(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "report_1_ragoutcome:a.jsonl", ragLines)

	r, err := LoadFiles(filepath.Join(dir, "*.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())

	units, err := r.Retrieve(context.Background(), model.Symptom{Text: " chest pain on exertion\n"})
	require.NoError(t, err)
	require.Len(t, units, 3)
	assert.Equal(t, "aortic stenosis", units[0].Text)
	assert.Equal(t, []string{"Aortic Valve"}, units[0].Locations())
	assert.Nil(t, units[1].Organ)
	assert.Equal(t, "late block", units[2].Text)

	units, err = r.Retrieve(context.Background(), model.Symptom{Text: "jaundice"})
	require.NoError(t, err)
	assert.NotNil(t, units)
	assert.Empty(t, units)

	units, err = r.Retrieve(context.Background(), model.Symptom{Text: "unknown"})
	require.NoError(t, err)
	assert.Empty(t, units)
}

func TestLoadFiles_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFiles(filepath.Join(dir, "*.jsonl"))
	assert.ErrorContains(t, err, "no evidence files")

	writeFile(t, dir, "bad.jsonl", "{not json}\n")
	_, err = LoadFiles(filepath.Join(dir, "*.jsonl"))
	assert.ErrorContains(t, err, "bad.jsonl:1")
}

type fakeFinder struct {
	exclude string
	terms   []string
	limit   int
}

func (f *fakeFinder) FindEvidence(ctx context.Context, exclude string, terms []string, limit int) ([]model.EvidenceUnit, error) {
	f.exclude, f.terms, f.limit = exclude, terms, limit
	return []model.EvidenceUnit{{Text: "hit"}}, nil
}

func TestGraphRetriever(t *testing.T) {
	finder := &fakeFinder{}
	r := &GraphRetriever{Store: finder}

	units, err := r.Retrieve(context.Background(), model.Symptom{ID: "1_0", Text: "Chest pain, on exertion"})
	require.NoError(t, err)
	assert.Len(t, units, 1)
	assert.Equal(t, "1_0", finder.exclude)
	assert.Equal(t, []string{"chest", "pain", "exertion"}, finder.terms)
	assert.Equal(t, defaultGraphLimit, finder.limit)
}

func TestTerms(t *testing.T) {
	assert.Equal(t, []string{"left", "arm", "pain"}, Terms("Left arm pain, left ARM"))
	assert.Equal(t, []string{"胸痛", "痛伴", "伴气", "气促"}, Terms("胸痛伴气促"))
	assert.Equal(t, []string{"咳", "fever"}, Terms("咳 of fever"))
	assert.Empty(t, Terms(" , ."))
}

type countingRetriever struct {
	calls int
	units []model.EvidenceUnit
	err   error
}

func (c *countingRetriever) Retrieve(ctx context.Context, s model.Symptom) ([]model.EvidenceUnit, error) {
	c.calls++
	return c.units, c.err
}

type mapCache struct {
	data map[string][]model.EvidenceUnit
}

func (m *mapCache) Get(q string) ([]model.EvidenceUnit, bool, error) {
	u, ok := m.data[q]
	return u, ok, nil
}

func (m *mapCache) Put(q string, u []model.EvidenceUnit) error {
	m.data[q] = u
	return nil
}

func TestCachedRetriever(t *testing.T) {
	inner := &countingRetriever{units: []model.EvidenceUnit{{Text: "a"}}}
	r := &CachedRetriever{Inner: inner, Cache: &mapCache{data: map[string][]model.EvidenceUnit{}}}
	sym := model.Symptom{ID: "1", Text: "cough"}

	first, err := r.Retrieve(context.Background(), sym)
	require.NoError(t, err)
	second, err := r.Retrieve(context.Background(), sym)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)
}

func TestCachedRetriever_ErrorNotCached(t *testing.T) {
	inner := &countingRetriever{err: errors.New("graph down")}
	cache := &mapCache{data: map[string][]model.EvidenceUnit{}}
	r := &CachedRetriever{Inner: inner, Cache: cache}

	_, err := r.Retrieve(context.Background(), model.Symptom{Text: "cough"})
	assert.Error(t, err)
	assert.Empty(t, cache.data)
}

type fixedRanker struct {
	order []int
}

func (f fixedRanker) Rank(ctx context.Context, q string, docs []string) ([]int, error) {
	return f.order, nil
}

func TestRankedRetriever(t *testing.T) {
	inner := &countingRetriever{units: []model.EvidenceUnit{{Text: "a"}, {Text: "b"}, {Text: "c"}}}
	r := &RankedRetriever{Inner: inner, Reranker: fixedRanker{order: []int{2, 0, 1}}, TopK: 2}

	units, err := r.Retrieve(context.Background(), model.Symptom{Text: "q"})
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, "c", units[0].Text)
	assert.Equal(t, "a", units[1].Text)
}
