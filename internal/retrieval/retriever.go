// Package retrieval supplies evidence units for a symptom.
package retrieval

import (
	"context"
	"log/slog"
	"strings"
	"unicode"

	"github.com/agenthands/anatomy-eval/internal/core/model"
	"github.com/agenthands/anatomy-eval/internal/llm"
)

type Retriever interface {
	Retrieve(ctx context.Context, symptom model.Symptom) ([]model.EvidenceUnit, error)
}

// EvidenceCache is the read-through store used by CachedRetriever.
type EvidenceCache interface {
	Get(query string) ([]model.EvidenceUnit, bool, error)
	Put(query string, units []model.EvidenceUnit) error
}

// CachedRetriever answers from the cache when it can and fills it otherwise.
type CachedRetriever struct {
	Inner  Retriever
	Cache  EvidenceCache
	Logger *slog.Logger
}

func (r *CachedRetriever) Retrieve(ctx context.Context, symptom model.Symptom) ([]model.EvidenceUnit, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	units, ok, err := r.Cache.Get(symptom.Text)
	if err != nil {
		logger.Warn("evidence cache read failed", "symptom_id", symptom.ID, "error", err)
	} else if ok {
		return units, nil
	}

	units, err = r.Inner.Retrieve(ctx, symptom)
	if err != nil {
		return nil, err
	}
	if err := r.Cache.Put(symptom.Text, units); err != nil {
		logger.Warn("evidence cache write failed", "symptom_id", symptom.ID, "error", err)
	}
	return units, nil
}

// RankedRetriever reorders the inner retriever's units with a reranker and
// keeps the first TopK (all when TopK <= 0).
type RankedRetriever struct {
	Inner    Retriever
	Reranker llm.RerankerClient
	TopK     int
}

func (r *RankedRetriever) Retrieve(ctx context.Context, symptom model.Symptom) ([]model.EvidenceUnit, error) {
	units, err := r.Inner.Retrieve(ctx, symptom)
	if err != nil || len(units) < 2 {
		return units, err
	}

	docs := make([]string, len(units))
	for i, u := range units {
		docs[i] = u.Text
	}
	order, err := r.Reranker.Rank(ctx, symptom.Text, docs)
	if err != nil {
		return nil, err
	}

	ranked := make([]model.EvidenceUnit, 0, len(units))
	for _, i := range order {
		if i >= 0 && i < len(units) {
			ranked = append(ranked, units[i])
		}
	}
	if r.TopK > 0 && len(ranked) > r.TopK {
		ranked = ranked[:r.TopK]
	}
	return ranked, nil
}

// Terms splits a query into lower-cased search terms. Words shorter than
// three letters are dropped; runs of CJK characters, which carry no spaces,
// are split into overlapping bigrams.
func Terms(text string) []string {
	seen := make(map[string]struct{})
	var terms []string
	add := func(t string) {
		if _, ok := seen[t]; ok {
			return
		}
		seen[t] = struct{}{}
		terms = append(terms, t)
	}

	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, f := range fields {
		runes := []rune(f)
		if unicode.Is(unicode.Han, runes[0]) {
			if len(runes) == 1 {
				add(f)
				continue
			}
			for i := 0; i+1 < len(runes); i++ {
				add(string(runes[i : i+2]))
			}
			continue
		}
		if len(runes) >= 3 {
			add(f)
		}
	}
	return terms
}
