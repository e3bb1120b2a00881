package retrieval

import (
	"context"

	"github.com/agenthands/anatomy-eval/internal/core/model"
)

const defaultGraphLimit = 5

// EvidenceFinder is the graph store query used by GraphRetriever.
type EvidenceFinder interface {
	FindEvidence(ctx context.Context, excludeSymptomID string, terms []string, limit int) ([]model.EvidenceUnit, error)
}

// GraphRetriever looks up annotated diagnosis units of other symptoms that
// share terms with the query symptom.
type GraphRetriever struct {
	Store EvidenceFinder
	Limit int
}

func (r *GraphRetriever) Retrieve(ctx context.Context, symptom model.Symptom) ([]model.EvidenceUnit, error) {
	limit := r.Limit
	if limit <= 0 {
		limit = defaultGraphLimit
	}
	return r.Store.FindEvidence(ctx, symptom.ID, Terms(symptom.Text), limit)
}
