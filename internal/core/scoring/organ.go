package scoring

import (
	"fmt"
	"strings"

	"github.com/agenthands/anatomy-eval/internal/core/model"
)

// SynonymTable resolves organ aliases to a canonical name. It is built once
// and never mutated.
type SynonymTable struct {
	canonical map[string]string
}

// NewSynonymTable indexes canonical -> aliases. Matching is case-insensitive.
func NewSynonymTable(synonyms map[string][]string) *SynonymTable {
	t := &SynonymTable{canonical: make(map[string]string)}
	for name, aliases := range synonyms {
		t.canonical[strings.ToLower(name)] = name
		for _, a := range aliases {
			t.canonical[strings.ToLower(a)] = name
		}
	}
	return t
}

// Resolve returns the canonical name for organ, or organ itself when unknown.
func (t *SynonymTable) Resolve(organ string) string {
	if t == nil {
		return organ
	}
	if name, ok := t.canonical[strings.ToLower(organ)]; ok {
		return name
	}
	return organ
}

// ClassifyOrgan grades a predicted organ label against the expected organs:
// exact identity first, then case-insensitive containment in either direction.
func (e *Evaluator) ClassifyOrgan(predicted string, expected []string) model.OrganAccuracy {
	var organs []string
	for _, o := range expected {
		if o != "" {
			organs = append(organs, o)
		}
	}
	if len(organs) == 0 {
		return model.OrganAccuracy{Class: model.OrganUnknown, Rationale: "no expected organ"}
	}
	if predicted == "" {
		return model.OrganAccuracy{Class: model.OrganIncorrect, Rationale: model.RationaleNoOrgan}
	}

	resolved := e.synonyms.Resolve(predicted)
	for _, o := range organs {
		if predicted == o || resolved == e.synonyms.Resolve(o) {
			return model.OrganAccuracy{
				Class:     model.OrganExactMatch,
				Score:     1.0,
				Rationale: fmt.Sprintf("exact match: %s", predicted),
			}
		}
	}

	p := strings.ToLower(predicted)
	for _, o := range organs {
		eo := strings.ToLower(o)
		if strings.Contains(eo, p) || strings.Contains(p, eo) {
			return model.OrganAccuracy{
				Class:     model.OrganPartialMatch,
				Score:     e.weights.PartialMatchScore,
				Rationale: fmt.Sprintf("partial match: predicted %q vs expected %q", predicted, o),
			}
		}
	}

	return model.OrganAccuracy{
		Class:     model.OrganIncorrect,
		Rationale: fmt.Sprintf("incorrect: predicted %q matches none of %v", predicted, organs),
	}
}
