// Package evidence decides how much retrieved reference material to trust
// before it is injected into a prompt.
package evidence

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/agenthands/anatomy-eval/internal/config"
	"github.com/agenthands/anatomy-eval/internal/core/model"
)

// ConflictPolicy selects what happens to evidence that nominates a minority organ.
type ConflictPolicy string

const (
	// PolicyPlurality keeps only the units citing the most frequent organ.
	PolicyPlurality ConflictPolicy = "plurality"
	// PolicyKeepAll keeps every unit; the trust score still carries the conflict penalty.
	PolicyKeepAll ConflictPolicy = "keep_all"
)

// Filter scores the mutual agreement of retrieved evidence. It holds only
// immutable configuration and is safe for concurrent use.
type Filter struct {
	cfg     config.EvidenceConfig
	lexicon []string
	policy  ConflictPolicy
}

func NewFilter(cfg config.EvidenceConfig) *Filter {
	lexicon := make([]string, 0, len(cfg.Lexicon))
	for _, term := range cfg.Lexicon {
		if term = strings.ToLower(strings.TrimSpace(term)); term != "" {
			lexicon = append(lexicon, term)
		}
	}
	policy := ConflictPolicy(cfg.ConflictPolicy)
	if policy == "" {
		policy = PolicyPlurality
	}
	return &Filter{cfg: cfg, lexicon: lexicon, policy: policy}
}

// Assess computes the trust score for units and returns the evidence that
// should reach the prompt builder.
func (f *Filter) Assess(units []model.EvidenceUnit) model.ConsistencyAssessment {
	if len(units) == 0 {
		return model.ConsistencyAssessment{
			TrustScore:    0,
			Tier:          model.TrustLow,
			Rationale:     "no evidence",
			FilteredUnits: []model.EvidenceUnit{},
		}
	}

	quality := 0.0
	for _, u := range units {
		quality += f.unitQuality(u)
	}
	quality /= float64(len(units))

	organs, counts := organTally(units)
	distinctLocations := countDistinctLocations(units)

	trust := quality
	conflict := len(organs) > 1
	if conflict {
		trust -= f.cfg.ConflictPenalty
	}
	diffuse := distinctLocations > f.cfg.DiffuseLocationThreshold
	if diffuse {
		trust -= f.cfg.DiffusePenalty
	}
	trust = clamp01(trust)

	a := model.ConsistencyAssessment{
		TrustScore:        trust,
		Tier:              f.tier(trust),
		FilteredUnits:     units,
		ConflictDetected:  conflict,
		DistinctOrgans:    len(organs),
		DistinctLocations: distinctLocations,
	}
	if len(organs) > 0 {
		a.DominantOrgan = plurality(organs, counts)
	}

	if conflict && f.policy == PolicyPlurality {
		kept := make([]model.EvidenceUnit, 0, counts[a.DominantOrgan])
		for _, u := range units {
			if u.OrganName() == a.DominantOrgan {
				kept = append(kept, u)
			}
		}
		a.FilteredUnits = kept
	}

	a.Rationale = f.rationale(a, len(units), diffuse)
	return a
}

func (f *Filter) unitQuality(u model.EvidenceUnit) float64 {
	q := 0.0
	if utf8.RuneCountInString(u.Text) > f.cfg.MinTextLength {
		q += f.cfg.TextWeight
	}
	if u.HasOrgan() {
		q += f.cfg.OrganWeight
		if len(u.Locations()) > 0 {
			q += f.cfg.LocationWeight
		}
	}
	if f.mentionsLexicon(u.Text) {
		q += f.cfg.LexiconWeight
	}
	return q
}

func (f *Filter) mentionsLexicon(text string) bool {
	lower := strings.ToLower(text)
	for _, term := range f.lexicon {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

func (f *Filter) tier(trust float64) model.TrustTier {
	switch {
	case trust > f.cfg.HighTrust:
		return model.TrustHigh
	case trust > f.cfg.MediumTrust:
		return model.TrustMedium
	default:
		return model.TrustLow
	}
}

func (f *Filter) rationale(a model.ConsistencyAssessment, total int, diffuse bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d evidence units, %s quality (trust %.2f)", total, a.Tier, a.TrustScore)
	switch {
	case a.ConflictDetected && f.policy == PolicyPlurality:
		fmt.Fprintf(&b, "; organ conflict across %d organs resolved to %q, kept %d of %d units",
			a.DistinctOrgans, a.DominantOrgan, len(a.FilteredUnits), total)
	case a.ConflictDetected:
		fmt.Fprintf(&b, "; organ conflict across %d organs, all units kept", a.DistinctOrgans)
	default:
		b.WriteString("; no organ conflict")
	}
	if diffuse {
		fmt.Fprintf(&b, "; diffuse evidence over %d locations", a.DistinctLocations)
	}
	return b.String()
}

// organTally returns distinct organ names in first-seen order with their counts.
func organTally(units []model.EvidenceUnit) ([]string, map[string]int) {
	var order []string
	counts := make(map[string]int)
	for _, u := range units {
		name := u.OrganName()
		if name == "" {
			continue
		}
		if counts[name] == 0 {
			order = append(order, name)
		}
		counts[name]++
	}
	return order, counts
}

// plurality picks the most frequent organ; ties go to the first seen.
func plurality(order []string, counts map[string]int) string {
	best := order[0]
	for _, name := range order[1:] {
		if counts[name] > counts[best] {
			best = name
		}
	}
	return best
}

func countDistinctLocations(units []model.EvidenceUnit) int {
	seen := make(map[string]struct{})
	for _, u := range units {
		for _, loc := range u.Locations() {
			seen[loc] = struct{}{}
		}
	}
	return len(seen)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
