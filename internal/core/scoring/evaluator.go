// Package scoring grades a predicted organ/location set against the ground truth.
package scoring

import (
	"fmt"
	"math"

	"github.com/agenthands/anatomy-eval/internal/config"
	"github.com/agenthands/anatomy-eval/internal/core/model"
)

const (
	rationaleMissingGroundTruth = "missing ground truth"
	rationaleNoPrediction       = "no prediction"
)

// Evaluator scores predictions. It holds only immutable configuration and is
// safe for concurrent use.
type Evaluator struct {
	weights  config.ScoringConfig
	curve    PenaltyCurve
	synonyms *SynonymTable
}

// NewEvaluator builds an evaluator from scoring configuration.
func NewEvaluator(cfg config.ScoringConfig) *Evaluator {
	points := make([]config.PenaltyPoint, len(cfg.PenaltyCurve))
	copy(points, cfg.PenaltyCurve)
	return &Evaluator{
		weights:  cfg,
		curve:    PenaltyCurve(points),
		synonyms: NewSynonymTable(cfg.OrganSynonyms),
	}
}

// Evaluate scores one prediction against one ground truth. It never fails:
// missing data yields the zero score with a status naming what was missing.
func (e *Evaluator) Evaluate(predicted, expected model.AnatomicalSet) model.MatchScore {
	organ := e.ClassifyOrgan(predicted.PrimaryOrgan(), expected.Organs)

	pred := predicted.UniqueLocations()
	exp := expected.UniqueLocations()

	if len(exp) == 0 {
		return zeroScore(model.StatusMissingGroundTruth, rationaleMissingGroundTruth, organ, len(pred), 0)
	}
	if len(pred) == 0 {
		return zeroScore(model.StatusNoPrediction, rationaleNoPrediction, organ, 0, len(exp))
	}

	expSet := make(map[string]struct{}, len(exp))
	for _, loc := range exp {
		expSet[loc] = struct{}{}
	}
	correct := 0
	for _, loc := range pred {
		if _, ok := expSet[loc]; ok {
			correct++
		}
	}

	precision := float64(correct) / float64(len(pred))
	recall := float64(correct) / float64(len(exp))
	penalty := e.curve.At(float64(len(pred)) / float64(len(exp)))

	overall := 100 * (e.weights.PrecisionWeight*precision +
		e.weights.RecallWeight*recall +
		e.weights.PenaltyWeight*penalty)

	return model.MatchScore{
		Precision:             precision,
		Recall:                recall,
		OvergenerationPenalty: penalty,
		OverallScore:          roundScore(clamp(overall, 0, 100)),
		Organ:                 organ,
		Status:                model.StatusEvaluated,
		Rationale: fmt.Sprintf("precision %d/%d (%.1f%%); recall %d/%d (%.1f%%); overgeneration penalty %.1f%%",
			correct, len(pred), precision*100, correct, len(exp), recall*100, penalty*100),
		Correct:   correct,
		Predicted: len(pred),
		Expected:  len(exp),
	}
}

func zeroScore(status model.ScoreStatus, rationale string, organ model.OrganAccuracy, predicted, expected int) model.MatchScore {
	return model.MatchScore{
		Organ:     organ,
		Status:    status,
		Rationale: rationale,
		Predicted: predicted,
		Expected:  expected,
	}
}

// roundScore keeps one decimal so mathematically equal scores compare equal.
func roundScore(v float64) float64 {
	return math.Round(v*10) / 10
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
