// Package aggregate folds per-symptom comparisons into per-API statistics.
//
// Degenerate provider responses (quota errors, malformed JSON, empty answers)
// are filtered out before anything is averaged and are counted separately, so
// they cannot pass for a real effect of retrieval augmentation.
package aggregate

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/agenthands/anatomy-eval/internal/core/model"
)

// ErrInvalidObservation is returned for observations that can never be valid
// input, as opposed to degenerate samples which are counted and excluded.
var ErrInvalidObservation = errors.New("invalid observation")

// Validate applies the validity gate. Checks run in a fixed order and the
// first failing one names the reason.
func Validate(obs model.Observation) model.InvalidReason {
	b, a := obs.Baseline, obs.Augmented
	switch {
	case b.Organ == "" || a.Organ == "":
		return model.ReasonEmptyOrgan
	case len(b.Locations) == 0 && len(a.Locations) == 0:
		return model.ReasonEmptyLocations
	case b.Score.OverallScore == 0 && a.Score.OverallScore == 0:
		return model.ReasonZeroScores
	case b.Score.Organ.Rationale == model.RationaleNoOrgan && a.Score.Organ.Rationale == model.RationaleNoOrgan:
		return model.ReasonNoOrgan
	}
	return model.ReasonNone
}

type accumulator struct {
	valid       int
	invalid     int
	emptyResult int
	zeroScore   int

	improved      int
	declined      int
	unchanged     int
	organImproved int

	sumPrecision float64
	sumRecall    float64
	sumF1        float64
	sumOverall   float64

	sumBaseline    float64
	sumAugmented   float64
	sumImprovement float64
	sumDecline     float64
}

func (acc *accumulator) add(obs model.Observation, reason model.InvalidReason) {
	if reason != model.ReasonNone {
		acc.invalid++
		switch {
		case reason.IsEmptyResult():
			acc.emptyResult++
		case reason == model.ReasonZeroScores:
			acc.zeroScore++
		}
		return
	}

	d := obs.Delta
	acc.valid++
	switch d.Verdict {
	case model.VerdictImproved:
		acc.improved++
		acc.sumImprovement += d.OverallDelta
	case model.VerdictDeclined:
		acc.declined++
		acc.sumDecline -= d.OverallDelta
	default:
		acc.unchanged++
	}
	if d.OrganImproved {
		acc.organImproved++
	}
	acc.sumPrecision += d.PrecisionDelta
	acc.sumRecall += d.RecallDelta
	acc.sumF1 += d.F1Delta
	acc.sumOverall += d.OverallDelta
	acc.sumBaseline += obs.Baseline.Score.OverallScore
	acc.sumAugmented += obs.Augmented.Score.OverallScore
}

func (acc *accumulator) merge(o *accumulator) {
	acc.valid += o.valid
	acc.invalid += o.invalid
	acc.emptyResult += o.emptyResult
	acc.zeroScore += o.zeroScore
	acc.improved += o.improved
	acc.declined += o.declined
	acc.unchanged += o.unchanged
	acc.organImproved += o.organImproved
	acc.sumPrecision += o.sumPrecision
	acc.sumRecall += o.sumRecall
	acc.sumF1 += o.sumF1
	acc.sumOverall += o.sumOverall
	acc.sumBaseline += o.sumBaseline
	acc.sumAugmented += o.sumAugmented
	acc.sumImprovement += o.sumImprovement
	acc.sumDecline += o.sumDecline
}

func (acc *accumulator) stats() model.AggregateStats {
	s := model.AggregateStats{
		ValidTotal:         acc.valid,
		InvalidCount:       acc.invalid,
		EmptyResultCount:   acc.emptyResult,
		ZeroScoreCount:     acc.zeroScore,
		ImprovedCount:      acc.improved,
		DeclinedCount:      acc.declined,
		UnchangedCount:     acc.unchanged,
		OrganImprovedCount: acc.organImproved,
	}
	if acc.valid == 0 {
		s.HasNoValidData = true
		return s
	}

	n := float64(acc.valid)
	s.ImprovementRatio = float64(acc.improved) / n
	s.DeclineRatio = float64(acc.declined) / n
	s.UnchangedRatio = float64(acc.unchanged) / n
	s.OrganImprovedRatio = float64(acc.organImproved) / n
	s.MeanPrecisionDelta = acc.sumPrecision / n
	s.MeanRecallDelta = acc.sumRecall / n
	s.MeanF1Delta = acc.sumF1 / n
	s.MeanOverallDelta = acc.sumOverall / n
	s.MeanBaselineScore = acc.sumBaseline / n
	s.MeanAugmentedScore = acc.sumAugmented / n
	if acc.improved > 0 {
		s.MeanImprovement = acc.sumImprovement / float64(acc.improved)
	}
	if acc.declined > 0 {
		s.MeanDecline = acc.sumDecline / float64(acc.declined)
	}
	return s
}

// Aggregator accumulates observations. It is not safe for concurrent use;
// give each worker its own Aggregator and Merge the partials afterwards.
type Aggregator struct {
	byAPI    map[string]*accumulator
	byReport map[string]map[string]*accumulator
	corpus   accumulator
}

func New() *Aggregator {
	return &Aggregator{
		byAPI:    make(map[string]*accumulator),
		byReport: make(map[string]map[string]*accumulator),
	}
}

// Add folds one observation and returns the validity verdict it received.
// Only malformed input yields an error; degenerate samples are counted.
func (g *Aggregator) Add(obs model.Observation) (model.InvalidReason, error) {
	if err := checkObservation(obs); err != nil {
		return model.ReasonNone, err
	}

	reason := Validate(obs)
	g.apiAcc(obs.API).add(obs, reason)
	if obs.ReportID != "" {
		g.reportAcc(obs.ReportID, obs.API).add(obs, reason)
	}
	g.corpus.add(obs, reason)
	return reason, nil
}

// Fold adds every observation, stopping at the first malformed one.
func (g *Aggregator) Fold(observations []model.Observation) error {
	for i, obs := range observations {
		if _, err := g.Add(obs); err != nil {
			return fmt.Errorf("observation %d: %w", i, err)
		}
	}
	return nil
}

// Merge adds other's partial sums into g. Merging is commutative and
// associative, so partials can be reduced in any order.
func (g *Aggregator) Merge(other *Aggregator) {
	if other == nil {
		return
	}
	for api, acc := range other.byAPI {
		g.apiAcc(api).merge(acc)
	}
	for report, apis := range other.byReport {
		for api, acc := range apis {
			g.reportAcc(report, api).merge(acc)
		}
	}
	g.corpus.merge(&other.corpus)
}

// Finalize computes ratios and means. It does not reset the aggregator.
func (g *Aggregator) Finalize() model.Summary {
	sum := model.Summary{
		ByAPI:  make(map[string]model.AggregateStats, len(g.byAPI)),
		Corpus: g.corpus.stats(),
	}
	for api, acc := range g.byAPI {
		sum.ByAPI[api] = acc.stats()
	}
	if len(g.byReport) > 0 {
		sum.ByReport = make(map[string]map[string]model.AggregateStats, len(g.byReport))
		for report, apis := range g.byReport {
			m := make(map[string]model.AggregateStats, len(apis))
			for api, acc := range apis {
				m[api] = acc.stats()
			}
			sum.ByReport[report] = m
		}
	}

	sum.BestImprovingAPI = argmax(sum.ByAPI, func(s model.AggregateStats) float64 { return s.ImprovementRatio })
	sum.WorstDecliningAPI = argmax(sum.ByAPI, func(s model.AggregateStats) float64 { return s.DeclineRatio })
	sum.MostStableAPI = argmax(sum.ByAPI, func(s model.AggregateStats) float64 { return s.UnchangedRatio })
	return sum
}

func (g *Aggregator) apiAcc(api string) *accumulator {
	acc, ok := g.byAPI[api]
	if !ok {
		acc = &accumulator{}
		g.byAPI[api] = acc
	}
	return acc
}

func (g *Aggregator) reportAcc(report, api string) *accumulator {
	apis, ok := g.byReport[report]
	if !ok {
		apis = make(map[string]*accumulator)
		g.byReport[report] = apis
	}
	acc, ok := apis[api]
	if !ok {
		acc = &accumulator{}
		apis[api] = acc
	}
	return acc
}

// argmax over APIs with valid data; ties go to the lexically smallest name.
func argmax(stats map[string]model.AggregateStats, key func(model.AggregateStats) float64) string {
	names := make([]string, 0, len(stats))
	for name, s := range stats {
		if !s.HasNoValidData {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	best := ""
	for _, name := range names {
		if best == "" || key(stats[name]) > key(stats[best]) {
			best = name
		}
	}
	return best
}

func checkObservation(obs model.Observation) error {
	if obs.API == "" {
		return fmt.Errorf("%w: empty api name", ErrInvalidObservation)
	}
	values := []float64{
		obs.Baseline.Score.OverallScore, obs.Augmented.Score.OverallScore,
		obs.Delta.PrecisionDelta, obs.Delta.RecallDelta, obs.Delta.F1Delta, obs.Delta.OverallDelta,
	}
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite score for api %q", ErrInvalidObservation, obs.API)
		}
	}
	return nil
}
