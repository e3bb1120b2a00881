// Package compare turns a baseline and an augmented score for the same
// symptom into signed deltas and a verdict.
package compare

import (
	"fmt"

	"github.com/agenthands/anatomy-eval/internal/core/model"
)

// Compare returns augmented minus baseline. It never fails: degenerate
// scores simply produce degenerate deltas.
func Compare(baseline, augmented model.MatchScore) model.ComparisonDelta {
	d := model.ComparisonDelta{
		PrecisionDelta: augmented.Precision - baseline.Precision,
		RecallDelta:    augmented.Recall - baseline.Recall,
		F1Delta:        augmented.F1() - baseline.F1(),
		OverallDelta:   augmented.OverallScore - baseline.OverallScore,
		OrganImproved: augmented.Organ.Class == model.OrganExactMatch &&
			baseline.Organ.Class != model.OrganExactMatch,
	}
	d.Verdict = VerdictOf(d.OverallDelta)
	d.Highlights = highlights(baseline, augmented, d)
	return d
}

// VerdictOf classifies an overall-score delta by its sign.
func VerdictOf(overallDelta float64) model.Verdict {
	switch {
	case overallDelta > 0:
		return model.VerdictImproved
	case overallDelta < 0:
		return model.VerdictDeclined
	default:
		return model.VerdictUnchanged
	}
}

func highlights(baseline, augmented model.MatchScore, d model.ComparisonDelta) []string {
	var out []string
	if d.PrecisionDelta > 0 {
		out = append(out, fmt.Sprintf("precision improved %.1f%%", d.PrecisionDelta*100))
	}
	if d.RecallDelta > 0 {
		out = append(out, fmt.Sprintf("recall improved %.1f%%", d.RecallDelta*100))
	}
	if d.F1Delta > 0 {
		out = append(out, fmt.Sprintf("F1 improved %.3f", d.F1Delta))
	}
	if d.OverallDelta > 0 {
		out = append(out, fmt.Sprintf("overall score improved %.1f points", d.OverallDelta))
	}
	if baseline.Organ.Class != augmented.Organ.Class {
		out = append(out, fmt.Sprintf("organ accuracy %s -> %s", orUnknown(baseline.Organ.Class), orUnknown(augmented.Organ.Class)))
	}
	return out
}

func orUnknown(c model.OrganClass) model.OrganClass {
	if c == "" {
		return model.OrganUnknown
	}
	return c
}
