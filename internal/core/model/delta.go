package model

// Verdict is the three-way classification of an overall-score delta.
type Verdict string

const (
	VerdictImproved  Verdict = "improved"
	VerdictDeclined  Verdict = "declined"
	VerdictUnchanged Verdict = "unchanged"
)

// ComparisonDelta is augmented minus baseline for one (symptom, API) pair.
type ComparisonDelta struct {
	PrecisionDelta float64  `json:"precision_delta"`
	RecallDelta    float64  `json:"recall_delta"`
	F1Delta        float64  `json:"f1_delta"`
	OverallDelta   float64  `json:"overall_delta"`
	OrganImproved  bool     `json:"organ_improved"`
	Verdict        Verdict  `json:"verdict"`
	Highlights     []string `json:"highlights,omitempty"`
}
