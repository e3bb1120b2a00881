package model

// OrganClass is the categorical organ-accuracy verdict.
type OrganClass string

const (
	OrganExactMatch   OrganClass = "exact_match"
	OrganPartialMatch OrganClass = "partial_match"
	OrganIncorrect    OrganClass = "incorrect"
	OrganUnknown      OrganClass = "unknown"
)

// RationaleNoOrgan marks an organ verdict where the model named no organ at all.
const RationaleNoOrgan = "no organ identified"

// OrganAccuracy describes how a predicted organ matched the expected organs.
type OrganAccuracy struct {
	Class     OrganClass `json:"category"`
	Score     float64    `json:"score"`
	Rationale string     `json:"description"`
}

// ScoreStatus distinguishes an evaluated score from the degenerate zero sentinels.
type ScoreStatus string

const (
	StatusEvaluated          ScoreStatus = "evaluated"
	StatusMissingGroundTruth ScoreStatus = "missing_ground_truth"
	StatusNoPrediction       ScoreStatus = "no_prediction"
)

// MatchScore is the immutable result of scoring one prediction against one ground truth.
// Precision, Recall and OvergenerationPenalty are in [0,1]; OverallScore is in [0,100].
type MatchScore struct {
	Precision             float64       `json:"precision"`
	Recall                float64       `json:"recall"`
	OvergenerationPenalty float64       `json:"overgeneration_penalty"`
	OverallScore          float64       `json:"overall_score"`
	Organ                 OrganAccuracy `json:"organ_accuracy"`

	Status    ScoreStatus `json:"status"`
	Rationale string      `json:"detailed_analysis"`
	Correct   int         `json:"correct"`
	Predicted int         `json:"predicted"`
	Expected  int         `json:"expected"`
}

// F1 is the harmonic mean of precision and recall, 0 when both are 0.
func (s MatchScore) F1() float64 {
	if s.Precision+s.Recall == 0 {
		return 0
	}
	return 2 * s.Precision * s.Recall / (s.Precision + s.Recall)
}
