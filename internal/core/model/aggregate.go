package model

// SampleSide is what one model produced for one prompt variant, plus its score.
type SampleSide struct {
	Organ     string     `json:"organ"`
	Locations []string   `json:"anatomical_locations"`
	Score     MatchScore `json:"metrics"`
}

// Observation is one (symptom, API) comparison as fed to the aggregator.
type Observation struct {
	API       string          `json:"api"`
	ReportID  string          `json:"report_id,omitempty"`
	SymptomID string          `json:"symptom_id,omitempty"`
	Delta     ComparisonDelta `json:"delta"`
	Baseline  SampleSide      `json:"baseline"`
	Augmented SampleSide      `json:"augmented"`
}

// InvalidReason names why a sample was excluded from the statistics.
type InvalidReason string

const (
	ReasonNone           InvalidReason = ""
	ReasonEmptyOrgan     InvalidReason = "empty_organ"
	ReasonEmptyLocations InvalidReason = "empty_locations"
	ReasonZeroScores     InvalidReason = "zero_scores"
	ReasonNoOrgan        InvalidReason = "no_organ_identified"
)

// IsEmptyResult reports whether the reason belongs to the empty-result bucket.
func (r InvalidReason) IsEmptyResult() bool {
	return r == ReasonEmptyOrgan || r == ReasonEmptyLocations
}

// AggregateStats is the finalized rollup for one API (or one report/API pair, or the corpus).
type AggregateStats struct {
	ValidTotal       int  `json:"valid_total"`
	InvalidCount     int  `json:"invalid_count"`
	EmptyResultCount int  `json:"empty_result_count"`
	ZeroScoreCount   int  `json:"zero_score_count"`
	HasNoValidData   bool `json:"has_no_valid_data"`

	ImprovedCount      int `json:"improved_count"`
	DeclinedCount      int `json:"declined_count"`
	UnchangedCount     int `json:"unchanged_count"`
	OrganImprovedCount int `json:"organ_improved_count"`

	ImprovementRatio   float64 `json:"improvement_ratio"`
	DeclineRatio       float64 `json:"decline_ratio"`
	UnchangedRatio     float64 `json:"unchanged_ratio"`
	OrganImprovedRatio float64 `json:"organ_improved_ratio"`

	MeanPrecisionDelta float64 `json:"mean_precision_delta"`
	MeanRecallDelta    float64 `json:"mean_recall_delta"`
	MeanF1Delta        float64 `json:"mean_f1_delta"`
	MeanOverallDelta   float64 `json:"mean_overall_delta"`

	MeanBaselineScore  float64 `json:"mean_baseline_score"`
	MeanAugmentedScore float64 `json:"mean_augmented_score"`
	MeanImprovement    float64 `json:"mean_improvement"`
	MeanDecline        float64 `json:"mean_decline"`
}

// Summary is the finalized output of an aggregation run.
type Summary struct {
	ByAPI    map[string]AggregateStats            `json:"by_api"`
	ByReport map[string]map[string]AggregateStats `json:"by_report,omitempty"`
	Corpus   AggregateStats                       `json:"corpus"`

	BestImprovingAPI  string `json:"best_improvement_api,omitempty"`
	WorstDecliningAPI string `json:"worst_decline_api,omitempty"`
	MostStableAPI     string `json:"most_stable_api,omitempty"`
}
