package model

import "time"

// DiagnosisUnit is one expert-annotated unit attached to a symptom.
type DiagnosisUnit struct {
	Diagnosis string `json:"d_diagnosis" yaml:"d_diagnosis"`
	Organ     Organ  `json:"o_organ" yaml:"o_organ"`
}

// Symptom is one symptom description with its ground-truth units.
type Symptom struct {
	ID    string          `json:"symptom_id"`
	Index int             `json:"symptom_index"`
	Text  string          `json:"symptom_text"`
	Units []DiagnosisUnit `json:"expected_results"`
}

// Expected unions the symptom's annotated units into one ground truth.
func (s Symptom) Expected() AnatomicalSet {
	organs := make([]Organ, 0, len(s.Units))
	for _, u := range s.Units {
		organs = append(organs, u.Organ)
	}
	return ExpectedFromUnits(organs)
}

// Report is one diagnostic report file.
type Report struct {
	ID            string    `json:"report_id"`
	Path          string    `json:"file_path"`
	TotalSymptoms int       `json:"total_symptoms"`
	Symptoms      []Symptom `json:"symptoms"`
}

// APIResult holds the baseline and augmented outcome of one API for one symptom.
type APIResult struct {
	API         string          `json:"api"`
	Baseline    SampleSide      `json:"baseline_outcome"`
	Augmented   SampleSide      `json:"with_rag_outcome"`
	Delta       ComparisonDelta `json:"improvement"`
	Excluded    InvalidReason   `json:"excluded_reason,omitempty"`
	BaselineErr string          `json:"baseline_error,omitempty"`
	AugmentErr  string          `json:"augmented_error,omitempty"`
}

// Observation converts the result into the aggregator's input shape.
func (r APIResult) Observation(reportID, symptomID string) Observation {
	return Observation{
		API:       r.API,
		ReportID:  reportID,
		SymptomID: symptomID,
		Delta:     r.Delta,
		Baseline:  r.Baseline,
		Augmented: r.Augmented,
	}
}

// SymptomResult is the full outcome for one symptom across all APIs.
type SymptomResult struct {
	SymptomID string                `json:"symptom_id"`
	Text      string                `json:"symptom_text"`
	Expected  AnatomicalSet         `json:"expected_outcome"`
	Evidence  ConsistencyAssessment `json:"evidence"`
	APIs      []APIResult           `json:"apis"`
}

// ReportResult is the outcome of one report.
type ReportResult struct {
	ReportID string          `json:"report_id"`
	Symptoms []SymptomResult `json:"symptoms"`
	Failed   []string        `json:"failed_symptoms,omitempty"`
}

// BatchResult is the outcome of one evaluation run.
type BatchResult struct {
	RunID     string         `json:"run_id"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration"`
	Reports   []ReportResult `json:"reports"`
	Summary   Summary        `json:"summary"`
}
