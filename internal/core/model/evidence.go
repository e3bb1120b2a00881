package model

// EvidenceUnit is one retrieved reference record considered for prompt injection.
type EvidenceUnit struct {
	Text  string `json:"text"`
	Organ *Organ `json:"organ,omitempty"`
}

// OrganName returns the unit's organ label, or "" when the unit carries none.
func (u EvidenceUnit) OrganName() string {
	if u.Organ == nil {
		return ""
	}
	return u.Organ.Name
}

// HasOrgan reports whether the unit nominates an organ.
func (u EvidenceUnit) HasOrgan() bool {
	return u.OrganName() != ""
}

// Locations returns the unit's anatomical locations, if any.
func (u EvidenceUnit) Locations() []string {
	if u.Organ == nil {
		return nil
	}
	return u.Organ.Locations
}

// TrustTier is the coarse label attached to a trust score.
type TrustTier string

const (
	TrustHigh   TrustTier = "high"
	TrustMedium TrustTier = "medium"
	TrustLow    TrustTier = "low"
)

// ConsistencyAssessment is the trust-weighted, de-conflicted evidence for one symptom.
type ConsistencyAssessment struct {
	TrustScore        float64        `json:"trust_score"`
	Tier              TrustTier      `json:"tier"`
	Rationale         string         `json:"rationale"`
	FilteredUnits     []EvidenceUnit `json:"filtered_units"`
	ConflictDetected  bool           `json:"conflict_detected"`
	DominantOrgan     string         `json:"dominant_organ,omitempty"`
	DistinctOrgans    int            `json:"distinct_organs"`
	DistinctLocations int            `json:"distinct_locations"`
}
