package model

// Organ is one organ annotation with the anatomical locations it covers.
// Matches the organName / anatomicalLocations shape of the annotated reports.
type Organ struct {
	Name      string   `json:"organName" yaml:"organName"`
	Locations []string `json:"anatomicalLocations" yaml:"anatomicalLocations"`
}

// AnatomicalSet is either a ground truth (possibly the union of several
// annotated units) or a single normalized model prediction.
type AnatomicalSet struct {
	Organs    []string `json:"organs"`
	Locations []string `json:"locations"`
}

// PrimaryOrgan returns the first non-empty organ label, or "" if none.
func (s AnatomicalSet) PrimaryOrgan() string {
	for _, o := range s.Organs {
		if o != "" {
			return o
		}
	}
	return ""
}

// UniqueLocations returns the locations with duplicates removed, keeping first-seen order.
func (s AnatomicalSet) UniqueLocations() []string {
	return dedupe(s.Locations)
}

// Prediction builds a predicted set from a single organ and its locations.
func Prediction(organ string, locations ...string) AnatomicalSet {
	set := AnatomicalSet{Locations: locations}
	if organ != "" {
		set.Organs = []string{organ}
	}
	return set
}

// ExpectedFromUnits unions several annotated units into one ground truth.
// Organ labels are kept as annotated; locations are de-duplicated.
func ExpectedFromUnits(units []Organ) AnatomicalSet {
	var set AnatomicalSet
	for _, u := range units {
		if u.Name != "" {
			set.Organs = append(set.Organs, u.Name)
		}
		set.Locations = append(set.Locations, u.Locations...)
	}
	set.Locations = dedupe(set.Locations)
	return set
}

func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
