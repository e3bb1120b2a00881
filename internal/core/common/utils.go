package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/agenthands/anatomy-eval/internal/core/model"
)

// ErrNoJSON is returned when a response carries no JSON object at all.
var ErrNoJSON = errors.New("no JSON object found in response")

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// ParseJSON cleans and unmarshals a JSON string into a type T.
// It handles common LLM quirks like surrounding markdown or extra text.
func ParseJSON[T any](response string) (T, error) {
	var zero T
	jsonStr, err := extractObject(response)
	if err != nil {
		return zero, err
	}

	var result T
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return zero, fmt.Errorf("failed to unmarshal JSON: %w\nData: %s", err, jsonStr)
	}

	return result, nil
}

// extractObject prefers a fenced ```json block and falls back to the span
// between the first '{' and the last '}'.
func extractObject(response string) (string, error) {
	if m := fencedJSON.FindStringSubmatch(response); m != nil {
		return m[1], nil
	}

	start := strings.IndexByte(response, '{')
	end := strings.LastIndexByte(response, '}')
	if start == -1 || end < start {
		return "", ErrNoJSON
	}
	return response[start : end+1], nil
}

// rawPrediction accepts every field spelling the models have been seen to use.
type rawPrediction struct {
	Organs         json.RawMessage `json:"organs"`
	OrganName      json.RawMessage `json:"organName"`
	OrganNameSnake json.RawMessage `json:"organ_name"`
	Organ          json.RawMessage `json:"organ"`
	Locations      json.RawMessage `json:"anatomicalLocations"`
	LocationsSnake json.RawMessage `json:"anatomical_locations"`
}

type rawOrgan struct {
	OrganName      json.RawMessage `json:"organName"`
	OrganNameSnake json.RawMessage `json:"organ_name"`
	Name           json.RawMessage `json:"name"`
	Locations      json.RawMessage `json:"anatomicalLocations"`
	LocationsSnake json.RawMessage `json:"anatomical_locations"`
}

// ParsePrediction normalises a model response into a single-organ
// prediction. Missing fields become empty values; only a response without
// any JSON object, or with unparseable JSON, is an error.
func ParsePrediction(response string) (model.AnatomicalSet, error) {
	raw, err := ParseJSON[rawPrediction](response)
	if err != nil {
		return model.AnatomicalSet{}, err
	}

	var organ string
	var locations []string

	for _, field := range []json.RawMessage{raw.Organs, raw.OrganName, raw.OrganNameSnake, raw.Organ} {
		if organ, locations = organField(field); organ != "" {
			break
		}
	}
	if len(locations) == 0 {
		locations = firstStrings(raw.Locations, raw.LocationsSnake)
	}
	return model.Prediction(organ, locations...), nil
}

// organField decodes an organ given as a string, an object or a list of
// objects. For a list the first entry with a name wins.
func organField(data json.RawMessage) (string, []string) {
	if len(data) == 0 {
		return "", nil
	}
	if s, ok := decodeString(data); ok {
		return strings.TrimSpace(s), nil
	}

	var list []rawOrgan
	if err := json.Unmarshal(data, &list); err == nil {
		for _, o := range list {
			if name, locs := o.resolve(); name != "" {
				return name, locs
			}
		}
		return "", nil
	}

	var single rawOrgan
	if err := json.Unmarshal(data, &single); err == nil {
		return single.resolve()
	}
	return "", nil
}

func (o rawOrgan) resolve() (string, []string) {
	var name string
	for _, field := range []json.RawMessage{o.OrganName, o.OrganNameSnake, o.Name} {
		if s, ok := decodeString(field); ok && strings.TrimSpace(s) != "" {
			name = strings.TrimSpace(s)
			break
		}
	}
	return name, firstStrings(o.Locations, o.LocationsSnake)
}

func firstStrings(fields ...json.RawMessage) []string {
	for _, field := range fields {
		if values := decodeStrings(field); len(values) > 0 {
			return values
		}
	}
	return nil
}

// decodeStrings accepts a list of strings or a single string.
func decodeStrings(data json.RawMessage) []string {
	if len(data) == 0 {
		return nil
	}
	if s, ok := decodeString(data); ok {
		if s = strings.TrimSpace(s); s != "" {
			return []string{s}
		}
		return nil
	}
	var list []any
	if err := json.Unmarshal(data, &list); err != nil {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

func decodeString(data json.RawMessage) (string, bool) {
	var s string
	if len(data) == 0 || json.Unmarshal(data, &s) != nil {
		return "", false
	}
	return s, true
}
