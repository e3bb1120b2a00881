package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/agenthands/anatomy-eval/internal/core/model"
)

// unitNamespace makes diagnosis-unit UUIDs stable across re-imports.
var unitNamespace = uuid.MustParse("6f1d4bde-4f7c-4c55-9a49-3c1b3f0e2a11")

// GraphDriver runs Cypher against Memgraph. MemgraphDriver is the live
// implementation; tests substitute a recorder.
type GraphDriver interface {
	ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error)
	BuildIndices(ctx context.Context) error
	Close(ctx context.Context) error
}

// GraphStore keeps annotated reports and comparison results in the graph.
type GraphStore struct {
	Driver GraphDriver
}

func NewGraphStore(d GraphDriver) *GraphStore {
	return &GraphStore{Driver: d}
}

// SaveReport writes a report with its symptoms and diagnosis units.
func (s *GraphStore) SaveReport(ctx context.Context, r model.Report) error {
	_, err := s.Driver.ExecuteQuery(ctx, SaveReportQuery, map[string]interface{}{
		"id":             r.ID,
		"path":           r.Path,
		"total_symptoms": int64(r.TotalSymptoms),
	})
	if err != nil {
		return fmt.Errorf("failed to save report %s: %w", r.ID, err)
	}

	for _, sym := range r.Symptoms {
		_, err := s.Driver.ExecuteQuery(ctx, SaveSymptomQuery, map[string]interface{}{
			"report_id": r.ID,
			"id":        sym.ID,
			"text":      sym.Text,
			"idx":       int64(sym.Index),
		})
		if err != nil {
			return fmt.Errorf("failed to save symptom %s: %w", sym.ID, err)
		}

		for i, u := range sym.Units {
			_, err := s.Driver.ExecuteQuery(ctx, SaveDiagnosisUnitQuery, map[string]interface{}{
				"symptom_id": sym.ID,
				"uuid":       UnitUUID(sym.ID, i),
				"diagnosis":  u.Diagnosis,
				"organ":      u.Organ.Name,
				"locations":  nonNil(u.Organ.Locations),
			})
			if err != nil {
				return fmt.Errorf("failed to save unit %d of symptom %s: %w", i, sym.ID, err)
			}
		}
	}
	return nil
}

// FindEvidence returns diagnosis units matching any of terms, skipping the
// units of excludeSymptomID so a symptom never retrieves its own answer.
func (s *GraphStore) FindEvidence(ctx context.Context, excludeSymptomID string, terms []string, limit int) ([]model.EvidenceUnit, error) {
	if len(terms) == 0 || limit <= 0 {
		return []model.EvidenceUnit{}, nil
	}

	res, err := s.Driver.ExecuteQuery(ctx, FindEvidenceQuery, map[string]interface{}{
		"exclude_id": excludeSymptomID,
		"terms":      terms,
		"limit":      int64(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find evidence: %w", err)
	}

	units := make([]model.EvidenceUnit, 0, len(res.Records))
	for _, rec := range res.Records {
		diagnosis, _ := rec.Get("diagnosis")
		organ, _ := rec.Get("organ")
		locations, _ := rec.Get("locations")

		u := model.EvidenceUnit{Text: asString(diagnosis)}
		if name := asString(organ); name != "" {
			u.Organ = &model.Organ{Name: name, Locations: asStrings(locations)}
		}
		units = append(units, u)
	}
	return units, nil
}

// SaveRun records a finished batch and one Comparison node per API result.
func (s *GraphStore) SaveRun(ctx context.Context, res model.BatchResult) error {
	summary, err := json.Marshal(res.Summary)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}

	_, err = s.Driver.ExecuteQuery(ctx, SaveRunQuery, map[string]interface{}{
		"id":          res.RunID,
		"started_at":  res.StartedAt.UTC().Format(time.RFC3339),
		"duration_ms": res.Duration.Milliseconds(),
		"summary":     string(summary),
	})
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", res.RunID, err)
	}

	for _, rep := range res.Reports {
		for _, sym := range rep.Symptoms {
			for _, api := range sym.APIs {
				obs := api.Observation(rep.ReportID, sym.SymptomID)
				if err := s.SaveComparison(ctx, res.RunID, obs, api.Excluded); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (s *GraphStore) SaveComparison(ctx context.Context, runID string, obs model.Observation, reason model.InvalidReason) error {
	_, err := s.Driver.ExecuteQuery(ctx, SaveComparisonQuery, map[string]interface{}{
		"run_id":          runID,
		"uuid":            uuid.NewString(),
		"api":             obs.API,
		"report_id":       obs.ReportID,
		"symptom_id":      obs.SymptomID,
		"baseline_score":  obs.Baseline.Score.OverallScore,
		"augmented_score": obs.Augmented.Score.OverallScore,
		"overall_delta":   obs.Delta.OverallDelta,
		"f1_delta":        obs.Delta.F1Delta,
		"verdict":         string(obs.Delta.Verdict),
		"organ_improved":  obs.Delta.OrganImproved,
		"invalid_reason":  string(reason),
	})
	if err != nil {
		return fmt.Errorf("failed to save comparison %s/%s: %w", obs.SymptomID, obs.API, err)
	}
	return nil
}

func UnitUUID(symptomID string, index int) string {
	return uuid.NewSHA1(unitNamespace, []byte(symptomID+"#"+strconv.Itoa(index))).String()
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asStrings(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
