package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/anatomy-eval/internal/config"
	"github.com/agenthands/anatomy-eval/internal/core"
	"github.com/agenthands/anatomy-eval/internal/core/model"
	"github.com/agenthands/anatomy-eval/internal/llm"
	"github.com/agenthands/anatomy-eval/internal/observability"
)

type MockLLM struct {
	Response string
}

func (m *MockLLM) Generate(ctx context.Context, prompt string) (string, error) {
	return m.Response, nil
}

func newTestServer(t *testing.T, clients []llm.NamedClient) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	p := core.NewPipeline(config.Default(), clients, nil, nil)
	p.Metrics = observability.NewMetrics(reg)
	return NewServer(p, reg, nil).SetupRouter()
}

func do(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

var heartExpected = model.AnatomicalSet{
	Organs:    []string{"Heart (Cor)"},
	Locations: []string{"Aortic Valve", "Left Ventricle (LV)"},
}

func TestScore(t *testing.T) {
	r := newTestServer(t, nil)

	w := do(t, r, http.MethodPost, "/score", ScoreRequest{
		Predicted: &PredictionInput{Organ: "Heart (Cor)", Locations: []string{"Aortic Valve"}},
		Expected:  heartExpected,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Score model.MatchScore `json:"score"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.InDelta(t, 80.0, resp.Score.OverallScore, 1e-9)
	assert.Equal(t, model.OrganExactMatch, resp.Score.Organ.Class)
}

func TestScore_RawResponse(t *testing.T) {
	r := newTestServer(t, nil)

	w := do(t, r, http.MethodPost, "/score", ScoreRequest{
		Response: `{"organ": "Heart (Cor)", "anatomical_locations": ["Aortic Valve", "Left Ventricle (LV)"]}`,
		Expected: heartExpected,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"overall_score":100`)

	w = do(t, r, http.MethodPost, "/score", ScoreRequest{Response: "no idea", Expected: heartExpected})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, r, http.MethodPost, "/score", ScoreRequest{Expected: heartExpected})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/score", "{broken")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAssessEvidence(t *testing.T) {
	r := newTestServer(t, nil)

	w := do(t, r, http.MethodPost, "/evidence/assess", AssessRequest{})
	require.Equal(t, http.StatusOK, w.Code)

	var a model.ConsistencyAssessment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &a))
	assert.Equal(t, model.TrustLow, a.Tier)
	assert.Equal(t, "no evidence", a.Rationale)
	assert.NotNil(t, a.FilteredUnits)
}

func TestCompare(t *testing.T) {
	r := newTestServer(t, nil)

	w := do(t, r, http.MethodPost, "/compare", CompareRequest{
		Baseline:  model.MatchScore{Precision: 1, Recall: 0.5, OverallScore: 80},
		Augmented: model.MatchScore{Precision: 1, Recall: 1, OverallScore: 100},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var d model.ComparisonDelta
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	assert.InDelta(t, 20.0, d.OverallDelta, 1e-9)
	assert.Equal(t, model.VerdictImproved, d.Verdict)
}

func TestAggregate(t *testing.T) {
	r := newTestServer(t, nil)

	side := func(score float64) model.SampleSide {
		return model.SampleSide{Organ: "Heart (Cor)", Locations: []string{"Aortic Valve"}, Score: model.MatchScore{OverallScore: score}}
	}
	obs := []model.Observation{
		{API: "gpt", Baseline: side(80), Augmented: side(100), Delta: model.ComparisonDelta{OverallDelta: 20, Verdict: model.VerdictImproved}},
		{API: "gpt", Baseline: side(0), Augmented: side(0), Delta: model.ComparisonDelta{Verdict: model.VerdictUnchanged}},
	}
	w := do(t, r, http.MethodPost, "/aggregate", AggregateRequest{Observations: obs})
	require.Equal(t, http.StatusOK, w.Code)

	var sum model.Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sum))
	assert.Equal(t, 1, sum.ByAPI["gpt"].ValidTotal)
	assert.Equal(t, 1, sum.ByAPI["gpt"].ZeroScoreCount)

	w = do(t, r, http.MethodPost, "/aggregate", AggregateRequest{Observations: []model.Observation{{Baseline: side(1), Augmented: side(1)}}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "observation 0")
}

func TestRunSymptom(t *testing.T) {
	symptom := model.Symptom{
		Text:  "Exertional chest pain with syncope",
		Units: []model.DiagnosisUnit{{Organ: model.Organ{Name: "Heart (Cor)", Locations: []string{"Aortic Valve"}}}},
	}

	r := newTestServer(t, nil)
	w := do(t, r, http.MethodPost, "/symptoms/run", RunSymptomRequest{Symptom: symptom})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	r = newTestServer(t, []llm.NamedClient{{Name: "gpt", Client: &MockLLM{Response: `{"organ": "Heart (Cor)", "anatomical_locations": ["Aortic Valve"]}`}}})
	w = do(t, r, http.MethodPost, "/symptoms/run", RunSymptomRequest{ReportID: "1", Symptom: symptom})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Result  model.SymptomResult `json:"result"`
		Summary model.Summary       `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "adhoc", resp.Result.SymptomID)
	require.Len(t, resp.Result.APIs, 1)
	assert.Equal(t, model.VerdictUnchanged, resp.Result.APIs[0].Delta.Verdict)
	assert.Equal(t, 1, resp.Summary.ByAPI["gpt"].UnchangedCount)

	w = do(t, r, http.MethodPost, "/symptoms/run", RunSymptomRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	r := newTestServer(t, nil)

	w := do(t, r, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","apis":0}`, w.Body.String())

	w = do(t, r, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `anatomy_eval_http_request_duration_seconds_count{method="GET",path="/healthz",status_code="200"} 1`))
}
