// Package observability holds the Prometheus metrics of evaluation runs.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks evaluation progress and model API behaviour.
//
// All recording methods are safe on a nil *Metrics, so components can be
// used without a registry in tests and one-off tools.
type Metrics struct {
	// SymptomsTotal counts processed symptoms.
	// Labels: status (ok|failed)
	SymptomsTotal *prometheus.CounterVec

	// ComparisonsTotal counts folded (symptom, API) comparisons.
	// Labels: api, verdict (improved|declined|unchanged|invalid)
	ComparisonsTotal *prometheus.CounterVec

	// InvalidSamplesTotal counts samples excluded by the validity gate.
	// Labels: api, reason
	InvalidSamplesTotal *prometheus.CounterVec

	// LLMRequestDuration measures model API latency in seconds.
	// Labels: api, variant (baseline|augmented)
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRequestCounter counts model API calls.
	// Labels: api, variant, status (success|error|parse_error)
	LLMRequestCounter *prometheus.CounterVec

	// EvidenceTrust is the distribution of evidence trust scores.
	EvidenceTrust prometheus.Histogram

	// HTTPRequestDuration measures HTTP API request latency.
	// Labels: method, path, status_code
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates the metrics and registers them with reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SymptomsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "anatomy_eval_symptoms_total",
				Help: "Total number of symptoms processed by status",
			},
			[]string{"status"},
		),

		ComparisonsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "anatomy_eval_comparisons_total",
				Help: "Total number of baseline/augmented comparisons by api and verdict",
			},
			[]string{"api", "verdict"},
		),

		InvalidSamplesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "anatomy_eval_invalid_samples_total",
				Help: "Samples excluded from statistics by api and reason",
			},
			[]string{"api", "reason"},
		),

		LLMRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "anatomy_eval_llm_request_duration_seconds",
				Help:    "Duration of model API requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"api", "variant"},
		),

		LLMRequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "anatomy_eval_llm_requests_total",
				Help: "Total number of model API requests by api, variant and status",
			},
			[]string{"api", "variant", "status"},
		),

		EvidenceTrust: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "anatomy_eval_evidence_trust",
				Help:    "Trust score assigned to retrieved evidence",
				Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
			},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "anatomy_eval_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"method", "path", "status_code"},
		),
	}
}

func (m *Metrics) RecordSymptom(status string) {
	if m == nil {
		return
	}
	m.SymptomsTotal.WithLabelValues(status).Inc()
}

// RecordComparison counts one folded comparison. A non-empty reason marks it
// as excluded.
func (m *Metrics) RecordComparison(api, verdict, reason string) {
	if m == nil {
		return
	}
	if reason != "" {
		m.ComparisonsTotal.WithLabelValues(api, "invalid").Inc()
		m.InvalidSamplesTotal.WithLabelValues(api, reason).Inc()
		return
	}
	m.ComparisonsTotal.WithLabelValues(api, verdict).Inc()
}

func (m *Metrics) RecordLLMRequest(api, variant, status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.LLMRequestCounter.WithLabelValues(api, variant, status).Inc()
	m.LLMRequestDuration.WithLabelValues(api, variant).Observe(durationSeconds)
}

func (m *Metrics) ObserveTrust(score float64) {
	if m == nil {
		return
	}
	m.EvidenceTrust.Observe(score)
}

func (m *Metrics) RecordHTTPRequest(method, path, statusCode string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequestDuration.WithLabelValues(method, path, statusCode).Observe(durationSeconds)
}
