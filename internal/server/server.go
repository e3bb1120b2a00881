package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agenthands/anatomy-eval/internal/core"
	"github.com/agenthands/anatomy-eval/internal/core/aggregate"
	"github.com/agenthands/anatomy-eval/internal/core/common"
	"github.com/agenthands/anatomy-eval/internal/core/compare"
	"github.com/agenthands/anatomy-eval/internal/core/model"
)

type Server struct {
	Pipeline *core.Pipeline
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

func NewServer(p *core.Pipeline, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{Pipeline: p, Gatherer: gatherer, Logger: logger}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.observe)

	r.GET("/healthz", s.Health)
	if s.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{})))
	}

	r.POST("/score", s.Score)
	r.POST("/evidence/assess", s.AssessEvidence)
	r.POST("/compare", s.Compare)
	r.POST("/aggregate", s.Aggregate)
	r.POST("/symptoms/run", s.RunSymptom)

	return r
}

func (s *Server) observe(c *gin.Context) {
	start := time.Now()
	c.Next()
	path := c.FullPath()
	if path == "" {
		path = "unmatched"
	}
	s.Pipeline.Metrics.RecordHTTPRequest(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), time.Since(start).Seconds())
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "apis": len(s.Pipeline.Clients)})
}

type PredictionInput struct {
	Organ     string   `json:"organ"`
	Locations []string `json:"locations"`
}

// ScoreRequest carries either a structured prediction or a raw model
// response to be parsed.
type ScoreRequest struct {
	Predicted *PredictionInput    `json:"predicted"`
	Response  string              `json:"response"`
	Expected  model.AnatomicalSet `json:"expected"`
}

func (s *Server) Score(c *gin.Context) {
	var req ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	var predicted model.AnatomicalSet
	switch {
	case req.Predicted != nil:
		predicted = model.Prediction(req.Predicted.Organ, req.Predicted.Locations...)
	case req.Response != "":
		var err error
		predicted, err = common.ParsePrediction(req.Response)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "predicted or response is required"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"predicted": predicted,
		"score":     s.Pipeline.Evaluator.Evaluate(predicted, req.Expected),
	})
}

type AssessRequest struct {
	Units []model.EvidenceUnit `json:"units"`
}

func (s *Server) AssessEvidence(c *gin.Context) {
	var req AssessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	c.JSON(http.StatusOK, s.Pipeline.Filter.Assess(req.Units))
}

type CompareRequest struct {
	Baseline  model.MatchScore `json:"baseline"`
	Augmented model.MatchScore `json:"augmented"`
}

func (s *Server) Compare(c *gin.Context) {
	var req CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	c.JSON(http.StatusOK, compare.Compare(req.Baseline, req.Augmented))
}

type AggregateRequest struct {
	Observations []model.Observation `json:"observations"`
}

func (s *Server) Aggregate(c *gin.Context) {
	var req AggregateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	agg := aggregate.New()
	if err := agg.Fold(req.Observations); err != nil {
		if errors.Is(err, aggregate.ErrInvalidObservation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.Logger.Error("aggregation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to aggregate"})
		return
	}
	c.JSON(http.StatusOK, agg.Finalize())
}

type RunSymptomRequest struct {
	ReportID string        `json:"report_id"`
	Symptom  model.Symptom `json:"symptom"`
}

// RunSymptom runs the full baseline-versus-augmented comparison for one
// symptom against every configured API.
func (s *Server) RunSymptom(c *gin.Context) {
	var req RunSymptomRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Symptom.Text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if len(s.Pipeline.Clients) == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no model APIs configured"})
		return
	}
	if req.Symptom.ID == "" {
		req.Symptom.ID = "adhoc"
	}

	res, err := s.Pipeline.RunSymptom(c.Request.Context(), req.Symptom)
	if err != nil {
		s.Logger.Error("symptom run failed", "symptom_id", req.Symptom.ID, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to retrieve evidence"})
		return
	}

	agg := aggregate.New()
	for i := range res.APIs {
		reason, err := agg.Add(res.APIs[i].Observation(req.ReportID, res.SymptomID))
		if err == nil {
			res.APIs[i].Excluded = reason
		}
	}

	c.JSON(http.StatusOK, gin.H{"result": res, "summary": agg.Finalize()})
}
