package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/agenthands/anatomy-eval/internal/config"
	"github.com/agenthands/anatomy-eval/internal/core/aggregate"
	"github.com/agenthands/anatomy-eval/internal/core/common"
	"github.com/agenthands/anatomy-eval/internal/core/compare"
	"github.com/agenthands/anatomy-eval/internal/core/evidence"
	"github.com/agenthands/anatomy-eval/internal/core/model"
	"github.com/agenthands/anatomy-eval/internal/core/prompt"
	"github.com/agenthands/anatomy-eval/internal/core/scoring"
	"github.com/agenthands/anatomy-eval/internal/driver"
	"github.com/agenthands/anatomy-eval/internal/llm"
	"github.com/agenthands/anatomy-eval/internal/observability"
	"github.com/agenthands/anatomy-eval/internal/retrieval"
)

const (
	variantBaseline  = "baseline"
	variantAugmented = "augmented"
)

// Pipeline runs the baseline-versus-augmented comparison for every symptom
// against every configured model API.
type Pipeline struct {
	Retriever retrieval.Retriever
	Filter    *evidence.Filter
	Prompts   *prompt.Builder
	Evaluator *scoring.Evaluator
	Clients   []llm.NamedClient

	// Store is optional; when set with SaveResults, finished runs are persisted.
	Store       *driver.GraphStore
	SaveResults bool

	Metrics *observability.Metrics
	Logger  *slog.Logger
	Workers int
}

func NewPipeline(cfg *config.Config, clients []llm.NamedClient, retriever retrieval.Retriever, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		Retriever:   retriever,
		Filter:      evidence.NewFilter(cfg.Evidence),
		Prompts:     prompt.NewBuilder(cfg.Prompts),
		Evaluator:   scoring.NewEvaluator(cfg.Scoring),
		Clients:     clients,
		SaveResults: cfg.Output.SaveToGraph,
		Logger:      logger,
		Workers:     cfg.Concurrency.Symptoms,
	}
}

// RunSymptom retrieves and assesses evidence, queries every API with both
// prompt variants and scores the answers. API failures are recorded in the
// result; only a retrieval failure fails the symptom.
func (p *Pipeline) RunSymptom(ctx context.Context, s model.Symptom) (model.SymptomResult, error) {
	var units []model.EvidenceUnit
	if p.Retriever != nil {
		var err error
		units, err = p.Retriever.Retrieve(ctx, s)
		if err != nil {
			return model.SymptomResult{}, fmt.Errorf("failed to retrieve evidence for %s: %w", s.ID, err)
		}
	}

	assessment := p.Filter.Assess(units)
	p.Metrics.ObserveTrust(assessment.TrustScore)

	expected := s.Expected()
	baselinePrompt := p.Prompts.Baseline(s.Text)
	augmentedPrompt := p.Prompts.Augmented(s.Text, assessment)

	results := make([]model.APIResult, len(p.Clients))
	var g errgroup.Group
	for i, c := range p.Clients {
		g.Go(func() error {
			res := model.APIResult{API: c.Name}
			res.Baseline, res.BaselineErr = p.ask(ctx, c, variantBaseline, baselinePrompt, expected)
			res.Augmented, res.AugmentErr = p.ask(ctx, c, variantAugmented, augmentedPrompt, expected)
			res.Delta = compare.Compare(res.Baseline.Score, res.Augmented.Score)
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	return model.SymptomResult{
		SymptomID: s.ID,
		Text:      s.Text,
		Expected:  expected,
		Evidence:  assessment,
		APIs:      results,
	}, nil
}

// ask calls one API and scores its answer. A failed call or an unparseable
// reply is scored as an empty prediction so the validity gate can exclude it.
func (p *Pipeline) ask(ctx context.Context, c llm.NamedClient, variant, text string, expected model.AnatomicalSet) (model.SampleSide, string) {
	start := time.Now()
	resp, err := c.Client.Generate(ctx, text)
	elapsed := time.Since(start).Seconds()

	var predicted model.AnatomicalSet
	var errMsg string
	switch {
	case err != nil:
		p.Metrics.RecordLLMRequest(c.Name, variant, "error", elapsed)
		p.Logger.Warn("model api call failed", "api", c.Name, "variant", variant, "error", err)
		errMsg = err.Error()
	default:
		predicted, err = common.ParsePrediction(resp)
		if err != nil {
			p.Metrics.RecordLLMRequest(c.Name, variant, "parse_error", elapsed)
			p.Logger.Warn("unparseable model reply", "api", c.Name, "variant", variant, "error", err)
			errMsg = "parse: " + err.Error()
		} else {
			p.Metrics.RecordLLMRequest(c.Name, variant, "success", elapsed)
		}
	}

	return model.SampleSide{
		Organ:     predicted.PrimaryOrgan(),
		Locations: nonNil(predicted.Locations),
		Score:     p.Evaluator.Evaluate(predicted, expected),
	}, errMsg
}

type job struct {
	report  int
	symptom int
}

// RunBatch processes every symptom of reports. Symptoms run on a bounded
// set of workers, each folding into its own Aggregator; the partials are
// merged once all workers finish. A failed symptom is logged and listed in
// its report's Failed list; the batch carries on.
func (p *Pipeline) RunBatch(ctx context.Context, reports []model.Report) (model.BatchResult, error) {
	started := time.Now()
	runID := uuid.NewString()
	logger := p.Logger.With("run_id", runID)

	results := make([]model.ReportResult, len(reports))
	var total int
	for i, r := range reports {
		results[i] = model.ReportResult{
			ReportID: r.ID,
			Symptoms: make([]model.SymptomResult, len(r.Symptoms)),
		}
		total += len(r.Symptoms)
	}
	failed := make([][]bool, len(reports))
	for i, r := range reports {
		failed[i] = make([]bool, len(r.Symptoms))
	}

	workers := p.Workers
	if workers < 1 {
		workers = 1
	}
	logger.Info("starting batch", "reports", len(reports), "symptoms", total, "apis", len(p.Clients), "workers", workers)

	jobs := make(chan job)
	partials := make([]*aggregate.Aggregator, workers)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobs)
		for ri, r := range reports {
			for si := range r.Symptoms {
				if err := gctx.Err(); err != nil {
					return err
				}
				select {
				case jobs <- job{report: ri, symptom: si}:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
		}
		return nil
	})

	for w := 0; w < workers; w++ {
		partial := aggregate.New()
		partials[w] = partial
		g.Go(func() error {
			for j := range jobs {
				r := reports[j.report]
				s := r.Symptoms[j.symptom]

				res, err := p.RunSymptom(gctx, s)
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					logger.Warn("symptom failed", "report_id", r.ID, "symptom_id", s.ID, "error", err)
					p.Metrics.RecordSymptom("failed")
					failed[j.report][j.symptom] = true
					continue
				}

				p.fold(partial, r.ID, &res, logger)
				results[j.report].Symptoms[j.symptom] = res
				p.Metrics.RecordSymptom("ok")
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return model.BatchResult{}, fmt.Errorf("batch %s interrupted: %w", runID, err)
	}

	agg := aggregate.New()
	for _, partial := range partials {
		agg.Merge(partial)
	}

	for ri := range results {
		kept := results[ri].Symptoms[:0]
		for si, res := range results[ri].Symptoms {
			if failed[ri][si] {
				results[ri].Failed = append(results[ri].Failed, reports[ri].Symptoms[si].ID)
				continue
			}
			kept = append(kept, res)
		}
		results[ri].Symptoms = kept
	}

	batch := model.BatchResult{
		RunID:     runID,
		StartedAt: started.UTC(),
		Duration:  time.Since(started),
		Reports:   results,
		Summary:   agg.Finalize(),
	}
	logger.Info("batch finished", "duration", batch.Duration, "valid", batch.Summary.Corpus.ValidTotal, "invalid", batch.Summary.Corpus.InvalidCount)

	if p.Store != nil && p.SaveResults {
		if err := p.Store.SaveRun(ctx, batch); err != nil {
			logger.Warn("failed to persist run", "error", err)
		}
	}
	return batch, nil
}

// RunReport is RunBatch over a single report.
func (p *Pipeline) RunReport(ctx context.Context, report model.Report) (model.ReportResult, model.Summary, error) {
	batch, err := p.RunBatch(ctx, []model.Report{report})
	if err != nil {
		return model.ReportResult{}, model.Summary{}, err
	}
	return batch.Reports[0], batch.Summary, nil
}

// IndexReports writes reports to the graph store so GraphRetriever can
// serve them as evidence.
func (p *Pipeline) IndexReports(ctx context.Context, reports []model.Report) error {
	if p.Store == nil {
		return errors.New("no graph store configured")
	}
	for _, r := range reports {
		if err := p.Store.SaveReport(ctx, r); err != nil {
			return err
		}
	}
	p.Logger.Info("indexed reports", "count", len(reports))
	return nil
}

func (p *Pipeline) fold(agg *aggregate.Aggregator, reportID string, res *model.SymptomResult, logger *slog.Logger) {
	for i := range res.APIs {
		api := &res.APIs[i]
		reason, err := agg.Add(api.Observation(reportID, res.SymptomID))
		if err != nil {
			logger.Error("dropping malformed observation", "symptom_id", res.SymptomID, "api", api.API, "error", err)
			continue
		}
		api.Excluded = reason
		p.Metrics.RecordComparison(api.API, string(api.Delta.Verdict), string(reason))
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
