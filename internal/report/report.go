// Package report renders batch results as JSON files and a plain-text
// score report.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/agenthands/anatomy-eval/internal/core/model"
)

const (
	SummaryFile = "summary.json"
	ResultsFile = "results.json"
	TextFile    = "score_report.txt"
)

func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// WriteFiles writes the summary, the full per-symptom results and the text
// report into dir and returns the paths written.
func WriteFiles(dir string, batch model.BatchResult) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir %s: %w", dir, err)
	}

	files := []struct {
		name  string
		write func(io.Writer) error
	}{
		{SummaryFile, func(w io.Writer) error { return WriteJSON(w, batch.Summary) }},
		{ResultsFile, func(w io.Writer) error { return WriteJSON(w, batch) }},
		{TextFile, func(w io.Writer) error { return WriteText(w, batch) }},
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if err := writeFile(path, f.write); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// WriteText renders the human-readable score report.
func WriteText(w io.Writer, batch model.BatchResult) error {
	var symptoms, failed int
	for _, r := range batch.Reports {
		symptoms += len(r.Symptoms)
		failed += len(r.Failed)
	}

	rule := strings.Repeat("=", 72)
	b := &strings.Builder{}
	fmt.Fprintln(b, rule)
	fmt.Fprintf(b, "Evidence-augmented scoring report (run %s)\n", batch.RunID)
	fmt.Fprintln(b, rule)
	fmt.Fprintf(b, "Reports:  %d\n", len(batch.Reports))
	fmt.Fprintf(b, "Symptoms: %d scored, %d failed\n", symptoms, failed)
	if batch.Duration > 0 {
		fmt.Fprintf(b, "Duration: %s\n", batch.Duration.Round(time.Millisecond))
	}

	sum := batch.Summary
	for _, api := range sortedAPIs(sum.ByAPI) {
		fmt.Fprintf(b, "\n[%s]\n", strings.ToUpper(api))
		writeStats(b, sum.ByAPI[api])
	}

	fmt.Fprintln(b, "\nCorpus")
	writeStats(b, sum.Corpus)

	if sum.BestImprovingAPI != "" {
		fmt.Fprintln(b)
		fmt.Fprintf(b, "Best improvement: %s\n", sum.BestImprovingAPI)
		fmt.Fprintf(b, "Worst decline:    %s\n", sum.WorstDecliningAPI)
		fmt.Fprintf(b, "Most stable:      %s\n", sum.MostStableAPI)
	}

	if len(sum.ByReport) > 0 {
		fmt.Fprintln(b, "\nPer report")
		tw := tabwriter.NewWriter(b, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "report\tapi\tvalid\timproved\tdeclined\tunchanged\tmean delta")
		for _, id := range sortedReports(sum.ByReport) {
			for _, api := range sortedAPIs(sum.ByReport[id]) {
				s := sum.ByReport[id][api]
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%+.2f\n",
					id, api, s.ValidTotal, s.ImprovedCount, s.DeclinedCount, s.UnchangedCount, s.MeanOverallDelta)
			}
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	fmt.Fprintln(b, rule)

	_, err := io.WriteString(w, b.String())
	return err
}

func writeStats(b *strings.Builder, s model.AggregateStats) {
	if s.HasNoValidData {
		fmt.Fprintf(b, "  no valid samples (%d excluded: %d empty, %d zero-score)\n",
			s.InvalidCount, s.EmptyResultCount, s.ZeroScoreCount)
		return
	}
	fmt.Fprintf(b, "  improved:  %d/%d (%.1f%%)\n", s.ImprovedCount, s.ValidTotal, s.ImprovementRatio*100)
	fmt.Fprintf(b, "  declined:  %d/%d (%.1f%%)\n", s.DeclinedCount, s.ValidTotal, s.DeclineRatio*100)
	fmt.Fprintf(b, "  unchanged: %d/%d (%.1f%%)\n", s.UnchangedCount, s.ValidTotal, s.UnchangedRatio*100)
	fmt.Fprintf(b, "  organ improved: %d (%.1f%%)\n", s.OrganImprovedCount, s.OrganImprovedRatio*100)
	fmt.Fprintf(b, "  mean score: baseline %.2f, augmented %.2f (delta %+.2f)\n",
		s.MeanBaselineScore, s.MeanAugmentedScore, s.MeanOverallDelta)
	fmt.Fprintf(b, "  mean deltas: precision %+.2f, recall %+.2f, F1 %+.3f\n",
		s.MeanPrecisionDelta, s.MeanRecallDelta, s.MeanF1Delta)
	fmt.Fprintf(b, "  mean improvement %.2f, mean decline %.2f\n", s.MeanImprovement, s.MeanDecline)
	fmt.Fprintf(b, "  excluded: %d (%d empty, %d zero-score)\n", s.InvalidCount, s.EmptyResultCount, s.ZeroScoreCount)

	net := (s.ImprovementRatio - s.DeclineRatio) * 100
	switch {
	case net > 0:
		fmt.Fprintf(b, "  net effect: positive (+%.1f%%)\n", net)
	case net < 0:
		fmt.Fprintf(b, "  net effect: negative (%.1f%%)\n", net)
	default:
		fmt.Fprintln(b, "  net effect: neutral")
	}
}

func sortedAPIs(m map[string]model.AggregateStats) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedReports(m map[string]map[string]model.AggregateStats) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
