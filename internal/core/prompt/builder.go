// Package prompt renders the baseline and evidence-augmented prompts sent to
// each model.
package prompt

import (
	"fmt"
	"strings"

	"github.com/agenthands/anatomy-eval/internal/config"
	"github.com/agenthands/anatomy-eval/internal/core/model"
)

const (
	DefaultSystem = "You are a medical expert. Identify the organ and the anatomical locations " +
		"involved in the described symptom."

	// DefaultBaseline takes the symptom text.
	DefaultBaseline = "Identify the organ and anatomical locations related to the following symptom.\n\nSymptom: %s"

	// DefaultAugmented takes the symptom text.
	DefaultAugmented = "Analyse the following symptom and identify the related organ and anatomical locations.\n\nSymptom: %s"

	outputFormat = `Respond strictly with JSON in this format:
{
    "organs": [
        {"organName": "primary organ", "anatomicalLocations": ["location 1", "location 2"]}
    ]
}`
)

var strategies = map[model.TrustTier]string{
	model.TrustHigh:   "Decision strategy: the reference evidence is reliable; rely on it, but check it against medical knowledge.",
	model.TrustMedium: "Decision strategy: the reference evidence is of moderate quality; use it cautiously and favour medical knowledge.",
	model.TrustLow:    "Decision strategy: the reference evidence is unreliable; answer mainly from medical knowledge and treat it as a hint only.",
}

// Builder renders prompts from configured templates. Empty templates fall
// back to the defaults above.
type Builder struct {
	system    string
	baseline  string
	augmented string
	organs    []string
}

func NewBuilder(cfg config.PromptConfig) *Builder {
	return &Builder{
		system:    orDefault(cfg.System, DefaultSystem),
		baseline:  orDefault(cfg.Baseline, DefaultBaseline),
		augmented: orDefault(cfg.Augmented, DefaultAugmented),
		organs:    cfg.Organs,
	}
}

func (b *Builder) System() string {
	return b.system
}

// Baseline is the prompt without any retrieved evidence.
func (b *Builder) Baseline(symptom string) string {
	parts := []string{fmt.Sprintf(b.baseline, strings.TrimSpace(symptom))}
	if catalogue := b.catalogue(); catalogue != "" {
		parts = append(parts, catalogue)
	}
	parts = append(parts, outputFormat)
	return strings.Join(parts, "\n\n")
}

// Augmented adds the filtered evidence together with its trust score, so the
// model can weigh the evidence instead of following it blindly.
func (b *Builder) Augmented(symptom string, a model.ConsistencyAssessment) string {
	parts := []string{fmt.Sprintf(b.augmented, strings.TrimSpace(symptom))}

	if len(a.FilteredUnits) > 0 {
		refs := make([]string, 0, len(a.FilteredUnits))
		for _, u := range a.FilteredUnits {
			refs = append(refs, FormatEvidence(u))
		}
		parts = append(parts,
			fmt.Sprintf("Reference evidence from the retrieval system (trust %.0f%%, %s): %s",
				a.TrustScore*100, a.Tier, a.Rationale),
			strings.Join(refs, "\n"),
		)
	} else {
		parts = append(parts, "The retrieval system found no usable reference evidence.")
	}

	tier := a.Tier
	if tier == "" {
		tier = model.TrustLow
	}
	parts = append(parts, strategies[tier])

	if catalogue := b.catalogue(); catalogue != "" {
		parts = append(parts, catalogue)
	}
	parts = append(parts, outputFormat)
	return strings.Join(parts, "\n\n")
}

// FormatEvidence renders one unit as "- text | organ: X | locations: a, b".
func FormatEvidence(u model.EvidenceUnit) string {
	line := "- " + strings.TrimSpace(u.Text)
	if u.HasOrgan() {
		line += fmt.Sprintf(" | organ: %s | locations: %s", u.OrganName(), strings.Join(u.Locations(), ", "))
	}
	return strings.TrimSpace(line)
}

func (b *Builder) catalogue() string {
	if len(b.organs) == 0 {
		return ""
	}
	return "Choose the organ from this list: " + strings.Join(b.organs, ", ") + "."
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
