package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

type LLMConfig struct {
	Name      string `toml:"name" validate:"required"`
	Provider  string `toml:"provider" validate:"required,oneof=openai deepseek moonshot ollama claude gemini"`
	Model     string `toml:"model"`
	APIKey    string `toml:"api_key"`
	BaseURL   string `toml:"base_url"`
	MaxTokens int    `toml:"max_tokens" validate:"gte=0"`
}

// PenaltyPoint is one vertex of the over-generation penalty curve.
type PenaltyPoint struct {
	Ratio   float64 `toml:"ratio" validate:"gte=0"`
	Penalty float64 `toml:"penalty" validate:"gte=0,lte=1"`
}

type ScoringConfig struct {
	PrecisionWeight   float64             `toml:"precision_weight" validate:"gte=0,lte=1"`
	RecallWeight      float64             `toml:"recall_weight" validate:"gte=0,lte=1"`
	PenaltyWeight     float64             `toml:"penalty_weight" validate:"gte=0,lte=1"`
	PenaltyCurve      []PenaltyPoint      `toml:"penalty_curve" validate:"min=1,dive"`
	PartialMatchScore float64             `toml:"partial_match_score" validate:"gte=0,lte=1"`
	OrganSynonyms     map[string][]string `toml:"organ_synonyms"`
}

type EvidenceConfig struct {
	MinTextLength            int      `toml:"min_text_length" validate:"gte=0"`
	TextWeight               float64  `toml:"text_weight" validate:"gte=0,lte=1"`
	OrganWeight              float64  `toml:"organ_weight" validate:"gte=0,lte=1"`
	LocationWeight           float64  `toml:"location_weight" validate:"gte=0,lte=1"`
	LexiconWeight            float64  `toml:"lexicon_weight" validate:"gte=0,lte=1"`
	Lexicon                  []string `toml:"lexicon"`
	ConflictPenalty          float64  `toml:"conflict_penalty" validate:"gte=0,lte=1"`
	DiffusePenalty           float64  `toml:"diffuse_penalty" validate:"gte=0,lte=1"`
	DiffuseLocationThreshold int      `toml:"diffuse_location_threshold" validate:"gte=0"`
	HighTrust                float64  `toml:"high_trust" validate:"gte=0,lte=1"`
	MediumTrust              float64  `toml:"medium_trust" validate:"gte=0,lte=1"`
	ConflictPolicy           string   `toml:"conflict_policy" validate:"oneof=plurality keep_all"`
}

type PromptConfig struct {
	System    string   `toml:"system"`
	Baseline  string   `toml:"baseline"`
	Augmented string   `toml:"augmented"`
	Organs    []string `toml:"organs"`
}

type MemgraphConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

type CacheConfig struct {
	Path      string `toml:"path"`
	InMemory  bool   `toml:"in_memory"`
	Responses bool   `toml:"responses"`
}

// DatasetConfig selects diagnostic report files. Zero IDs leave the range open.
type DatasetConfig struct {
	Dir      string `toml:"dir"`
	StartID  int    `toml:"start_id" validate:"gte=0"`
	EndID    int    `toml:"end_id" validate:"gte=0"`
	MaxFiles int    `toml:"max_files" validate:"gte=0"`
}

type RetrievalConfig struct {
	// Source is "file" (recorded JSONL outcomes), "graph" (Memgraph) or "none".
	Source string `toml:"source" validate:"oneof=file graph none"`
	Files  string `toml:"files"`
	Limit  int    `toml:"limit" validate:"gte=0"`
	// Rerank names a configured model used to reorder evidence; empty disables it.
	Rerank string `toml:"rerank"`
	TopK   int    `toml:"top_k" validate:"gte=0"`
}

type ConcurrencyConfig struct {
	Symptoms int `toml:"symptoms" validate:"gte=1"`
}

type OutputConfig struct {
	Dir         string `toml:"dir"`
	SaveToGraph bool   `toml:"save_to_graph"`
}

type Config struct {
	Models      []LLMConfig       `toml:"models" validate:"dive"`
	Scoring     ScoringConfig     `toml:"scoring"`
	Evidence    EvidenceConfig    `toml:"evidence"`
	Prompts     PromptConfig      `toml:"prompts"`
	Dataset     DatasetConfig     `toml:"dataset"`
	Retrieval   RetrievalConfig   `toml:"retrieval"`
	Memgraph    MemgraphConfig    `toml:"memgraph"`
	Cache       CacheConfig       `toml:"cache"`
	Concurrency ConcurrencyConfig `toml:"concurrency"`
	Output      OutputConfig      `toml:"output"`
}

// Default returns the scoring constants of the evaluation protocol and
// conservative plumbing defaults. Load overlays a TOML file on top of it.
func Default() *Config {
	return &Config{
		Scoring: ScoringConfig{
			PrecisionWeight: 0.4,
			RecallWeight:    0.4,
			PenaltyWeight:   0.2,
			PenaltyCurve: []PenaltyPoint{
				{Ratio: 1.0, Penalty: 1.0},
				{Ratio: 2.0, Penalty: 0.5},
				{Ratio: 3.0, Penalty: 0.0},
			},
			PartialMatchScore: 0.6,
		},
		Evidence: EvidenceConfig{
			MinTextLength:            30,
			TextWeight:               0.3,
			OrganWeight:              0.2,
			LocationWeight:           0.2,
			LexiconWeight:            0.1,
			Lexicon:                  []string{"diagnosis", "condition", "disease", "syndrome", "disorder"},
			ConflictPenalty:          0.4,
			DiffusePenalty:           0.2,
			DiffuseLocationThreshold: 5,
			HighTrust:                0.6,
			MediumTrust:              0.3,
			ConflictPolicy:           "plurality",
		},
		Dataset: DatasetConfig{
			Dir: "data",
		},
		Retrieval: RetrievalConfig{
			Source: "file",
			Files:  "rag_output/*.jsonl",
			Limit:  5,
		},
		Memgraph: MemgraphConfig{
			URI: "bolt://localhost:7687",
		},
		Cache: CacheConfig{
			InMemory: true,
		},
		Concurrency: ConcurrencyConfig{
			Symptoms: 4,
		},
		Output: OutputConfig{
			Dir: "final_result",
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	cfg := Default()
	// list-valued defaults are restored only when the file leaves them unset
	curve, lexicon := cfg.Scoring.PenaltyCurve, cfg.Evidence.Lexicon
	cfg.Scoring.PenaltyCurve, cfg.Evidence.Lexicon = nil, nil

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	if len(cfg.Scoring.PenaltyCurve) == 0 {
		cfg.Scoring.PenaltyCurve = curve
	}
	if cfg.Evidence.Lexicon == nil {
		cfg.Evidence.Lexicon = lexicon
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnv overrides file values with environment variables. API keys are
// looked up as <NAME>_API_KEY (e.g. OPENAI_API_KEY for a model named "openai").
func (c *Config) ApplyEnv() {
	for i := range c.Models {
		m := &c.Models[i]
		prefix := envPrefix(m.Name)
		if key := os.Getenv(prefix + "_API_KEY"); key != "" {
			m.APIKey = key
		}
		if model := os.Getenv(prefix + "_MODEL"); model != "" {
			m.Model = model
		}
		if baseURL := os.Getenv(prefix + "_BASE_URL"); baseURL != "" {
			m.BaseURL = baseURL
		}
	}

	if uri := os.Getenv("MEMGRAPH_URI"); uri != "" {
		c.Memgraph.URI = uri
	}
	if user := os.Getenv("MEMGRAPH_USER"); user != "" {
		c.Memgraph.User = user
	}
	if pass := os.Getenv("MEMGRAPH_PASSWORD"); pass != "" {
		c.Memgraph.Password = pass
	}
	if dir := os.Getenv("DATA_DIR"); dir != "" {
		c.Dataset.Dir = dir
	}
	envInt("START_ID", &c.Dataset.StartID)
	envInt("END_ID", &c.Dataset.EndID)
	envInt("MAX_FILES", &c.Dataset.MaxFiles)
	if files := os.Getenv("EVIDENCE_FILES"); files != "" {
		c.Retrieval.Files = files
	}
	if dir := os.Getenv("OUTPUT_DIR"); dir != "" {
		c.Output.Dir = dir
	}
	if path := os.Getenv("CACHE_PATH"); path != "" {
		c.Cache.Path = path
		c.Cache.InMemory = false
	}
}

// envInt sets *dst when key holds an integer.
func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envPrefix(name string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", " ", "_", ".", "_").Replace(name))
}

var validate = validator.New()

// Validate checks field ranges and the cross-field rules the scoring engine relies on.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	seen := make(map[string]bool, len(c.Models))
	for _, m := range c.Models {
		if seen[m.Name] {
			return fmt.Errorf("invalid config: duplicate model name %q", m.Name)
		}
		seen[m.Name] = true
	}

	curve := c.Scoring.PenaltyCurve
	for i := 1; i < len(curve); i++ {
		if curve[i].Ratio <= curve[i-1].Ratio {
			return fmt.Errorf("invalid config: penalty_curve ratios must be strictly increasing")
		}
		if curve[i].Penalty > curve[i-1].Penalty {
			return fmt.Errorf("invalid config: penalty_curve penalties must be non-increasing")
		}
	}

	if c.Dataset.EndID > 0 && c.Dataset.StartID > c.Dataset.EndID {
		return fmt.Errorf("invalid config: dataset start_id %d is after end_id %d", c.Dataset.StartID, c.Dataset.EndID)
	}

	if c.Retrieval.Rerank != "" && !seen[c.Retrieval.Rerank] {
		return fmt.Errorf("invalid config: rerank model %q is not configured", c.Retrieval.Rerank)
	}

	if c.Evidence.MediumTrust > c.Evidence.HighTrust {
		return fmt.Errorf("invalid config: medium_trust must not exceed high_trust")
	}

	return nil
}
