package retrieval

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/agenthands/anatomy-eval/internal/core/model"
)

// cacheLine is one line of a RAG outcome file:
// {"query": "...", "s": {"rag_s_1_id": {"units": [{"u_unit": {...}}]}}}
type cacheLine struct {
	Query  string                    `json:"query"`
	Blocks map[string]cacheLineBlock `json:"s"`
}

type cacheLineBlock struct {
	Units []struct {
		Unit struct {
			Diagnosis string       `json:"d_diagnosis"`
			Organ     *model.Organ `json:"o_organ"`
		} `json:"u_unit"`
	} `json:"units"`
}

var blockNumber = regexp.MustCompile(`\d+`)

// FileRetriever serves evidence recorded by an earlier retrieval run.
// Queries are matched on their trimmed text.
type FileRetriever struct {
	byQuery map[string][]model.EvidenceUnit
}

// LoadFiles reads every JSONL file matching pattern. Later files win when
// the same query appears twice.
func LoadFiles(pattern string) (*FileRetriever, error) {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("bad evidence file pattern %q: %w", pattern, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no evidence files match %q", pattern)
	}
	sort.Strings(paths)

	r := &FileRetriever{byQuery: make(map[string][]model.EvidenceUnit)}
	for _, p := range paths {
		if err := r.loadFile(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *FileRetriever) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open evidence file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec cacheLine
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		query := strings.TrimSpace(rec.Query)
		if query == "" {
			continue
		}
		r.byQuery[query] = unitsFromBlocks(rec.Blocks)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return nil
}

// unitsFromBlocks flattens rag_s_N_id blocks in numeric order.
func unitsFromBlocks(blocks map[string]cacheLineBlock) []model.EvidenceUnit {
	keys := make([]string, 0, len(blocks))
	for k := range blocks {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ni, nj := blockIndex(keys[i]), blockIndex(keys[j])
		if ni != nj {
			return ni < nj
		}
		return keys[i] < keys[j]
	})

	units := []model.EvidenceUnit{}
	for _, k := range keys {
		for _, u := range blocks[k].Units {
			unit := model.EvidenceUnit{Text: u.Unit.Diagnosis}
			if u.Unit.Organ != nil && u.Unit.Organ.Name != "" {
				organ := *u.Unit.Organ
				unit.Organ = &organ
			}
			units = append(units, unit)
		}
	}
	return units
}

func blockIndex(key string) int {
	n, err := strconv.Atoi(blockNumber.FindString(key))
	if err != nil {
		return int(^uint(0) >> 1)
	}
	return n
}

func (r *FileRetriever) Retrieve(ctx context.Context, symptom model.Symptom) ([]model.EvidenceUnit, error) {
	if units, ok := r.byQuery[strings.TrimSpace(symptom.Text)]; ok {
		return units, nil
	}
	return []model.EvidenceUnit{}, nil
}

// Len is the number of distinct queries loaded.
func (r *FileRetriever) Len() int {
	return len(r.byQuery)
}
