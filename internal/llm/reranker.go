package llm

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const maxRerankDocChars = 200

var indexPattern = regexp.MustCompile(`\d+`)

// SimpleLLMReranker asks a model to order reference diagnoses by how well
// they explain a symptom.
type SimpleLLMReranker struct {
	LLM LLMClient
}

func NewSimpleLLMReranker(client LLMClient) *SimpleLLMReranker {
	return &SimpleLLMReranker{LLM: client}
}

// Rank returns a permutation of document indices. When the model fails or
// answers with garbage, the original order is returned.
func (r *SimpleLLMReranker) Rank(ctx context.Context, query string, docs []string) ([]int, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	if len(docs) == 1 {
		return []int{0}, nil
	}

	var docList strings.Builder
	for i, d := range docs {
		content := []rune(d)
		if len(content) > maxRerankDocChars {
			d = string(content[:maxRerankDocChars]) + "..."
		}
		fmt.Fprintf(&docList, "[%d] %s\n", i, d)
	}

	prompt := fmt.Sprintf(`You are ranking reference diagnoses for a symptom.
Symptom: %s

Reference diagnoses:
%s
Rank the references above by how well they explain the symptom, most relevant first.
Output ONLY the indices, separated by commas.
Example: 0, 2, 1
Do not output any other text.`, query, docList.String())

	resp, err := r.LLM.Generate(ctx, prompt)
	if err != nil {
		return identity(len(docs)), nil
	}

	return parseIndices(resp, len(docs)), nil
}

// parseIndices keeps valid, first-seen indices and appends any the model
// left out, so the result is always a full permutation.
func parseIndices(s string, n int) []int {
	seen := make([]bool, n)
	indices := make([]int, 0, n)
	for _, m := range indexPattern.FindAllString(s, -1) {
		i, err := strconv.Atoi(m)
		if err != nil || i < 0 || i >= n || seen[i] {
			continue
		}
		seen[i] = true
		indices = append(indices, i)
	}
	for i := 0; i < n; i++ {
		if !seen[i] {
			indices = append(indices, i)
		}
	}
	return indices
}

func identity(n int) []int {
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	return indices
}
