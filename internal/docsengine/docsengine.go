// Package docsengine names the external collaborator interfaces the core
// depends on but does not implement: the semantic query engine, the
// embedding provider, and the repository analyzer. Each ships a
// small deterministic fallback so the wiring can be exercised without a
// real backing service; neither fallback fabricates a job id or status —
// they only ever produce content.
package docsengine

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// QueryEngine answers a query tool's "given a fingerprint of arguments,
// produce a text result or an error".
type QueryEngine interface {
	Query(ctx context.Context, docType string, args json.RawMessage) (string, error)
}

// EmbeddingProvider turns a batch of strings into fixed-dimension vectors,
// with a batched-cost discount left to the real implementation.
type EmbeddingProvider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ShellStep is one step of an ingestion plan produced by a RepoAnalyzer.
type ShellStep struct {
	Description string
	Command     string
	Args        []string
}

// RepoAnalyzer turns a repository URL into an ordered ingestion plan.
type RepoAnalyzer interface {
	Plan(ctx context.Context, repoURL string) ([]ShellStep, error)
}

// FixtureQueryEngine is a deterministic in-memory QueryEngine over a small
// fixture corpus, sufficient to exercise the tools/transport wiring in
// tests without a real semantic search backend.
type FixtureQueryEngine struct {
	corpus map[string]string
}

// NewFixtureQueryEngine builds a FixtureQueryEngine over corpus, keyed by
// doc type.
func NewFixtureQueryEngine(corpus map[string]string) *FixtureQueryEngine {
	return &FixtureQueryEngine{corpus: corpus}
}

func (f *FixtureQueryEngine) Query(_ context.Context, docType string, args json.RawMessage) (string, error) {
	text, ok := f.corpus[docType]
	if !ok {
		return "", fmt.Errorf("no fixture content registered for doc type %q", docType)
	}
	var decoded map[string]any
	_ = json.Unmarshal(args, &decoded)
	if query, ok := decoded["query"].(string); ok && query != "" {
		return fmt.Sprintf("%s (matched %q)", text, query), nil
	}
	return text, nil
}

// HashEmbeddingProvider derives a fixed-dimension vector from each input
// string's byte content. It is not semantically meaningful; it exists to
// exercise batching code paths deterministically in tests.
type HashEmbeddingProvider struct {
	Dimension int
}

func (h *HashEmbeddingProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	dim := h.Dimension
	if dim <= 0 {
		dim = 8
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, dim)
		for j := 0; j < len(text); j++ {
			vec[j%dim] += float32(text[j])
		}
		out[i] = vec
	}
	return out, nil
}

// FixedPlanAnalyzer returns the same two-step plan for any repository URL:
// clone, then list top-level files. It is a placeholder for the real
// repository analyzer collaborator.
type FixedPlanAnalyzer struct{}

func (FixedPlanAnalyzer) Plan(_ context.Context, repoURL string) ([]ShellStep, error) {
	repoURL = strings.TrimSpace(repoURL)
	if repoURL == "" {
		return nil, fmt.Errorf("repo URL must not be empty")
	}
	return []ShellStep{
		{Description: "clone repository", Command: "git", Args: []string{"clone", "--depth", "1", repoURL, "."}},
		{Description: "list top-level files", Command: "ls", Args: []string{"-la"}},
	}, nil
}

// SortedKeys returns the keys of m in ascending order, for deterministic
// doc-type listings.
func SortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
