// internal/scoring/scoring.go

// Package scoring measures how close a backend's parsed answer is to the
// ground truth record. Text similarity comes from an embedding endpoint and
// cosine distance; the return type is compared exactly, case-insensitively.
package scoring

import (
	"context"
	"fmt"
	"strings"

	"github.com/mwiater/krites/internal/groundtruth"
	"github.com/mwiater/krites/internal/parse"
)

// Score holds the per-field and overall similarity for one (method, backend)
// evaluation. All similarities are in [0,1].
type Score struct {
	PurposeSimilarity    float64 `json:"purpose_similarity"`
	ReturnTypeMatch      bool    `json:"return_type_match"`
	ReturnDescSimilarity float64 `json:"return_desc_similarity"`
	OverallSimilarity    float64 `json:"overall_similarity"`
	Success              bool    `json:"success"`
	Error                string  `json:"error,omitempty"`
}

// Failed returns the zero-valued score recorded when the oracle itself
// fails. Scoring failures never abort the run.
func Failed(err error) Score {
	s := Score{Success: false}
	if err != nil {
		s.Error = err.Error()
	}
	return s
}

// Scorer is the similarity oracle driven by the orchestrator.
type Scorer interface {
	// Score compares a parsed backend response against ground truth.
	Score(ctx context.Context, truth groundtruth.MethodRecord, response parse.ParsedResponse) (Score, error)
}

// Similarity computes the text-similarity measure between two texts.
// EmbeddingSimilarity satisfies it; tests substitute a deterministic one.
type Similarity interface {
	Compare(ctx context.Context, a, b string) (float64, error)
}

// MethodScorer scores parsed responses field by field using a Similarity
// measure for free text.
type MethodScorer struct {
	Text Similarity
}

// NewMethodScorer builds a MethodScorer over the given text measure.
func NewMethodScorer(text Similarity) *MethodScorer {
	return &MethodScorer{Text: text}
}

// Score computes purpose, return-description, and combined-text similarity,
// plus the exact (case-insensitive, whitespace-trimmed) return type match.
func (s *MethodScorer) Score(ctx context.Context, truth groundtruth.MethodRecord, response parse.ParsedResponse) (Score, error) {
	purposeSim, err := s.Text.Compare(ctx, truth.PurposeBehavior, response.PurposeBehavior)
	if err != nil {
		return Failed(err), fmt.Errorf("purpose similarity: %w", err)
	}

	descSim, err := s.Text.Compare(ctx, truth.ReturnValues.Description, response.ReturnValues.Description)
	if err != nil {
		return Failed(err), fmt.Errorf("return description similarity: %w", err)
	}

	overallSim, err := s.Text.Compare(ctx, combinedText(truth.PurposeBehavior, truth.ReturnValues.Type, truth.ReturnValues.Description),
		combinedText(response.PurposeBehavior, response.ReturnValues.Type, response.ReturnValues.Description))
	if err != nil {
		return Failed(err), fmt.Errorf("overall similarity: %w", err)
	}

	return Score{
		PurposeSimilarity:    purposeSim,
		ReturnTypeMatch:      TypeMatch(truth.ReturnValues.Type, response.ReturnValues.Type),
		ReturnDescSimilarity: descSim,
		OverallSimilarity:    overallSim,
		Success:              true,
	}, nil
}

// TypeMatch reports whether two return types are the same after trimming
// whitespace and ignoring case. "int" and "Int" match; "Integer" does not.
func TypeMatch(truth, response string) bool {
	return strings.EqualFold(strings.TrimSpace(truth), strings.TrimSpace(response))
}

// combinedText joins a record's fields into the single text used for the
// overall similarity comparison.
func combinedText(purpose, returnType, returnDesc string) string {
	return purpose + " Returns " + returnType + ": " + returnDesc
}
