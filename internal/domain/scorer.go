package domain

import (
	"context"
	"fmt"
)

// LabeledScore is one element of a classifier-style scorer response,
// e.g. {"label": "LABEL_1", "score": 0.95}.
type LabeledScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// ScorerOutput is the tagged-variant response of a pairwise scorer. Exactly
// one of Plain or Labeled is set; Normalize collapses either shape into an
// ordered float list before any ranking logic touches it.
type ScorerOutput struct {
	Plain   []float64
	Labeled []LabeledScore
}

// Normalize returns the scores as a plain ordered list of floats.
func (o ScorerOutput) Normalize() ([]float64, error) {
	switch {
	case o.Plain != nil && o.Labeled != nil:
		return nil, fmt.Errorf("scorer output has both plain and labeled scores")
	case o.Plain != nil:
		return o.Plain, nil
	case o.Labeled != nil:
		scores := make([]float64, len(o.Labeled))
		for i, ls := range o.Labeled {
			scores[i] = ls.Score
		}
		return scores, nil
	default:
		return nil, fmt.Errorf("scorer output is empty")
	}
}

// PairScorer scores (query, candidate text) pairs jointly with a
// cross-encoder model. The output contains one score per input text, in
// input order.
type PairScorer interface {
	Score(ctx context.Context, query string, texts []string) (ScorerOutput, error)

	// ModelName returns the model identifier for logging/debugging.
	ModelName() string
}
