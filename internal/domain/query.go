package domain

import "fmt"

// QueryContext carries one retrieval request through every stage.
// It is immutable for the duration of the request.
type QueryContext struct {
	// QueryID is globally unique per retrieval request and partitions all
	// candidate store keys.
	QueryID string `json:"query_id"`
	// Query is the raw user question.
	Query string `json:"user_query"`
	// Embedding is the query vector, computed by an external embedder.
	Embedding []float32 `json:"query_embedding,omitempty"`
	// MaxResults bounds the final result list. Fusion over-provisions to
	// 2x this value so rerank/MMR have material to work with.
	MaxResults int `json:"max_results"`
	// ProductFilter, when set, constrains both retrieval modes to an
	// exact metadata match.
	ProductFilter string `json:"product_filter,omitempty"`
	// UseReranker enables the cross-encoder stage.
	UseReranker bool `json:"use_reranker"`
	// UseMMR enables the diversity stage.
	UseMMR bool `json:"use_mmr"`
	// MMRLambda is accepted for caller compatibility but the diversity
	// stage runs with fixed 0.7/0.3 weights. See retrieval/mmr.go.
	MMRLambda float64 `json:"mmr_lambda,omitempty"`
}

// ValidateForSearch checks the fields the fusion stage depends on.
func (q *QueryContext) ValidateForSearch() error {
	if q.Query == "" {
		return fmt.Errorf("%w: empty query text", ErrInvalidQueryContext)
	}
	if len(q.Embedding) == 0 {
		return fmt.Errorf("%w: empty query embedding", ErrInvalidQueryContext)
	}
	if q.MaxResults <= 0 {
		return fmt.Errorf("%w: max_results must be positive, got %d", ErrInvalidQueryContext, q.MaxResults)
	}
	return nil
}

// ValidateForMMR checks the fields the diversity stage depends on.
func (q *QueryContext) ValidateForMMR() error {
	if len(q.Embedding) == 0 {
		return fmt.Errorf("%w: missing query embedding", ErrInvalidQueryContext)
	}
	if q.MaxResults <= 0 {
		return fmt.Errorf("%w: max_results must be positive, got %d", ErrInvalidQueryContext, q.MaxResults)
	}
	return nil
}
