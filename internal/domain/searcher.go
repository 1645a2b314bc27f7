package domain

import "context"

// SearchFilter narrows a search to an exact metadata match. The same filter
// is applied identically to both retrieval modes.
type SearchFilter struct {
	// Product filters on the product_purchased metadata attribute.
	Product string
}

// LexicalSearcher performs BM25-style keyword search against the support
// index. Hits come back ranked by the index's own relevance scoring.
type LexicalSearcher interface {
	SearchBM25(ctx context.Context, query string, limit int, filter SearchFilter) ([]DocumentHit, error)
}

// VectorSearcher performs k-nearest-neighbor search over chunk embeddings.
// Hits must carry their embedding so the diversity filter can compute
// pairwise similarity without another index round-trip.
type VectorSearcher interface {
	SearchKNN(ctx context.Context, embedding []float32, limit int, filter SearchFilter) ([]DocumentHit, error)
}
