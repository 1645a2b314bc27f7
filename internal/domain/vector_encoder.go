package domain

import "context"

// VectorEncoder generates query embeddings. The pipeline treats embedding
// computation as an opaque external call returning a fixed-dimension
// vector; it is only invoked when a request arrives without a precomputed
// embedding.
type VectorEncoder interface {
	Encode(ctx context.Context, text string) ([]float32, error)
	Version() string
}
