// Package repository contains the Postgres adapters. Vector search runs
// against the support_chunks table via pgvector.
package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"support-retrieval/internal/domain"
)

var _ domain.VectorSearcher = (*ChunkSearchRepository)(nil)

// ChunkSearchRepository performs k-NN search over chunk embeddings.
type ChunkSearchRepository struct {
	pool *pgxpool.Pool
}

// NewChunkSearchRepository creates a ChunkSearchRepository.
func NewChunkSearchRepository(pool *pgxpool.Pool) *ChunkSearchRepository {
	return &ChunkSearchRepository{pool: pool}
}

// SearchKNN returns the chunks nearest to the query embedding by cosine
// distance. Hits carry their embedding so the diversity stage can compute
// pairwise similarity without touching the index again. The product filter
// matches the product_purchased metadata attribute exactly, mirroring the
// lexical side's term filter.
func (r *ChunkSearchRepository) SearchKNN(ctx context.Context, embedding []float32, limit int, filter domain.SearchFilter) ([]domain.DocumentHit, error) {
	query := `
		SELECT id, content, source, ticket_id, metadata, embedding
		FROM support_chunks
	`
	args := []interface{}{pgvector.NewVector(embedding), limit}
	if filter.Product != "" {
		query += ` WHERE metadata->>'product_purchased' = $3`
		args = append(args, filter.Product)
	}
	query += `
		ORDER BY embedding <=> $1
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var hits []domain.DocumentHit
	for rows.Next() {
		var (
			hit      domain.DocumentHit
			ticketID *string
			source   *string
			metaJSON []byte
			vec      pgvector.Vector
		)
		if err := rows.Scan(&hit.ID, &hit.Text, &source, &ticketID, &metaJSON, &vec); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		if source != nil {
			hit.Source = *source
		}
		if ticketID != nil {
			hit.TicketID = *ticketID
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &hit.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode chunk metadata: %w", err)
			}
		}
		hit.Embedding = vec.Slice()
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return hits, nil
}
