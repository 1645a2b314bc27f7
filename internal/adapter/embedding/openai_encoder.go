// Package embedding adapts the OpenAI embeddings API as the query vector
// encoder. Used only when a request arrives without a precomputed
// embedding; the pipeline itself never computes vectors.
package embedding

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"support-retrieval/internal/domain"
)

var _ domain.VectorEncoder = (*OpenAIEncoder)(nil)

// OpenAIEncoder generates query embeddings via the OpenAI API.
type OpenAIEncoder struct {
	client     *openai.Client
	model      string
	dimensions int
}

// NewOpenAIEncoder creates an encoder for the given model. dimensions <= 0
// uses the model's native dimension.
func NewOpenAIEncoder(apiKey, baseURL, model string, dimensions int) *OpenAIEncoder {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIEncoder{
		client:     openai.NewClientWithConfig(cfg),
		model:      model,
		dimensions: dimensions,
	}
}

// Encode returns the embedding vector for the given text.
func (e *OpenAIEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	req := openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(e.model),
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding response contained no data")
	}
	return resp.Data[0].Embedding, nil
}

// Version returns the model identifier.
func (e *OpenAIEncoder) Version() string {
	return e.model
}
