// Package searchindex provides the HTTP client for the lexical (BM25)
// side of hybrid search, backed by the support search-indexer service.
package searchindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"support-retrieval/internal/domain"
)

var _ domain.LexicalSearcher = (*Client)(nil)

// Client calls the search-indexer's BM25 endpoint.
type Client struct {
	BaseURL string
	Client  *http.Client
}

// NewClient constructs a search index client with a shared pooled
// http.Client.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{BaseURL: baseURL, Client: httpClient}
}

type searchRequest struct {
	Query         string `json:"query"`
	Limit         int    `json:"limit"`
	ProductFilter string `json:"product_filter,omitempty"`
}

type searchResponse struct {
	Hits []searchHit `json:"hits"`
}

type searchHit struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Source   string            `json:"source"`
	TicketID string            `json:"ticket_id"`
	Metadata map[string]string `json:"metadata"`
	Score    float64           `json:"score"`
}

// SearchBM25 runs a keyword search ranked by the index's own BM25 scoring.
// The product filter is applied server-side as an exact term match.
func (c *Client) SearchBM25(ctx context.Context, query string, limit int, filter domain.SearchFilter) ([]domain.DocumentHit, error) {
	reqBody := searchRequest{
		Query:         query,
		Limit:         limit,
		ProductFilter: filter.Product,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/search", c.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call search index: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("search index returned %d: %s", resp.StatusCode, string(body))
	}

	var searchResp searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	hits := make([]domain.DocumentHit, 0, len(searchResp.Hits))
	for _, h := range searchResp.Hits {
		hits = append(hits, domain.DocumentHit{
			ID:       h.ID,
			Text:     h.Text,
			Source:   h.Source,
			TicketID: h.TicketID,
			Metadata: h.Metadata,
		})
	}
	return hits, nil
}
