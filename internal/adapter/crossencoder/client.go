// Package crossencoder provides the HTTP client for the pairwise relevance
// scorer endpoint serving a cross-encoder model.
package crossencoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"support-retrieval/internal/domain"
)

var _ domain.PairScorer = (*Client)(nil)

// Client calls a cross-encoder inference endpoint. A client-side rate
// limiter protects the model server from request bursts; the pipeline
// itself never retries a failed call.
type Client struct {
	BaseURL string
	Model   string
	Client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient constructs a cross-encoder client. maxRPS <= 0 disables the
// rate limiter.
func NewClient(baseURL, model string, httpClient *http.Client, maxRPS float64, logger *slog.Logger) *Client {
	var limiter *rate.Limiter
	if maxRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(maxRPS), 1)
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		Client:  httpClient,
		limiter: limiter,
		logger:  logger,
	}
}

// scorePair is one (query, document) input to the cross-encoder.
type scorePair struct {
	Text     string `json:"text"`
	TextPair string `json:"text_pair"`
}

type scoreRequest struct {
	Inputs []scorePair `json:"inputs"`
}

// Score sends the (query, text) pairs in input order and returns the raw
// scorer output. The endpoint answers with either a plain float array or a
// labeled-score array depending on the deployed model head; both shapes
// are captured in the tagged variant and normalized by the caller.
func (c *Client) Score(ctx context.Context, query string, texts []string) (domain.ScorerOutput, error) {
	if len(texts) == 0 {
		return domain.ScorerOutput{Plain: []float64{}}, nil
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return domain.ScorerOutput{}, fmt.Errorf("rate limiter: %w", err)
		}
	}

	startTime := time.Now()

	pairs := make([]scorePair, len(texts))
	for i, t := range texts {
		pairs[i] = scorePair{Text: query, TextPair: t}
	}

	payload, err := json.Marshal(scoreRequest{Inputs: pairs})
	if err != nil {
		return domain.ScorerOutput{}, fmt.Errorf("failed to marshal score request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/score", c.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return domain.ScorerOutput{}, fmt.Errorf("failed to create score request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		c.logger.Warn("scoring_failed",
			slog.String("error", err.Error()),
			slog.Int64("elapsed_ms", time.Since(startTime).Milliseconds()))
		return domain.ScorerOutput{}, fmt.Errorf("failed to call scorer endpoint: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		c.logger.Warn("scoring_failed",
			slog.Int("status_code", resp.StatusCode),
			slog.Int64("elapsed_ms", time.Since(startTime).Milliseconds()))
		return domain.ScorerOutput{}, fmt.Errorf("scorer endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.ScorerOutput{}, fmt.Errorf("failed to read scorer response: %w", err)
	}

	output, err := decodeScores(body)
	if err != nil {
		return domain.ScorerOutput{}, err
	}

	c.logger.Info("scoring_completed",
		slog.Int("pair_count", len(texts)),
		slog.String("model", c.Model),
		slog.Int64("elapsed_ms", time.Since(startTime).Milliseconds()))

	return output, nil
}

// decodeScores detects which of the two response shapes the endpoint used.
func decodeScores(body []byte) (domain.ScorerOutput, error) {
	var plain []float64
	if err := json.Unmarshal(body, &plain); err == nil {
		return domain.ScorerOutput{Plain: plain}, nil
	}

	var labeled []domain.LabeledScore
	if err := json.Unmarshal(body, &labeled); err == nil {
		return domain.ScorerOutput{Labeled: labeled}, nil
	}

	return domain.ScorerOutput{}, fmt.Errorf("unrecognized scorer response shape: %s", truncate(string(body), 200))
}

// ModelName returns the model identifier for logging/debugging.
func (c *Client) ModelName() string {
	return c.Model
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
