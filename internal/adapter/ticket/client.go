// Package ticket provides the HTTP client for the escalation service that
// opens human-support tickets for low-confidence queries.
package ticket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"support-retrieval/internal/domain"
)

var _ domain.TicketClient = (*Client)(nil)

// Client calls the escalation service.
type Client struct {
	BaseURL string
	Client  *http.Client
	logger  *slog.Logger
}

// NewClient constructs a ticket client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  httpClient,
		logger:  logger,
	}
}

type createTicketResponse struct {
	TicketID string `json:"ticket_id"`
	Message  string `json:"message"`
}

// CreateTicket opens an escalation ticket and returns its id.
func (c *Client) CreateTicket(ctx context.Context, req domain.TicketRequest) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal ticket request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/tickets", c.BaseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create ticket request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to call escalation service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("escalation service returned %d: %s", resp.StatusCode, string(body))
	}

	var ticketResp createTicketResponse
	if err := json.NewDecoder(resp.Body).Decode(&ticketResp); err != nil {
		return "", fmt.Errorf("failed to decode ticket response: %w", err)
	}

	c.logger.Info("escalation_ticket_created",
		slog.String("query_id", req.QueryID),
		slog.String("ticket_id", ticketResp.TicketID))

	return ticketResp.TicketID, nil
}
