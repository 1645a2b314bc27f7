package domain

import "context"

// TicketRequest asks the escalation service to open a human-support ticket
// for a query the pipeline could not answer confidently.
type TicketRequest struct {
	QueryID   string  `json:"query_id"`
	Query     string  `json:"user_query"`
	AvgScore  float64 `json:"avg_score"`
	UserEmail string  `json:"user_email,omitempty"`
}

// TicketClient creates escalation tickets. Delivery mechanics (email,
// queues) live behind the escalation service; callers only get a ticket id.
type TicketClient interface {
	CreateTicket(ctx context.Context, req TicketRequest) (string, error)
}
