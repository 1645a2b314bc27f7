// Package worker runs background escalation of low-confidence queries so
// ticket creation never sits on the request path.
package worker

import (
	"context"
	"log/slog"
	"time"

	"support-retrieval/internal/domain"
)

const (
	defaultQueueSize = 64
	ticketTimeout    = 10 * time.Second
)

// EscalationWorker drains a bounded queue of ticket requests and creates
// tickets best-effort. A full queue drops the request with a warning;
// escalation must never block or fail the pipeline.
type EscalationWorker struct {
	tickets  domain.TicketClient
	logger   *slog.Logger
	queue    chan domain.TicketRequest
	stopChan chan struct{}
	done     chan struct{}
}

// NewEscalationWorker creates a worker. queueSize <= 0 uses the default.
func NewEscalationWorker(tickets domain.TicketClient, logger *slog.Logger, queueSize int) *EscalationWorker {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &EscalationWorker{
		tickets:  tickets,
		logger:   logger,
		queue:    make(chan domain.TicketRequest, queueSize),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the worker goroutine.
func (w *EscalationWorker) Start() {
	w.logger.Info("Starting EscalationWorker")
	go w.run()
}

// Stop signals the worker and waits for in-flight work to finish.
func (w *EscalationWorker) Stop() {
	w.logger.Info("Stopping EscalationWorker")
	close(w.stopChan)
	<-w.done
}

// Notify enqueues a ticket request without blocking.
func (w *EscalationWorker) Notify(req domain.TicketRequest) {
	select {
	case w.queue <- req:
	default:
		w.logger.Warn("escalation_queue_full",
			"query_id", req.QueryID)
	}
}

func (w *EscalationWorker) run() {
	defer close(w.done)
	for {
		select {
		case <-w.stopChan:
			return
		case req := <-w.queue:
			w.createTicket(req)
		}
	}
}

func (w *EscalationWorker) createTicket(req domain.TicketRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), ticketTimeout)
	defer cancel()

	ticketID, err := w.tickets.CreateTicket(ctx, req)
	if err != nil {
		w.logger.Error("Failed to create escalation ticket",
			"query_id", req.QueryID,
			"error", err)
		return
	}

	w.logger.Info("Escalation ticket created",
		"query_id", req.QueryID,
		"ticket_id", ticketID)
}
