// Package di wires configuration into the running component graph.
package di

import (
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"support-retrieval/internal/adapter/candidatestore"
	"support-retrieval/internal/adapter/crossencoder"
	"support-retrieval/internal/adapter/embedding"
	"support-retrieval/internal/adapter/repository"
	"support-retrieval/internal/adapter/searchindex"
	"support-retrieval/internal/adapter/ticket"
	"support-retrieval/internal/domain"
	"support-retrieval/internal/infra/config"
	"support-retrieval/internal/infra/httpclient"
	"support-retrieval/internal/metrics"
	"support-retrieval/internal/usecase"
	"support-retrieval/internal/worker"
)

// ApplicationComponents holds all wired dependencies for the service.
type ApplicationComponents struct {
	Pipeline *usecase.Pipeline

	// Encoder is nil when no embedding credentials are configured;
	// requests must then carry a precomputed query vector.
	Encoder domain.VectorEncoder

	// Worker is nil when escalation is not configured.
	Worker *worker.EscalationWorker
}

// NewApplicationComponents wires all dependencies from config, the database
// pool and the blob store backing candidates and audit records.
func NewApplicationComponents(cfg *config.Config, pool *pgxpool.Pool, blob domain.BlobStore, log *slog.Logger) (*ApplicationComponents, error) {
	store, err := candidatestore.New(blob, cfg.CandidateCache)
	if err != nil {
		return nil, err
	}

	// Shared HTTP clients with connection pooling
	searchHTTP := httpclient.NewPooledClient(time.Duration(cfg.SearchIndexTimeout) * time.Second)
	scorerHTTP := httpclient.NewPooledClient(time.Duration(cfg.CrossEncoderTimeout) * time.Second)

	lexical := searchindex.NewClient(cfg.SearchIndexURL, searchHTTP)
	vector := repository.NewChunkSearchRepository(pool)
	scorer := crossencoder.NewClient(cfg.CrossEncoderURL, cfg.CrossEncoderModel, scorerHTTP, cfg.CrossEncoderMaxRPS, log)

	components := &ApplicationComponents{}

	if cfg.OpenAIAPIKey != "" {
		components.Encoder = embedding.NewOpenAIEncoder(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.EmbedModel, cfg.EmbedDim)
		log.Info("query_embedding_enabled", slog.String("model", cfg.EmbedModel))
	}

	var escalator usecase.EscalationNotifier
	if cfg.TicketServiceURL != "" {
		ticketHTTP := httpclient.NewPooledClient(time.Duration(cfg.TicketTimeout) * time.Second)
		ticketClient := ticket.NewClient(cfg.TicketServiceURL, ticketHTTP, log)
		components.Worker = worker.NewEscalationWorker(ticketClient, log, cfg.EscalationQueueSize)
		escalator = components.Worker
		log.Info("escalation_enabled",
			slog.String("url", cfg.TicketServiceURL),
			slog.Float64("threshold", cfg.EscalationThreshold))
	}

	components.Pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Store:     store,
		Lexical:   lexical,
		Vector:    vector,
		Scorer:    scorer,
		Audit:     blob,
		Metrics:   metrics.NewPrometheusSink(),
		Escalator: escalator,
		Logger:    log,
	}, usecase.PipelineConfig{
		EscalationThreshold: cfg.EscalationThreshold,
	})

	return components, nil
}
