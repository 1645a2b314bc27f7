package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"support-retrieval/internal/adapter/candidatestore"
	"support-retrieval/internal/domain"
	"support-retrieval/internal/usecase/retrieval"
)

// State names the pipeline's explicit states. Transitions always run
// fusion → rerank → mmr → finalize; rerank and mmr degrade to pass-through
// when disabled in the query context.
type State string

const (
	StateFusion   State = "fusion"
	StateRerank   State = "rerank"
	StateMMR      State = "mmr"
	StateFinalize State = "finalize"
)

// Status codes of the orchestrator-facing stage contract.
const (
	StatusOK    = 200
	StatusError = 500
)

// genericFailure is the user-visible outcome of any stage failure. The
// structured logs keep the full detail; callers never see internals.
const genericFailure = "unable to complete search"

// Transition is the typed payload carried between states.
type Transition struct {
	State         State                     `json:"state"`
	Query         domain.QueryContext       `json:"query"`
	CandidatesKey string                    `json:"candidates_key,omitempty"`
	Monitoring    []domain.MonitoringRecord `json:"monitoring,omitempty"`
}

// StageResponse is what every stage returns to the orchestrator: a status
// code, the candidate store key for the next stage (or the final payload
// from the finalizer), and the stage's monitoring record.
type StageResponse struct {
	StatusCode    int                     `json:"statusCode"`
	CandidatesKey string                  `json:"candidates_key,omitempty"`
	Monitoring    domain.MonitoringRecord `json:"monitoring"`
	Error         string                  `json:"error,omitempty"`
	Result        *retrieval.FinalResult  `json:"result,omitempty"`
}

// EscalationNotifier receives low-confidence queries for human follow-up.
// Notification is fire-and-forget.
type EscalationNotifier interface {
	Notify(req domain.TicketRequest)
}

// PipelineConfig holds the pipeline's fixed parameters. Set once at
// construction, never mutated afterwards.
type PipelineConfig struct {
	// EscalationThreshold triggers ticket creation when the final average
	// score falls below it. Zero disables escalation.
	EscalationThreshold float64
}

// Pipeline executes the retrieval stages. All collaborators are injected
// at construction; the pipeline itself is stateless and safe for
// unbounded cross-request concurrency, since every query id partitions
// all candidate store state.
type Pipeline struct {
	store     *candidatestore.Store
	searchers retrieval.Searchers
	scorer    domain.PairScorer
	audit     domain.BlobStore
	metrics   domain.MetricsSink
	escalator EscalationNotifier
	logger    *slog.Logger
	cfg       PipelineConfig
}

// PipelineDeps bundles the collaborators a Pipeline needs.
type PipelineDeps struct {
	Store     *candidatestore.Store
	Lexical   domain.LexicalSearcher
	Vector    domain.VectorSearcher
	Scorer    domain.PairScorer
	Audit     domain.BlobStore
	Metrics   domain.MetricsSink
	Escalator EscalationNotifier
	Logger    *slog.Logger
}

// NewPipeline wires a Pipeline. Metrics defaults to a no-op sink;
// Escalator may be nil to disable escalation entirely.
func NewPipeline(deps PipelineDeps, cfg PipelineConfig) *Pipeline {
	if deps.Metrics == nil {
		deps.Metrics = domain.NopMetricsSink{}
	}
	return &Pipeline{
		store:     deps.Store,
		searchers: retrieval.Searchers{Lexical: deps.Lexical, Vector: deps.Vector},
		scorer:    deps.Scorer,
		audit:     deps.Audit,
		metrics:   deps.Metrics,
		escalator: deps.Escalator,
		logger:    deps.Logger,
		cfg:       cfg,
	}
}

// Run drives a query context through the full state machine and returns
// the finalizer's response, or the first failing stage's response.
func (p *Pipeline) Run(ctx context.Context, qc domain.QueryContext) StageResponse {
	t := Transition{State: StateFusion, Query: qc}

	for {
		var (
			resp StageResponse
			next State
		)
		switch t.State {
		case StateFusion:
			resp = p.RunFusion(ctx, t.Query)
			next = StateRerank
		case StateRerank:
			resp = p.RunRerank(ctx, t.Query, t.CandidatesKey)
			next = StateMMR
		case StateMMR:
			resp = p.RunMMR(ctx, t.Query, t.CandidatesKey)
			next = StateFinalize
		case StateFinalize:
			return p.RunFinalize(ctx, t.Query, t.CandidatesKey, t.Monitoring)
		}

		if resp.StatusCode != StatusOK {
			return resp
		}
		t = Transition{
			State:         next,
			Query:         t.Query,
			CandidatesKey: resp.CandidatesKey,
			Monitoring:    append(t.Monitoring, resp.Monitoring),
		}
	}
}

// RunFusion executes the hybrid search fusion stage.
func (p *Pipeline) RunFusion(ctx context.Context, qc domain.QueryContext) StageResponse {
	candidates, rec, err := retrieval.Fuse(ctx, qc, p.searchers, p.logger)
	if err != nil {
		return p.fail(qc, rec, err)
	}

	key, err := p.store.Save(ctx, qc.QueryID, domain.StageSearchFusion, candidates)
	if err != nil {
		return p.fail(qc, rec, err)
	}

	p.metrics.Publish("RAG/SearchFusion",
		domain.DataPoint{Name: "BM25Latency", Value: rec.BM25TimeMs, Unit: "Milliseconds"},
		domain.DataPoint{Name: "KNNLatency", Value: rec.KNNTimeMs, Unit: "Milliseconds"},
		domain.DataPoint{Name: "RRFLatency", Value: rec.RRFTimeMs, Unit: "Milliseconds"},
	)

	return StageResponse{StatusCode: StatusOK, CandidatesKey: key, Monitoring: rec}
}

// RunRerank executes the cross-encoder stage, or passes the candidate key
// through untouched when use_reranker is false.
func (p *Pipeline) RunRerank(ctx context.Context, qc domain.QueryContext, candidatesKey string) StageResponse {
	if !qc.UseReranker {
		return p.passThrough(qc, domain.StageCrossEncoder, candidatesKey)
	}

	rec := domain.MonitoringRecord{QueryID: qc.QueryID, Stage: domain.StageCrossEncoder, Timestamp: time.Now().UTC()}

	candidates, err := p.store.Load(ctx, candidatesKey)
	if err != nil {
		return p.fail(qc, rec, err)
	}

	reranked, rec, err := retrieval.Rerank(ctx, qc, candidates, p.scorer, p.logger)
	if err != nil {
		return p.fail(qc, rec, err)
	}

	key, err := p.store.Save(ctx, qc.QueryID, domain.StageCrossEncoder, reranked)
	if err != nil {
		return p.fail(qc, rec, err)
	}

	p.metrics.Publish("RAG/CrossEncoder",
		domain.DataPoint{Name: "RerankLatency", Value: rec.RerankTimeMs, Unit: "Milliseconds"},
		domain.DataPoint{Name: "CandidatesProcessed", Value: float64(rec.InputCount)},
	)

	return StageResponse{StatusCode: StatusOK, CandidatesKey: key, Monitoring: rec}
}

// RunMMR executes the diversity stage, or passes the candidate key through
// untouched when use_mmr is false.
func (p *Pipeline) RunMMR(ctx context.Context, qc domain.QueryContext, candidatesKey string) StageResponse {
	if !qc.UseMMR {
		return p.passThrough(qc, domain.StageMMR, candidatesKey)
	}

	rec := domain.MonitoringRecord{QueryID: qc.QueryID, Stage: domain.StageMMR, Timestamp: time.Now().UTC()}

	candidates, err := p.store.Load(ctx, candidatesKey)
	if err != nil {
		return p.fail(qc, rec, err)
	}

	selected, rec, err := retrieval.Diversify(qc, candidates, p.logger)
	if err != nil {
		return p.fail(qc, rec, err)
	}

	key, err := p.store.Save(ctx, qc.QueryID, domain.StageMMR, selected)
	if err != nil {
		return p.fail(qc, rec, err)
	}

	p.metrics.Publish("RAG/MMR",
		domain.DataPoint{Name: "MMRLatency", Value: rec.MMRTimeMs, Unit: "Milliseconds"},
		domain.DataPoint{Name: "DiversityReduction", Value: float64(rec.InputCount - rec.OutputCount)},
	)

	return StageResponse{StatusCode: StatusOK, CandidatesKey: key, Monitoring: rec}
}

// RunFinalize loads the surviving candidate set, assembles the final
// payload and quality metrics, persists the audit record best-effort and
// triggers escalation for low-confidence results.
func (p *Pipeline) RunFinalize(ctx context.Context, qc domain.QueryContext, candidatesKey string, prior []domain.MonitoringRecord) StageResponse {
	rec := domain.MonitoringRecord{QueryID: qc.QueryID, Stage: domain.StageFinalResults, Timestamp: time.Now().UTC()}

	candidates, err := p.store.Load(ctx, candidatesKey)
	if err != nil {
		// Without candidates there is no result to return: fatal.
		return p.fail(qc, rec, err)
	}

	result, auditRec := retrieval.Finalize(qc, candidates, prior, p.logger)

	if key, werr := p.writeAudit(ctx, auditRec); werr != nil {
		p.logger.Warn("audit_write_failed",
			slog.String("query_id", qc.QueryID),
			slog.String("error", werr.Error()))
		p.metrics.Publish("RAG/FinalResults", domain.DataPoint{Name: "AuditWriteErrors", Value: 1})
	} else {
		result.AuditKey = key
	}

	quality := result.Monitoring.QualityMetrics
	p.metrics.Publish("RAG/FinalResults",
		domain.DataPoint{Name: "FinalResultCount", Value: float64(quality.ResultCount)},
		domain.DataPoint{Name: "AverageScore", Value: quality.AvgScore},
		domain.DataPoint{Name: "ScoreVariance", Value: quality.ScoreVariance},
		domain.DataPoint{Name: "ProcessingLatency", Value: result.Monitoring.TotalTimeMs, Unit: "Milliseconds"},
	)

	p.maybeEscalate(qc, *quality)

	return StageResponse{StatusCode: StatusOK, Monitoring: result.Monitoring, Result: &result}
}

// StoreCandidates persists an inline candidate set so a stage can be
// invoked with candidates supplied in the request body instead of a key.
func (p *Pipeline) StoreCandidates(ctx context.Context, queryID string, stage domain.Stage, set domain.CandidateSet) (string, error) {
	return p.store.Save(ctx, queryID, stage, set)
}

func (p *Pipeline) writeAudit(ctx context.Context, audit retrieval.AuditRecord) (string, error) {
	if p.audit == nil {
		return "", nil
	}
	payload, err := json.Marshal(audit)
	if err != nil {
		return "", err
	}
	key := audit.Key()
	if err := p.audit.Put(ctx, key, payload); err != nil {
		return "", err
	}
	return key, nil
}

func (p *Pipeline) maybeEscalate(qc domain.QueryContext, quality domain.QualityMetrics) {
	if p.escalator == nil || p.cfg.EscalationThreshold <= 0 {
		return
	}
	if quality.ResultCount > 0 && quality.AvgScore >= p.cfg.EscalationThreshold {
		return
	}
	p.logger.Info("low_confidence_escalation",
		slog.String("query_id", qc.QueryID),
		slog.Float64("avg_score", quality.AvgScore),
		slog.Float64("threshold", p.cfg.EscalationThreshold))
	p.escalator.Notify(domain.TicketRequest{
		QueryID:  qc.QueryID,
		Query:    qc.Query,
		AvgScore: quality.AvgScore,
	})
}

// passThrough returns the previous stage's key unchanged with an
// enabled=false monitoring record. It never loads the candidate set; the
// skipped logic cannot fail.
func (p *Pipeline) passThrough(qc domain.QueryContext, stage domain.Stage, candidatesKey string) StageResponse {
	return StageResponse{
		StatusCode:    StatusOK,
		CandidatesKey: candidatesKey,
		Monitoring: domain.MonitoringRecord{
			QueryID:   qc.QueryID,
			Stage:     stage,
			Timestamp: time.Now().UTC(),
			Enabled:   false,
		},
	}
}

// fail logs the full error, emits an error metric and returns a failure
// response with the generic user-visible message.
func (p *Pipeline) fail(qc domain.QueryContext, rec domain.MonitoringRecord, err error) StageResponse {
	p.logger.Error("stage_failed",
		slog.String("query_id", qc.QueryID),
		slog.String("stage", string(rec.Stage)),
		slog.String("error", err.Error()),
		slog.Bool("retryable", !errors.Is(err, domain.ErrInvalidQueryContext)))

	p.metrics.Publish(errorNamespace(rec.Stage), domain.DataPoint{Name: "Errors", Value: 1})

	rec.Error = genericFailure
	return StageResponse{StatusCode: StatusError, Error: genericFailure, Monitoring: rec}
}

func errorNamespace(stage domain.Stage) string {
	switch stage {
	case domain.StageSearchFusion:
		return "RAG/SearchFusion"
	case domain.StageCrossEncoder:
		return "RAG/CrossEncoder"
	case domain.StageMMR:
		return "RAG/MMR"
	default:
		return "RAG/FinalResults"
	}
}
