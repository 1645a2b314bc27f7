package retrieval

import (
	"fmt"
	"log/slog"
	"time"

	"support-retrieval/internal/domain"
)

// ResultMetadata is the result-facing projection of one retained candidate.
type ResultMetadata struct {
	ID         string            `json:"id"`
	FinalScore float64           `json:"final_score"`
	Source     string            `json:"source,omitempty"`
	TicketID   string            `json:"ticket_id,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// FinalResult is the answer-ready payload returned to the orchestrator.
type FinalResult struct {
	Chunks     []string                `json:"chunks"`
	Metadata   []ResultMetadata        `json:"metadata"`
	Monitoring domain.MonitoringRecord `json:"monitoring"`
	AuditKey   string                  `json:"quality_audit_key,omitempty"`
}

// AuditParameters records the request parameters alongside the outcome.
type AuditParameters struct {
	MaxResults  int  `json:"max_results"`
	UseReranker bool `json:"use_reranker"`
	UseMMR      bool `json:"use_mmr"`
}

// AuditRecord is the date-partitioned quality record persisted for offline
// analysis. Nothing in the pipeline ever reads it back.
type AuditRecord struct {
	QueryID             string                    `json:"query_id"`
	Timestamp           time.Time                 `json:"timestamp"`
	Query               string                    `json:"user_query"`
	Parameters          AuditParameters           `json:"parameters"`
	QualityMetrics      domain.QualityMetrics     `json:"quality_metrics"`
	PipelinePerformance []domain.MonitoringRecord `json:"pipeline_performance"`
	ResultsMetadata     []ResultMetadata          `json:"results_metadata"`
}

// Key returns the date-partitioned storage key for the audit record.
func (a AuditRecord) Key() string {
	return fmt.Sprintf("rag-quality-metrics/%s/%s.json", a.Timestamp.UTC().Format("2006/01/02"), a.QueryID)
}

// Finalize truncates the candidate set to max_results, projects the
// retained candidates into the result-facing shape, computes quality
// metrics over the retained scores and aggregates the per-stage monitoring
// records into a final summary. Persisting the audit record is the
// caller's responsibility; it is best-effort and must not fail the
// response.
func Finalize(
	qc domain.QueryContext,
	candidates domain.CandidateSet,
	priorStages []domain.MonitoringRecord,
	logger *slog.Logger,
) (FinalResult, AuditRecord) {
	start := time.Now()

	retained := candidates
	if len(retained) > qc.MaxResults {
		retained = retained[:qc.MaxResults]
	}

	chunks := make([]string, 0, len(retained))
	metadata := make([]ResultMetadata, 0, len(retained))
	for _, c := range retained {
		chunks = append(chunks, c.Hit.Text)
		metadata = append(metadata, ResultMetadata{
			ID:         c.Hit.ID,
			FinalScore: c.Score,
			Source:     c.Hit.Source,
			TicketID:   c.Hit.TicketID,
			Metadata:   c.Hit.Metadata,
		})
	}

	quality := domain.ComputeQualityMetrics(retained.Scores())

	monitoring := domain.MonitoringRecord{
		QueryID:        qc.QueryID,
		Stage:          domain.StageFinalResults,
		Timestamp:      start.UTC(),
		InputCount:     len(candidates),
		OutputCount:    len(retained),
		QualityMetrics: &quality,
		PipelineStages: priorStages,
		TotalTimeMs:    float64(time.Since(start).Microseconds()) / 1000,
	}

	audit := AuditRecord{
		QueryID:   qc.QueryID,
		Timestamp: start.UTC(),
		Query:     qc.Query,
		Parameters: AuditParameters{
			MaxResults:  qc.MaxResults,
			UseReranker: qc.UseReranker,
			UseMMR:      qc.UseMMR,
		},
		QualityMetrics:      quality,
		PipelinePerformance: priorStages,
		ResultsMetadata:     metadata,
	}

	logger.Info("final_results_assembled",
		slog.String("query_id", qc.QueryID),
		slog.Int("result_count", quality.ResultCount),
		slog.Float64("avg_score", quality.AvgScore))

	return FinalResult{
		Chunks:     chunks,
		Metadata:   metadata,
		Monitoring: monitoring,
	}, audit
}
