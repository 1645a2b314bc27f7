package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"support-retrieval/internal/domain"
)

// Rerank re-scores the fused candidates pairwise against the query with a
// cross-encoder and sorts them descending by the new score. The scorer's
// output replaces the prior score of every candidate; ties keep input order
// (stable sort). Callers handle the use_reranker=false pass-through before
// reaching this function.
//
// A scorer failure is returned as ErrRerankerUnavailable without falling
// back to the original scores; the orchestrator decides whether to retry
// or re-invoke the stage with use_reranker=false.
func Rerank(
	ctx context.Context,
	qc domain.QueryContext,
	candidates domain.CandidateSet,
	scorer domain.PairScorer,
	logger *slog.Logger,
) (domain.CandidateSet, domain.MonitoringRecord, error) {
	start := time.Now()
	rec := domain.MonitoringRecord{
		QueryID:    qc.QueryID,
		Stage:      domain.StageCrossEncoder,
		Timestamp:  start.UTC(),
		Enabled:    true,
		InputCount: len(candidates),
	}

	rerankStart := time.Now()
	output, err := scorer.Score(ctx, qc.Query, candidates.Texts())
	if err != nil {
		return nil, rec, fmt.Errorf("%w: %v", domain.ErrRerankerUnavailable, err)
	}

	scores, err := output.Normalize()
	if err != nil {
		return nil, rec, fmt.Errorf("%w: %v", domain.ErrRerankerUnavailable, err)
	}
	if len(scores) != len(candidates) {
		return nil, rec, fmt.Errorf("%w: scorer returned %d scores for %d candidates",
			domain.ErrRerankerUnavailable, len(scores), len(candidates))
	}

	reranked := make(domain.CandidateSet, len(candidates))
	for i, c := range candidates {
		reranked[i] = domain.Candidate{Hit: c.Hit, Score: scores[i]}
	}
	sort.SliceStable(reranked, func(i, j int) bool {
		return reranked[i].Score > reranked[j].Score
	})
	rerankTime := time.Since(rerankStart)

	rec.RerankTimeMs = float64(rerankTime.Microseconds()) / 1000
	rec.TotalTimeMs = float64(time.Since(start).Microseconds()) / 1000
	rec.OutputCount = len(reranked)

	logger.Info("reranking_completed",
		slog.String("query_id", qc.QueryID),
		slog.Int("candidate_count", len(candidates)),
		slog.String("model", scorer.ModelName()),
		slog.Int64("duration_ms", rerankTime.Milliseconds()))

	return reranked, rec, nil
}
