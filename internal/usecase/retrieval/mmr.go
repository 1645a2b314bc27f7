package retrieval

import (
	"log/slog"
	"math"
	"time"

	"support-retrieval/internal/domain"
)

// Fixed MMR weights. The query context carries an mmr_lambda field, but
// this stage intentionally does not honor it: the deployed behavior always
// used 0.7/0.3 and downstream quality baselines were measured against
// those weights. Diversify logs a warning when a caller sends a different
// lambda so the discrepancy stays visible.
const (
	RelevanceWeight = 0.7
	DiversityWeight = 0.3
)

// Diversify applies maximal marginal relevance selection to the candidate
// set, picking at most max_results candidates that balance relevance to
// the query against similarity to already-selected candidates. Callers
// handle the use_mmr=false pass-through before reaching this function.
func Diversify(
	qc domain.QueryContext,
	candidates domain.CandidateSet,
	logger *slog.Logger,
) (domain.CandidateSet, domain.MonitoringRecord, error) {
	start := time.Now()
	rec := domain.MonitoringRecord{
		QueryID:    qc.QueryID,
		Stage:      domain.StageMMR,
		Timestamp:  start.UTC(),
		Enabled:    true,
		InputCount: len(candidates),
	}

	if err := qc.ValidateForMMR(); err != nil {
		return nil, rec, err
	}

	if qc.MMRLambda != 0 && qc.MMRLambda != RelevanceWeight {
		logger.Warn("mmr_lambda_ignored",
			slog.String("query_id", qc.QueryID),
			slog.Float64("requested_lambda", qc.MMRLambda),
			slog.Float64("effective_relevance_weight", RelevanceWeight))
	}

	mmrStart := time.Now()
	selected := SimpleMMR(candidates, qc.Embedding, qc.MaxResults)
	mmrTime := time.Since(mmrStart)

	rec.MMRTimeMs = float64(mmrTime.Microseconds()) / 1000
	rec.TotalTimeMs = float64(time.Since(start).Microseconds()) / 1000
	rec.RelevanceWeight = RelevanceWeight
	rec.OutputCount = len(selected)

	logger.Info("mmr_selection_completed",
		slog.String("query_id", qc.QueryID),
		slog.Int("input_count", len(candidates)),
		slog.Int("output_count", len(selected)),
		slog.Int64("duration_ms", mmrTime.Milliseconds()))

	return selected, rec, nil
}

// SimpleMMR greedily selects topK candidates maximizing
//
//	0.7*cos(query, candidate) - 0.3*max cos(candidate, selected)
//
// Relevance and the diversity penalty are both cosine similarity over
// embeddings. A candidate without an embedding behaves as an all-zero
// vector: similarity 0 against everything, so it is deprioritized but
// never excluded. The first candidate reaching the maximum score wins
// ties (strict greater-than comparison).
//
// Inputs with at most topK candidates are returned unchanged and
// unreordered.
func SimpleMMR(candidates domain.CandidateSet, queryEmbedding []float32, topK int) domain.CandidateSet {
	if len(candidates) <= topK {
		return candidates
	}

	selected := make(domain.CandidateSet, 0, topK)
	remaining := append(domain.CandidateSet(nil), candidates...)

	for len(remaining) > 0 && len(selected) < topK {
		bestIdx := 0
		bestScore := math.Inf(-1)

		for i, cand := range remaining {
			relevance := domain.CosineSimilarity(queryEmbedding, cand.Hit.Embedding)

			maxSim := 0.0
			for _, sel := range selected {
				if sim := domain.CosineSimilarity(cand.Hit.Embedding, sel.Hit.Embedding); sim > maxSim {
					maxSim = sim
				}
			}

			score := RelevanceWeight*relevance - DiversityWeight*maxSim
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}

		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	return selected
}
