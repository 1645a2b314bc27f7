package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"support-retrieval/internal/domain"
)

// DefaultRRFK is the reciprocal rank fusion constant. 60 is the value from
// the original RRF paper and what the index tuning was done against.
const DefaultRRFK = 60.0

// Searchers bundles the two retrieval modes the fusion stage runs against
// the same immutable index snapshot.
type Searchers struct {
	Lexical domain.LexicalSearcher
	Vector  domain.VectorSearcher
}

// Fuse runs the lexical and vector searches concurrently and merges them
// with reciprocal rank fusion. The output is truncated to 2x max_results so
// the rerank and diversity stages have material to work with.
func Fuse(
	ctx context.Context,
	qc domain.QueryContext,
	searchers Searchers,
	logger *slog.Logger,
) (domain.CandidateSet, domain.MonitoringRecord, error) {
	start := time.Now()
	rec := domain.MonitoringRecord{
		QueryID:   qc.QueryID,
		Stage:     domain.StageSearchFusion,
		Timestamp: start.UTC(),
	}

	if err := qc.ValidateForSearch(); err != nil {
		return nil, rec, err
	}

	filter := domain.SearchFilter{Product: qc.ProductFilter}

	var (
		bm25Hits, knnHits []domain.DocumentHit
		bm25Time, knnTime time.Duration
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t := time.Now()
		hits, err := searchers.Lexical.SearchBM25(gctx, qc.Query, qc.MaxResults, filter)
		bm25Time = time.Since(t)
		if err != nil {
			return fmt.Errorf("%w: bm25 search: %v", domain.ErrRetrievalUnavailable, err)
		}
		bm25Hits = hits
		return nil
	})
	g.Go(func() error {
		t := time.Now()
		hits, err := searchers.Vector.SearchKNN(gctx, qc.Embedding, qc.MaxResults, filter)
		knnTime = time.Since(t)
		if err != nil {
			return fmt.Errorf("%w: knn search: %v", domain.ErrRetrievalUnavailable, err)
		}
		knnHits = hits
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, rec, err
	}

	rrfStart := time.Now()
	fused := RRFFuse(bm25Hits, knnHits, DefaultRRFK)
	rrfTime := time.Since(rrfStart)

	// Over-provision for the downstream stages.
	if limit := qc.MaxResults * 2; len(fused) > limit {
		fused = fused[:limit]
	}

	rec.BM25TimeMs = float64(bm25Time.Microseconds()) / 1000
	rec.KNNTimeMs = float64(knnTime.Microseconds()) / 1000
	rec.RRFTimeMs = float64(rrfTime.Microseconds()) / 1000
	rec.TotalTimeMs = float64(time.Since(start).Microseconds()) / 1000
	rec.BM25Results = len(bm25Hits)
	rec.KNNResults = len(knnHits)
	rec.FusedResults = len(fused)

	logger.Info("hybrid_rrf_fusion_completed",
		slog.String("query_id", qc.QueryID),
		slog.Int("bm25_count", len(bm25Hits)),
		slog.Int("knn_count", len(knnHits)),
		slog.Int("fused_count", len(fused)))

	return fused, rec, nil
}

// RRFFuse merges two ranked hit lists with reciprocal rank fusion: each
// document accumulates 1/(k+rank) per list it appears in, ranks 1-indexed.
// The displayed payload comes from whichever list first introduced the id;
// the lexical list is accumulated first, so it wins. The result is sorted
// descending by fused score with a stable sort, so ties keep first-seen
// accumulation order and the output is deterministic for fixed inputs.
func RRFFuse(lexical, vector []domain.DocumentHit, k float64) domain.CandidateSet {
	type fusedDoc struct {
		hit   domain.DocumentHit
		score float64
	}
	docs := make(map[string]*fusedDoc)
	order := make([]string, 0, len(lexical)+len(vector))

	accumulate := func(hits []domain.DocumentHit) {
		for rank, hit := range hits {
			doc, seen := docs[hit.ID]
			if !seen {
				doc = &fusedDoc{hit: hit}
				docs[hit.ID] = doc
				order = append(order, hit.ID)
			}
			doc.score += 1.0 / (k + float64(rank+1))
		}
	}
	accumulate(lexical)
	accumulate(vector)

	fused := make(domain.CandidateSet, 0, len(order))
	for _, id := range order {
		fused = append(fused, domain.Candidate{Hit: docs[id].hit, Score: docs[id].score})
	}
	sort.SliceStable(fused, func(i, j int) bool {
		return fused[i].Score > fused[j].Score
	})
	return fused
}
