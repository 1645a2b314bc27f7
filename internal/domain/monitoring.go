package domain

import "time"

// MonitoringRecord is emitted once per stage invocation and aggregated by
// the finalizer. Stage-specific timing fields are omitted when zero so a
// fusion record does not carry rerank fields and vice versa.
//
// Enabled is serialized with omitempty on purpose: a pass-through stage
// reports enabled=false, and downstream consumers must treat that exactly
// like an absent field.
type MonitoringRecord struct {
	QueryID   string    `json:"query_id"`
	Stage     Stage     `json:"stage"`
	Timestamp time.Time `json:"timestamp"`
	Enabled   bool      `json:"enabled,omitempty"`

	InputCount  int `json:"input_count,omitempty"`
	OutputCount int `json:"output_count,omitempty"`

	// Fusion stage timings and counts.
	BM25TimeMs   float64 `json:"bm25_time_ms,omitempty"`
	KNNTimeMs    float64 `json:"knn_time_ms,omitempty"`
	RRFTimeMs    float64 `json:"rrf_time_ms,omitempty"`
	BM25Results  int     `json:"bm25_results,omitempty"`
	KNNResults   int     `json:"knn_results,omitempty"`
	FusedResults int     `json:"fused_results,omitempty"`

	// Rerank stage.
	RerankTimeMs float64 `json:"rerank_time_ms,omitempty"`

	// MMR stage.
	MMRTimeMs       float64 `json:"mmr_time_ms,omitempty"`
	RelevanceWeight float64 `json:"relevance_weight,omitempty"`

	// Finalizer.
	QualityMetrics *QualityMetrics    `json:"quality_metrics,omitempty"`
	PipelineStages []MonitoringRecord `json:"pipeline_stages,omitempty"`

	TotalTimeMs float64 `json:"total_time_ms,omitempty"`
	Error       string  `json:"error,omitempty"`
}

// QualityMetrics summarizes the final result scores at finalization time.
// Derived, never persisted on its own; the zero value is the correct
// answer for an empty result list.
type QualityMetrics struct {
	AvgScore      float64 `json:"avg_score"`
	ScoreVariance float64 `json:"score_variance"`
	ResultCount   int     `json:"result_count"`
	MinScore      float64 `json:"min_score,omitempty"`
	MaxScore      float64 `json:"max_score,omitempty"`
}

// ComputeQualityMetrics calculates mean, population variance and extrema
// over the given scores. An empty input yields the zero struct.
func ComputeQualityMetrics(scores []float64) QualityMetrics {
	if len(scores) == 0 {
		return QualityMetrics{}
	}

	var sum float64
	minScore, maxScore := scores[0], scores[0]
	for _, s := range scores {
		sum += s
		if s < minScore {
			minScore = s
		}
		if s > maxScore {
			maxScore = s
		}
	}
	mean := sum / float64(len(scores))

	var variance float64
	for _, s := range scores {
		d := s - mean
		variance += d * d
	}
	variance /= float64(len(scores))

	return QualityMetrics{
		AvgScore:      mean,
		ScoreVariance: variance,
		ResultCount:   len(scores),
		MinScore:      minScore,
		MaxScore:      maxScore,
	}
}
