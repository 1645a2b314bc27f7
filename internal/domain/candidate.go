package domain

// Stage identifies a pipeline stage. Stage names double as the suffix of
// candidate store keys, so they must stay stable across deployments.
type Stage string

const (
	StageSearchFusion Stage = "search_fusion"
	StageCrossEncoder Stage = "cross_encoder"
	StageMMR          Stage = "mmr"
	StageFinalResults Stage = "final_results"
)

// DocumentHit is a single document returned by the index, either from the
// lexical (BM25) or the vector (k-NN) retrieval mode.
type DocumentHit struct {
	// ID is unique within the index.
	ID string `json:"id"`
	// Text is the chunk content shown to the answer synthesizer.
	Text string `json:"text"`
	// Source identifies the origin document (file name, ticket export, ...).
	Source string `json:"source,omitempty"`
	// TicketID links back to the support ticket the chunk came from, if any.
	TicketID string `json:"ticket_id,omitempty"`
	// Embedding is the chunk's vector. Lexical hits may not carry one;
	// the diversity filter treats a missing embedding as all zeros.
	Embedding []float32 `json:"embedding,omitempty"`
	// Metadata holds index-side attributes (product, priority, channel, status).
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Candidate pairs a document hit with a stage-dependent score: an RRF score
// after fusion, a cross-encoder relevance after reranking, or the carried
// value through a pass-through stage.
type Candidate struct {
	Hit   DocumentHit `json:"hit"`
	Score float64     `json:"score"`
}

// CandidateSet is an ordered candidate list. Sets are written once to the
// candidate store under (query id, stage) and never mutated afterwards;
// every stage produces a new set instead of updating the previous one.
type CandidateSet []Candidate

// Texts returns the candidate texts in list order.
func (cs CandidateSet) Texts() []string {
	texts := make([]string, len(cs))
	for i, c := range cs {
		texts[i] = c.Hit.Text
	}
	return texts
}

// Scores returns the candidate scores in list order.
func (cs CandidateSet) Scores() []float64 {
	scores := make([]float64, len(cs))
	for i, c := range cs {
		scores[i] = c.Score
	}
	return scores
}
