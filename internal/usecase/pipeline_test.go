package usecase_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"support-retrieval/internal/adapter/blobstore"
	"support-retrieval/internal/adapter/candidatestore"
	"support-retrieval/internal/domain"
	"support-retrieval/internal/usecase"
)

// MockLexicalSearcher
type MockLexicalSearcher struct {
	mock.Mock
}

func (m *MockLexicalSearcher) SearchBM25(ctx context.Context, query string, limit int, filter domain.SearchFilter) ([]domain.DocumentHit, error) {
	args := m.Called(ctx, query, limit, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DocumentHit), args.Error(1)
}

// MockVectorSearcher
type MockVectorSearcher struct {
	mock.Mock
}

func (m *MockVectorSearcher) SearchKNN(ctx context.Context, embedding []float32, limit int, filter domain.SearchFilter) ([]domain.DocumentHit, error) {
	args := m.Called(ctx, embedding, limit, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DocumentHit), args.Error(1)
}

// MockPairScorer
type MockPairScorer struct {
	mock.Mock
}

func (m *MockPairScorer) Score(ctx context.Context, query string, texts []string) (domain.ScorerOutput, error) {
	args := m.Called(ctx, query, texts)
	return args.Get(0).(domain.ScorerOutput), args.Error(1)
}

func (m *MockPairScorer) ModelName() string {
	return "mock-cross-encoder"
}

// recordingNotifier captures escalation requests.
type recordingNotifier struct {
	requests []domain.TicketRequest
}

func (n *recordingNotifier) Notify(req domain.TicketRequest) {
	n.requests = append(n.requests, req)
}

type pipelineFixture struct {
	pipeline  *usecase.Pipeline
	blob      *blobstore.MemoryStore
	lexical   *MockLexicalSearcher
	vector    *MockVectorSearcher
	scorer    *MockPairScorer
	escalator *recordingNotifier
}

func newFixture(t *testing.T, cfg usecase.PipelineConfig) *pipelineFixture {
	t.Helper()

	blob := blobstore.NewMemoryStore()
	store, err := candidatestore.New(blob, 16)
	assert.NoError(t, err)

	f := &pipelineFixture{
		blob:      blob,
		lexical:   new(MockLexicalSearcher),
		vector:    new(MockVectorSearcher),
		scorer:    new(MockPairScorer),
		escalator: &recordingNotifier{},
	}
	f.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Store:     store,
		Lexical:   f.lexical,
		Vector:    f.vector,
		Scorer:    f.scorer,
		Audit:     blob,
		Escalator: f.escalator,
		Logger:    slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}, cfg)
	return f
}

func queryContext() domain.QueryContext {
	return domain.QueryContext{
		QueryID:    "q-pipe",
		Query:      "printer offline after update",
		Embedding:  []float32{0.3, 0.4},
		MaxResults: 2,
	}
}

func docHits(ids ...string) []domain.DocumentHit {
	hits := make([]domain.DocumentHit, len(ids))
	for i, id := range ids {
		hits[i] = domain.DocumentHit{ID: id, Text: "text-" + id, Embedding: []float32{float32(i), 1}}
	}
	return hits
}

func TestPipeline_Run_BaselinePath(t *testing.T) {
	f := newFixture(t, usecase.PipelineConfig{})
	qc := queryContext()

	f.lexical.On("SearchBM25", mock.Anything, qc.Query, 2, domain.SearchFilter{}).Return(docHits("A", "B"), nil)
	f.vector.On("SearchKNN", mock.Anything, qc.Embedding, 2, domain.SearchFilter{}).Return(docHits("B", "C"), nil)

	resp := f.pipeline.Run(context.Background(), qc)

	assert.Equal(t, usecase.StatusOK, resp.StatusCode)
	assert.NotNil(t, resp.Result)
	assert.Equal(t, []string{"text-B", "text-A"}, resp.Result.Chunks)

	// Fusion plus two pass-through records reach the finalizer.
	stages := resp.Result.Monitoring.PipelineStages
	assert.Len(t, stages, 3)
	assert.Equal(t, domain.StageSearchFusion, stages[0].Stage)
	assert.Equal(t, domain.StageCrossEncoder, stages[1].Stage)
	assert.False(t, stages[1].Enabled)
	assert.Equal(t, domain.StageMMR, stages[2].Stage)
	assert.False(t, stages[2].Enabled)

	// The reranker is never consulted on the baseline path.
	f.scorer.AssertNotCalled(t, "Score")
}

func TestPipeline_Run_WithRerankerAndMMR(t *testing.T) {
	f := newFixture(t, usecase.PipelineConfig{})
	qc := queryContext()
	qc.UseReranker = true
	qc.UseMMR = true

	f.lexical.On("SearchBM25", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(docHits("A", "B"), nil)
	f.vector.On("SearchKNN", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(docHits("C", "D"), nil)
	f.scorer.On("Score", mock.Anything, qc.Query, []string{"text-A", "text-C", "text-B", "text-D"}).
		Return(domain.ScorerOutput{Plain: []float64{0.1, 0.9, 0.4, 0.8}}, nil)

	resp := f.pipeline.Run(context.Background(), qc)

	assert.Equal(t, usecase.StatusOK, resp.StatusCode)
	assert.NotNil(t, resp.Result)
	assert.Len(t, resp.Result.Chunks, 2)

	stages := resp.Result.Monitoring.PipelineStages
	assert.Len(t, stages, 3)
	assert.True(t, stages[1].Enabled)
	assert.True(t, stages[2].Enabled)
}

func TestPipeline_Run_FusionFailureStopsPipeline(t *testing.T) {
	f := newFixture(t, usecase.PipelineConfig{})
	qc := queryContext()

	f.lexical.On("SearchBM25", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("opensearch: connection refused"))
	f.vector.On("SearchKNN", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(docHits("A"), nil).Maybe()

	resp := f.pipeline.Run(context.Background(), qc)

	assert.Equal(t, usecase.StatusError, resp.StatusCode)
	assert.Equal(t, "unable to complete search", resp.Error)
	assert.Equal(t, "unable to complete search", resp.Monitoring.Error)
	assert.Nil(t, resp.Result)
	// The failure detail never leaks into the response.
	assert.NotContains(t, resp.Error, "opensearch")
}

func TestPipeline_RunRerank_PassThroughKeepsKey(t *testing.T) {
	f := newFixture(t, usecase.PipelineConfig{})
	qc := queryContext()
	qc.UseReranker = false

	resp := f.pipeline.RunRerank(context.Background(), qc, "candidates/q-pipe/search_fusion.json")

	assert.Equal(t, usecase.StatusOK, resp.StatusCode)
	assert.Equal(t, "candidates/q-pipe/search_fusion.json", resp.CandidatesKey)
	assert.False(t, resp.Monitoring.Enabled)
	f.scorer.AssertNotCalled(t, "Score")
	assert.Equal(t, 0, f.blob.Len())
}

func TestPipeline_RunRerank_MissingCandidates(t *testing.T) {
	f := newFixture(t, usecase.PipelineConfig{})
	qc := queryContext()
	qc.UseReranker = true

	resp := f.pipeline.RunRerank(context.Background(), qc, "candidates/q-pipe/search_fusion.json")

	assert.Equal(t, usecase.StatusError, resp.StatusCode)
	assert.Equal(t, "unable to complete search", resp.Error)
}

func TestPipeline_RunFinalize_WritesAuditRecord(t *testing.T) {
	f := newFixture(t, usecase.PipelineConfig{})
	qc := queryContext()

	f.lexical.On("SearchBM25", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(docHits("A", "B"), nil)
	f.vector.On("SearchKNN", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(docHits("A"), nil)

	resp := f.pipeline.Run(context.Background(), qc)

	assert.Equal(t, usecase.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Result.AuditKey)

	payload, err := f.blob.Get(context.Background(), resp.Result.AuditKey)
	assert.NoError(t, err)
	assert.Contains(t, string(payload), qc.QueryID)
}

func TestPipeline_Escalation(t *testing.T) {
	tests := []struct {
		name      string
		threshold float64
		scores    domain.ScorerOutput
		escalated bool
	}{
		{"below threshold escalates", 0.5, domain.ScorerOutput{Plain: []float64{0.1, 0.2}}, true},
		{"above threshold does not", 0.5, domain.ScorerOutput{Plain: []float64{0.8, 0.9}}, false},
		{"zero threshold disables", 0, domain.ScorerOutput{Plain: []float64{0.1, 0.2}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, usecase.PipelineConfig{EscalationThreshold: tt.threshold})
			qc := queryContext()
			qc.UseReranker = true

			f.lexical.On("SearchBM25", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(docHits("A", "B"), nil)
			f.vector.On("SearchKNN", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return([]domain.DocumentHit{}, nil)
			f.scorer.On("Score", mock.Anything, mock.Anything, mock.Anything).Return(tt.scores, nil)

			resp := f.pipeline.Run(context.Background(), qc)

			assert.Equal(t, usecase.StatusOK, resp.StatusCode)
			if tt.escalated {
				assert.Len(t, f.escalator.requests, 1)
				assert.Equal(t, qc.QueryID, f.escalator.requests[0].QueryID)
			} else {
				assert.Empty(t, f.escalator.requests)
			}
		})
	}
}

func TestPipeline_EscalatesOnEmptyResults(t *testing.T) {
	f := newFixture(t, usecase.PipelineConfig{EscalationThreshold: 0.5})
	qc := queryContext()

	f.lexical.On("SearchBM25", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return([]domain.DocumentHit{}, nil)
	f.vector.On("SearchKNN", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return([]domain.DocumentHit{}, nil)

	resp := f.pipeline.Run(context.Background(), qc)

	assert.Equal(t, usecase.StatusOK, resp.StatusCode)
	assert.Len(t, f.escalator.requests, 1)
}
