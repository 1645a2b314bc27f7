package retrieval_http_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"support-retrieval/internal/adapter/blobstore"
	"support-retrieval/internal/adapter/candidatestore"
	"support-retrieval/internal/adapter/retrieval_http"
	"support-retrieval/internal/domain"
	"support-retrieval/internal/usecase"
)

type fakeLexical struct {
	hits []domain.DocumentHit
	err  error
}

func (f fakeLexical) SearchBM25(context.Context, string, int, domain.SearchFilter) ([]domain.DocumentHit, error) {
	return f.hits, f.err
}

type fakeVector struct {
	hits []domain.DocumentHit
	err  error
}

func (f fakeVector) SearchKNN(context.Context, []float32, int, domain.SearchFilter) ([]domain.DocumentHit, error) {
	return f.hits, f.err
}

type fakeScorer struct {
	out domain.ScorerOutput
	err error
}

func (f fakeScorer) Score(context.Context, string, []string) (domain.ScorerOutput, error) {
	return f.out, f.err
}

func (f fakeScorer) ModelName() string { return "fake" }

type fakeEncoder struct {
	vec []float32
	err error
}

func (f fakeEncoder) Encode(context.Context, string) ([]float32, error) {
	return f.vec, f.err
}

func (f fakeEncoder) Version() string { return "fake-v1" }

func newTestHandler(t *testing.T, lexical domain.LexicalSearcher, vector domain.VectorSearcher, scorer domain.PairScorer, encoder domain.VectorEncoder) *retrieval_http.Handler {
	t.Helper()

	blob := blobstore.NewMemoryStore()
	store, err := candidatestore.New(blob, 16)
	assert.NoError(t, err)

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Store:   store,
		Lexical: lexical,
		Vector:  vector,
		Scorer:  scorer,
		Audit:   blob,
		Logger:  slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}, usecase.PipelineConfig{})

	return retrieval_http.NewHandler(pipeline, encoder, 10)
}

func postJSON(t *testing.T, e *echo.Echo, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func hits(ids ...string) []domain.DocumentHit {
	out := make([]domain.DocumentHit, len(ids))
	for i, id := range ids {
		out[i] = domain.DocumentHit{ID: id, Text: "text-" + id}
	}
	return out
}

func TestHandler_Query_Success(t *testing.T) {
	h := newTestHandler(t, fakeLexical{hits: hits("A", "B")}, fakeVector{hits: hits("B", "C")}, fakeScorer{}, nil)
	e := echo.New()
	h.Register(e)

	rec := postJSON(t, e, "/v1/retrieval/query", `{
		"query_id": "q-http",
		"user_query": "wifi drops every hour",
		"query_embedding": [0.1, 0.2],
		"max_results": 2
	}`)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		StatusCode int `json:"statusCode"`
		Result     struct {
			Chunks []string `json:"chunks"`
		} `json:"result"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, usecase.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"text-B", "text-A"}, resp.Result.Chunks)
}

func TestHandler_Query_GeneratesQueryID(t *testing.T) {
	h := newTestHandler(t, fakeLexical{hits: hits("A")}, fakeVector{}, fakeScorer{}, nil)
	e := echo.New()
	h.Register(e)

	rec := postJSON(t, e, "/v1/retrieval/query", `{
		"user_query": "no sound from speakers",
		"query_embedding": [0.5]
	}`)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Monitoring struct {
			QueryID string `json:"query_id"`
		} `json:"monitoring"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Monitoring.QueryID)
}

func TestHandler_Query_EncodesWhenEmbeddingMissing(t *testing.T) {
	h := newTestHandler(t, fakeLexical{hits: hits("A")}, fakeVector{hits: hits("A")}, fakeScorer{}, fakeEncoder{vec: []float32{0.9, 0.1}})
	e := echo.New()
	h.Register(e)

	rec := postJSON(t, e, "/v1/retrieval/query", `{"user_query": "screen flickers"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandler_Query_EncoderFailure(t *testing.T) {
	h := newTestHandler(t, fakeLexical{}, fakeVector{}, fakeScorer{}, fakeEncoder{err: errors.New("embedding api down")})
	e := echo.New()
	h.Register(e)

	rec := postJSON(t, e, "/v1/retrieval/query", `{"user_query": "screen flickers"}`)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "unable to complete search")
	assert.NotContains(t, rec.Body.String(), "embedding api down")
}

func TestHandler_Query_StageFailureReturns500(t *testing.T) {
	h := newTestHandler(t, fakeLexical{err: errors.New("index down")}, fakeVector{hits: hits("A")}, fakeScorer{}, nil)
	e := echo.New()
	h.Register(e)

	rec := postJSON(t, e, "/v1/retrieval/query", `{
		"user_query": "q",
		"query_embedding": [0.1]
	}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "unable to complete search")
	assert.NotContains(t, rec.Body.String(), "index down")
}

func TestHandler_Query_MalformedBody(t *testing.T) {
	h := newTestHandler(t, fakeLexical{}, fakeVector{}, fakeScorer{}, nil)
	e := echo.New()
	h.Register(e)

	rec := postJSON(t, e, "/v1/retrieval/query", `{"user_query": 42}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_StageEndpoints(t *testing.T) {
	h := newTestHandler(t, fakeLexical{hits: hits("A", "B")}, fakeVector{hits: hits("C")}, fakeScorer{out: domain.ScorerOutput{Plain: []float64{0.3, 0.9, 0.1}}}, nil)
	e := echo.New()
	h.Register(e)

	// Fusion produces a candidate key.
	rec := postJSON(t, e, "/v1/retrieval/stages/fusion", `{
		"query_id": "q-stages",
		"user_query": "q",
		"query_embedding": [0.1],
		"max_results": 3
	}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	var fusion usecase.StageResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fusion))
	assert.Equal(t, "candidates/q-stages/search_fusion.json", fusion.CandidatesKey)

	// Rerank consumes the fusion key and writes its own.
	rec = postJSON(t, e, "/v1/retrieval/stages/rerank", `{
		"query_id": "q-stages",
		"user_query": "q",
		"query_embedding": [0.1],
		"max_results": 3,
		"use_reranker": true,
		"candidates_key": "`+fusion.CandidatesKey+`"
	}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	var rerank usecase.StageResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rerank))
	assert.Equal(t, "candidates/q-stages/cross_encoder.json", rerank.CandidatesKey)

	// Finalize returns the inline payload.
	rec = postJSON(t, e, "/v1/retrieval/stages/finalize", `{
		"query_id": "q-stages",
		"user_query": "q",
		"query_embedding": [0.1],
		"max_results": 3,
		"candidates_key": "`+rerank.CandidatesKey+`"
	}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	var final usecase.StageResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &final))
	assert.NotNil(t, final.Result)
	assert.Len(t, final.Result.Chunks, 3)
}

func TestHandler_StageFinalize_InlineCandidates(t *testing.T) {
	h := newTestHandler(t, fakeLexical{}, fakeVector{}, fakeScorer{}, nil)
	e := echo.New()
	h.Register(e)

	rec := postJSON(t, e, "/v1/retrieval/stages/finalize", `{
		"query_id": "q-inline",
		"user_query": "q",
		"query_embedding": [0.1],
		"max_results": 1,
		"candidates": [
			{"hit": {"id": "A", "text": "chunk A"}, "score": 0.9},
			{"hit": {"id": "B", "text": "chunk B"}, "score": 0.4}
		]
	}`)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp usecase.StageResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotNil(t, resp.Result)
	assert.Equal(t, []string{"chunk A"}, resp.Result.Chunks)
}

func TestHandler_StageRerank_PassThrough(t *testing.T) {
	h := newTestHandler(t, fakeLexical{}, fakeVector{}, fakeScorer{}, nil)
	e := echo.New()
	h.Register(e)

	rec := postJSON(t, e, "/v1/retrieval/stages/rerank", `{
		"query_id": "q-pt",
		"user_query": "q",
		"query_embedding": [0.1],
		"use_reranker": false,
		"candidates_key": "candidates/q-pt/search_fusion.json"
	}`)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp usecase.StageResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "candidates/q-pt/search_fusion.json", resp.CandidatesKey)
	assert.False(t, resp.Monitoring.Enabled)
}
