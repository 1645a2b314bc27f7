// Package retrieval_http exposes the pipeline to the orchestrator over
// HTTP: one endpoint per stage plus a convenience endpoint that drives the
// full state machine.
package retrieval_http

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"support-retrieval/internal/domain"
	"support-retrieval/internal/usecase"
)

// Handler binds the pipeline to echo routes.
type Handler struct {
	pipeline          *usecase.Pipeline
	encoder           domain.VectorEncoder
	defaultMaxResults int
}

// NewHandler constructs a Handler. encoder may be nil; requests without a
// precomputed embedding are then rejected by the fusion stage.
func NewHandler(pipeline *usecase.Pipeline, encoder domain.VectorEncoder, defaultMaxResults int) *Handler {
	return &Handler{
		pipeline:          pipeline,
		encoder:           encoder,
		defaultMaxResults: defaultMaxResults,
	}
}

// Register wires the retrieval routes.
func (h *Handler) Register(e *echo.Echo) {
	e.POST("/v1/retrieval/query", h.Query)
	e.POST("/v1/retrieval/stages/fusion", h.StageFusion)
	e.POST("/v1/retrieval/stages/rerank", h.StageRerank)
	e.POST("/v1/retrieval/stages/mmr", h.StageMMR)
	e.POST("/v1/retrieval/stages/finalize", h.StageFinalize)
}

// QueryRequest mirrors the query context fields of the stage contract.
type QueryRequest struct {
	QueryID       string    `json:"query_id,omitempty"`
	Query         string    `json:"user_query"`
	Embedding     []float32 `json:"query_embedding,omitempty"`
	MaxResults    int       `json:"max_results,omitempty"`
	ProductFilter string    `json:"product_filter,omitempty"`
	UseReranker   bool      `json:"use_reranker"`
	UseMMR        bool      `json:"use_mmr"`
	MMRLambda     float64   `json:"mmr_lambda,omitempty"`
}

// StageRequest is a query request plus the previous stage's candidates,
// either by store key or inline, and, for the finalizer, the accumulated
// monitoring records.
type StageRequest struct {
	QueryRequest
	CandidatesKey string                    `json:"candidates_key,omitempty"`
	Candidates    domain.CandidateSet       `json:"candidates,omitempty"`
	Monitoring    []domain.MonitoringRecord `json:"all_monitoring,omitempty"`
}

// candidatesKey resolves the stage input to a store key. Inline candidates
// are persisted under the canonical previous-stage key first.
func (h *Handler) candidatesKey(ctx echo.Context, qc domain.QueryContext, req StageRequest, prior domain.Stage) (string, error) {
	if req.CandidatesKey != "" {
		return req.CandidatesKey, nil
	}
	if len(req.Candidates) > 0 {
		return h.pipeline.StoreCandidates(ctx.Request().Context(), qc.QueryID, prior, req.Candidates)
	}
	return "", nil
}

func (h *Handler) queryContext(ctx echo.Context, req QueryRequest) (domain.QueryContext, error) {
	qc := domain.QueryContext{
		QueryID:       req.QueryID,
		Query:         req.Query,
		Embedding:     req.Embedding,
		MaxResults:    req.MaxResults,
		ProductFilter: req.ProductFilter,
		UseReranker:   req.UseReranker,
		UseMMR:        req.UseMMR,
		MMRLambda:     req.MMRLambda,
	}
	if qc.QueryID == "" {
		qc.QueryID = uuid.NewString()
	}
	if qc.MaxResults <= 0 {
		qc.MaxResults = h.defaultMaxResults
	}
	if len(qc.Embedding) == 0 && h.encoder != nil && qc.Query != "" {
		embedding, err := h.encoder.Encode(ctx.Request().Context(), qc.Query)
		if err != nil {
			return qc, err
		}
		qc.Embedding = embedding
	}
	return qc, nil
}

// Query runs the full pipeline for one request.
func (h *Handler) Query(ctx echo.Context) error {
	var req QueryRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	qc, err := h.queryContext(ctx, req)
	if err != nil {
		return ctx.JSON(http.StatusBadGateway, map[string]string{"error": "unable to complete search"})
	}

	resp := h.pipeline.Run(ctx.Request().Context(), qc)
	return ctx.JSON(resp.StatusCode, resp)
}

// StageFusion invokes the hybrid search fusion stage on its own.
func (h *Handler) StageFusion(ctx echo.Context) error {
	var req StageRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	qc, err := h.queryContext(ctx, req.QueryRequest)
	if err != nil {
		return ctx.JSON(http.StatusBadGateway, map[string]string{"error": "unable to complete search"})
	}

	resp := h.pipeline.RunFusion(ctx.Request().Context(), qc)
	return ctx.JSON(resp.StatusCode, resp)
}

// StageRerank invokes the cross-encoder stage on a stored candidate set.
func (h *Handler) StageRerank(ctx echo.Context) error {
	var req StageRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	qc, err := h.queryContext(ctx, req.QueryRequest)
	if err != nil {
		return ctx.JSON(http.StatusBadGateway, map[string]string{"error": "unable to complete search"})
	}

	key, err := h.candidatesKey(ctx, qc, req, domain.StageSearchFusion)
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "unable to complete search"})
	}

	resp := h.pipeline.RunRerank(ctx.Request().Context(), qc, key)
	return ctx.JSON(resp.StatusCode, resp)
}

// StageMMR invokes the diversity stage on a stored candidate set.
func (h *Handler) StageMMR(ctx echo.Context) error {
	var req StageRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	qc, err := h.queryContext(ctx, req.QueryRequest)
	if err != nil {
		return ctx.JSON(http.StatusBadGateway, map[string]string{"error": "unable to complete search"})
	}

	key, err := h.candidatesKey(ctx, qc, req, domain.StageCrossEncoder)
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "unable to complete search"})
	}

	resp := h.pipeline.RunMMR(ctx.Request().Context(), qc, key)
	return ctx.JSON(resp.StatusCode, resp)
}

// StageFinalize assembles the final payload from a stored candidate set
// and the accumulated monitoring records.
func (h *Handler) StageFinalize(ctx echo.Context) error {
	var req StageRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	qc, err := h.queryContext(ctx, req.QueryRequest)
	if err != nil {
		return ctx.JSON(http.StatusBadGateway, map[string]string{"error": "unable to complete search"})
	}

	key, err := h.candidatesKey(ctx, qc, req, domain.StageMMR)
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "unable to complete search"})
	}

	resp := h.pipeline.RunFinalize(ctx.Request().Context(), qc, key, req.Monitoring)
	return ctx.JSON(resp.StatusCode, resp)
}
