package domain

import "errors"

// Error taxonomy for the retrieval pipeline. Stages wrap these sentinels
// with %w so the orchestrator can decide between fixing the input
// (ErrInvalidQueryContext) and retrying (everything else).
var (
	// ErrInvalidQueryContext means the caller sent malformed or missing
	// input. Retrying without changing the request will not help.
	ErrInvalidQueryContext = errors.New("invalid query context")

	// ErrRetrievalUnavailable means the search index could not be reached
	// or returned a failure. Retryable.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")

	// ErrRerankerUnavailable means the cross-encoder scorer failed. The
	// stage does not fall back silently; the caller may retry or re-invoke
	// with use_reranker=false.
	ErrRerankerUnavailable = errors.New("reranker unavailable")

	// ErrCandidateLoadFailed means a candidate set could not be read back
	// from the store. Retryable.
	ErrCandidateLoadFailed = errors.New("candidate load failed")

	// ErrKeyNotFound is returned by blob store implementations when a key
	// does not exist.
	ErrKeyNotFound = errors.New("key not found")
)
