// Package candidatestore persists candidate sets between pipeline stages.
// Each stage writes its output under a key derived from the query id and
// stage name; keys are write-once and never reused, which makes an LRU
// read cache safe without any invalidation.
package candidatestore

import (
	"context"
	"encoding/json"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"support-retrieval/internal/domain"
)

// DefaultCacheSize bounds the read-through cache. A retrieval request
// touches at most four keys, so this covers hundreds of in-flight queries.
const DefaultCacheSize = 1024

// Key derives the blob key for a stage's candidate set.
func Key(queryID string, stage domain.Stage) string {
	return fmt.Sprintf("candidates/%s/%s.json", queryID, stage)
}

// Store is the typed candidate set layer over a blob store.
type Store struct {
	blob  domain.BlobStore
	cache *lru.Cache[string, domain.CandidateSet]
}

// New creates a candidate store. cacheSize <= 0 uses DefaultCacheSize.
func New(blob domain.BlobStore, cacheSize int) (*Store, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, domain.CandidateSet](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create candidate cache: %w", err)
	}
	return &Store{blob: blob, cache: cache}, nil
}

// Save writes the candidate set for (queryID, stage) and returns its key.
// Cached sets must never be mutated by callers; every stage builds a new
// set instead of editing a loaded one.
func (s *Store) Save(ctx context.Context, queryID string, stage domain.Stage, set domain.CandidateSet) (string, error) {
	key := Key(queryID, stage)

	payload, err := json.Marshal(set)
	if err != nil {
		return "", fmt.Errorf("failed to encode candidate set %s: %w", key, err)
	}
	if err := s.blob.Put(ctx, key, payload); err != nil {
		return "", fmt.Errorf("failed to store candidate set %s: %w", key, err)
	}

	s.cache.Add(key, set)
	return key, nil
}

// Load reads a candidate set by key. Failures (missing key, backend error,
// corrupt payload) are reported as ErrCandidateLoadFailed.
func (s *Store) Load(ctx context.Context, key string) (domain.CandidateSet, error) {
	if set, ok := s.cache.Get(key); ok {
		return set, nil
	}

	payload, err := s.blob.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrCandidateLoadFailed, key, err)
	}

	var set domain.CandidateSet
	if err := json.Unmarshal(payload, &set); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrCandidateLoadFailed, key, err)
	}

	s.cache.Add(key, set)
	return set, nil
}
