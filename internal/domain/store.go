package domain

import "context"

// BlobStore is a write-once key/value store for candidate sets and audit
// records. Keys are never reused: every (query id, stage) pair produces a
// fresh key, so implementations need no locking.
type BlobStore interface {
	Put(ctx context.Context, key string, payload []byte) error
	// Get returns ErrKeyNotFound (possibly wrapped) for missing keys.
	Get(ctx context.Context, key string) ([]byte, error)
}
