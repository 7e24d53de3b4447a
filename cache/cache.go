// Package cache provides content-addressed caching for decoded bundle files.
//
// Loaders use a Cache to skip decompression of files they have seen before.
// Keys are digests of the stored (possibly compressed) file bytes and values
// are the plain bundle bytes, so a cache may be shared by loaders reading
// from different locations.
package cache

import "github.com/opencontainers/go-digest"

// Cache stores plain bundle bytes keyed by the digest of the stored file.
//
// Implementations should handle their own size limits and eviction policies.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the content cached under d.
	// Returns nil, false if the content is not cached.
	Get(d digest.Digest) ([]byte, bool)

	// Put stores content under d.
	Put(d digest.Digest, content []byte) error

	// Delete removes the entry for d. Missing entries are a no-op.
	Delete(d digest.Digest) error
}

// Pruner is implemented by caches that can shrink on demand.
type Pruner interface {
	// MaxBytes returns the configured cache size limit (0 = unlimited).
	MaxBytes() int64

	// SizeBytes returns the current cache size in bytes.
	SizeBytes() int64

	// Prune removes entries until the cache is at or below targetBytes.
	// Returns the number of bytes freed.
	Prune(targetBytes int64) (int64, error)
}
