// Package storage defines the lossy key-value store the component entry cache
// writes through.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly
// the same []byte that was previously passed to Put for a key (no metadata,
// no re-encoding, no mutation). They are explicitly allowed to be lossy - a
// Get may miss even after a successful Put - so no caller may treat a stored
// value as durable.
package storage

import "context"

// Store is a minimal byte store. Must be safe for concurrent use.
// Concurrent writers to the same key have no ordering guarantee beyond "one
// of the writes wins".
type Store interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources.
	Close(ctx context.Context) error
}
