// Package storage provides the durable key-value blob store backing the
// user and group stores.
//
// The durable layout is four independent string-keyed entries holding
// JSON-encoded collections. The in-memory state of the stores is a cache;
// the blob store is the source of truth and every mutation writes through
// synchronously.
package storage

import "context"

// Keys used in the durable store. Each store module owns a disjoint set of
// keys and never writes outside its own.
const (
	KeyUsers   = "aura:users"
	KeySession = "aura:session"
	KeyGroups  = "aura:groups"
	KeyEvents  = "aura:events"
)

// Store is a durable mapping from string keys to string blobs, surviving
// process restarts. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the blob stored under key. The second return is false
	// when the key is absent.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set writes one blob, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// SetAll writes several blobs in a single atomic commit: either every
	// entry is durable or none is.
	SetAll(ctx context.Context, entries map[string]string) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the store.
	Close() error
}
