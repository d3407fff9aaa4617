package storage

// KV is a minimal persistent key-value store used as the dedup store's
// disk tier. Implementations are single-writer; concurrent mutation
// from multiple goroutines or processes requires external coordination
// and disjoint backing paths.
type KV interface {
	// Get returns the value stored under key and whether it exists.
	Get(key string) ([]byte, bool, error)

	// Put stores value under key, replacing any existing value.
	Put(key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error

	// Keys returns all stored keys in backend iteration order.
	Keys() ([]string, error)

	// Len returns the number of stored keys.
	Len() (int, error)

	// Close releases backend resources.
	Close() error
}
