// Package storage defines the key-value abstraction behind the dedup
// store's disk tier, plus the JSON serialization helpers shared by the
// tiers. Concrete backends live in subpackages (storage/badger).
package storage
