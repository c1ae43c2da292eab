package store

import "io"

// KV is the narrow key-value contract the platform persists through.
type KV interface {
	io.Closer

	Get(key []byte) ([]byte, error)
	Put(key []byte, value []byte) error
	Delete(key []byte) error

	// Iterate walks entries whose key starts with prefix, in key order.
	Iterate(prefix []byte, fn func(key, value []byte) bool) error
}
