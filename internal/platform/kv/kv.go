// Package kv defines the flat key-value contract the history layer is
// built on. Implementations live under internal/infrastructure/kv.
package kv

import "context"

// Store is a minimal string-keyed blob store. Get reports absence via
// the bool rather than an error so callers can distinguish a missing
// key from a broken store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	KeysWithPrefix(ctx context.Context, prefix string) ([]string, error)
}
