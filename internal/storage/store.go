// Package storage defines the persistence collaborator used by the wall
// engine: an opaque key-value store with a cross-tab external-change
// notification. Implementations: redis.Client, postgres.Client,
// memory.Client (tests and -dev without Redis).
package storage

import "context"

// Store is the opaque persistence contract. Load returns (nil, nil) when the
// key is absent. Watch delivers the new raw value whenever another writer
// saves the key; the returned cancel unsubscribes.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
	Watch(key string, fn func(value []byte)) (cancel func(), err error)
	Close() error
}
