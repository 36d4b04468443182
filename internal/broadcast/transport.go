// Package broadcast delivers reaction events between wall sessions: when one
// tab appends a post, every other tab on the same space plays the mascot
// reaction. Delivery is at-least-once over an opaque transport; receivers
// deduplicate on the event nonce.
package broadcast

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/emotionwall/internal/logger"
	"github.com/emotionwall/internal/model"
	"github.com/emotionwall/internal/storage"
)

// Transport carries reaction events between sessions. Both directions are
// fire-and-forget; subscribers may receive the publisher's own events back.
type Transport interface {
	Publish(ev model.ReactionEvent) error
	Subscribe(fn func(model.ReactionEvent)) (cancel func(), err error)
}

// Bus is the in-process Transport: sessions served by the same process get
// events delivered directly, without a round-trip through storage.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]func(model.ReactionEvent)
	nextID int
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]func(model.ReactionEvent))}
}

func (b *Bus) Publish(ev model.ReactionEvent) error {
	b.mu.RLock()
	targets := make([]func(model.ReactionEvent), 0, len(b.subs))
	for _, fn := range b.subs {
		targets = append(targets, fn)
	}
	b.mu.RUnlock()
	for _, fn := range targets {
		fn(ev)
	}
	return nil
}

func (b *Bus) Subscribe(fn func(model.ReactionEvent)) (func(), error) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}, nil
}

// StoreTransport rides the storage layer's change notifications: the event
// is written to a single well-known key and every watcher of that key sees
// it. Cross-process when the backend is Redis; a no-op sink on backends
// without watch support.
type StoreTransport struct {
	key   string
	store storage.Store
}

func NewStoreTransport(st storage.Store, key string) *StoreTransport {
	return &StoreTransport{key: key, store: st}
}

func (t *StoreTransport) Publish(ev model.ReactionEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	// The slot holds only the latest event; dedup and loss tolerance are the
	// receiver's problem.
	return t.store.Save(context.Background(), t.key, data)
}

func (t *StoreTransport) Subscribe(fn func(model.ReactionEvent)) (func(), error) {
	return t.store.Watch(t.key, func(raw []byte) {
		var ev model.ReactionEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			logger.Errorf("broadcast: malformed reaction event: %v", err)
			return
		}
		fn(ev)
	})
}
