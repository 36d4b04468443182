package memory

import (
	"context"
	"sync"
)

// Client is the in-memory Store for tests and -dev runs. Watch notifications
// fan out synchronously to every watcher of the key, including the writer's
// own watchers; subscribers are expected to suppress their own echo.
type Client struct {
	mu       sync.RWMutex
	data     map[string][]byte
	watchers map[string]map[int]func([]byte)
	nextID   int
}

func New() *Client {
	return &Client{
		data:     make(map[string][]byte),
		watchers: make(map[string]map[int]func([]byte)),
	}
}

func (c *Client) Close() error { return nil }

func (c *Client) Load(ctx context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.data[key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (c *Client) Save(ctx context.Context, key string, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	c.mu.Lock()
	c.data[key] = stored
	targets := make([]func([]byte), 0, len(c.watchers[key]))
	for _, fn := range c.watchers[key] {
		targets = append(targets, fn)
	}
	c.mu.Unlock()

	// Notify outside the lock so watchers may call back into the store.
	for _, fn := range targets {
		fn(stored)
	}
	return nil
}

func (c *Client) Watch(key string, fn func(value []byte)) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	if c.watchers[key] == nil {
		c.watchers[key] = make(map[int]func([]byte))
	}
	c.watchers[key][id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.watchers[key], id)
	}, nil
}
