package redis

import (
	"context"
	"fmt"
	"sync"

	"github.com/emotionwall/internal/logger"
	"github.com/redis/go-redis/v9"
)

const changeChannelPrefix = "wall:changes:"

// Client is the Redis-backed Store. Save publishes the new value on a
// per-key channel so every process (and therefore every connected tab)
// sees external changes without polling.
type Client struct {
	cli *redis.Client

	mu      sync.Mutex
	pubsubs []*redis.PubSub
}

func New(ctx context.Context, url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redis ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{cli: cli}, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	pubsubs := c.pubsubs
	c.pubsubs = nil
	c.mu.Unlock()
	for _, ps := range pubsubs {
		_ = ps.Close()
	}
	return c.cli.Close()
}

func (c *Client) Load(ctx context.Context, key string) ([]byte, error) {
	val, err := c.cli.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, nil
}

func (c *Client) Save(ctx context.Context, key string, value []byte) error {
	if err := c.cli.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	if err := c.cli.Publish(ctx, changeChannelPrefix+key, value).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", key, err)
	}
	return nil
}

// Watch subscribes to the key's change channel. The callback runs on the
// subscription goroutine; keep it fast.
func (c *Client) Watch(key string, fn func(value []byte)) (func(), error) {
	pubsub := c.cli.Subscribe(context.Background(), changeChannelPrefix+key)
	if _, err := pubsub.Receive(context.Background()); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", key, err)
	}
	c.mu.Lock()
	c.pubsubs = append(c.pubsubs, pubsub)
	c.mu.Unlock()

	go func() {
		for msg := range pubsub.Channel() {
			fn([]byte(msg.Payload))
		}
		logger.Infof("redis watch closed key=%s", key)
	}()

	return func() { _ = pubsub.Close() }, nil
}
