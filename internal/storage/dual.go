package storage

import "context"

// Dual pairs a live store (Redis) with a durable one (Postgres). Saves go to
// both; loads prefer the live copy and re-warm it from the durable one after
// a cold start; change notifications come from the live store.
type Dual struct {
	live    Store
	durable Store
}

func NewDual(live, durable Store) *Dual {
	return &Dual{live: live, durable: durable}
}

func (d *Dual) Load(ctx context.Context, key string) ([]byte, error) {
	val, err := d.live.Load(ctx, key)
	if err == nil && val != nil {
		return val, nil
	}
	// Redis empty or unavailable: the durable copy is authoritative.
	val, derr := d.durable.Load(ctx, key)
	if derr != nil {
		return nil, derr
	}
	if val != nil && err == nil {
		if werr := d.live.Save(ctx, key, val); werr != nil {
			return val, nil // warmed on the next save
		}
	}
	return val, nil
}

func (d *Dual) Save(ctx context.Context, key string, value []byte) error {
	if err := d.durable.Save(ctx, key, value); err != nil {
		return err
	}
	return d.live.Save(ctx, key, value)
}

func (d *Dual) Watch(key string, fn func(value []byte)) (func(), error) {
	return d.live.Watch(key, fn)
}

func (d *Dual) Close() error {
	lerr := d.live.Close()
	if derr := d.durable.Close(); derr != nil {
		return derr
	}
	return lerr
}
