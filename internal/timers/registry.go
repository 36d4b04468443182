// Package timers provides a per-component timer registry: a map from
// purpose name to cancel handle, cleared atomically on disable or unmount.
// Components own their pending timers explicitly instead of capturing them
// in callbacks, which is what makes stale-callback bugs impossible to write.
package timers

import (
	"sync"
	"time"
)

type Registry struct {
	mu      sync.Mutex
	pending map[string]*time.Timer
	closed  bool
}

func New() *Registry {
	return &Registry{pending: make(map[string]*time.Timer)}
}

// After schedules fn after d under the given purpose name, replacing any
// pending timer with the same name. No-op once the registry is closed.
func (r *Registry) After(name string, d time.Duration, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if t, ok := r.pending[name]; ok {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		r.mu.Lock()
		if r.closed || r.pending[name] != t {
			// Replaced or cancelled while firing.
			r.mu.Unlock()
			return
		}
		delete(r.pending, name)
		r.mu.Unlock()
		fn()
	})
	r.pending[name] = t
}

// Cancel stops the pending timer with the given name, if any.
func (r *Registry) Cancel(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.pending[name]; ok {
		t.Stop()
		delete(r.pending, name)
	}
}

// Active reports whether a timer with the given name is pending.
func (r *Registry) Active(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pending[name]
	return ok
}

// StopAll cancels every pending timer but keeps the registry usable
// (disable/enable cycles).
func (r *Registry) StopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, t := range r.pending {
		t.Stop()
		delete(r.pending, name)
	}
}

// Close cancels everything and rejects all further scheduling (unmount).
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	for name, t := range r.pending {
		t.Stop()
		delete(r.pending, name)
	}
}
