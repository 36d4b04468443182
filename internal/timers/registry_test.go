package timers

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRegistry(t *testing.T) {
	t.Run("fires after delay", func(t *testing.T) {
		r := New()
		defer r.Close()
		var fired atomic.Int32
		r.After("a", 10*time.Millisecond, func() { fired.Add(1) })
		time.Sleep(80 * time.Millisecond)
		assert.Equal(t, int32(1), fired.Load())
		assert.False(t, r.Active("a"))
	})

	t.Run("same name replaces pending timer", func(t *testing.T) {
		r := New()
		defer r.Close()
		var fired atomic.Int32
		r.After("a", 20*time.Millisecond, func() { fired.Add(1) })
		r.After("a", 20*time.Millisecond, func() { fired.Add(1) })
		time.Sleep(100 * time.Millisecond)
		assert.Equal(t, int32(1), fired.Load())
	})

	t.Run("cancel prevents firing", func(t *testing.T) {
		r := New()
		defer r.Close()
		var fired atomic.Int32
		r.After("a", 20*time.Millisecond, func() { fired.Add(1) })
		r.Cancel("a")
		time.Sleep(80 * time.Millisecond)
		assert.Equal(t, int32(0), fired.Load())
	})

	t.Run("StopAll clears but stays usable", func(t *testing.T) {
		r := New()
		defer r.Close()
		var fired atomic.Int32
		r.After("a", 20*time.Millisecond, func() { fired.Add(1) })
		r.After("b", 20*time.Millisecond, func() { fired.Add(1) })
		r.StopAll()
		time.Sleep(80 * time.Millisecond)
		assert.Equal(t, int32(0), fired.Load())

		r.After("c", 10*time.Millisecond, func() { fired.Add(1) })
		time.Sleep(80 * time.Millisecond)
		assert.Equal(t, int32(1), fired.Load())
	})

	t.Run("Close rejects further scheduling", func(t *testing.T) {
		r := New()
		var fired atomic.Int32
		r.Close()
		r.After("a", 5*time.Millisecond, func() { fired.Add(1) })
		time.Sleep(60 * time.Millisecond)
		assert.Equal(t, int32(0), fired.Load())
	})
}
