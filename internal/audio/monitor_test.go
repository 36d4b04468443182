package audio

import (
	"errors"
	"testing"
	"time"

	"github.com/emotionwall/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(events *[]model.AudioEvent) func(model.AudioEvent) {
	return func(ev model.AudioEvent) { *events = append(*events, ev) }
}

func TestMonitorLifecycle(t *testing.T) {
	t.Run("denied microphone keeps monitor idle and retryable", func(t *testing.T) {
		m := NewMonitor(DefaultConfig(), nil)
		err := m.Enable(func() error { return errors.New("NotAllowedError") }, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMicrophoneDenied)
		assert.False(t, m.Listening())
		assert.Error(t, m.Err())

		// Retry succeeds and clears the error state.
		require.NoError(t, m.Enable(func() error { return nil }, nil))
		assert.True(t, m.Listening())
		assert.NoError(t, m.Err())
	})

	t.Run("disable is idempotent and releases once", func(t *testing.T) {
		released := 0
		m := NewMonitor(DefaultConfig(), nil)
		require.NoError(t, m.Enable(nil, func() { released++ }))
		m.Disable()
		m.Disable()
		assert.Equal(t, 1, released)
		assert.False(t, m.Listening())
	})

	t.Run("frames while idle are ignored", func(t *testing.T) {
		var events []model.AudioEvent
		m := NewMonitor(DefaultConfig(), collect(&events))
		m.Process(0.9, time.Now())
		assert.Empty(t, events)
	})
}

func TestMonitorCooldown(t *testing.T) {
	var events []model.AudioEvent
	m := NewMonitor(DefaultConfig(), collect(&events))
	require.NoError(t, m.Enable(nil, nil))

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Two qualifying loud samples inside the 5s cooldown: one event.
	m.Process(0.6, base)
	m.Process(0.6, base.Add(2*time.Second))
	require.Len(t, events, 1)
	assert.Equal(t, model.AudioEventLoud, events[0].Type)
	assert.Equal(t, model.EmotionSurprise, events[0].Emotion)

	// After the cooldown elapses the next one fires.
	m.Process(0.6, base.Add(5*time.Second))
	assert.Len(t, events, 2)
}

func TestMonitorLoudSampleStream(t *testing.T) {
	// 40 loud samples spread over 20s: never more than one event per 5s window.
	var events []model.AudioEvent
	m := NewMonitor(DefaultConfig(), collect(&events))
	require.NoError(t, m.Enable(nil, nil))

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 40; i++ {
		m.Process(0.6, base.Add(time.Duration(i)*500*time.Millisecond))
	}
	// 20s span with a 5s cooldown bounds the count at 4.
	assert.Len(t, events, 4)
}

func TestMonitorSilenceSingleFire(t *testing.T) {
	var events []model.AudioEvent
	m := NewMonitor(DefaultConfig(), collect(&events))
	require.NoError(t, m.Enable(nil, nil))

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Continuous silence for 20s with an 8s threshold: exactly one event.
	for i := 0; i <= 200; i++ {
		m.Process(0.01, base.Add(time.Duration(i)*100*time.Millisecond))
	}
	require.Len(t, events, 1)
	assert.Equal(t, model.AudioEventSilence, events[0].Type)

	// Breaking the run re-arms the silence timer.
	loudAt := base.Add(21 * time.Second)
	m.Process(0.2, loudAt)
	for i := 1; i <= 100; i++ {
		m.Process(0.01, loudAt.Add(time.Duration(i)*100*time.Millisecond))
	}
	assert.Len(t, events, 2)
}

func TestMonitorLaughDetection(t *testing.T) {
	var events []model.AudioEvent
	m := NewMonitor(DefaultConfig(), collect(&events))
	require.NoError(t, m.Enable(nil, nil))

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Bursty mid-band pattern: alternate quiet and mid-energy frames so the
	// window variance crosses the laugh threshold.
	rms := []float64{0.08, 0.35, 0.07, 0.4, 0.09, 0.38, 0.06, 0.42}
	for i, v := range rms {
		m.Process(v, base.Add(time.Duration(i)*100*time.Millisecond))
	}
	require.NotEmpty(t, events)
	assert.Equal(t, model.AudioEventLaugh, events[0].Type)
	assert.Equal(t, model.EmotionFun, events[0].Emotion)
}
