// Package audio implements the ambient energy monitor: a sampling loop over
// microphone RMS frames that emits classified AudioEvents on a cooldown
// schedule. Frames arrive from the client over the socket, so the monitor is
// driven by explicit Process calls with the frame timestamp.
package audio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/emotionwall/internal/model"
	"github.com/emotionwall/internal/signal"
)

// ErrMicrophoneDenied is surfaced when acquiring the microphone fails.
// Non-fatal: listening stays off and the caller may retry.
var ErrMicrophoneDenied = errors.New("audio: microphone access denied")

type Config struct {
	Thresholds signal.Thresholds
	// Cooldown suppresses all further events after any event
	// (single global last-event timestamp, uniform across types).
	Cooldown time.Duration
	// SilenceAfter is the continuous below-threshold duration before a
	// single silence event fires.
	SilenceAfter time.Duration
	// WindowSize is the sliding RMS window for variance-based laugh detection.
	WindowSize int
}

func DefaultConfig() Config {
	return Config{
		Thresholds:   signal.DefaultThresholds(),
		Cooldown:     5 * time.Second,
		SilenceAfter: 8 * time.Second,
		WindowSize:   60,
	}
}

// AcquireFunc models asynchronous microphone acquisition; it returns an error
// when the user declined permission.
type AcquireFunc func() error

// ReleaseFunc releases the stream and audio graph. Must be safe to skip when
// acquisition never succeeded.
type ReleaseFunc func()

// Monitor is the idle -> listening -> idle state machine.
type Monitor struct {
	mu   sync.Mutex
	cfg  Config
	emit func(model.AudioEvent)

	listening bool
	release   ReleaseFunc
	lastErr   error

	window       []float64
	lastEvent    time.Time
	silenceStart time.Time
	silenceFired bool
}

// NewMonitor creates a monitor in the idle state. emit receives classified
// events; it is called without internal locks held.
func NewMonitor(cfg Config, emit func(model.AudioEvent)) *Monitor {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 60
	}
	return &Monitor{cfg: cfg, emit: emit}
}

// Enable acquires the microphone and starts listening. Idempotent while
// listening. A refused permission leaves the monitor idle with
// ErrMicrophoneDenied recorded; callers may retry.
func (m *Monitor) Enable(acquire AcquireFunc, release ReleaseFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listening {
		return nil
	}
	if acquire != nil {
		if err := acquire(); err != nil {
			m.lastErr = fmt.Errorf("%w: %v", ErrMicrophoneDenied, err)
			return m.lastErr
		}
	}
	m.listening = true
	m.release = release
	m.lastErr = nil
	m.window = m.window[:0]
	m.lastEvent = time.Time{}
	m.silenceStart = time.Time{}
	m.silenceFired = false
	return nil
}

// Disable stops sampling and releases the stream. Idempotent and safe to call
// multiple times; all history and timers are cleared so the next Enable
// starts fresh.
func (m *Monitor) Disable() {
	m.mu.Lock()
	release := m.release
	m.release = nil
	m.listening = false
	m.window = nil
	m.silenceStart = time.Time{}
	m.silenceFired = false
	m.mu.Unlock()

	if release != nil {
		release()
	}
}

// Listening reports whether the monitor is currently sampling.
func (m *Monitor) Listening() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listening
}

// Err returns the last acquisition error (retryable condition), if any.
func (m *Monitor) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Process feeds one RMS frame sampled at the given time. Ignored while idle.
func (m *Monitor) Process(rms float64, at time.Time) {
	m.mu.Lock()
	if !m.listening {
		m.mu.Unlock()
		return
	}

	m.window = append(m.window, rms)
	if len(m.window) > m.cfg.WindowSize {
		m.window = m.window[len(m.window)-m.cfg.WindowSize:]
	}
	variance := varianceOf(m.window)

	var ev *model.AudioEvent
	th := m.cfg.Thresholds

	// Silence run tracking: single fire per continuous run.
	if rms < th.Silence {
		if m.silenceStart.IsZero() {
			m.silenceStart = at
		} else if !m.silenceFired && at.Sub(m.silenceStart) >= m.cfg.SilenceAfter {
			m.silenceFired = true
			ev = m.buildLocked(model.AudioEventSilence, at)
		}
	} else {
		m.silenceStart = time.Time{}
		m.silenceFired = false
	}

	if ev == nil {
		switch signal.ClassifyEnergy(rms, variance, th) {
		case signal.EnergyLoud:
			ev = m.buildLocked(model.AudioEventLoud, at)
		case signal.EnergyLaugh:
			ev = m.buildLocked(model.AudioEventLaugh, at)
		}
	}
	emit := m.emit
	m.mu.Unlock()

	if ev != nil && emit != nil {
		emit(*ev)
	}
}

// buildLocked applies the global cooldown and constructs the event.
// Returns nil while cooled down.
func (m *Monitor) buildLocked(t model.AudioEventType, at time.Time) *model.AudioEvent {
	if !m.lastEvent.IsZero() && at.Sub(m.lastEvent) < m.cfg.Cooldown {
		return nil
	}
	m.lastEvent = at
	ev := model.AudioEvent{Type: t, Language: model.LanguageJapanese}
	switch t {
	case model.AudioEventLoud:
		ev.Emotion = model.EmotionSurprise
		ev.Message = "おおきな音にびっくり!"
	case model.AudioEventLaugh:
		ev.Emotion = model.EmotionFun
		ev.Message = "たのしそうな笑い声が聞こえた!"
	case model.AudioEventSilence:
		ev.Emotion = model.EmotionTired
		ev.Message = "しずかな時間がながれている…"
	}
	return &ev
}

func varianceOf(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var sq float64
	for _, x := range xs {
		d := x - mean
		sq += d * d
	}
	return sq / float64(len(xs))
}
