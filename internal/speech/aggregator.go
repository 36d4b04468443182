// Package speech buffers incremental transcription fragments from the
// platform speech-recognition capability and flushes them as classified
// SpeechEvents. The recognizer itself lives in the browser; the server sees
// only finalized fragments and the start/stop/end contract.
package speech

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/emotionwall/internal/logger"
	"github.com/emotionwall/internal/model"
	"github.com/emotionwall/internal/signal"
	"github.com/emotionwall/internal/timers"
)

// ErrUnsupported signals that the platform lacks speech recognition.
// Non-fatal: the feature is silently unavailable.
var ErrUnsupported = errors.New("speech: recognition unsupported")

// Recognizer is the platform speech-to-text session contract. Start may fail
// with ErrUnsupported; sessions self-terminate periodically, reported via the
// aggregator's OnEnd.
type Recognizer interface {
	Start() error
	Stop()
}

type Config struct {
	Thresholds signal.Thresholds
	// FlushDelay flushes the buffer when no new fragment arrives in time.
	FlushDelay time.Duration
	// MinFlushInterval rate-limits flushes; suppressed text is discarded.
	MinFlushInterval time.Duration
	// MaxBufferRunes force-flushes when the buffer reaches this size.
	MaxBufferRunes int
	// Enabled is the caller's granularity toggle set. Nil enables everything.
	Enabled map[model.SpeechLevel]bool
}

func DefaultConfig() Config {
	return Config{
		Thresholds:       signal.DefaultThresholds(),
		FlushDelay:       2500 * time.Millisecond,
		MinFlushInterval: 15 * time.Second,
		MaxBufferRunes:   120,
	}
}

const flushTimer = "flush"

// Aggregator accumulates fragments and emits SpeechEvents on flush.
type Aggregator struct {
	mu     sync.Mutex
	cfg    Config
	emit   func(model.SpeechEvent)
	timers *timers.Registry

	rec       Recognizer
	enabled   bool
	buf       strings.Builder
	lastFlush time.Time
	lastText  string
	now       func() time.Time
}

func NewAggregator(cfg Config, rec Recognizer, emit func(model.SpeechEvent)) *Aggregator {
	return &Aggregator{
		cfg:    cfg,
		emit:   emit,
		rec:    rec,
		timers: timers.New(),
		now:    time.Now,
	}
}

// Enable starts the recognition session. An unsupported platform leaves the
// aggregator disabled without error noise (spec: silently unavailable).
func (a *Aggregator) Enable() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.enabled {
		return nil
	}
	if a.rec != nil {
		if err := a.rec.Start(); err != nil {
			if errors.Is(err, ErrUnsupported) {
				return nil
			}
			return err
		}
	}
	a.enabled = true
	a.lastFlush = time.Time{}
	a.lastText = ""
	a.buf.Reset()
	return nil
}

// Disable aborts recognition, flushes any remaining buffered text once, and
// clears all timers. Idempotent.
func (a *Aggregator) Disable() {
	a.mu.Lock()
	if !a.enabled {
		a.mu.Unlock()
		return
	}
	a.enabled = false
	rec := a.rec
	ev := a.flushLocked()
	a.timers.StopAll()
	emit := a.emit
	a.mu.Unlock()

	if rec != nil {
		rec.Stop()
	}
	if ev != nil && emit != nil {
		emit(*ev)
	}
}

// Enabled reports whether the aggregator currently accepts fragments.
func (a *Aggregator) Enabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enabled
}

// OnResult consumes one finalized transcript fragment. Noise fragments are
// dropped silently; everything else is appended and the silence-flush timer
// restarts.
func (a *Aggregator) OnResult(text string) {
	a.mu.Lock()
	if !a.enabled {
		a.mu.Unlock()
		return
	}
	trimmed := strings.TrimSpace(text)
	lang := signal.DetectLanguage(trimmed)
	if signal.IsNoise(trimmed, lang, a.cfg.Thresholds) {
		a.mu.Unlock()
		return
	}
	if a.buf.Len() > 0 {
		a.buf.WriteString(" ")
	}
	a.buf.WriteString(trimmed)

	var ev *model.SpeechEvent
	if len([]rune(a.buf.String())) >= a.cfg.MaxBufferRunes {
		ev = a.flushLocked()
	} else {
		a.timers.After(flushTimer, a.cfg.FlushDelay, a.Flush)
	}
	emit := a.emit
	a.mu.Unlock()

	if ev != nil && emit != nil {
		emit(*ev)
	}
}

// OnError handles recognizer errors. Transient conditions (no-speech and
// friends) are ignored; recognition continues.
func (a *Aggregator) OnError(err error) {
	if err != nil {
		logger.Infof("speech: transient recognition error: %v", err)
	}
}

// OnEnd handles the platform session self-terminating. While still enabled
// the session restarts immediately; restart failures (double-start) are
// swallowed.
func (a *Aggregator) OnEnd() {
	a.mu.Lock()
	rec := a.rec
	enabled := a.enabled
	a.mu.Unlock()
	if enabled && rec != nil {
		if err := rec.Start(); err != nil && !errors.Is(err, ErrUnsupported) {
			logger.Infof("speech: restart after session end: %v", err)
		}
	}
}

// Flush flushes the current buffer (silence-timeout path).
func (a *Aggregator) Flush() {
	a.mu.Lock()
	ev := a.flushLocked()
	emit := a.emit
	a.mu.Unlock()
	if ev != nil && emit != nil {
		emit(*ev)
	}
}

// flushLocked classifies and clears the buffer. The buffer always ends empty
// regardless of whether an event is emitted.
func (a *Aggregator) flushLocked() *model.SpeechEvent {
	text := strings.TrimSpace(a.buf.String())
	a.buf.Reset()
	a.timers.Cancel(flushTimer)
	if text == "" {
		return nil
	}

	now := a.now()
	if !a.lastFlush.IsZero() && now.Sub(a.lastFlush) < a.cfg.MinFlushInterval {
		// Rate-limited: discard, do not queue.
		return nil
	}
	if text == a.lastText {
		return nil
	}
	a.lastFlush = now
	a.lastText = text

	lang := signal.DetectLanguage(text)
	level := signal.ClassifyGranularity(text, lang)
	if a.cfg.Enabled != nil && !a.cfg.Enabled[level] {
		return nil
	}
	return &model.SpeechEvent{Text: text, Level: level, Language: lang}
}
