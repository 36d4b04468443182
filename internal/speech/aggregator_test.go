package speech

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/emotionwall/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecognizer struct {
	mu       sync.Mutex
	starts   int
	stops    int
	startErr error
}

func (f *fakeRecognizer) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	return f.startErr
}

func (f *fakeRecognizer) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

type eventSink struct {
	mu     sync.Mutex
	events []model.SpeechEvent
}

func (s *eventSink) add(ev model.SpeechEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *eventSink) all() []model.SpeechEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.SpeechEvent(nil), s.events...)
}

func newAggregator(t *testing.T, cfg Config, rec Recognizer) (*Aggregator, *eventSink) {
	t.Helper()
	sink := &eventSink{}
	a := NewAggregator(cfg, rec, sink.add)
	return a, sink
}

func TestAggregatorFlushOnSilence(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FlushDelay = 30 * time.Millisecond
	cfg.MinFlushInterval = 0
	a, sink := newAggregator(t, cfg, &fakeRecognizer{})
	require.NoError(t, a.Enable())

	a.OnResult("ありがとうございます")
	assert.Empty(t, sink.all(), "no flush before the silence delay")

	time.Sleep(150 * time.Millisecond)
	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, "ありがとうございます", events[0].Text)
	assert.Equal(t, model.LanguageJapanese, events[0].Language)
	assert.Equal(t, model.SpeechLevelWord, events[0].Level)
}

func TestAggregatorTimerResetsPerFragment(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FlushDelay = 60 * time.Millisecond
	cfg.MinFlushInterval = 0
	a, sink := newAggregator(t, cfg, &fakeRecognizer{})
	require.NoError(t, a.Enable())

	a.OnResult("おはよう")
	time.Sleep(30 * time.Millisecond)
	a.OnResult("ございます") // resets the flush timer
	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, sink.all())

	time.Sleep(120 * time.Millisecond)
	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, "おはよう ございます", events[0].Text)
}

func TestAggregatorMaxBufferFlush(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FlushDelay = time.Hour // only the size cap may trigger
	cfg.MinFlushInterval = 0
	cfg.MaxBufferRunes = 10
	a, sink := newAggregator(t, cfg, &fakeRecognizer{})
	require.NoError(t, a.Enable())

	a.OnResult("こんにちは")
	assert.Empty(t, sink.all())
	a.OnResult("こんばんは")
	require.Len(t, sink.all(), 1)
}

func TestAggregatorRateLimitDiscards(t *testing.T) {
	// Scenario: flushing the same greeting twice inside the rate-limit
	// window emits only the first event, the second is discarded.
	cfg := DefaultConfig()
	cfg.FlushDelay = time.Hour
	cfg.MinFlushInterval = 15 * time.Second
	a, sink := newAggregator(t, cfg, &fakeRecognizer{})
	require.NoError(t, a.Enable())

	a.OnResult("ありがとうございます、助かりました！")
	a.Flush()
	a.OnResult("ありがとうございます、助かりました！")
	a.Flush()

	assert.Len(t, sink.all(), 1)
}

func TestAggregatorConsecutiveDuplicateDropped(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FlushDelay = time.Hour
	cfg.MinFlushInterval = 0
	a, sink := newAggregator(t, cfg, &fakeRecognizer{})
	require.NoError(t, a.Enable())

	a.OnResult("おつかれさまでした")
	a.Flush()
	a.OnResult("おつかれさまでした")
	a.Flush()
	a.OnResult("またあした")
	a.Flush()

	events := sink.all()
	require.Len(t, events, 2)
	assert.Equal(t, "おつかれさまでした", events[0].Text)
	assert.Equal(t, "またあした", events[1].Text)
}

func TestAggregatorNoiseDropped(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FlushDelay = time.Hour
	cfg.MinFlushInterval = 0
	a, sink := newAggregator(t, cfg, &fakeRecognizer{})
	require.NoError(t, a.Enable())

	a.OnResult("えーと")
	a.OnResult("umm")
	a.Flush()
	assert.Empty(t, sink.all())
}

func TestAggregatorGranularityToggles(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FlushDelay = time.Hour
	cfg.MinFlushInterval = 0
	cfg.Enabled = map[model.SpeechLevel]bool{model.SpeechLevelLong: true}
	a, sink := newAggregator(t, cfg, &fakeRecognizer{})
	require.NoError(t, a.Enable())

	a.OnResult("こんにちは") // word level, toggle off
	a.Flush()
	assert.Empty(t, sink.all())
}

func TestAggregatorAutoRestart(t *testing.T) {
	rec := &fakeRecognizer{}
	a, _ := newAggregator(t, DefaultConfig(), rec)
	require.NoError(t, a.Enable())
	assert.Equal(t, 1, rec.starts)

	// Platform session self-terminated while still enabled.
	a.OnEnd()
	assert.Equal(t, 2, rec.starts)

	// After disable, no restart.
	a.Disable()
	a.OnEnd()
	assert.Equal(t, 2, rec.starts)
	assert.Equal(t, 1, rec.stops)
}

func TestAggregatorDisableFlushesRemaining(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FlushDelay = time.Hour
	cfg.MinFlushInterval = 0
	rec := &fakeRecognizer{}
	a, sink := newAggregator(t, cfg, rec)
	require.NoError(t, a.Enable())

	a.OnResult("さようなら")
	a.Disable()

	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, "さようなら", events[0].Text)

	// Fragments after disable are ignored.
	a.OnResult("むし")
	assert.Len(t, sink.all(), 1)
}

func TestAggregatorUnsupportedPlatform(t *testing.T) {
	rec := &fakeRecognizer{startErr: ErrUnsupported}
	a, _ := newAggregator(t, DefaultConfig(), rec)
	// Silently unavailable: no error, stays disabled.
	require.NoError(t, a.Enable())
	assert.False(t, a.Enabled())
}

func TestAggregatorStartFailure(t *testing.T) {
	rec := &fakeRecognizer{startErr: errors.New("boom")}
	a, _ := newAggregator(t, DefaultConfig(), rec)
	assert.Error(t, a.Enable())
	assert.False(t, a.Enabled())
}
