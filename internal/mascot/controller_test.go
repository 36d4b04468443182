package mascot

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emotionwall/internal/assets"
	"github.com/emotionwall/internal/model"
)

var testFaces = assets.NewStatic("")

// testConfig shrinks every duration so full effect cycles complete in tens
// of milliseconds. Idle self-talk is pushed out of reach.
func testConfig() Config {
	return Config{
		WanderMin:          30 * time.Millisecond,
		WanderMax:          40 * time.Millisecond,
		RestMin:            10 * time.Millisecond,
		RestMax:            15 * time.Millisecond,
		ReactionFaceMin:    40 * time.Millisecond,
		ReactionFaceMax:    50 * time.Millisecond,
		BounceDuration:     30 * time.Millisecond,
		ShortBubbleDelay:   10 * time.Millisecond,
		ShortBubbleTime:    40 * time.Millisecond,
		BigEmojiDelay:      5 * time.Millisecond,
		BigEmojiTime:       50 * time.Millisecond,
		ParticleDelay:      10 * time.Millisecond,
		TapTransformTime:   40 * time.Millisecond,
		InteractionFaceMin: 30 * time.Millisecond,
		InteractionFaceMax: 35 * time.Millisecond,
		LongBubbleTime:     300 * time.Millisecond,
		IdleTalkMin:        time.Hour,
		IdleTalkMax:        2 * time.Hour,
		IdleLineTime:       3 * time.Second,
		FleeChance:         0.7,
		IdleTalkChance:     0,
		TapMagnitude:       8,
		EdgeMargin:         8,
		BottomStrip:        12,
		NarrowWidth:        768,
		Seed:               1,
	}
}

func isInteractionFace(f assets.AssetRef) bool {
	for _, p := range testFaces.InteractionFaces() {
		if p == f {
			return true
		}
	}
	return false
}

func TestReactionCycle(t *testing.T) {
	c := New(testConfig(), testFaces, 1200, 800, nil)
	defer c.Close()

	c.NotifyPost("post-1", model.EmotionJoy)

	st := c.Snapshot()
	assert.Equal(t, testFaces.FaceFor(model.EmotionJoy), st.Face)
	assert.True(t, st.Bouncing)

	// Short bubble appears after its delay.
	require.Eventually(t, func() bool {
		return c.Snapshot().BubbleKind == BubbleShort
	}, time.Second, 2*time.Millisecond)
	assert.NotEmpty(t, c.Snapshot().BubbleText)

	// Big emoji shows during the cycle.
	require.Eventually(t, func() bool {
		return c.Snapshot().BigEmoji != ""
	}, time.Second, 2*time.Millisecond)

	// Everything reverts to ambient idle.
	require.Eventually(t, func() bool {
		st := c.Snapshot()
		return st.Face == testFaces.IdleFace() && st.BubbleKind == BubbleNone &&
			!st.Bouncing && st.BigEmoji == ""
	}, time.Second, 2*time.Millisecond)
}

func TestDuplicatePostIDIgnored(t *testing.T) {
	var particleCount atomic.Int32
	c := New(testConfig(), testFaces, 1200, 800, nil,
		WithParticles(func(model.Emotion) { particleCount.Add(1) }))
	defer c.Close()

	c.NotifyPost("post-1", model.EmotionJoy)
	require.Eventually(t, func() bool {
		return c.Snapshot().Face == testFaces.IdleFace()
	}, time.Second, 2*time.Millisecond)
	require.Eventually(t, func() bool { return particleCount.Load() == 1 }, time.Second, 2*time.Millisecond)

	// The same post announced again (local append then cross-tab echo) does
	// not restart the reaction.
	c.NotifyPost("post-1", model.EmotionJoy)
	st := c.Snapshot()
	assert.Equal(t, testFaces.IdleFace(), st.Face)
	assert.False(t, st.Bouncing)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), particleCount.Load())

	// A different post reacts normally.
	c.NotifyPost("post-2", model.EmotionFun)
	assert.True(t, c.Snapshot().Bouncing)
}

func TestTapRevertsToIdleNotReaction(t *testing.T) {
	c := New(testConfig(), testFaces, 1200, 800, nil)
	defer c.Close()

	c.NotifyPost("post-1", model.EmotionLove)
	require.Equal(t, testFaces.FaceFor(model.EmotionLove), c.Snapshot().Face)

	c.Tap(10, 10)
	st := c.Snapshot()
	assert.True(t, isInteractionFace(st.Face), "tap swaps to an interaction face")
	assert.Equal(t, BubbleLong, st.BubbleKind)
	assert.NotZero(t, st.TapDX)

	// Interaction never chains back into a pending reaction face.
	require.Eventually(t, func() bool {
		return c.Snapshot().Face == testFaces.IdleFace()
	}, time.Second, 2*time.Millisecond)

	// Transient transform reverts too.
	require.Eventually(t, func() bool {
		st := c.Snapshot()
		return st.TapDX == 0 && st.TapDY == 0 && st.TapRotate == 0
	}, time.Second, 2*time.Millisecond)
}

func TestNewPostCancelsTapBubble(t *testing.T) {
	c := New(testConfig(), testFaces, 1200, 800, nil)
	defer c.Close()

	c.Tap(10, 10)
	require.Equal(t, BubbleLong, c.Snapshot().BubbleKind)

	c.NotifyPost("post-1", model.EmotionJoy)
	st := c.Snapshot()
	assert.NotEqual(t, BubbleLong, st.BubbleKind)
}

func TestBubblePrecedence(t *testing.T) {
	c := New(testConfig(), testFaces, 1200, 800, nil)
	defer c.Close()

	c.ShowBrainMessage("考え中…", time.Second)
	assert.Equal(t, BubbleBrain, c.Snapshot().BubbleKind)

	// The tap's long bubble outranks the brain message.
	c.Tap(10, 10)
	assert.Equal(t, BubbleLong, c.Snapshot().BubbleKind)

	// The short reaction bubble outranks both.
	c.NotifyPost("post-1", model.EmotionJoy)
	require.Eventually(t, func() bool {
		return c.Snapshot().BubbleKind == BubbleShort
	}, time.Second, 2*time.Millisecond)
}

func TestListeningFace(t *testing.T) {
	c := New(testConfig(), testFaces, 1200, 800, nil)
	defer c.Close()

	c.SetListening(true)
	assert.Equal(t, testFaces.ListeningFace(), c.Snapshot().Face)

	// A reaction face outranks the listening face.
	c.NotifyPost("post-1", model.EmotionJoy)
	assert.Equal(t, testFaces.FaceFor(model.EmotionJoy), c.Snapshot().Face)

	require.Eventually(t, func() bool {
		return c.Snapshot().Face == testFaces.ListeningFace()
	}, time.Second, 2*time.Millisecond)

	c.SetListening(false)
	assert.Equal(t, testFaces.IdleFace(), c.Snapshot().Face)
}

func TestAmbientWander(t *testing.T) {
	var changes atomic.Int32
	c := New(testConfig(), testFaces, 1200, 800, func(State) { changes.Add(1) })
	defer c.Close()

	start := c.Snapshot()
	c.Start()

	require.Eventually(t, func() bool {
		st := c.Snapshot()
		return st.X != start.X || st.Y != start.Y
	}, time.Second, 2*time.Millisecond)

	st := c.Snapshot()
	assert.GreaterOrEqual(t, st.X, 8.0)
	assert.LessOrEqual(t, st.X, 92.0)
	assert.GreaterOrEqual(t, st.Y, 8.0)
	assert.LessOrEqual(t, st.Y, 92.0)
	assert.Positive(t, st.TransitionMS)
	assert.Positive(t, changes.Load())
}

func TestNarrowViewportReservesBottomStrip(t *testing.T) {
	cfg := testConfig()
	c := New(cfg, testFaces, 400, 800, nil)
	defer c.Close()
	c.Start()

	// Targets on a narrow viewport never enter the bottom navigation strip.
	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		st := c.Snapshot()
		assert.LessOrEqual(t, st.Y, 100-cfg.EdgeMargin-cfg.BottomStrip)
		time.Sleep(10 * time.Millisecond)
	}
}

func TestResizeReclampsPosition(t *testing.T) {
	cfg := testConfig()
	cfg.BottomStrip = 60
	cfg.EdgeMargin = 5
	c := New(cfg, testFaces, 1200, 800, nil)
	defer c.Close()

	// Shrinking to a narrow viewport pulls the mascot out of the newly
	// reserved strip without restarting the wander cycle.
	c.Resize(400, 800)
	st := c.Snapshot()
	assert.LessOrEqual(t, st.Y, 35.0)
	assert.GreaterOrEqual(t, st.X, 5.0)
}

func TestCloseStopsAllTimers(t *testing.T) {
	var changes atomic.Int32
	c := New(testConfig(), testFaces, 1200, 800, func(State) { changes.Add(1) })
	c.Start()
	c.NotifyPost("post-1", model.EmotionJoy)
	c.Close()

	settled := changes.Load()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, settled, changes.Load())
}
