// Package mascot drives the animated character's transient state: three
// independent motion layers (ambient wander, post reaction, tap interaction)
// plus idle self-talk, composed into one snapshot after every change. State
// here is never persisted; a new session starts fresh.
package mascot

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/emotionwall/internal/assets"
	"github.com/emotionwall/internal/model"
	"github.com/emotionwall/internal/timers"
)

// BubbleKind tags what the active speech bubble is showing.
type BubbleKind string

const (
	BubbleNone  BubbleKind = ""
	BubbleShort BubbleKind = "short" // brief post-reaction line
	BubbleLong  BubbleKind = "long"  // tap response
	BubbleBrain BubbleKind = "brain" // externally injected message
	BubbleIdle  BubbleKind = "idle"  // self-talk
)

// State is the full visual snapshot pushed to the client after every change.
// Position is in viewport percent; tap offsets in pixels.
type State struct {
	X            float64         `json:"x"`
	Y            float64         `json:"y"`
	TransitionMS int             `json:"transition_ms"`
	Face         assets.AssetRef `json:"face"`
	BubbleKind   BubbleKind      `json:"bubble_kind,omitempty"`
	BubbleText   string          `json:"bubble_text,omitempty"`
	Bouncing     bool            `json:"bouncing,omitempty"`
	BigEmoji     string          `json:"big_emoji,omitempty"`
	TapDX        float64         `json:"tap_dx,omitempty"`
	TapDY        float64         `json:"tap_dy,omitempty"`
	TapRotate    float64         `json:"tap_rotate,omitempty"`
}

// Config carries every duration and probability of the state machine.
// Tests shrink these; production uses Default().
type Config struct {
	WanderMin time.Duration `yaml:"wander_min"`
	WanderMax time.Duration `yaml:"wander_max"`
	RestMin   time.Duration `yaml:"rest_min"`
	RestMax   time.Duration `yaml:"rest_max"`

	ReactionFaceMin    time.Duration `yaml:"reaction_face_min"`
	ReactionFaceMax    time.Duration `yaml:"reaction_face_max"`
	BounceDuration     time.Duration `yaml:"bounce_duration"`
	ShortBubbleDelay   time.Duration `yaml:"short_bubble_delay"`
	ShortBubbleTime    time.Duration `yaml:"short_bubble_time"`
	BigEmojiDelay      time.Duration `yaml:"big_emoji_delay"`
	BigEmojiTime       time.Duration `yaml:"big_emoji_time"`
	ParticleDelay      time.Duration `yaml:"particle_delay"`
	TapTransformTime   time.Duration `yaml:"tap_transform_time"`
	InteractionFaceMin time.Duration `yaml:"interaction_face_min"`
	InteractionFaceMax time.Duration `yaml:"interaction_face_max"`
	LongBubbleTime     time.Duration `yaml:"long_bubble_time"`
	IdleTalkMin        time.Duration `yaml:"idle_talk_min"`
	IdleTalkMax        time.Duration `yaml:"idle_talk_max"`
	IdleLineTime       time.Duration `yaml:"idle_line_time"`

	FleeChance     float64 `yaml:"flee_chance"`      // tap: probability of moving away
	IdleTalkChance float64 `yaml:"idle_talk_chance"` // per idle cycle
	TapMagnitude   float64 `yaml:"tap_magnitude"`    // px

	EdgeMargin  float64 `yaml:"edge_margin"`  // viewport percent kept free on every side
	BottomStrip float64 `yaml:"bottom_strip"` // extra percent reserved at the bottom on narrow viewports
	NarrowWidth float64 `yaml:"narrow_width"` // px below which the bottom strip applies

	Seed int64 `yaml:"-"` // 0 = time-seeded
}

func Default() Config {
	return Config{
		WanderMin:          4500 * time.Millisecond,
		WanderMax:          8 * time.Second,
		RestMin:            time.Second,
		RestMax:            2500 * time.Millisecond,
		ReactionFaceMin:    1200 * time.Millisecond,
		ReactionFaceMax:    1500 * time.Millisecond,
		BounceDuration:     500 * time.Millisecond,
		ShortBubbleDelay:   300 * time.Millisecond,
		ShortBubbleTime:    1200 * time.Millisecond,
		BigEmojiDelay:      200 * time.Millisecond,
		BigEmojiTime:       1500 * time.Millisecond,
		ParticleDelay:      400 * time.Millisecond,
		TapTransformTime:   800 * time.Millisecond,
		InteractionFaceMin: 500 * time.Millisecond,
		InteractionFaceMax: 700 * time.Millisecond,
		LongBubbleTime:     5 * time.Second,
		IdleTalkMin:        30 * time.Second,
		IdleTalkMax:        60 * time.Second,
		IdleLineTime:       3 * time.Second,
		FleeChance:         0.7,
		IdleTalkChance:     0.4,
		TapMagnitude:       8,
		EdgeMargin:         8,
		BottomStrip:        12,
		NarrowWidth:        768,
	}
}

// Timer purpose names.
const (
	tmWander       = "wander"
	tmReactionFace = "reaction-face"
	tmBounce       = "bounce"
	tmShortShow    = "short-show"
	tmShortHide    = "short-hide"
	tmEmojiShow    = "emoji-show"
	tmEmojiHide    = "emoji-hide"
	tmParticles    = "particles"
	tmTapTransform = "tap-transform"
	tmInteraction  = "interaction-face"
	tmLongHide     = "long-hide"
	tmIdleCycle    = "idle-cycle"
	tmIdleHide     = "idle-hide"
	tmBrainHide    = "brain-hide"
)

// Controller is one session's mascot state machine. All mutation happens
// under one mutex; every change ends with a snapshot pushed through the
// onChange callback (which must not call back into the controller).
type Controller struct {
	mu     sync.Mutex
	cfg    Config
	faces  assets.Lookup
	timers *timers.Registry
	rng    *rand.Rand

	onChange    func(State)
	onParticles func(model.Emotion)

	width, height float64
	x, y          float64
	transition    time.Duration

	listening       bool
	lastPostID      string
	reactionFace    assets.AssetRef
	interactionFace assets.AssetRef
	shortBubble     string
	longBubble      string
	brainMessage    string
	idleLine        string
	bouncing        bool
	bigEmoji        string
	tapDX, tapDY    float64
	tapRotate       float64
	closed          bool
}

type Option func(*Controller)

// WithParticles registers the particle-effect callback, fired outside the
// controller lock.
func WithParticles(fn func(model.Emotion)) Option {
	return func(c *Controller) { c.onParticles = fn }
}

// New builds a controller for a viewport of the given pixel size. onChange
// receives a snapshot after every visual change.
func New(cfg Config, faces assets.Lookup, width, height float64, onChange func(State), opts ...Option) *Controller {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	c := &Controller{
		cfg:      cfg,
		faces:    faces,
		timers:   timers.New(),
		rng:      rand.New(rand.NewSource(seed)),
		onChange: onChange,
		width:    width,
		height:   height,
		x:        50,
		y:        50,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start begins ambient wandering and the idle self-talk cycle. The first
// move is delayed one rest period so the mascot does not warp on mount.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scheduleWanderLocked(c.durBetween(c.cfg.RestMin, c.cfg.RestMax))
	c.scheduleIdleTalkLocked()
}

// Close cancels every pending timer. Safe to call more than once; no
// callback runs afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.timers.Close()
}

// Layer A: ambient wander.

func (c *Controller) scheduleWanderLocked(delay time.Duration) {
	c.timers.After(tmWander, delay, func() {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		c.transition = c.durBetween(c.cfg.WanderMin, c.cfg.WanderMax)
		c.x, c.y = c.randomTargetLocked()
		next := c.transition + c.durBetween(c.cfg.RestMin, c.cfg.RestMax)
		c.scheduleWanderLocked(next)
		c.emitAndUnlock()
	})
}

func (c *Controller) randomTargetLocked() (x, y float64) {
	m := c.cfg.EdgeMargin
	maxY := 100 - m
	if c.width > 0 && c.width < c.cfg.NarrowWidth {
		maxY -= c.cfg.BottomStrip
	}
	x = m + c.rng.Float64()*(100-2*m)
	y = m + c.rng.Float64()*(maxY-m)
	return x, y
}

// Resize re-clamps the current position to the new viewport without
// restarting the motion cycle.
func (c *Controller) Resize(width, height float64) {
	c.mu.Lock()
	c.width, c.height = width, height
	m := c.cfg.EdgeMargin
	maxY := 100 - m
	if width > 0 && width < c.cfg.NarrowWidth {
		maxY -= c.cfg.BottomStrip
	}
	c.x = clamp(c.x, m, 100-m)
	c.y = clamp(c.y, m, maxY)
	c.emitAndUnlock()
}

// Layer B: reaction to a new post. Both the local append and the cross-tab
// broadcast may announce the same post; the post id is the idempotency key.
func (c *Controller) NotifyPost(id string, emotion model.Emotion) {
	c.mu.Lock()
	if c.closed || id == "" || id == c.lastPostID {
		c.mu.Unlock()
		return
	}
	c.lastPostID = id

	// A reaction preempts the tap bubble and any showing idle line.
	c.timers.Cancel(tmLongHide)
	c.longBubble = ""
	c.clearIdleLineLocked()

	if emotion.Valid() {
		c.reactionFace = c.faces.FaceFor(emotion)
		c.timers.After(tmReactionFace, c.durBetween(c.cfg.ReactionFaceMin, c.cfg.ReactionFaceMax), func() {
			c.mu.Lock()
			c.reactionFace = ""
			c.emitAndUnlock()
		})
	}

	c.bouncing = true
	c.timers.After(tmBounce, c.cfg.BounceDuration, func() {
		c.mu.Lock()
		c.bouncing = false
		c.emitAndUnlock()
	})

	line := shortLineFor(emotion, c.rng.Intn)
	c.timers.After(tmShortShow, c.cfg.ShortBubbleDelay, func() {
		c.mu.Lock()
		c.shortBubble = line
		c.timers.After(tmShortHide, c.cfg.ShortBubbleTime, func() {
			c.mu.Lock()
			c.shortBubble = ""
			c.emitAndUnlock()
		})
		c.emitAndUnlock()
	})

	emoji := assets.EmojiFor(emotion)
	c.timers.After(tmEmojiShow, c.cfg.BigEmojiDelay, func() {
		c.mu.Lock()
		c.bigEmoji = emoji
		c.timers.After(tmEmojiHide, c.cfg.BigEmojiTime, func() {
			c.mu.Lock()
			c.bigEmoji = ""
			c.emitAndUnlock()
		})
		c.emitAndUnlock()
	})

	particles := c.onParticles
	if particles != nil {
		c.timers.After(tmParticles, c.cfg.ParticleDelay, func() {
			particles(emotion)
		})
	}

	c.emitAndUnlock()
}

// Layer C: tap interaction. tapX/tapY are viewport-percent coordinates of
// the pointer.
func (c *Controller) Tap(tapX, tapY float64) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	dx, dy := c.x-tapX, c.y-tapY
	norm := math.Hypot(dx, dy)
	if norm == 0 {
		dx, dy, norm = 1, 0, 1
	}
	mag := c.cfg.TapMagnitude * (0.5 + c.rng.Float64()*0.5)
	if c.rng.Float64() >= c.cfg.FleeChance {
		// Approach instead of fleeing.
		dx, dy = -dx, -dy
	}
	c.tapDX = dx / norm * mag
	c.tapDY = dy / norm * mag
	c.tapRotate = (c.rng.Float64()*2 - 1) * 15
	c.timers.After(tmTapTransform, c.cfg.TapTransformTime, func() {
		c.mu.Lock()
		c.tapDX, c.tapDY, c.tapRotate = 0, 0, 0
		c.emitAndUnlock()
	})

	// The interaction face always reverts to ambient idle: a reaction face
	// pending from Layer B never resurfaces after a tap.
	pokes := c.faces.InteractionFaces()
	if len(pokes) > 0 {
		c.interactionFace = pokes[c.rng.Intn(len(pokes))]
	}
	c.timers.Cancel(tmReactionFace)
	c.timers.After(tmInteraction, c.durBetween(c.cfg.InteractionFaceMin, c.cfg.InteractionFaceMax), func() {
		c.mu.Lock()
		c.interactionFace = ""
		c.reactionFace = ""
		c.emitAndUnlock()
	})

	c.longBubble = tapLines[c.rng.Intn(len(tapLines))]
	c.timers.After(tmLongHide, c.cfg.LongBubbleTime, func() {
		c.mu.Lock()
		c.longBubble = ""
		c.emitAndUnlock()
	})

	c.clearIdleLineLocked()

	particles := c.onParticles
	emotion := model.Emotions[c.rng.Intn(len(model.Emotions))]
	c.emitAndUnlock()

	if particles != nil {
		particles(emotion)
	}
}

// SetListening switches the idle face to the listening variant while the
// microphone is live.
func (c *Controller) SetListening(on bool) {
	c.mu.Lock()
	if c.listening == on {
		c.mu.Unlock()
		return
	}
	c.listening = on
	c.emitAndUnlock()
}

// ShowBrainMessage injects an external thought bubble (shown unless a
// reaction or tap bubble is active). Clears a showing idle line.
func (c *Controller) ShowBrainMessage(text string, d time.Duration) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.brainMessage = text
	c.clearIdleLineLocked()
	c.timers.After(tmBrainHide, d, func() {
		c.mu.Lock()
		c.brainMessage = ""
		c.emitAndUnlock()
	})
	c.emitAndUnlock()
}

// Idle self-talk: every cycle, with a coin flip, show one ambient line.

func (c *Controller) scheduleIdleTalkLocked() {
	c.timers.After(tmIdleCycle, c.durBetween(c.cfg.IdleTalkMin, c.cfg.IdleTalkMax), func() {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		talk := c.rng.Float64() < c.cfg.IdleTalkChance
		if talk {
			c.idleLine = idleLines[c.rng.Intn(len(idleLines))]
			c.timers.After(tmIdleHide, c.cfg.IdleLineTime, func() {
				c.mu.Lock()
				c.idleLine = ""
				c.emitAndUnlock()
			})
		}
		c.scheduleIdleTalkLocked()
		if talk {
			c.emitAndUnlock()
			return
		}
		c.mu.Unlock()
	})
}

func (c *Controller) clearIdleLineLocked() {
	c.timers.Cancel(tmIdleHide)
	c.idleLine = ""
}

// Snapshot returns the current composed state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// snapshotLocked composes the layers. Face precedence: interaction >
// reaction > listening > idle. Bubble precedence: short > long > brain >
// idle; first non-empty wins, so two bubbles never show at once.
func (c *Controller) snapshotLocked() State {
	st := State{
		X:            c.x,
		Y:            c.y,
		TransitionMS: int(c.transition / time.Millisecond),
		Bouncing:     c.bouncing,
		BigEmoji:     c.bigEmoji,
		TapDX:        c.tapDX,
		TapDY:        c.tapDY,
		TapRotate:    c.tapRotate,
	}

	switch {
	case c.interactionFace != "":
		st.Face = c.interactionFace
	case c.reactionFace != "":
		st.Face = c.reactionFace
	case c.listening:
		st.Face = c.faces.ListeningFace()
	default:
		st.Face = c.faces.IdleFace()
	}

	switch {
	case c.shortBubble != "":
		st.BubbleKind, st.BubbleText = BubbleShort, c.shortBubble
	case c.longBubble != "":
		st.BubbleKind, st.BubbleText = BubbleLong, c.longBubble
	case c.brainMessage != "":
		st.BubbleKind, st.BubbleText = BubbleBrain, c.brainMessage
	case c.idleLine != "":
		st.BubbleKind, st.BubbleText = BubbleIdle, c.idleLine
	}
	return st
}

// emitAndUnlock snapshots, releases the mutex and pushes the snapshot.
// Callers hold c.mu.
func (c *Controller) emitAndUnlock() {
	st := c.snapshotLocked()
	fn := c.onChange
	closed := c.closed
	c.mu.Unlock()
	if fn != nil && !closed {
		fn(st)
	}
}

func (c *Controller) durBetween(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(c.rng.Int63n(int64(max-min)))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
