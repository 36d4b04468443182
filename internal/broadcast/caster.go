package broadcast

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/emotionwall/internal/logger"
	"github.com/emotionwall/internal/model"
)

// seenLimit caps the nonce set. When it fills the whole set is cleared at
// once; a rebroadcast of an old event right after the clear re-triggers a
// reaction, which is harmless.
const seenLimit = 100

// Caster is one session's endpoint on the reaction channel. It stamps and
// announces locally created posts and hands events from other sessions on
// the active space to the handler, exactly once per nonce.
type Caster struct {
	mu        sync.Mutex
	transport Transport
	spaceID   string
	seen      map[string]struct{}
	handler   func(model.ReactionEvent)
	cancel    func()
}

// NewCaster subscribes to the transport. Handler runs on the transport's
// delivery goroutine and must not block.
func NewCaster(tr Transport, spaceID string, handler func(model.ReactionEvent)) (*Caster, error) {
	c := &Caster{
		transport: tr,
		spaceID:   spaceID,
		seen:      make(map[string]struct{}),
		handler:   handler,
	}
	cancel, err := tr.Subscribe(c.receive)
	if err != nil {
		return nil, err
	}
	c.cancel = cancel
	return c, nil
}

// Close unsubscribes from the transport.
func (c *Caster) Close() {
	if c.cancel != nil {
		c.cancel()
	}
}

// SetSpace switches the active space. Events for other spaces are dropped on
// receipt, so no replay is needed.
func (c *Caster) SetSpace(spaceID string) {
	c.mu.Lock()
	c.spaceID = spaceID
	c.mu.Unlock()
}

// Announce publishes a reaction event for a locally created post. The nonce
// is marked seen before publishing so the session's own echo never triggers
// its reaction handler.
func (c *Caster) Announce(h model.Hossii) {
	ev := model.ReactionEvent{
		SpaceID:     h.SpaceID,
		HossiiID:    h.ID,
		Emotion:     h.Emotion,
		AuthorName:  h.AuthorName,
		CreatedAt:   h.CreatedAt,
		LogType:     h.AutoType,
		SpeechLevel: h.SpeechLevel,
		Nonce:       uuid.New().String(),
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	c.mu.Lock()
	c.markSeenLocked(ev.Nonce)
	c.mu.Unlock()

	if err := c.transport.Publish(ev); err != nil {
		logger.Errorf("broadcast: publish reaction: %v", err)
	}
}

func (c *Caster) receive(ev model.ReactionEvent) {
	if ev.Nonce == "" {
		return
	}
	c.mu.Lock()
	if _, dup := c.seen[ev.Nonce]; dup {
		c.mu.Unlock()
		return
	}
	c.markSeenLocked(ev.Nonce)
	active := c.spaceID
	handler := c.handler
	c.mu.Unlock()

	if ev.SpaceID != active {
		return
	}
	if handler != nil {
		handler(ev)
	}
}

func (c *Caster) markSeenLocked(nonce string) {
	if len(c.seen) >= seenLimit {
		c.seen = make(map[string]struct{})
	}
	c.seen[nonce] = struct{}{}
}
