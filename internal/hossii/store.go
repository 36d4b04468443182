// Package hossii owns the canonical, persisted collection of posts. All
// creation goes through Add; mutation happens only via explicit moderation
// and placement operations; the list is snapshot-replaced, never mutated in
// place, so change detection and persistence writes stay trivial.
package hossii

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/emotionwall/internal/logger"
	"github.com/emotionwall/internal/model"
	"github.com/emotionwall/internal/storage"
)

// ErrEmptyPost rejects contentless posts. Expected, frequent, benign:
// callers ignore it silently rather than surfacing it to the user.
var ErrEmptyPost = errors.New("hossii: post has no content")

// Placement clamp ranges (viewport percent / scale factor).
const (
	PosXMin, PosXMax = 5.0, 95.0
	PosYMin, PosYMax = 5.0, 90.0
	ScaleMin         = 0.5
	ScaleMax         = 2.5
)

// NicknameResolver supplies the caller's active nickname for a space
// (Identity collaborator). Nil disables nickname resolution.
type NicknameResolver interface {
	ActiveNickname(spaceID, userID string) string
}

// Auditor records moderation actions. Nil disables auditing.
type Auditor interface {
	RecordModeration(ctx context.Context, action, hossiiID, moderatorID string) error
}

// Store is the authoritative post collection.
type Store struct {
	mu    sync.RWMutex
	key   string
	store storage.Store
	names NicknameResolver
	audit Auditor

	hossiis   []model.Hossii
	lastSaved []byte
	onAppend  func(model.Hossii)
	cancel    func()
}

type Option func(*Store)

func WithNicknames(n NicknameResolver) Option { return func(s *Store) { s.names = n } }
func WithAuditor(a Auditor) Option            { return func(s *Store) { s.audit = a } }

// WithAppendHook registers a callback invoked (outside locks) for every post
// appended locally. The hub uses it to fan out new posts.
func WithAppendHook(fn func(model.Hossii)) Option { return func(s *Store) { s.onAppend = fn } }

// NewStore loads and normalizes the persisted list, then watches the key for
// external (cross-tab) changes. Malformed persisted data never aborts
// startup; unknown-shaped records are dropped during normalization.
func NewStore(ctx context.Context, st storage.Store, key string, opts ...Option) (*Store, error) {
	s := &Store{key: key, store: st}
	for _, opt := range opts {
		opt(s)
	}

	raw, err := st.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	s.hossiis = decodeList(raw)
	s.lastSaved = raw

	cancel, err := st.Watch(key, s.applyExternal)
	if err != nil {
		return nil, err
	}
	s.cancel = cancel
	return s, nil
}

// Close stops watching for external changes.
func (s *Store) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

// AddInput is the creation payload. Origin defaults to manual.
type AddInput struct {
	SpaceID     string
	Message     string
	Emotion     model.Emotion
	AuthorID    string
	AuthorName  string
	Origin      model.Origin
	AutoType    model.AutoType
	SpeechLevel model.SpeechLevel
	Language    model.Language
	BubbleColor string
	ImageURL    string
	NumberValue *float64
	Hashtags    []string
}

// Add validates the content invariant, resolves the author, appends and
// persists. The only way a post ever comes into existence.
func (s *Store) Add(ctx context.Context, in AddInput) (model.Hossii, error) {
	h := model.Hossii{
		ID:          uuid.New().String(),
		SpaceID:     in.SpaceID,
		Message:     in.Message,
		Emotion:     in.Emotion,
		AuthorID:    in.AuthorID,
		AuthorName:  in.AuthorName,
		CreatedAt:   time.Now().UTC(),
		Origin:      in.Origin,
		AutoType:    in.AutoType,
		SpeechLevel: in.SpeechLevel,
		Language:    in.Language,
		BubbleColor: in.BubbleColor,
		ImageURL:    in.ImageURL,
		NumberValue: in.NumberValue,
		Hashtags:    in.Hashtags,
	}
	if h.Origin == "" {
		h.Origin = model.OriginManual
	}
	if !h.HasContent() {
		return model.Hossii{}, ErrEmptyPost
	}

	switch {
	case h.Origin == model.OriginAuto:
		h.AuthorName = model.AutoAuthorName
		h.AuthorID = ""
	case h.AuthorName == "" && s.names != nil && h.AuthorID != "":
		h.AuthorName = s.names.ActiveNickname(h.SpaceID, h.AuthorID)
		// Still empty means anonymous.
	}

	s.mu.Lock()
	next := make([]model.Hossii, len(s.hossiis), len(s.hossiis)+1)
	copy(next, s.hossiis)
	s.hossiis = append(next, h)
	data := s.encodeLocked()
	hook := s.onAppend
	s.mu.Unlock()

	s.persist(ctx, data)
	if hook != nil {
		hook(h)
	}
	return h, nil
}

// Hide marks a post hidden. No-op when the post does not exist. A supplied
// moderator id is recorded with the audit collaborator.
func (s *Store) Hide(ctx context.Context, id, moderatorID string) {
	s.setHidden(ctx, id, moderatorID, true)
}

// Restore clears the hidden flag (moderation undo).
func (s *Store) Restore(ctx context.Context, id, moderatorID string) {
	s.setHidden(ctx, id, moderatorID, false)
}

func (s *Store) setHidden(ctx context.Context, id, moderatorID string, hidden bool) {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	next := snapshot(s.hossiis)
	next[idx].IsHidden = hidden
	s.hossiis = next
	data := s.encodeLocked()
	audit := s.audit
	s.mu.Unlock()

	s.persist(ctx, data)
	if audit != nil && moderatorID != "" {
		action := "hide"
		if !hidden {
			action = "restore"
		}
		if err := audit.RecordModeration(ctx, action, id, moderatorID); err != nil {
			logger.Errorf("hossii: audit %s %s: %v", action, id, err)
		}
	}
}

// UpdatePosition sets a manual placement override, clamped to the safe
// viewport range.
func (s *Store) UpdatePosition(ctx context.Context, id string, x, y float64) {
	x = clamp(x, PosXMin, PosXMax)
	y = clamp(y, PosYMin, PosYMax)
	s.patch(ctx, id, func(h *model.Hossii) {
		h.IsPositionFixed = true
		h.PositionX = &x
		h.PositionY = &y
	})
}

// UpdateScale sets a manual size override, clamped to [0.5, 2.5].
func (s *Store) UpdateScale(ctx context.Context, id string, scale float64) {
	scale = clamp(scale, ScaleMin, ScaleMax)
	s.patch(ctx, id, func(h *model.Hossii) {
		h.Scale = &scale
	})
}

// UpdateColor sets or clears (empty string) the bubble color override.
func (s *Store) UpdateColor(ctx context.Context, id, color string) {
	s.patch(ctx, id, func(h *model.Hossii) {
		h.BubbleColor = color
	})
}

func (s *Store) patch(ctx context.Context, id string, apply func(*model.Hossii)) {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	next := snapshot(s.hossiis)
	apply(&next[idx])
	s.hossiis = next
	data := s.encodeLocked()
	s.mu.Unlock()

	s.persist(ctx, data)
}

// ListBySpace returns every post of the space, hidden ones included
// (moderation views filter further). Callers must not mutate.
func (s *Store) ListBySpace(spaceID string) []model.Hossii {
	return s.filter(func(h *model.Hossii) bool { return h.SpaceID == spaceID })
}

// VisibleBySpace is ListBySpace minus hidden posts (the normal rendering view).
func (s *Store) VisibleBySpace(spaceID string) []model.Hossii {
	return s.filter(func(h *model.Hossii) bool { return h.SpaceID == spaceID && !h.IsHidden })
}

// Get returns the post by id.
func (s *Store) Get(id string) (model.Hossii, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx := s.indexLocked(id); idx >= 0 {
		return s.hossiis[idx], true
	}
	return model.Hossii{}, false
}

// ClearAll empties the store (resets/demos only) and persists the empty list.
func (s *Store) ClearAll(ctx context.Context) {
	s.mu.Lock()
	s.hossiis = nil
	data := s.encodeLocked()
	s.mu.Unlock()
	s.persist(ctx, data)
}

func (s *Store) filter(keep func(*model.Hossii) bool) []model.Hossii {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Hossii, 0, len(s.hossiis))
	for i := range s.hossiis {
		if keep(&s.hossiis[i]) {
			out = append(out, s.hossiis[i])
		}
	}
	return out
}

func (s *Store) indexLocked(id string) int {
	for i := range s.hossiis {
		if s.hossiis[i].ID == id {
			return i
		}
	}
	return -1
}

// applyExternal replaces the in-memory list wholesale with an
// externally-written value (another tab). Last write wins at whole-list
// granularity; the writer's own echo is suppressed by payload comparison.
func (s *Store) applyExternal(raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if bytes.Equal(raw, s.lastSaved) {
		return
	}
	s.hossiis = decodeList(raw)
	s.lastSaved = raw
}

// encodeLocked serializes the current list and records it as the last saved
// payload so the store's own change notification is recognized as an echo.
func (s *Store) encodeLocked() []byte {
	data, err := encodeList(s.hossiis)
	if err != nil {
		logger.Errorf("hossii: encode list: %v", err)
		return nil
	}
	s.lastSaved = data
	return data
}

// persist writes outside the store mutex; synchronous watch notifications
// from the backend re-enter applyExternal and must not deadlock.
func (s *Store) persist(ctx context.Context, data []byte) {
	if data == nil {
		return
	}
	if err := s.store.Save(ctx, s.key, data); err != nil {
		logger.Errorf("hossii: persist: %v", err)
	}
}

func snapshot(list []model.Hossii) []model.Hossii {
	next := make([]model.Hossii, len(list))
	copy(next, list)
	return next
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
