// Package space manages the rooms posts live in. Every space carries a
// URL-safe slug; slugs are unique across the store and resolve back to the
// space for routing.
package space

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/emotionwall/internal/logger"
	"github.com/emotionwall/internal/model"
	"github.com/emotionwall/internal/storage"
)

var (
	ErrNotFound       = errors.New("space: not found")
	ErrSlugTaken      = errors.New("space: slug already in use")
	ErrEmptyName      = errors.New("space: name must not be empty")
	ErrInvalidSlug    = errors.New("space: slug must be lowercase letters, digits and hyphens")
	ErrInvalidEmotion = errors.New("space: unknown quick emotion")
	slugPattern       = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	nonSlugCharacter  = regexp.MustCompile(`[^a-z0-9]+`)
)

type Store struct {
	mu     sync.RWMutex
	key    string
	store  storage.Store
	spaces []model.Space
}

// NewStore loads the persisted space list. An empty or malformed value
// yields an empty store; a default space is only created on demand.
func NewStore(ctx context.Context, st storage.Store, key string) (*Store, error) {
	s := &Store{key: key, store: st}
	raw, err := st.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &s.spaces); err != nil {
			logger.Errorf("space: malformed persisted spaces, starting empty: %v", err)
			s.spaces = nil
		}
	}
	return s, nil
}

// CreateInput describes a new space. Slug is optional; when empty it is
// derived from the name.
type CreateInput struct {
	Name          string
	Slug          string
	Description   string
	OwnerID       string
	CardType      model.CardType
	Background    string
	QuickEmotions []model.Emotion
}

// Create validates the slug, enforces uniqueness and persists.
func (s *Store) Create(ctx context.Context, in CreateInput) (model.Space, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.Space{}, ErrEmptyName
	}
	slug := in.Slug
	if slug == "" {
		slug = Slugify(name)
	}
	if !slugPattern.MatchString(slug) {
		return model.Space{}, ErrInvalidSlug
	}
	cardType := in.CardType
	if cardType == "" {
		cardType = model.CardTypeBubble
	}

	quick := in.QuickEmotions
	for _, e := range quick {
		if !e.Valid() {
			return model.Space{}, fmt.Errorf("%w: %s", ErrInvalidEmotion, e)
		}
	}

	sp := model.Space{
		ID:            uuid.New().String(),
		Name:          name,
		Slug:          slug,
		Description:   in.Description,
		OwnerID:       in.OwnerID,
		CardType:      cardType,
		Background:    in.Background,
		QuickEmotions: quick,
		CreatedAt:     time.Now().UTC(),
	}

	s.mu.Lock()
	if s.slugIndexLocked(slug) >= 0 {
		s.mu.Unlock()
		return model.Space{}, fmt.Errorf("%w: %s", ErrSlugTaken, slug)
	}
	next := make([]model.Space, len(s.spaces), len(s.spaces)+1)
	copy(next, s.spaces)
	s.spaces = append(next, sp)
	data, err := json.Marshal(s.spaces)
	s.mu.Unlock()

	if err != nil {
		return model.Space{}, err
	}
	if err := s.store.Save(ctx, s.key, data); err != nil {
		return model.Space{}, err
	}
	return sp, nil
}

// List returns all spaces, oldest first.
func (s *Store) List() []model.Space {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Space, len(s.spaces))
	copy(out, s.spaces)
	return out
}

// Get returns the space by id.
func (s *Store) Get(id string) (model.Space, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.spaces {
		if s.spaces[i].ID == id {
			return s.spaces[i], nil
		}
	}
	return model.Space{}, ErrNotFound
}

// BySlug resolves a slug to its space.
func (s *Store) BySlug(slug string) (model.Space, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx := s.slugIndexLocked(slug); idx >= 0 {
		return s.spaces[idx], nil
	}
	return model.Space{}, ErrNotFound
}

// Ensure returns the space with the given slug, creating it with the given
// name when missing. Startup uses it for the default space.
func (s *Store) Ensure(ctx context.Context, slug, name string) (model.Space, error) {
	if sp, err := s.BySlug(slug); err == nil {
		return sp, nil
	}
	sp, err := s.Create(ctx, CreateInput{Name: name, Slug: slug})
	if errors.Is(err, ErrSlugTaken) {
		// Lost a race with a concurrent Ensure.
		return s.BySlug(slug)
	}
	return sp, err
}

func (s *Store) slugIndexLocked(slug string) int {
	for i := range s.spaces {
		if s.spaces[i].Slug == slug {
			return i
		}
	}
	return -1
}

// Slugify lowercases the name and collapses every non-alphanumeric run into
// a single hyphen. Names without any usable characters fall back to a
// random suffix.
func Slugify(name string) string {
	slug := nonSlugCharacter.ReplaceAllString(strings.ToLower(name), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "space-" + uuid.New().String()[:8]
	}
	return slug
}
