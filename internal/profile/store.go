// Package profile keeps per-space nicknames: the name a user posts under in
// a given space. Backed by the opaque Store collaborator.
package profile

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/emotionwall/internal/logger"
	"github.com/emotionwall/internal/storage"
)

const storageKey = "wall:profiles"

type Store struct {
	mu    sync.RWMutex
	store storage.Store
	// spaceID -> userID -> nickname
	names map[string]map[string]string
}

func NewStore(ctx context.Context, st storage.Store) (*Store, error) {
	s := &Store{store: st, names: make(map[string]map[string]string)}
	raw, err := st.Load(ctx, storageKey)
	if err != nil {
		return nil, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &s.names); err != nil {
			// Malformed profiles never abort startup; start empty.
			logger.Errorf("profile: malformed persisted profiles, starting empty: %v", err)
			s.names = make(map[string]map[string]string)
		}
	}
	return s, nil
}

// ActiveNickname returns the user's nickname for the space, or "" when none
// is set (anonymous).
func (s *Store) ActiveNickname(spaceID, userID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.names[spaceID][userID]
}

// SetNickname stores the nickname and persists the full profile map.
func (s *Store) SetNickname(ctx context.Context, spaceID, userID, nickname string) error {
	s.mu.Lock()
	if s.names[spaceID] == nil {
		s.names[spaceID] = make(map[string]string)
	}
	if nickname == "" {
		delete(s.names[spaceID], userID)
	} else {
		s.names[spaceID][userID] = nickname
	}
	data, err := json.Marshal(s.names)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.store.Save(ctx, storageKey, data)
}
