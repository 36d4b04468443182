package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/emotionwall/internal/middleware"
	"github.com/emotionwall/internal/model"
	"github.com/emotionwall/internal/profile"
	"github.com/emotionwall/internal/space"
)

type SpaceHandler struct {
	spaces   *space.Store
	profiles *profile.Store
}

func NewSpaceHandler(spaces *space.Store, profiles *profile.Store) *SpaceHandler {
	return &SpaceHandler{spaces: spaces, profiles: profiles}
}

// List returns every space.
func (h *SpaceHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.spaces.List())
}

type createSpaceRequest struct {
	Name          string   `json:"name"`
	Slug          string   `json:"slug"`
	Description   string   `json:"description"`
	CardType      string   `json:"card_type"`
	Background    string   `json:"background"`
	QuickEmotions []string `json:"quick_emotions"`
}

// Create makes a new space owned by the caller.
func (h *SpaceHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "identity required")
		return
	}

	var req createSpaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	quick := make([]model.Emotion, 0, len(req.QuickEmotions))
	for _, e := range req.QuickEmotions {
		quick = append(quick, model.Emotion(e))
	}

	sp, err := h.spaces.Create(r.Context(), space.CreateInput{
		Name:          req.Name,
		Slug:          req.Slug,
		Description:   req.Description,
		OwnerID:       userID,
		CardType:      model.CardType(req.CardType),
		Background:    req.Background,
		QuickEmotions: quick,
	})
	switch {
	case errors.Is(err, space.ErrEmptyName), errors.Is(err, space.ErrInvalidSlug),
		errors.Is(err, space.ErrInvalidEmotion):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, space.ErrSlugTaken):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to create space")
		return
	}
	writeJSON(w, http.StatusCreated, sp)
}

// Get returns one space by id.
func (h *SpaceHandler) Get(w http.ResponseWriter, r *http.Request) {
	sp, err := h.spaces.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "space not found")
		return
	}
	writeJSON(w, http.StatusOK, sp)
}

// BySlug resolves a public slug.
func (h *SpaceHandler) BySlug(w http.ResponseWriter, r *http.Request) {
	sp, err := h.spaces.BySlug(chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, http.StatusNotFound, "space not found")
		return
	}
	writeJSON(w, http.StatusOK, sp)
}

type nicknameRequest struct {
	Nickname string `json:"nickname"`
}

// SetNickname stores the caller's display name for the space.
func (h *SpaceHandler) SetNickname(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "identity required")
		return
	}
	spaceID := chi.URLParam(r, "id")
	if _, err := h.spaces.Get(spaceID); err != nil {
		writeError(w, http.StatusNotFound, "space not found")
		return
	}

	var req nicknameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	nickname := strings.TrimSpace(req.Nickname)
	if len([]rune(nickname)) > 30 {
		writeError(w, http.StatusBadRequest, "nickname too long")
		return
	}
	if err := h.profiles.SetNickname(r.Context(), spaceID, userID, nickname); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save nickname")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
