package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/emotionwall/internal/hossii"
	"github.com/emotionwall/internal/identity"
	"github.com/emotionwall/internal/logger"
	"github.com/emotionwall/internal/middleware"
	"github.com/emotionwall/internal/model"
	"github.com/emotionwall/internal/ws"
)

// Broadcaster fans a change event out to a space's live clients. Nil
// disables fan-out (tests).
type Broadcaster interface {
	BroadcastSpace(spaceID string, msg ws.OutgoingMessage)
}

type HossiiHandler struct {
	posts  *hossii.Store
	admins identity.AdminSet
	hub    Broadcaster
}

func NewHossiiHandler(posts *hossii.Store, admins identity.AdminSet, hub Broadcaster) *HossiiHandler {
	return &HossiiHandler{posts: posts, admins: admins, hub: hub}
}

// List returns the space's posts. Hidden posts are included only for admins
// asking for them (moderation view); everyone else sees the visible list.
func (h *HossiiHandler) List(w http.ResponseWriter, r *http.Request) {
	spaceID := chi.URLParam(r, "id")
	userID := middleware.GetUserID(r.Context())

	includeHidden := r.URL.Query().Get("include_hidden") == "true" && h.admins.Contains(userID)
	var posts []model.Hossii
	if includeHidden {
		posts = h.posts.ListBySpace(spaceID)
	} else {
		posts = h.posts.VisibleBySpace(spaceID)
	}

	if limit := queryInt(r, "limit", 0); limit > 0 && len(posts) > limit {
		posts = posts[len(posts)-limit:]
	}
	writeJSON(w, http.StatusOK, posts)
}

type createHossiiRequest struct {
	Message     string   `json:"message"`
	Emotion     string   `json:"emotion"`
	AuthorName  string   `json:"author_name"`
	BubbleColor string   `json:"bubble_color"`
	ImageURL    string   `json:"image_url"`
	NumberValue *float64 `json:"number_value"`
	Hashtags    []string `json:"hashtags"`
}

// Create appends a manual post over REST (the socket path is the usual one;
// this covers share targets and tests).
func (h *HossiiHandler) Create(w http.ResponseWriter, r *http.Request) {
	defer logger.DeferLogDuration("handler.hossiiCreate", time.Now())()
	spaceID := chi.URLParam(r, "id")

	var req createHossiiRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	emotion := model.Emotion(req.Emotion)
	if req.Emotion != "" && !emotion.Valid() {
		writeError(w, http.StatusBadRequest, "unknown emotion")
		return
	}

	post, err := h.posts.Add(r.Context(), hossii.AddInput{
		SpaceID:     spaceID,
		Message:     req.Message,
		Emotion:     emotion,
		AuthorID:    middleware.GetUserID(r.Context()),
		AuthorName:  req.AuthorName,
		Origin:      model.OriginManual,
		BubbleColor: req.BubbleColor,
		ImageURL:    req.ImageURL,
		NumberValue: req.NumberValue,
		Hashtags:    req.Hashtags,
	})
	if err != nil {
		if errors.Is(err, hossii.ErrEmptyPost) {
			writeError(w, http.StatusBadRequest, "post needs content")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to save post")
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

// Hide marks a post hidden (admin moderation).
func (h *HossiiHandler) Hide(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, true)
}

// Restore undoes a hide (admin moderation).
func (h *HossiiHandler) Restore(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, false)
}

func (h *HossiiHandler) moderate(w http.ResponseWriter, r *http.Request, hide bool) {
	userID := middleware.GetUserID(r.Context())
	if !h.admins.Contains(userID) {
		writeError(w, http.StatusForbidden, "admin only")
		return
	}
	id := chi.URLParam(r, "id")
	post, ok := h.posts.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "post not found")
		return
	}

	if hide {
		h.posts.Hide(r.Context(), id, userID)
	} else {
		h.posts.Restore(r.Context(), id, userID)
	}
	h.notifyUpdated(post.SpaceID, id)
	w.WriteHeader(http.StatusNoContent)
}

type positionRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// UpdatePosition persists a manual placement (author or admin).
func (h *HossiiHandler) UpdatePosition(w http.ResponseWriter, r *http.Request) {
	post, ok := h.authorizeEdit(w, r)
	if !ok {
		return
	}
	var req positionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	h.posts.UpdatePosition(r.Context(), post.ID, req.X, req.Y)
	h.notifyUpdated(post.SpaceID, post.ID)
	w.WriteHeader(http.StatusNoContent)
}

type scaleRequest struct {
	Scale float64 `json:"scale"`
}

// UpdateScale persists a manual size (author or admin).
func (h *HossiiHandler) UpdateScale(w http.ResponseWriter, r *http.Request) {
	post, ok := h.authorizeEdit(w, r)
	if !ok {
		return
	}
	var req scaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	h.posts.UpdateScale(r.Context(), post.ID, req.Scale)
	h.notifyUpdated(post.SpaceID, post.ID)
	w.WriteHeader(http.StatusNoContent)
}

type colorRequest struct {
	Color string `json:"color"`
}

// UpdateColor persists a bubble color override; empty clears it.
func (h *HossiiHandler) UpdateColor(w http.ResponseWriter, r *http.Request) {
	post, ok := h.authorizeEdit(w, r)
	if !ok {
		return
	}
	var req colorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	h.posts.UpdateColor(r.Context(), post.ID, req.Color)
	h.notifyUpdated(post.SpaceID, post.ID)
	w.WriteHeader(http.StatusNoContent)
}

// ClearAll wipes every post (admin reset).
func (h *HossiiHandler) ClearAll(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if !h.admins.Contains(userID) {
		writeError(w, http.StatusForbidden, "admin only")
		return
	}
	h.posts.ClearAll(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// authorizeEdit loads the post and checks the caller may edit it: the
// author, or an admin. Auto posts have no author, so only admins edit them.
func (h *HossiiHandler) authorizeEdit(w http.ResponseWriter, r *http.Request) (model.Hossii, bool) {
	userID := middleware.GetUserID(r.Context())
	post, ok := h.posts.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "post not found")
		return model.Hossii{}, false
	}
	if userID == "" || (post.AuthorID != userID && !h.admins.Contains(userID)) {
		writeError(w, http.StatusForbidden, "not allowed")
		return model.Hossii{}, false
	}
	return post, true
}

func (h *HossiiHandler) notifyUpdated(spaceID, hossiiID string) {
	if h.hub == nil {
		return
	}
	if post, ok := h.posts.Get(hossiiID); ok {
		h.hub.BroadcastSpace(spaceID, ws.OutgoingMessage{Type: ws.EventHossiiUpdated, Payload: post})
	}
}
