package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emotionwall/internal/hossii"
	"github.com/emotionwall/internal/identity"
	"github.com/emotionwall/internal/middleware"
	"github.com/emotionwall/internal/model"
	"github.com/emotionwall/internal/profile"
	"github.com/emotionwall/internal/space"
	"github.com/emotionwall/internal/storage/memory"
	"github.com/emotionwall/internal/ws"
)

type fixture struct {
	router *chi.Mux
	spaces *space.Store
	posts  *hossii.Store
	sp     model.Space
}

func newFixture(t *testing.T, adminIDs ...string) *fixture {
	t.Helper()
	ctx := context.Background()
	mem := memory.New()

	spaces, err := space.NewStore(ctx, mem, "wall:spaces")
	require.NoError(t, err)
	profiles, err := profile.NewStore(ctx, mem)
	require.NoError(t, err)
	posts, err := hossii.NewStore(ctx, mem, "wall:posts", hossii.WithNicknames(profiles))
	require.NoError(t, err)
	t.Cleanup(posts.Close)

	sp, err := spaces.Create(ctx, space.CreateInput{Name: "Test Wall", Slug: "test-wall"})
	require.NoError(t, err)

	spaceH := NewSpaceHandler(spaces, profiles)
	hossiiH := NewHossiiHandler(posts, identity.NewAdminSet(adminIDs), nil)

	r := chi.NewRouter()
	r.Use(middleware.Identity)
	r.Get("/api/spaces", spaceH.List)
	r.Post("/api/spaces", spaceH.Create)
	r.Get("/api/spaces/by-slug/{slug}", spaceH.BySlug)
	r.Get("/api/spaces/{id}", spaceH.Get)
	r.Put("/api/spaces/{id}/nickname", spaceH.SetNickname)
	r.Get("/api/spaces/{id}/hossiis", hossiiH.List)
	r.Post("/api/spaces/{id}/hossiis", hossiiH.Create)
	r.Post("/api/hossiis/{id}/hide", hossiiH.Hide)
	r.Post("/api/hossiis/{id}/restore", hossiiH.Restore)
	r.Put("/api/hossiis/{id}/position", hossiiH.UpdatePosition)
	r.Delete("/api/hossiis", hossiiH.ClearAll)

	return &fixture{router: r, spaces: spaces, posts: posts, sp: sp}
}

func (f *fixture) do(method, path, userID, body string) *httptest.ResponseRecorder {
	var rd *strings.Reader
	if body == "" {
		rd = strings.NewReader("")
	} else {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestSpaceCreateAndResolve(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/spaces", "alice", `{"name":"文化祭","slug":"festival"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created model.Space
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "festival", created.Slug)
	assert.Equal(t, "alice", created.OwnerID)

	rec = f.do(http.MethodGet, "/api/spaces/by-slug/festival", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/api/spaces/"+created.ID, "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/api/spaces/by-slug/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSpaceCreateValidation(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/spaces", "", `{"name":"x"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "identity required")

	rec = f.do(http.MethodPost, "/api/spaces", "alice", `{"name":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/api/spaces", "alice", `{"name":"x","slug":"Bad Slug"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/api/spaces", "alice", `{"name":"again","slug":"test-wall"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHossiiCreateAndList(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/spaces/"+f.sp.ID+"/hossiis", "alice", `{"message":"たのしい！","emotion":"joy"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var post model.Hossii
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &post))
	assert.Equal(t, "alice", post.AuthorID)
	assert.Equal(t, model.EmotionJoy, post.Emotion)

	rec = f.do(http.MethodPost, "/api/spaces/"+f.sp.ID+"/hossiis", "alice", `{"message":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "contentless post rejected")

	rec = f.do(http.MethodPost, "/api/spaces/"+f.sp.ID+"/hossiis", "alice", `{"message":"x","emotion":"bogus"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodGet, "/api/spaces/"+f.sp.ID+"/hossiis", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []model.Hossii
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Len(t, listed, 1)
}

func TestModerationRequiresAdmin(t *testing.T) {
	f := newFixture(t, "mod")
	post, err := f.posts.Add(context.Background(), hossii.AddInput{SpaceID: f.sp.ID, Message: "hello", AuthorID: "alice"})
	require.NoError(t, err)

	rec := f.do(http.MethodPost, "/api/hossiis/"+post.ID+"/hide", "alice", "")
	assert.Equal(t, http.StatusForbidden, rec.Code, "author is not a moderator")

	rec = f.do(http.MethodPost, "/api/hossiis/"+post.ID+"/hide", "mod", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, f.posts.VisibleBySpace(f.sp.ID))

	// Hidden posts stay in the admin view.
	rec = f.do(http.MethodGet, "/api/spaces/"+f.sp.ID+"/hossiis?include_hidden=true", "mod", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []model.Hossii
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Len(t, listed, 1)

	rec = f.do(http.MethodPost, "/api/hossiis/"+post.ID+"/restore", "mod", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Len(t, f.posts.VisibleBySpace(f.sp.ID), 1)

	rec = f.do(http.MethodPost, "/api/hossiis/missing/hide", "mod", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPositionEditPermissions(t *testing.T) {
	f := newFixture(t, "mod")
	post, err := f.posts.Add(context.Background(), hossii.AddInput{SpaceID: f.sp.ID, Message: "movable", AuthorID: "alice"})
	require.NoError(t, err)

	rec := f.do(http.MethodPut, "/api/hossiis/"+post.ID+"/position", "bob", `{"x":40,"y":60}`)
	assert.Equal(t, http.StatusForbidden, rec.Code, "only the author or an admin may move a post")

	rec = f.do(http.MethodPut, "/api/hossiis/"+post.ID+"/position", "alice", `{"x":40,"y":60}`)
	require.Equal(t, http.StatusNoContent, rec.Code)
	got, ok := f.posts.Get(post.ID)
	require.True(t, ok)
	require.NotNil(t, got.PositionX)
	assert.InDelta(t, 40, *got.PositionX, 0.001)
	assert.True(t, got.IsPositionFixed)

	rec = f.do(http.MethodPut, "/api/hossiis/"+post.ID+"/position", "mod", `{"x":10,"y":10}`)
	assert.Equal(t, http.StatusNoContent, rec.Code, "admins may move anyone's post")
}

func TestClearAllAdminOnly(t *testing.T) {
	f := newFixture(t, "mod")
	_, err := f.posts.Add(context.Background(), hossii.AddInput{SpaceID: f.sp.ID, Message: "one"})
	require.NoError(t, err)

	rec := f.do(http.MethodDelete, "/api/hossiis", "alice", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(http.MethodDelete, "/api/hossiis", "mod", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, f.posts.ListBySpace(f.sp.ID))
}

func TestSetNickname(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPut, "/api/spaces/"+f.sp.ID+"/nickname", "alice", `{"nickname":"ほしちゃん"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// New posts pick the nickname up through the resolver.
	post, err := f.posts.Add(context.Background(), hossii.AddInput{SpaceID: f.sp.ID, Message: "named", AuthorID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "ほしちゃん", post.AuthorName)

	long := strings.Repeat("あ", 31)
	rec = f.do(http.MethodPut, "/api/spaces/"+f.sp.ID+"/nickname", "alice", `{"nickname":"`+long+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPut, "/api/spaces/missing/nickname", "alice", `{"nickname":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// Compile-time check that the hub satisfies the handler's broadcaster.
var _ Broadcaster = (*ws.Hub)(nil)
