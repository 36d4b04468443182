package space

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emotionwall/internal/model"
	"github.com/emotionwall/internal/storage/memory"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(context.Background(), memory.New(), "wall:spaces")
	require.NoError(t, err)
	return s
}

func TestCreateAndResolve(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sp, err := s.Create(ctx, CreateInput{Name: "Morning Standup"})
	require.NoError(t, err)
	assert.NotEmpty(t, sp.ID)
	assert.Equal(t, "morning-standup", sp.Slug)
	assert.Equal(t, model.CardTypeBubble, sp.CardType)

	got, err := s.BySlug("morning-standup")
	require.NoError(t, err)
	assert.Equal(t, sp.ID, got.ID)

	got, err = s.Get(sp.ID)
	require.NoError(t, err)
	assert.Equal(t, "Morning Standup", got.Name)
}

func TestSlugUniqueness(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, CreateInput{Name: "Team A", Slug: "team"})
	require.NoError(t, err)

	_, err = s.Create(ctx, CreateInput{Name: "Team B", Slug: "team"})
	assert.ErrorIs(t, err, ErrSlugTaken)
}

func TestCreateValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, CreateInput{Name: "   "})
	assert.ErrorIs(t, err, ErrEmptyName)

	_, err = s.Create(ctx, CreateInput{Name: "x", Slug: "Not Valid!"})
	assert.ErrorIs(t, err, ErrInvalidSlug)
}

func TestEnsureIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.Ensure(ctx, "lobby", "Lobby")
	require.NoError(t, err)
	second, err := s.Ensure(ctx, "lobby", "Lobby")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, s.List(), 1)
}

func TestPersistedAcrossReload(t *testing.T) {
	client := memory.New()
	ctx := context.Background()

	s1, err := NewStore(ctx, client, "wall:spaces")
	require.NoError(t, err)
	sp, err := s1.Create(ctx, CreateInput{Name: "Retro"})
	require.NoError(t, err)

	s2, err := NewStore(ctx, client, "wall:spaces")
	require.NoError(t, err)
	got, err := s2.BySlug(sp.Slug)
	require.NoError(t, err)
	assert.Equal(t, sp.ID, got.ID)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "hello-world", Slugify("Hello, World!"))
	assert.Equal(t, "a-b-c", Slugify("  a  b  c  "))
	// Names with no ASCII alphanumerics fall back to a generated slug.
	assert.Contains(t, Slugify("こんにちは"), "space-")
}
