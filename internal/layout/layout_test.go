package layout

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emotionwall/internal/model"
)

func TestPlacementDeterministic(t *testing.T) {
	cfg := DefaultPlacement()
	for i := 0; i < 50; i++ {
		x1, y1 := Place(i, cfg)
		x2, y2 := Place(i, cfg)
		assert.Equal(t, x1, x2)
		assert.Equal(t, y1, y2)

		assert.GreaterOrEqual(t, x1, cfg.EdgeMargin)
		assert.LessOrEqual(t, x1, 100-cfg.EdgeMargin)
		assert.GreaterOrEqual(t, y1, cfg.EdgeMargin)
		assert.LessOrEqual(t, y1, 100-cfg.EdgeMargin)
	}
}

func TestPlacementNarrowBottomMargin(t *testing.T) {
	cfg := DefaultPlacement()
	cfg.Narrow = true
	for i := 0; i < 50; i++ {
		_, y := Place(i, cfg)
		assert.LessOrEqual(t, y, 100-cfg.EdgeMargin-cfg.BottomMargin)
	}
}

func TestManualOverrideWins(t *testing.T) {
	cfg := DefaultPlacement()
	px, py := 33.0, 44.0
	h := model.Hossii{ID: "h-1", IsPositionFixed: true, PositionX: &px, PositionY: &py}

	x, y := PositionOf(h, 7, cfg)
	assert.Equal(t, 33.0, x)
	assert.Equal(t, 44.0, y)

	// Without the override the computed layout applies.
	h.IsPositionFixed = false
	cx, cy := Place(7, cfg)
	x, y = PositionOf(h, 7, cfg)
	assert.Equal(t, cx, x)
	assert.Equal(t, cy, y)
}

type recordingPersister struct {
	positions map[string][2]float64
	scales    map[string]float64
	colors    map[string]string
}

func newRecordingPersister() *recordingPersister {
	return &recordingPersister{
		positions: make(map[string][2]float64),
		scales:    make(map[string]float64),
		colors:    make(map[string]string),
	}
}

func (r *recordingPersister) UpdatePosition(_ context.Context, id string, x, y float64) {
	r.positions[id] = [2]float64{x, y}
}
func (r *recordingPersister) UpdateScale(_ context.Context, id string, scale float64) {
	r.scales[id] = scale
}
func (r *recordingPersister) UpdateColor(_ context.Context, id, color string) {
	r.colors[id] = color
}

func allowAll(model.Hossii) bool { return true }
func denyAll(model.Hossii) bool  { return false }

func TestFirstPressOnlySelects(t *testing.T) {
	rec := newRecordingPersister()
	e := NewEditor(rec, 1000, 800, allowAll)
	h := model.Hossii{ID: "h-1"}

	e.PointerDown(h, 100, 100, false, 50, 50, 1)
	assert.Equal(t, StateSelected, e.State())
	assert.Equal(t, "h-1", e.Selected())

	// The selecting gesture never turns into a drag, however far it moves.
	e.PointerMove(400, 400)
	e.PointerUp(context.Background())
	assert.Empty(t, rec.positions)
	assert.Equal(t, StateSelected, e.State())
}

func TestClickWithoutMoveTogglesOff(t *testing.T) {
	rec := newRecordingPersister()
	e := NewEditor(rec, 1000, 800, allowAll)
	h := model.Hossii{ID: "h-1"}

	e.PointerDown(h, 100, 100, false, 50, 50, 1)
	e.PointerDown(h, 102, 101, false, 50, 50, 1)
	assert.Equal(t, StateDragging, e.State())
	e.PointerMove(103, 101) // below the click/drag threshold
	e.PointerUp(context.Background())

	assert.Empty(t, rec.positions, "a plain click persists nothing")
	assert.Equal(t, StateIdle, e.State())
	assert.Empty(t, e.Selected())
}

func TestMoveSessionPersistsOnRealDrag(t *testing.T) {
	rec := newRecordingPersister()
	e := NewEditor(rec, 1000, 800, allowAll)
	h := model.Hossii{ID: "h-1"}

	e.PointerDown(h, 100, 100, false, 50, 50, 1)
	e.PointerDown(h, 100, 100, false, 50, 50, 1)

	// 100px right on a 1000px container = +10 percent.
	e.PointerMove(200, 100)
	x, y, ok := e.TransientPosition("h-1")
	require.True(t, ok)
	assert.InDelta(t, 60, x, 0.001)
	assert.InDelta(t, 50, y, 0.001)

	e.PointerUp(context.Background())
	require.Contains(t, rec.positions, "h-1")
	assert.InDelta(t, 60, rec.positions["h-1"][0], 0.001)
	assert.Equal(t, StateSelected, e.State())
	assert.Equal(t, "h-1", e.Selected())
}

func TestMoveClampedToSafeRange(t *testing.T) {
	rec := newRecordingPersister()
	e := NewEditor(rec, 1000, 800, allowAll)
	h := model.Hossii{ID: "h-1"}

	e.PointerDown(h, 100, 100, false, 90, 85, 1)
	e.PointerDown(h, 100, 100, false, 90, 85, 1)
	e.PointerMove(900, 700)
	e.PointerUp(context.Background())

	assert.Equal(t, 95.0, rec.positions["h-1"][0])
	assert.Equal(t, 90.0, rec.positions["h-1"][1])
}

func TestResizeVerticalInverted(t *testing.T) {
	rec := newRecordingPersister()
	e := NewEditor(rec, 1000, 800, allowAll)
	h := model.Hossii{ID: "h-1"}

	e.PointerDown(h, 100, 100, false, 50, 50, 1)
	e.PointerDown(h, 300, 300, true, 50, 50, 1)

	// Straight up by 75px enlarges by 0.5.
	e.PointerMove(300, 225)
	scale, ok := e.TransientScale("h-1")
	require.True(t, ok)
	assert.InDelta(t, 1.5, scale, 0.001)

	e.PointerUp(context.Background())
	assert.InDelta(t, 1.5, rec.scales["h-1"], 0.001)
}

func TestResizeClamped(t *testing.T) {
	rec := newRecordingPersister()
	e := NewEditor(rec, 1000, 800, allowAll)
	h := model.Hossii{ID: "h-1"}

	e.PointerDown(h, 100, 100, false, 50, 50, 1)
	e.PointerDown(h, 300, 300, true, 50, 50, 1)
	e.PointerMove(3000, -3000)
	e.PointerUp(context.Background())
	assert.Equal(t, 2.5, rec.scales["h-1"])
}

func TestPermissionGateBlocksDragNotSelection(t *testing.T) {
	rec := newRecordingPersister()
	e := NewEditor(rec, 1000, 800, denyAll)
	h := model.Hossii{ID: "h-1"}

	e.PointerDown(h, 100, 100, false, 50, 50, 1)
	assert.Equal(t, StateSelected, e.State(), "selection stays allowed")

	e.PointerDown(h, 100, 100, false, 50, 50, 1)
	assert.Equal(t, StateSelected, e.State(), "no drag session without permission")
	e.PointerMove(500, 500)
	e.PointerUp(context.Background())
	assert.Empty(t, rec.positions)

	assert.False(t, e.Recolor(context.Background(), h, "#ffcc00"))
	assert.Empty(t, rec.colors)
}

func TestEscapeAbortsWithoutPersisting(t *testing.T) {
	rec := newRecordingPersister()
	e := NewEditor(rec, 1000, 800, allowAll)
	h := model.Hossii{ID: "h-1"}

	e.PointerDown(h, 100, 100, false, 50, 50, 1)
	e.PointerDown(h, 100, 100, false, 50, 50, 1)
	e.PointerMove(400, 400)
	e.Escape()

	assert.Empty(t, rec.positions)
	assert.Equal(t, StateIdle, e.State())
}

func TestClickOutsideDeselects(t *testing.T) {
	rec := newRecordingPersister()
	e := NewEditor(rec, 1000, 800, allowAll)
	e.PointerDown(model.Hossii{ID: "h-1"}, 100, 100, false, 50, 50, 1)
	e.ClickOutside()
	assert.Equal(t, StateIdle, e.State())
	assert.Empty(t, e.Selected())
}

func TestRecolorPersists(t *testing.T) {
	rec := newRecordingPersister()
	e := NewEditor(rec, 1000, 800, allowAll)
	h := model.Hossii{ID: "h-1"}
	assert.True(t, e.Recolor(context.Background(), h, "#ffcc00"))
	assert.Equal(t, "#ffcc00", rec.colors["h-1"])
}
