package layout

import (
	"context"
	"math"

	"github.com/emotionwall/internal/hossii"
	"github.com/emotionwall/internal/model"
)

// SessionState is the editing FSM: Idle -> Selected -> Dragging -> Selected.
type SessionState int

const (
	StateIdle SessionState = iota
	StateSelected
	StateDragging
)

type dragMode int

const (
	modeMove dragMode = iota
	modeResize
)

// moveEpsilonPx separates a click from a drag: below it the gesture is a
// plain click and nothing persists.
const moveEpsilonPx = 3

// resizeSensitivityPx is the pointer travel mapped to one full scale unit.
const resizeSensitivityPx = 150

// Persister saves finished edits. *hossii.Store satisfies it.
type Persister interface {
	UpdatePosition(ctx context.Context, id string, x, y float64)
	UpdateScale(ctx context.Context, id string, scale float64)
	UpdateColor(ctx context.Context, id, color string)
}

// Editor tracks one client's selection and drag session. Pointer
// coordinates arrive in pixels together with the container size; deltas are
// converted to percent-of-container before they touch positions.
type Editor struct {
	store   Persister
	canEdit func(h model.Hossii) bool

	containerW, containerH float64

	state    SessionState
	selected string
	mode     dragMode
	moved    bool

	startPX, startPY float64 // pointer, px
	origX, origY     float64 // post position, percent
	origScale        float64
	curX, curY       float64
	curScale         float64
}

// NewEditor builds an editor. canEdit gates mutation sessions; selection
// itself is always allowed (view-only inspection).
func NewEditor(store Persister, containerW, containerH float64, canEdit func(model.Hossii) bool) *Editor {
	return &Editor{
		store:      store,
		canEdit:    canEdit,
		containerW: containerW,
		containerH: containerH,
	}
}

func (e *Editor) State() SessionState { return e.state }
func (e *Editor) Selected() string    { return e.selected }

// SetContainer updates the container size (viewport resize mid-session).
func (e *Editor) SetContainer(w, h float64) {
	e.containerW, e.containerH = w, h
}

// TransientPosition returns the uncommitted position of an in-flight move
// session for the given post.
func (e *Editor) TransientPosition(id string) (x, y float64, ok bool) {
	if e.state == StateDragging && e.mode == modeMove && e.selected == id {
		return e.curX, e.curY, true
	}
	return 0, 0, false
}

// TransientScale returns the uncommitted scale of an in-flight resize
// session for the given post.
func (e *Editor) TransientScale(id string) (scale float64, ok bool) {
	if e.state == StateDragging && e.mode == modeResize && e.selected == id {
		return e.curScale, true
	}
	return 0, false
}

// PointerDown handles a press on the post at the given effective position
// and scale. The first press on an unselected post only selects it; a press
// on the already-selected post starts a move session, or a resize session
// when it lands on the corner handle. Posts the caller may not edit can be
// selected but never dragged.
func (e *Editor) PointerDown(h model.Hossii, px, py float64, onHandle bool, posX, posY, scale float64) {
	if e.selected != h.ID {
		e.reset()
		e.state = StateSelected
		e.selected = h.ID
		return
	}
	if e.canEdit != nil && !e.canEdit(h) {
		return
	}

	e.state = StateDragging
	e.moved = false
	e.startPX, e.startPY = px, py
	if onHandle {
		e.mode = modeResize
		e.origScale = scale
		e.curScale = scale
	} else {
		e.mode = modeMove
		e.origX, e.origY = posX, posY
		e.curX, e.curY = posX, posY
	}
}

// PointerMove updates the transient session state. No-op outside a drag.
func (e *Editor) PointerMove(px, py float64) {
	if e.state != StateDragging {
		return
	}
	dx, dy := px-e.startPX, py-e.startPY
	if math.Hypot(dx, dy) > moveEpsilonPx {
		e.moved = true
	}

	switch e.mode {
	case modeMove:
		if e.containerW > 0 && e.containerH > 0 {
			e.curX = clamp(e.origX+dx/e.containerW*100, hossii.PosXMin, hossii.PosXMax)
			e.curY = clamp(e.origY+dy/e.containerH*100, hossii.PosYMin, hossii.PosYMax)
		}
	case modeResize:
		// Vertical is inverted: dragging up enlarges.
		e.curScale = clamp(e.origScale+(dx-dy)/resizeSensitivityPx, hossii.ScaleMin, hossii.ScaleMax)
	}
}

// PointerUp ends the session. A real drag persists the result; a press that
// never moved is a plain click and toggles the selection off instead.
func (e *Editor) PointerUp(ctx context.Context) {
	if e.state != StateDragging {
		return
	}
	id, moved, mode := e.selected, e.moved, e.mode
	e.state = StateSelected
	e.moved = false

	if !moved {
		// Click, not drag: toggle activation.
		e.reset()
		return
	}
	switch mode {
	case modeMove:
		e.store.UpdatePosition(ctx, id, e.curX, e.curY)
	case modeResize:
		if e.curScale != e.origScale {
			e.store.UpdateScale(ctx, id, e.curScale)
		}
	}
}

// Recolor persists a bubble color change, respecting the edit gate.
func (e *Editor) Recolor(ctx context.Context, h model.Hossii, color string) bool {
	if e.canEdit != nil && !e.canEdit(h) {
		return false
	}
	e.store.UpdateColor(ctx, h.ID, color)
	return true
}

// ClickOutside deselects (press on empty wall space).
func (e *Editor) ClickOutside() { e.reset() }

// Escape aborts any in-flight session without persisting and deselects.
func (e *Editor) Escape() { e.reset() }

func (e *Editor) reset() {
	e.state = StateIdle
	e.selected = ""
	e.moved = false
}
