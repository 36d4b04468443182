// Package layout places post bubbles in the viewport and owns the
// select/drag/resize editing session state.
package layout

import (
	"github.com/emotionwall/internal/hossii"
	"github.com/emotionwall/internal/model"
)

// PlacementConfig bounds computed positions (viewport percent).
type PlacementConfig struct {
	EdgeMargin   float64 // kept free on every side
	BottomMargin float64 // extra bottom inset applied on narrow viewports
	Narrow       bool
}

func DefaultPlacement() PlacementConfig {
	return PlacementConfig{EdgeMargin: 6, BottomMargin: 14}
}

// Place computes the bubble position for the post at the given list index.
// Purely a function of the index, so re-renders and reloads keep every
// bubble where it was. Averaging two hash draws biases toward the center.
func Place(index int, cfg PlacementConfig) (x, y float64) {
	tx := (hashUnit(uint64(index), 0x517cc1b727220a95) + hashUnit(uint64(index), 0x2545f4914f6cdd1d)) / 2
	ty := (hashUnit(uint64(index), 0x9e3779b97f4a7c15) + hashUnit(uint64(index), 0xbf58476d1ce4e5b9)) / 2

	maxY := 100 - cfg.EdgeMargin
	if cfg.Narrow {
		maxY -= cfg.BottomMargin
	}
	x = cfg.EdgeMargin + tx*(100-2*cfg.EdgeMargin)
	y = cfg.EdgeMargin + ty*(maxY-cfg.EdgeMargin)
	return x, y
}

// PositionOf resolves a post's effective position: an explicit manual
// override always wins over the computed layout.
func PositionOf(h model.Hossii, index int, cfg PlacementConfig) (x, y float64) {
	if h.IsPositionFixed && h.PositionX != nil && h.PositionY != nil {
		return *h.PositionX, *h.PositionY
	}
	return Place(index, cfg)
}

// ScaleOf resolves a post's effective scale.
func ScaleOf(h model.Hossii) float64 {
	if h.Scale != nil {
		return clamp(*h.Scale, hossii.ScaleMin, hossii.ScaleMax)
	}
	return 1
}

// hashUnit maps (v, salt) to [0, 1) via a splitmix64 round.
func hashUnit(v, salt uint64) float64 {
	z := v*0x9e3779b97f4a7c15 + salt
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	z ^= z >> 31
	return float64(z>>11) / float64(1<<53)
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
