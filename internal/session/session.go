// Package session holds the editable state of one split or merge workflow.
//
// Sessions own their models and are not safe for concurrent use; callers
// serialize access. After each mutation View returns the derived state
// (regions, cell layout, measured overlay boxes) as a value that the
// renderer consumes for both the preview and the bake.
package session

import (
	"github.com/starford/gridsplit/internal/geom"
	"github.com/starford/gridsplit/internal/overlay"
)

// LineTolerance is the grab distance for grid lines in display pixels.
const LineTolerance = 8.0

// PointerKind is the phase of a pointer event.
type PointerKind string

const (
	PointerDown PointerKind = "down"
	PointerMove PointerKind = "move"
	PointerUp   PointerKind = "up"
)

// Pointer is one pointer event in source pixels. Ratio converts display
// pixels to source pixels and scales grab tolerances; zero means 1.
type Pointer struct {
	Kind  PointerKind `json:"kind"`
	X     float64     `json:"x"`
	Y     float64     `json:"y"`
	Ratio float64     `json:"ratio"`
}

func (p Pointer) point() geom.Point {
	return geom.Pt(p.X, p.Y)
}

func (p Pointer) ratio() float64 {
	if p.Ratio <= 0 || !geom.Finite(p.Ratio) {
		return 1
	}
	return p.Ratio
}

// OverlayView is an overlay with its measured bounding box.
type OverlayView struct {
	overlay.Overlay
	Box geom.Rect `json:"box"`
}

func overlayViews(s *overlay.Set) []OverlayView {
	items := s.Items()
	out := make([]OverlayView, len(items))
	for i, o := range items {
		out[i] = OverlayView{Overlay: o, Box: s.Box(i)}
	}
	return out
}

// routeOverlay starts an overlay interaction if p hits one. Misses clear
// the overlay selection.
func routeOverlay(s *overlay.Set, p geom.Point, ratio float64) bool {
	i, h, ok := s.HitTest(p, ratio)
	if !ok {
		s.Select(-1)
		return false
	}
	if h != overlay.None {
		s.BeginResize(i, h, p)
	} else {
		s.BeginDrag(i, p)
	}
	return true
}
