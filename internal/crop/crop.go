// Package crop implements the crop rectangle state machine.
//
//	Absent -> Draft(new) -> Draft(resizing|moving) -> Applied -> Absent
//
// Coordinates are always in source pixels of the full image, independent of
// any crop that is already applied.
package crop

import (
	"math"

	"github.com/starford/gridsplit/internal/geom"
)

// MinSize is the smallest width and height a resized or applied crop may have.
const MinSize = 20.0

// HandleTolerance is the handle grab distance in display pixels. Callers
// multiply it by the display-to-source ratio.
const HandleTolerance = 15.0

// State is the lifecycle position of the crop rectangle.
type State string

const (
	Absent  State = "absent"
	Draft   State = "draft"
	Applied State = "applied"
)

// Handle names a resize corner.
type Handle string

const (
	None Handle = ""
	NW   Handle = "nw"
	NE   Handle = "ne"
	SW   Handle = "sw"
	SE   Handle = "se"
)

func (h Handle) west() bool  { return h == NW || h == SW }
func (h Handle) east() bool  { return h == NE || h == SE }
func (h Handle) north() bool { return h == NW || h == NE }
func (h Handle) south() bool { return h == SW || h == SE }

type dragKind int

const (
	dragNone dragKind = iota
	dragNew
	dragMove
	dragResize
)

type dragState struct {
	kind   dragKind
	handle Handle
	start  geom.Point
	rect   geom.Rect
}

// Model holds the draft and applied rectangles for one source image.
type Model struct {
	bounds  geom.Size
	draft   *geom.Rect
	applied *geom.Rect
	drag    dragState
}

// New returns an absent crop over a w×h source.
func New(w, h float64) *Model {
	return &Model{bounds: geom.Size{Width: w, Height: h}}
}

// State reports the current lifecycle state. A draft being edited over an
// applied crop reports Draft.
func (m *Model) State() State {
	switch {
	case m.draft != nil:
		return Draft
	case m.applied != nil:
		return Applied
	}
	return Absent
}

// Draft returns the draft rectangle, if any.
func (m *Model) Draft() (geom.Rect, bool) {
	if m.draft == nil {
		return geom.Rect{}, false
	}
	return *m.draft, true
}

// Applied returns the committed rectangle, if any.
func (m *Model) Applied() (geom.Rect, bool) {
	if m.applied == nil {
		return geom.Rect{}, false
	}
	return *m.applied, true
}

// Edit seeds the draft from the applied rectangle so it can be adjusted.
func (m *Model) Edit() {
	if m.draft == nil && m.applied != nil {
		r := *m.applied
		m.draft = &r
	}
}

// Begin starts a zero-size draft at p, discarding any previous draft.
func (m *Model) Begin(p geom.Point) {
	p = m.clampPoint(p)
	m.draft = &geom.Rect{X: p.X, Y: p.Y}
	m.drag = dragState{kind: dragNew, start: p}
}

// GrowTo rubber-bands the new draft between its anchor and p.
func (m *Model) GrowTo(p geom.Point) {
	if m.draft == nil || m.drag.kind != dragNew {
		return
	}
	p = m.clampPoint(p)
	a := m.drag.start
	*m.draft = geom.Rect{
		X:      math.Min(a.X, p.X),
		Y:      math.Min(a.Y, p.Y),
		Width:  math.Abs(p.X - a.X),
		Height: math.Abs(p.Y - a.Y),
	}
}

// Resize applies delta to the draft as captured when the resize began.
func (m *Model) Resize(h Handle, delta geom.Point) {
	if m.draft == nil {
		return
	}
	start := *m.draft
	if m.drag.kind == dragResize {
		start = m.drag.rect
	}
	*m.draft = Resized(start, h, delta, m.bounds)
}

// Move translates the draft as captured when the move began.
func (m *Model) Move(delta geom.Point) {
	if m.draft == nil {
		return
	}
	start := *m.draft
	if m.drag.kind == dragMove {
		start = m.drag.rect
	}
	*m.draft = Moved(start, delta, m.bounds)
}

// Apply commits the draft. Zero-size drafts are rejected and leave the
// model untouched. The committed rectangle is clamped to the bounds and the
// minimum size and snapped to whole pixels.
func (m *Model) Apply() bool {
	if m.draft == nil || m.draft.Width <= 0 || m.draft.Height <= 0 {
		return false
	}
	r := withMinSize(pixelAlign(withMinSize(*m.draft, m.bounds), m.bounds), m.bounds)
	m.applied = &r
	m.draft = nil
	m.drag = dragState{}
	return true
}

// Cancel discards both the draft and the applied rectangle.
func (m *Model) Cancel() {
	m.draft = nil
	m.applied = nil
	m.drag = dragState{}
}

// HitTest classifies p against the draft: the nearest corner handle within
// tol, the interior, or nothing.
func (m *Model) HitTest(p geom.Point, tol float64) (Handle, bool) {
	if m.draft == nil {
		return None, false
	}
	r := *m.draft
	corners := []struct {
		h    Handle
		x, y float64
	}{
		{NW, r.X, r.Y},
		{NE, r.Right(), r.Y},
		{SW, r.X, r.Bottom()},
		{SE, r.Right(), r.Bottom()},
	}
	best, bestDist := None, math.Inf(1)
	for _, c := range corners {
		dx, dy := math.Abs(p.X-c.x), math.Abs(p.Y-c.y)
		if dx < tol && dy < tol && math.Hypot(dx, dy) < bestDist {
			best, bestDist = c.h, math.Hypot(dx, dy)
		}
	}
	if best != None {
		return best, true
	}
	return None, r.Contains(p)
}

// PointerDown routes a press: handle -> resize, interior -> move, otherwise
// a new draft replaces the old one.
func (m *Model) PointerDown(p geom.Point, tol float64) {
	h, inside := m.HitTest(p, tol)
	switch {
	case h != None:
		m.drag = dragState{kind: dragResize, handle: h, start: p, rect: *m.draft}
	case inside:
		m.drag = dragState{kind: dragMove, start: p, rect: *m.draft}
	default:
		m.Begin(p)
	}
}

// PointerMove continues the interaction started by PointerDown.
func (m *Model) PointerMove(p geom.Point) {
	switch m.drag.kind {
	case dragNew:
		m.GrowTo(p)
	case dragMove:
		m.Move(p.Sub(m.drag.start))
	case dragResize:
		m.Resize(m.drag.handle, p.Sub(m.drag.start))
	}
}

// PointerUp ends the current interaction.
func (m *Model) PointerUp() {
	m.drag = dragState{}
}

// Dragging reports whether a pointer interaction is in progress.
func (m *Model) Dragging() bool {
	return m.drag.kind != dragNone
}

// Resized returns start with the edges named by h moved by d. The opposite
// edges stay anchored; east/south edges stop at the bounds, west/north at 0.
// A rectangle too close to an edge to reach MinSize is pushed back inside.
func Resized(start geom.Rect, h Handle, d geom.Point, bounds geom.Size) geom.Rect {
	r := start
	if h.west() {
		right := start.Right()
		r.X = geom.Clamp(start.X+d.X, 0, right-MinSize)
		r.Width = right - r.X
	}
	if h.east() {
		r.Width = geom.Clamp(start.Width+d.X, MinSize, bounds.Width-start.X)
	}
	if h.north() {
		bottom := start.Bottom()
		r.Y = geom.Clamp(start.Y+d.Y, 0, bottom-MinSize)
		r.Height = bottom - r.Y
	}
	if h.south() {
		r.Height = geom.Clamp(start.Height+d.Y, MinSize, bounds.Height-start.Y)
	}
	return withMinSize(r, bounds)
}

// Moved returns start translated by d and kept fully inside bounds.
func Moved(start geom.Rect, d geom.Point, bounds geom.Size) geom.Rect {
	r := start
	r.X = geom.Clamp(start.X+d.X, 0, bounds.Width-start.Width)
	r.Y = geom.Clamp(start.Y+d.Y, 0, bounds.Height-start.Height)
	return r
}

// withMinSize grows r to MinSize (or the whole bounds when smaller) and
// shifts it so it lies inside b.
func withMinSize(r geom.Rect, b geom.Size) geom.Rect {
	r.Width = math.Min(math.Max(r.Width, MinSize), b.Width)
	r.Height = math.Min(math.Max(r.Height, MinSize), b.Height)
	r.X = geom.Clamp(r.X, 0, b.Width-r.Width)
	r.Y = geom.Clamp(r.Y, 0, b.Height-r.Height)
	return r
}

func pixelAlign(r geom.Rect, b geom.Size) geom.Rect {
	x0 := geom.Clamp(math.Round(r.X), 0, b.Width)
	y0 := geom.Clamp(math.Round(r.Y), 0, b.Height)
	x1 := geom.Clamp(math.Round(r.Right()), x0, b.Width)
	y1 := geom.Clamp(math.Round(r.Bottom()), y0, b.Height)
	return geom.Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

func (m *Model) clampPoint(p geom.Point) geom.Point {
	return geom.Point{
		X: geom.Clamp(p.X, 0, m.bounds.Width),
		Y: geom.Clamp(p.Y, 0, m.bounds.Height),
	}
}
