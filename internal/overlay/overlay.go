// Package overlay models the text overlays drawn over a frame.
//
// An overlay's (X, Y) anchor is the left edge and the bottom of the text.
// Its bounding box is {X, Y-FontSize, measured width, FontSize}: the font
// size stands in for the box height. Slice order is z-order, later on top.
package overlay

import (
	"math"
	"unicode/utf8"

	"github.com/starford/gridsplit/internal/geom"
	"github.com/starford/gridsplit/internal/snap"
)

const (
	// MinFontSize is the smallest font size an overlay may have.
	MinFontSize = 12.0
	// HitTolerance expands every bounding box when hit-testing bodies.
	HitTolerance = 10.0
	// HandleTolerance is the handle grab distance in display pixels.
	HandleTolerance = 10.0
)

// Default styling for new overlays.
const (
	DefaultColor       = "#ffffff"
	DefaultStrokeColor = "#000000"
	DefaultStrokeWidth = 3.0
	DefaultFontSize    = 48.0
)

// Measurer converts text and font into a rendered width in pixels.
type Measurer interface {
	MeasureText(content, family string, size float64) float64
}

// Overlay is one text element.
type Overlay struct {
	Content     string  `json:"content"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	FontSize    float64 `json:"font_size"`
	FontFamily  string  `json:"font_family"`
	Color       string  `json:"color"`
	StrokeColor string  `json:"stroke_color"`
	StrokeWidth float64 `json:"stroke_width"`
	HasStroke   bool    `json:"has_stroke"`
}

// Stroked reports whether the outline pass should be drawn.
func (o Overlay) Stroked() bool {
	return o.HasStroke && o.StrokeWidth > 0
}

// Patch carries optional field updates; nil fields are left unchanged.
type Patch struct {
	Content     *string  `json:"content,omitempty"`
	X           *float64 `json:"x,omitempty"`
	Y           *float64 `json:"y,omitempty"`
	FontSize    *float64 `json:"font_size,omitempty"`
	FontFamily  *string  `json:"font_family,omitempty"`
	Color       *string  `json:"color,omitempty"`
	StrokeColor *string  `json:"stroke_color,omitempty"`
	StrokeWidth *float64 `json:"stroke_width,omitempty"`
	HasStroke   *bool    `json:"has_stroke,omitempty"`
}

// Handle names a resize corner of the selected overlay.
type Handle string

const (
	None Handle = ""
	SE   Handle = "se"
	NE   Handle = "ne"
)

type dragKind int

const (
	dragNone dragKind = iota
	dragMove
	dragResize
)

type dragState struct {
	kind      dragKind
	handle    Handle
	index     int
	start     geom.Point
	startPos  geom.Point
	startSize float64
}

// Set is the ordered overlay list of one session.
type Set struct {
	items    []Overlay
	selected int
	frame    geom.Size
	measure  Measurer
	drag     dragState
	guides   []snap.Guide
}

// NewSet returns an empty set over frame.
func NewSet(frame geom.Size, m Measurer) *Set {
	return &Set{selected: -1, frame: frame, measure: m}
}

// SetFrame changes the frame used for centering, clamping and snapping.
// Existing overlay coordinates are not migrated.
func (s *Set) SetFrame(frame geom.Size) {
	s.frame = frame
}

// Frame returns the current frame.
func (s *Set) Frame() geom.Size {
	return s.frame
}

// Items returns a copy of the overlays in z-order.
func (s *Set) Items() []Overlay {
	return append([]Overlay{}, s.items...)
}

// Len returns the number of overlays.
func (s *Set) Len() int {
	return len(s.items)
}

// Selected returns the selected index.
func (s *Set) Selected() (int, bool) {
	return s.selected, s.selected >= 0
}

// Select marks i as selected. Out-of-range indexes clear the selection.
func (s *Set) Select(i int) {
	if i < 0 || i >= len(s.items) {
		i = -1
	}
	s.selected = i
}

// Width measures the rendered width of o.
func (s *Set) Width(o Overlay) float64 {
	if s.measure == nil {
		return 0.6 * o.FontSize * float64(utf8.RuneCountInString(o.Content))
	}
	return s.measure.MeasureText(o.Content, o.FontFamily, o.FontSize)
}

// Box returns the bounding box of overlay i.
func (s *Set) Box(i int) geom.Rect {
	if i < 0 || i >= len(s.items) {
		return geom.Rect{}
	}
	return s.box(s.items[i])
}

func (s *Set) box(o Overlay) geom.Rect {
	return geom.Rect{X: o.X, Y: o.Y - o.FontSize, Width: s.Width(o), Height: o.FontSize}
}

// Add appends a new overlay centered on the frame, selects it and returns
// its index.
func (s *Set) Add(content string, fontSize float64, family string) int {
	o := Overlay{
		Content:     content,
		FontSize:    math.Max(MinFontSize, fontSize),
		FontFamily:  family,
		Color:       DefaultColor,
		StrokeColor: DefaultStrokeColor,
		StrokeWidth: DefaultStrokeWidth,
		HasStroke:   true,
	}
	w := s.Width(o)
	o.X = s.frame.Width/2 - w/2
	o.Y = s.frame.Height/2 + o.FontSize/2
	s.items = append(s.items, o)
	s.selected = len(s.items) - 1
	return s.selected
}

// Update applies p to overlay i. It reports whether i was valid.
func (s *Set) Update(i int, p Patch) bool {
	if i < 0 || i >= len(s.items) {
		return false
	}
	o := &s.items[i]
	if p.Content != nil {
		o.Content = *p.Content
	}
	if p.X != nil && geom.Finite(*p.X) {
		o.X = geom.Clamp(*p.X, 0, s.frame.Width)
	}
	if p.Y != nil && geom.Finite(*p.Y) {
		o.Y = geom.Clamp(*p.Y, 0, s.frame.Height)
	}
	if p.FontSize != nil && geom.Finite(*p.FontSize) {
		o.FontSize = math.Max(MinFontSize, *p.FontSize)
	}
	if p.FontFamily != nil {
		o.FontFamily = *p.FontFamily
	}
	if p.Color != nil {
		o.Color = *p.Color
	}
	if p.StrokeColor != nil {
		o.StrokeColor = *p.StrokeColor
	}
	if p.StrokeWidth != nil && geom.Finite(*p.StrokeWidth) {
		o.StrokeWidth = math.Max(0, *p.StrokeWidth)
	}
	if p.HasStroke != nil {
		o.HasStroke = *p.HasStroke
	}
	return true
}

// Remove deletes overlay i, clearing the selection if it pointed at i and
// shifting it down if it pointed past i.
func (s *Set) Remove(i int) bool {
	if i < 0 || i >= len(s.items) {
		return false
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	switch {
	case s.selected == i:
		s.selected = -1
	case s.selected > i:
		s.selected--
	}
	s.drag = dragState{}
	return true
}

// Clear drops every overlay.
func (s *Set) Clear() {
	s.items = nil
	s.selected = -1
	s.drag = dragState{}
	s.guides = nil
}

// HitTest finds the overlay under p. The selected overlay's handles (se,
// then ne) win over any body; bodies are tried topmost first with their box
// grown by HitTolerance. ratio scales the handle grab distance from display
// to source pixels.
func (s *Set) HitTest(p geom.Point, ratio float64) (int, Handle, bool) {
	if s.selected >= 0 {
		b := s.Box(s.selected)
		tol := HandleTolerance * ratio
		if near(p, geom.Pt(b.Right(), b.Bottom()), tol) {
			return s.selected, SE, true
		}
		if near(p, geom.Pt(b.Right(), b.Y), tol) {
			return s.selected, NE, true
		}
	}
	for i := len(s.items) - 1; i >= 0; i-- {
		if s.Box(i).Expand(HitTolerance).Contains(p) {
			return i, None, true
		}
	}
	return -1, None, false
}

func near(p, q geom.Point, tol float64) bool {
	return math.Abs(p.X-q.X) <= tol && math.Abs(p.Y-q.Y) <= tol
}

// BeginDrag selects i and captures its position for a move started at p.
func (s *Set) BeginDrag(i int, p geom.Point) {
	if i < 0 || i >= len(s.items) {
		return
	}
	s.selected = i
	o := s.items[i]
	s.drag = dragState{kind: dragMove, index: i, start: p, startPos: geom.Pt(o.X, o.Y)}
}

// BeginResize captures overlay i's font size for a resize from handle h.
func (s *Set) BeginResize(i int, h Handle, p geom.Point) {
	if i < 0 || i >= len(s.items) || h == None {
		return
	}
	s.selected = i
	s.drag = dragState{kind: dragResize, handle: h, index: i, start: p, startSize: s.items[i].FontSize}
}

// Drag moves the dragged overlay to its start position plus delta, clamped
// to the frame, then snaps its box center to the frame center.
func (s *Set) Drag(delta geom.Point) {
	if s.drag.kind != dragMove {
		return
	}
	o := &s.items[s.drag.index]
	x := geom.Clamp(s.drag.startPos.X+delta.X, 0, s.frame.Width)
	y := geom.Clamp(s.drag.startPos.Y+delta.Y, 0, s.frame.Height)

	box := geom.Rect{X: x, Y: y - o.FontSize, Width: s.Width(*o), Height: o.FontSize}
	box, s.guides = snap.Text.Box(box, s.frame)
	o.X = box.X
	o.Y = box.Y + o.FontSize
}

// Resize grows the font uniformly as the handle moves away from the anchor
// corner: max(dx, dy) for se, max(dx, -dy) for ne.
func (s *Set) Resize(delta geom.Point) {
	if s.drag.kind != dragResize {
		return
	}
	d := math.Max(delta.X, delta.Y)
	if s.drag.handle == NE {
		d = math.Max(delta.X, -delta.Y)
	}
	s.items[s.drag.index].FontSize = math.Max(MinFontSize, s.drag.startSize+d)
}

// PointerMove continues the current drag or resize.
func (s *Set) PointerMove(p geom.Point) {
	switch s.drag.kind {
	case dragMove:
		s.Drag(p.Sub(s.drag.start))
	case dragResize:
		s.Resize(p.Sub(s.drag.start))
	}
}

// PointerUp ends the interaction and clears the snap guides.
func (s *Set) PointerUp() {
	s.drag = dragState{}
	s.guides = nil
}

// Dragging reports whether a move or resize is in progress.
func (s *Set) Dragging() bool {
	return s.drag.kind != dragNone
}

// Guides returns the snap guides active during the current drag.
func (s *Set) Guides() []snap.Guide {
	return append([]snap.Guide{}, s.guides...)
}
