// Package grid models the split lines laid over the effective frame.
package grid

import (
	"fmt"
	"math"
	"sort"

	"github.com/starford/gridsplit/internal/geom"
)

// EdgeGap is the closest a dragged line may come to either frame edge.
const EdgeGap = 10.0

// MaxCells caps the pieces produced along one axis.
const MaxCells = 10

// Axis names one of the two line collections.
type Axis string

const (
	Vertical   Axis = "vertical"
	Horizontal Axis = "horizontal"
)

// ParseAxis validates an axis name.
func ParseAxis(s string) (Axis, error) {
	switch Axis(s) {
	case Vertical, Horizontal:
		return Axis(s), nil
	}
	return "", fmt.Errorf("grid: unknown axis %q", s)
}

// Policy selects how lines are added and removed.
//
//   - PolicyEqual redistributes every line of the axis evenly after an add
//     or remove, so "three equal vertical lines" stays true.
//   - PolicyFree inserts a new line in the middle of the widest gap and
//     removes the most recently stored line, leaving the others in place.
type Policy string

const (
	PolicyEqual Policy = "equal"
	PolicyFree  Policy = "free"
)

// ParsePolicy validates a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyEqual, PolicyFree:
		return Policy(s), nil
	}
	return "", fmt.Errorf("grid: unknown policy %q", s)
}

// Lines holds line positions in the current frame. Storage order is not
// significant; consumers sort a copy before use.
type Lines struct {
	Vertical   []float64 `json:"vertical"`
	Horizontal []float64 `json:"horizontal"`
}

// Clone returns a deep copy.
func (l Lines) Clone() Lines {
	return Lines{
		Vertical:   append([]float64{}, l.Vertical...),
		Horizontal: append([]float64{}, l.Horizontal...),
	}
}

// Equal returns cols-1 vertical and rows-1 horizontal lines evenly spaced
// over a w×h frame.
func Equal(cols, rows int, w, h float64) Lines {
	return Lines{
		Vertical:   evenly(cols-1, w),
		Horizontal: evenly(rows-1, h),
	}
}

func evenly(n int, length float64) []float64 {
	out := make([]float64, 0, max(n, 0))
	for i := 1; i <= n; i++ {
		out = append(out, length/float64(n+1)*float64(i))
	}
	return out
}

// Model owns the line set of one split session.
type Model struct {
	lines  Lines
	policy Policy
	width  float64
	height float64
}

// New returns a model with a cols×rows equal grid over a w×h frame.
func New(policy Policy, cols, rows int, w, h float64) *Model {
	m := &Model{policy: policy}
	m.InitializeEqual(cols, rows, w, h)
	return m
}

// InitializeEqual replaces both collections with an equal cols×rows grid
// and adopts w×h as the frame.
func (m *Model) InitializeEqual(cols, rows int, w, h float64) {
	cols = geom.ClampInt(cols, 1, MaxCells)
	rows = geom.ClampInt(rows, 1, MaxCells)
	m.width, m.height = w, h
	m.lines = Equal(cols, rows, w, h)
}

// Reframe re-initializes an equal grid of the current shape over a new frame.
func (m *Model) Reframe(w, h float64) {
	cols, rows := m.Shape()
	m.InitializeEqual(cols, rows, w, h)
}

// Lines returns a copy of the current lines.
func (m *Model) Lines() Lines {
	return m.lines.Clone()
}

// Shape returns the number of pieces along each axis.
func (m *Model) Shape() (cols, rows int) {
	return len(m.lines.Vertical) + 1, len(m.lines.Horizontal) + 1
}

// Policy returns the active add/remove policy.
func (m *Model) Policy() Policy {
	return m.policy
}

// SetPolicy switches policy. Switching to PolicyEqual lays the current
// shape out evenly again.
func (m *Model) SetPolicy(p Policy) {
	m.policy = p
	if p == PolicyEqual {
		m.Reframe(m.width, m.height)
	}
}

// AddLine adds one line on axis according to the policy. It is a no-op when
// the axis already holds MaxCells pieces.
func (m *Model) AddLine(axis Axis) {
	lines := m.axis(axis)
	if len(*lines)+1 >= MaxCells {
		return
	}
	length := m.length(axis)
	if m.policy == PolicyFree {
		*lines = append(*lines, widestGapMidpoint(*lines, length))
		return
	}
	*lines = evenly(len(*lines)+1, length)
}

// RemoveLine removes one line on axis according to the policy.
func (m *Model) RemoveLine(axis Axis) {
	lines := m.axis(axis)
	if len(*lines) == 0 {
		return
	}
	if m.policy == PolicyFree {
		*lines = (*lines)[:len(*lines)-1]
		return
	}
	*lines = evenly(len(*lines)-1, m.length(axis))
}

// DragLine moves line index on axis to pos, clamped to
// [EdgeGap, length-EdgeGap]. It reports whether the index was valid.
func (m *Model) DragLine(axis Axis, index int, pos float64) bool {
	lines := m.axis(axis)
	if index < 0 || index >= len(*lines) || !geom.Finite(pos) {
		return false
	}
	length := m.length(axis)
	v := geom.Clamp(pos, EdgeGap, length-EdgeGap)
	// Frames narrower than 2*EdgeGap cannot honor the gap; stay inside the axis.
	(*lines)[index] = geom.Clamp(v, 0, length)
	return true
}

// HitTest returns the first line within tol of p, vertical lines first.
func (m *Model) HitTest(p geom.Point, tol float64) (Axis, int, bool) {
	for i, x := range m.lines.Vertical {
		if math.Abs(p.X-x) < tol {
			return Vertical, i, true
		}
	}
	for i, y := range m.lines.Horizontal {
		if math.Abs(p.Y-y) < tol {
			return Horizontal, i, true
		}
	}
	return "", 0, false
}

func (m *Model) axis(a Axis) *[]float64 {
	if a == Horizontal {
		return &m.lines.Horizontal
	}
	return &m.lines.Vertical
}

func (m *Model) length(a Axis) float64 {
	if a == Horizontal {
		return m.height
	}
	return m.width
}

func widestGapMidpoint(lines []float64, length float64) float64 {
	bounds := make([]float64, 0, len(lines)+2)
	bounds = append(bounds, 0)
	bounds = append(bounds, lines...)
	bounds = append(bounds, length)
	sort.Float64s(bounds)

	best, at := -1.0, length/2
	for i := 0; i+1 < len(bounds); i++ {
		if gap := bounds[i+1] - bounds[i]; gap > best {
			best, at = gap, bounds[i]+gap/2
		}
	}
	return at
}
