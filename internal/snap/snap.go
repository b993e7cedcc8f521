// Package snap aligns a moving box to canonical positions of its frame.
//
// Each axis is evaluated on its own. Targets are visited in the fixed order
// start, center, end; for each target the box's reference points are tried
// in turn. The first target with any reference point within the threshold
// wins; among that target's matching references the closest one is used.
// No further target is considered on that axis.
package snap

import (
	"math"

	"github.com/starford/gridsplit/internal/geom"
)

// Points selects a subset of the start/center/end positions on one axis.
type Points uint8

const (
	Start Points = 1 << iota
	Center
	End

	All = Start | Center | End
)

// Axis identifies the direction a guide is measured along.
type Axis string

const (
	AxisX Axis = "x"
	AxisY Axis = "y"
)

// Guide is an active alignment line: a vertical line at Pos when Axis is
// AxisX, a horizontal one when Axis is AxisY.
type Guide struct {
	Axis Axis    `json:"axis"`
	Pos  float64 `json:"pos"`
}

// Snapper holds one snap configuration.
type Snapper struct {
	Threshold float64
	Targets   Points
	Refs      Points
}

// Text is the center-only snap used when dragging text overlays.
var Text = Snapper{Threshold: 30, Targets: Center, Refs: Center}

// Cell is the edge and center snap used when dragging images inside merge cells.
var Cell = Snapper{Threshold: 15, Targets: All, Refs: All}

// Axis snaps the span [start, start+size] inside [0, length]. It returns the
// adjusted start, the matched target and whether a snap happened.
func (s Snapper) Axis(start, size, length float64) (float64, float64, bool) {
	targets := positions(s.Targets, 0, length)
	refs := positions(s.Refs, 0, size)
	for _, t := range targets {
		best, found := 0.0, false
		for _, off := range refs {
			d := math.Abs(start + off - t)
			if d > s.Threshold {
				continue
			}
			if !found || d < math.Abs(start+best-t) {
				best, found = off, true
			}
		}
		if found {
			return t - best, t, true
		}
	}
	return start, 0, false
}

// Box snaps both axes of box against frame and returns the moved box and
// the guides that became active.
func (s Snapper) Box(box geom.Rect, frame geom.Size) (geom.Rect, []Guide) {
	var guides []Guide
	if x, t, ok := s.Axis(box.X, box.Width, frame.Width); ok {
		box.X = x
		guides = append(guides, Guide{Axis: AxisX, Pos: t})
	}
	if y, t, ok := s.Axis(box.Y, box.Height, frame.Height); ok {
		box.Y = y
		guides = append(guides, Guide{Axis: AxisY, Pos: t})
	}
	return box, guides
}

func positions(p Points, origin, length float64) []float64 {
	out := make([]float64, 0, 3)
	if p&Start != 0 {
		out = append(out, origin)
	}
	if p&Center != 0 {
		out = append(out, origin+length/2)
	}
	if p&End != 0 {
		out = append(out, origin+length)
	}
	return out
}
