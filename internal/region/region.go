// Package region turns grid lines, the effective frame and a margin into the
// ordered list of source rectangles that become output pieces.
package region

import (
	"fmt"
	"image"
	"math"
	"slices"

	"github.com/starford/gridsplit/internal/geom"
	"github.com/starford/gridsplit/internal/grid"
)

// Region is one output piece. Source coordinates are in full-image pixels,
// Frame coordinates are relative to the effective frame.
type Region struct {
	Row     int    `json:"row"`
	Col     int    `json:"col"`
	Name    string `json:"name"`
	SourceX int    `json:"source_x"`
	SourceY int    `json:"source_y"`
	FrameX  int    `json:"frame_x"`
	FrameY  int    `json:"frame_y"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

// Source returns the region in full-image pixel coordinates.
func (r Region) Source() image.Rectangle {
	return image.Rect(r.SourceX, r.SourceY, r.SourceX+r.Width, r.SourceY+r.Height)
}

// FrameRect returns the region relative to the effective frame.
func (r Region) FrameRect() geom.Rect {
	return geom.Rect{X: float64(r.FrameX), Y: float64(r.FrameY), Width: float64(r.Width), Height: float64(r.Height)}
}

// Decompose splits frame along lines. Lines are copied, rounded to whole
// pixels, sorted, de-duplicated and filtered to the open interval
// (0, axis); the caller's slices are never modified. Interior edges are
// pulled in by margin on each side. Every region is at least 1x1 and lies
// inside the frame. The result is row-major.
func Decompose(lines grid.Lines, frame geom.Rect, margin int) []Region {
	w := int(math.Round(frame.Width))
	h := int(math.Round(frame.Height))
	if w <= 0 || h <= 0 {
		return nil
	}
	ox := int(math.Round(frame.X))
	oy := int(math.Round(frame.Y))
	margin = max(0, margin)

	vs := Boundaries(lines.Vertical, w)
	hs := Boundaries(lines.Horizontal, h)

	out := make([]Region, 0, (len(vs)-1)*(len(hs)-1))
	for row := 0; row < len(hs)-1; row++ {
		y0, y1 := span(hs, row, margin, h)
		for col := 0; col < len(vs)-1; col++ {
			x0, x1 := span(vs, col, margin, w)
			out = append(out, Region{
				Row:     row,
				Col:     col,
				Name:    fmt.Sprintf("split_%d_%d", row+1, col+1),
				SourceX: ox + x0,
				SourceY: oy + y0,
				FrameX:  x0,
				FrameY:  y0,
				Width:   x1 - x0,
				Height:  y1 - y0,
			})
		}
	}
	return out
}

// Boundaries returns [0, interior lines..., length] as whole pixels.
func Boundaries(lines []float64, length int) []int {
	sorted := slices.Clone(lines)
	slices.Sort(sorted)

	out := make([]int, 1, len(sorted)+2)
	for _, v := range sorted {
		if !geom.Finite(v) {
			continue
		}
		p := int(math.Round(v))
		if p <= 0 || p >= length || p == out[len(out)-1] {
			continue
		}
		out = append(out, p)
	}
	return append(out, length)
}

func span(bounds []int, i, margin, length int) (int, int) {
	a, b := bounds[i], bounds[i+1]
	if i > 0 {
		a += margin
	}
	if i < len(bounds)-2 {
		b -= margin
	}
	a = geom.ClampInt(a, 0, length-1)
	b = geom.ClampInt(b, 0, length)
	if b-a < 1 {
		b = a + 1
	}
	return a, b
}

// Intersecting returns the indexes of regions whose frame rectangle
// overlaps box.
func Intersecting(regions []Region, box geom.Rect) []int {
	var out []int
	for i, r := range regions {
		if r.FrameRect().Intersects(box) {
			out = append(out, i)
		}
	}
	return out
}
