package render

import (
	"image/color"
	"math"

	"github.com/gogpu/gg"

	"github.com/starford/gridsplit/internal/geom"
	"github.com/starford/gridsplit/internal/overlay"
)

// drawOverlay draws o with its anchor shifted by off and everything scaled
// by scale. The anchor y is the bottom of the text, so the baseline sits
// one descent above it. The stroke goes beneath the fill.
func (r *Renderer) drawOverlay(dc *gg.Context, o overlay.Overlay, off geom.Point, scale float64) {
	if o.Content == "" {
		return
	}
	face, _ := r.faces.Face(o.FontFamily, o.FontSize*scale)
	dc.SetFont(face)

	x := (o.X + off.X) * scale
	baseline := (o.Y+off.Y)*scale - face.Metrics().Descent

	if o.Stroked() {
		dc.SetColor(ParseColor(o.StrokeColor, color.Black))
		radius := o.StrokeWidth * scale / 2
		for _, d := range strokeOffsets(radius) {
			dc.DrawString(o.Content, x+d.X, baseline+d.Y)
		}
	}
	dc.SetColor(ParseColor(o.Color, color.White))
	dc.DrawString(o.Content, x, baseline)
}

// strokeOffsets returns points on concentric rings up to radius, spaced
// about one pixel apart, used to stamp an outline under the glyphs.
func strokeOffsets(radius float64) []geom.Point {
	if radius <= 0 {
		return nil
	}
	var out []geom.Point
	for ring := math.Min(1, radius); ring <= radius+1e-9; ring++ {
		n := max(8, int(math.Ceil(2*math.Pi*ring)))
		for i := 0; i < n; i++ {
			a := 2 * math.Pi * float64(i) / float64(n)
			out = append(out, geom.Pt(ring*math.Cos(a), ring*math.Sin(a)))
		}
	}
	if last := math.Floor(radius); last < radius && last >= 1 {
		n := max(8, int(math.Ceil(2*math.Pi*radius)))
		for i := 0; i < n; i++ {
			a := 2 * math.Pi * float64(i) / float64(n)
			out = append(out, geom.Pt(radius*math.Cos(a), radius*math.Sin(a)))
		}
	}
	return out
}
