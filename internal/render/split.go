package render

import (
	"fmt"
	"image"
	"image/color"

	"github.com/gogpu/gg"

	"github.com/starford/gridsplit/internal/apperr"
	"github.com/starford/gridsplit/internal/geom"
	"github.com/starford/gridsplit/internal/region"
	"github.com/starford/gridsplit/internal/session"
	"github.com/starford/gridsplit/internal/snap"
)

var (
	lineColor      = color.RGBA{R: 255, A: 255}
	marginColor    = color.NRGBA{R: 255, A: 77}
	maskColor      = color.NRGBA{A: 128}
	cropColor      = color.RGBA{G: 200, A: 255}
	handleFill     = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	selectionColor = color.RGBA{R: 59, G: 130, B: 246, A: 255}
	guideColor     = color.RGBA{R: 236, G: 72, B: 153, A: 255}
)

const handleSize = 8.0

// PreviewSplit draws the interactive preview. In grid mode it shows the
// effective frame with overlays, grid lines and margin bands. In crop mode
// it shows the whole image with overlays under a mask outside the draft.
func (r *Renderer) PreviewSplit(v session.SplitView) (*image.RGBA, error) {
	if v.Image == nil {
		return nil, fmt.Errorf("preview: %w", apperr.ErrNotFound)
	}
	if v.Mode == session.ModeCrop {
		return r.previewCrop(v), nil
	}

	frame := v.Frame.Image()
	dst := image.NewRGBA(image.Rect(0, 0, frame.Dx(), frame.Dy()))
	r.blit(dst, v.Image, frame, 1)

	dc := vector(dst)
	for _, o := range v.Overlays {
		r.drawOverlay(dc, o.Overlay, geom.Point{}, 1)
	}
	drawGrid(dc, v)
	drawSelection(dc, v.Overlays, v.SelectedOverlay, geom.Point{})
	drawGuides(dc, v.Guides, v.Frame.Size())
	return finish(dc, dst), nil
}

func (r *Renderer) previewCrop(v session.SplitView) *image.RGBA {
	bounds := v.Image.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	r.blit(dst, v.Image, bounds, 1)

	dc := vector(dst)
	off := geom.Pt(v.Frame.X, v.Frame.Y)
	for _, o := range v.Overlays {
		r.drawOverlay(dc, o.Overlay, off, 1)
	}
	if v.Draft != nil {
		d := *v.Draft
		w, h := v.Source.Width, v.Source.Height
		dc.SetColor(maskColor)
		for _, m := range []geom.Rect{
			{Width: w, Height: d.Y},
			{Y: d.Bottom(), Width: w, Height: h - d.Bottom()},
			{Y: d.Y, Width: d.X, Height: d.Height},
			{X: d.Right(), Y: d.Y, Width: w - d.Right(), Height: d.Height},
		} {
			if !m.Empty() {
				dc.DrawRectangle(m.X, m.Y, m.Width, m.Height)
			}
		}
		_ = dc.Fill()

		dc.SetColor(cropColor)
		dc.SetLineWidth(2)
		dc.DrawRectangle(d.X, d.Y, d.Width, d.Height)
		_ = dc.Stroke()
		for _, c := range []geom.Point{
			geom.Pt(d.X, d.Y), geom.Pt(d.Right(), d.Y),
			geom.Pt(d.X, d.Bottom()), geom.Pt(d.Right(), d.Bottom()),
		} {
			drawHandle(dc, c, cropColor)
		}
	}
	return finish(dc, dst)
}

func drawGrid(dc *gg.Context, v session.SplitView) {
	w, h := v.Frame.Width, v.Frame.Height
	vs := region.Boundaries(v.Lines.Vertical, int(w))
	hs := region.Boundaries(v.Lines.Horizontal, int(h))

	if m := float64(v.Margin); m > 0 {
		dc.SetColor(marginColor)
		for _, x := range vs[1 : len(vs)-1] {
			dc.DrawRectangle(float64(x)-m, 0, 2*m, h)
		}
		for _, y := range hs[1 : len(hs)-1] {
			dc.DrawRectangle(0, float64(y)-m, w, 2*m)
		}
		_ = dc.Fill()
	}

	dc.SetColor(lineColor)
	dc.SetLineWidth(2)
	dc.SetDash(10, 5)
	for _, x := range vs[1 : len(vs)-1] {
		dc.DrawLine(float64(x), 0, float64(x), h)
	}
	for _, y := range hs[1 : len(hs)-1] {
		dc.DrawLine(0, float64(y), w, float64(y))
	}
	_ = dc.Stroke()
	dc.ClearDash()
}

func drawSelection(dc *gg.Context, overlays []session.OverlayView, selected int, off geom.Point) {
	if selected < 0 || selected >= len(overlays) {
		return
	}
	b := overlays[selected].Box
	b.X += off.X
	b.Y += off.Y

	dc.SetColor(selectionColor)
	dc.SetLineWidth(1)
	dc.SetDash(5, 3)
	dc.DrawRectangle(b.X, b.Y, b.Width, b.Height)
	_ = dc.Stroke()
	dc.ClearDash()

	drawHandle(dc, geom.Pt(b.Right(), b.Bottom()), selectionColor)
	drawHandle(dc, geom.Pt(b.Right(), b.Y), selectionColor)
}

func drawHandle(dc *gg.Context, c geom.Point, border color.Color) {
	x, y := c.X-handleSize/2, c.Y-handleSize/2
	dc.SetColor(handleFill)
	dc.DrawRectangle(x, y, handleSize, handleSize)
	_ = dc.Fill()
	dc.SetColor(border)
	dc.SetLineWidth(1)
	dc.DrawRectangle(x, y, handleSize, handleSize)
	_ = dc.Stroke()
}

func drawGuides(dc *gg.Context, guides []snap.Guide, frame geom.Size) {
	if len(guides) == 0 {
		return
	}
	dc.SetColor(guideColor)
	dc.SetLineWidth(1)
	for _, g := range guides {
		if g.Axis == snap.AxisX {
			dc.DrawLine(g.Pos, 0, g.Pos, frame.Height)
		} else {
			dc.DrawLine(0, g.Pos, frame.Width, g.Pos)
		}
	}
	_ = dc.Stroke()
}

// BakeRegion renders one region at upscale u: the source pixels scaled by
// u, then every overlay that touches the region, scaled by u and clipped to
// the buffer.
func (r *Renderer) BakeRegion(v session.SplitView, reg region.Region, u int) (*image.RGBA, error) {
	if v.Image == nil {
		return nil, fmt.Errorf("bake: %w", apperr.ErrNotFound)
	}
	u = r.Upscale(u)
	dst := image.NewRGBA(image.Rect(0, 0, reg.Width*u, reg.Height*u))
	r.blit(dst, v.Image, reg.Source(), u)

	touching := make([]session.OverlayView, 0, len(v.Overlays))
	area := reg.FrameRect()
	for _, o := range v.Overlays {
		if o.Box.Intersects(area) {
			touching = append(touching, o)
		}
	}
	if len(touching) == 0 {
		return dst, nil
	}

	dc := vector(dst)
	off := geom.Pt(-float64(reg.FrameX), -float64(reg.FrameY))
	for _, o := range touching {
		r.drawOverlay(dc, o.Overlay, off, float64(u))
	}
	return finish(dc, dst), nil
}
