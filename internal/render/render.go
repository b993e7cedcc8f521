// Package render draws session views: the interactive preview and the final
// bake at any integer upscale.
//
// Raster work (frame blits, scaled cell images) goes through
// golang.org/x/image/draw; overlays, guides and text are drawn on a
// transparent gg layer composited over the raster result. Preview and bake share the
// same placement code, so at upscale 1 the baked pixels match the preview
// underneath its guides.
package render

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/cenkalti/dominantcolor"
	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"
	"github.com/lucasb-eyer/go-colorful"
	xdraw "golang.org/x/image/draw"
)

// FaceSource resolves a font family to a face. The bool reports whether the
// family itself was found; a fallback face is returned otherwise.
type FaceSource interface {
	Face(family string, size float64) (text.Face, bool)
}

// Interpolation names.
const (
	Nearest    = "nearest"
	Bilinear   = "bilinear"
	CatmullRom = "catmullrom"
)

// ParseInterpolation maps a name to an interpolator.
func ParseInterpolation(name string) (xdraw.Interpolator, error) {
	switch strings.ToLower(name) {
	case Nearest:
		return xdraw.NearestNeighbor, nil
	case Bilinear:
		return xdraw.ApproxBiLinear, nil
	case CatmullRom, "":
		return xdraw.CatmullRom, nil
	}
	return nil, fmt.Errorf("render: unknown interpolation %q", name)
}

// Options configures a Renderer.
type Options struct {
	Interpolation string
	MaxUpscale    int
}

// Renderer draws views. It holds no per-session state and is safe for
// concurrent use.
type Renderer struct {
	faces      FaceSource
	interp     xdraw.Interpolator
	maxUpscale int
}

// New returns a renderer drawing text with faces.
func New(faces FaceSource, opts Options) (*Renderer, error) {
	interp, err := ParseInterpolation(opts.Interpolation)
	if err != nil {
		return nil, err
	}
	if opts.MaxUpscale < 1 {
		opts.MaxUpscale = 4
	}
	return &Renderer{faces: faces, interp: interp, maxUpscale: opts.MaxUpscale}, nil
}

// Upscale clamps u into [1, MaxUpscale].
func (r *Renderer) Upscale(u int) int {
	return min(max(u, 1), r.maxUpscale)
}

// MaxUpscale returns the configured upscale limit.
func (r *Renderer) MaxUpscale() int {
	return r.maxUpscale
}

// ParseColor parses #rgb or #rrggbb. Invalid input yields fallback.
func ParseColor(s string, fallback color.Color) color.Color {
	c, err := colorful.Hex(strings.TrimSpace(s))
	if err != nil {
		return fallback
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// Background resolves a merge background spec: a hex color, or "auto" for
// the dominant color of sample. Unresolvable specs give white.
func Background(spec string, sample image.Image) color.Color {
	if strings.EqualFold(spec, "auto") {
		if sample == nil {
			return color.White
		}
		c := dominantcolor.Find(sample)
		c.A = 255
		return c
	}
	return ParseColor(spec, color.White)
}

// blit copies sr of src into dst at its origin, scaled by u.
func (r *Renderer) blit(dst *image.RGBA, src image.Image, sr image.Rectangle, u int) {
	if u == 1 {
		xdraw.Copy(dst, dst.Bounds().Min, src, sr, xdraw.Src, nil)
		return
	}
	r.interp.Scale(dst, dst.Bounds(), src, sr, xdraw.Src, nil)
}

// vector returns a transparent gg layer the size of img. Overlays are drawn
// on the layer and finish composites it over img, so pixels the layer does
// not touch keep their exact values.
func vector(img *image.RGBA) *gg.Context {
	return gg.NewContext(img.Bounds().Dx(), img.Bounds().Dy())
}

func finish(dc *gg.Context, dst *image.RGBA) *image.RGBA {
	layer := dc.Image()
	_ = dc.Close()
	xdraw.Draw(dst, dst.Bounds(), layer, layer.Bounds().Min, xdraw.Over)
	return dst
}
