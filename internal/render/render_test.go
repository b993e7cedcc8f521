package render

import (
	"errors"
	"image"
	"image/color"
	"io"
	"log/slog"
	"testing"

	"github.com/starford/gridsplit/internal/apperr"
	"github.com/starford/gridsplit/internal/fonts"
	"github.com/starford/gridsplit/internal/imageio"
	"github.com/starford/gridsplit/internal/overlay"
	"github.com/starford/gridsplit/internal/session"
)

func newRenderer(t *testing.T, interp string) (*Renderer, *fonts.Registry) {
	t.Helper()
	reg, err := fonts.NewRegistry(slog.New(slog.NewJSONHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	r, err := New(reg, Options{Interpolation: interp, MaxUpscale: 4})
	if err != nil {
		t.Fatal(err)
	}
	return r, reg
}

// gradient gives every pixel a distinct color so misplaced blits show up.
func gradient(w, h int) imageio.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: uint8(x ^ y), A: 255})
		}
	}
	return imageio.Image{Pixels: img, Name: "g.png", Width: w, Height: h}
}

func TestBakeRegionUpscaleDimensions(t *testing.T) {
	r, reg := newRenderer(t, Nearest)
	s := session.NewSplit(gradient(120, 80), session.SplitOptions{Cols: 3, Rows: 2, Margin: 2, Measurer: reg})
	v := s.View()

	for _, u := range []int{1, 2, 4} {
		for _, rg := range v.Regions {
			img, err := r.BakeRegion(v, rg, u)
			if err != nil {
				t.Fatal(err)
			}
			b := img.Bounds()
			if b.Dx() != rg.Width*u || b.Dy() != rg.Height*u {
				t.Fatalf("u=%d %s: %dx%d, want %dx%d", u, rg.Name, b.Dx(), b.Dy(), rg.Width*u, rg.Height*u)
			}
		}
	}
}

func TestBakeRegionCopiesSourcePixels(t *testing.T) {
	r, reg := newRenderer(t, CatmullRom)
	src := gradient(100, 60)
	s := session.NewSplit(src, session.SplitOptions{Cols: 2, Rows: 1, Measurer: reg})
	v := s.View()

	rg := v.Regions[1]
	img, err := r.BakeRegion(v, rg, 1)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range []image.Point{{0, 0}, {17, 33}, {rg.Width - 1, rg.Height - 1}} {
		got := img.RGBAAt(p.X, p.Y)
		want := src.Pixels.(*image.RGBA).RGBAAt(rg.SourceX+p.X, rg.SourceY+p.Y)
		if got != want {
			t.Fatalf("pixel %v = %v, want %v", p, got, want)
		}
	}
}

func TestBakeRegionDrawsOnlyTouchingOverlays(t *testing.T) {
	r, reg := newRenderer(t, Nearest)
	blank := imageio.Image{Pixels: image.NewRGBA(image.Rect(0, 0, 400, 200)), Width: 400, Height: 200}
	s := session.NewSplit(blank, session.SplitOptions{Cols: 2, Rows: 1, Measurer: reg})
	i := s.Overlays.Add("WWW", 40, fonts.Fallback)
	x := 20.0
	s.Overlays.Update(i, overlay.Patch{X: &x})
	v := s.View()

	left, _ := r.BakeRegion(v, v.Regions[0], 1)
	right, _ := r.BakeRegion(v, v.Regions[1], 1)
	if !painted(left) {
		t.Fatal("overlay missing from the region it sits in")
	}
	if painted(right) {
		t.Fatal("overlay leaked into a region it does not touch")
	}
}

func TestBakeRegionOverlayLeavesDistantPixels(t *testing.T) {
	r, reg := newRenderer(t, Nearest)
	src := image.NewNRGBA(image.Rect(0, 0, 200, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 200; x++ {
			src.SetNRGBA(x, y, color.NRGBA{R: 180, G: 90, B: 30, A: uint8(x)})
		}
	}
	img := imageio.Image{Pixels: src, Width: 200, Height: 100}

	plain := session.NewSplit(img, session.SplitOptions{Cols: 1, Rows: 1, Measurer: reg})
	withText := session.NewSplit(img, session.SplitOptions{Cols: 1, Rows: 1, Measurer: reg})
	withText.Overlays.Add("Hi", 20, fonts.Fallback)

	pv, tv := plain.View(), withText.View()
	want, err := r.BakeRegion(pv, pv.Regions[0], 1)
	if err != nil {
		t.Fatal(err)
	}
	got, err := r.BakeRegion(tv, tv.Regions[0], 1)
	if err != nil {
		t.Fatal(err)
	}
	if equalRows(got, want, 35, 65) {
		t.Fatal("overlay was not drawn")
	}
	for y := 0; y < 20; y++ {
		for x := 0; x < 200; x++ {
			if g, w := got.RGBAAt(x, y), want.RGBAAt(x, y); g != w {
				t.Fatalf("pixel (%d,%d) = %v, want %v", x, y, g, w)
			}
		}
	}
}

func TestPreviewSplitSizes(t *testing.T) {
	r, reg := newRenderer(t, CatmullRom)
	s := session.NewSplit(gradient(300, 200), session.SplitOptions{Cols: 2, Rows: 2, Margin: 5, Measurer: reg})
	s.StartCrop()
	s.Pointer(session.Pointer{Kind: session.PointerDown, X: 50, Y: 50})
	s.Pointer(session.Pointer{Kind: session.PointerMove, X: 250, Y: 150})
	s.Pointer(session.Pointer{Kind: session.PointerUp, X: 250, Y: 150})

	img, err := r.PreviewSplit(s.View())
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 300 || img.Bounds().Dy() != 200 {
		t.Fatalf("crop preview = %v", img.Bounds())
	}

	s.ApplyCrop()
	img, err = r.PreviewSplit(s.View())
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 200 || img.Bounds().Dy() != 100 {
		t.Fatalf("grid preview = %v", img.Bounds())
	}
}

func TestBakeMerge(t *testing.T) {
	r, reg := newRenderer(t, Nearest)
	s := session.NewMerge(session.MergeOptions{Cols: 2, Rows: 1, Width: 200, Height: 100, Background: "#00ff00", Measurer: reg})

	if _, err := r.BakeMerge(s.View(), 1); !errors.Is(err, apperr.ErrEmptyExport) {
		t.Fatalf("empty bake err = %v", err)
	}

	red := image.NewRGBA(image.Rect(0, 0, 50, 50))
	for i := 0; i < len(red.Pix); i += 4 {
		red.Pix[i], red.Pix[i+3] = 255, 255
	}
	s.Load(0, imageio.Image{Pixels: red, Width: 50, Height: 50})
	s.Grid.Fit(0) // 100x100 box filling cell 0

	for _, u := range []int{1, 2, 4} {
		img, err := r.BakeMerge(s.View(), u)
		if err != nil {
			t.Fatal(err)
		}
		if img.Bounds().Dx() != 200*u || img.Bounds().Dy() != 100*u {
			t.Fatalf("u=%d bounds %v", u, img.Bounds())
		}
		if got := img.RGBAAt(10*u, 10*u); got != (color.RGBA{R: 255, A: 255}) {
			t.Fatalf("u=%d cell pixel = %v", u, got)
		}
		if got := img.RGBAAt(150*u, 50*u); got != (color.RGBA{G: 255, A: 255}) {
			t.Fatalf("u=%d background = %v", u, got)
		}
	}
}

func TestBakeMergeClipsToCell(t *testing.T) {
	r, reg := newRenderer(t, Nearest)
	s := session.NewMerge(session.MergeOptions{Cols: 2, Rows: 1, Width: 200, Height: 100, Background: "#000000", Measurer: reg})
	white := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for i := range white.Pix {
		white.Pix[i] = 255
	}
	s.Load(0, imageio.Image{Pixels: white, Width: 10, Height: 10})
	s.Grid.SetScale(0, 30) // 300x300 box, far larger than the cell

	img, err := r.BakeMerge(s.View(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if got := img.RGBAAt(50, 50); got.R != 255 {
		t.Fatalf("inside cell = %v", got)
	}
	if got := img.RGBAAt(150, 50); got.R != 0 {
		t.Fatalf("cell image leaked into neighbour: %v", got)
	}
}

func TestBackground(t *testing.T) {
	if got := Background("#ff0000", nil); got != (color.RGBA{R: 255, A: 255}) {
		t.Fatalf("hex = %v", got)
	}
	if got := Background("nonsense", nil); got != color.White {
		t.Fatalf("fallback = %v", got)
	}
	blue := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := 0; i < len(blue.Pix); i += 4 {
		blue.Pix[i+2], blue.Pix[i+3] = 200, 255
	}
	c := Background("auto", blue).(color.RGBA)
	if c.B < 150 || c.R > 50 || c.A != 255 {
		t.Fatalf("auto = %v", c)
	}
}

func TestParseInterpolation(t *testing.T) {
	for _, name := range []string{"", Nearest, Bilinear, CatmullRom, "CatmullRom"} {
		if _, err := ParseInterpolation(name); err != nil {
			t.Errorf("%q: %v", name, err)
		}
	}
	if _, err := ParseInterpolation("lanczos"); err == nil {
		t.Error("expected error")
	}
}

func TestStrokeOffsets(t *testing.T) {
	if strokeOffsets(0) != nil {
		t.Fatal("zero radius should stamp nothing")
	}
	for _, p := range strokeOffsets(2.5) {
		if d := p.X*p.X + p.Y*p.Y; d > 2.5*2.5+1e-6 {
			t.Fatalf("offset %v outside radius", p)
		}
	}
}

func equalRows(a, b *image.RGBA, y0, y1 int) bool {
	for y := y0; y < y1; y++ {
		for x := a.Bounds().Min.X; x < a.Bounds().Max.X; x++ {
			if a.RGBAAt(x, y) != b.RGBAAt(x, y) {
				return false
			}
		}
	}
	return true
}

func painted(img *image.RGBA) bool {
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 0 {
			return true
		}
	}
	return false
}
